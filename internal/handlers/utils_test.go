package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hostel-tracker/apiserver/internal/policy"
	"github.com/hostel-tracker/apiserver/internal/services"
)

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		wantReason string
	}{
		{"validation", services.ErrValidation("title is required"), http.StatusBadRequest, "validation", ""},
		{"not found", services.ErrNotFound("issue not found"), http.StatusNotFound, "not_found", ""},
		{"forbidden", services.ErrForbidden(policy.Deny("management_only"), "management access required"), http.StatusForbidden, "forbidden", "management_only"},
		{"conflict", services.ErrConflict("duplicate_claim", "already claimed"), http.StatusConflict, "conflict", "duplicate_claim"},
		{"upstream", services.ErrUpstream("failed to load issue", errors.New("db down")), http.StatusBadGateway, "upstream", ""},
		{"wrapped", errors.Join(errors.New("context"), services.ErrNotFound("item not found")), http.StatusNotFound, "not_found", ""},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, tt.err)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Kind != tt.wantKind || resp.Reason != tt.wantReason || resp.Error == "" {
				t.Fatalf("unexpected body: %+v", resp)
			}
			if strings.Contains(resp.Error, "db down") {
				t.Fatalf("upstream causes must not leak: %q", resp.Error)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst StatusUpdateRequest

	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	if err := decodeJSON(httptest.NewRecorder(), req, &dst); err != nil {
		t.Fatalf("empty body should decode to zero value: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":`))
	if err := decodeJSON(httptest.NewRecorder(), req, &dst); err == nil {
		t.Fatalf("expected error for truncated body")
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"resolved","remarks":"fixed"}`))
	if err := decodeJSON(httptest.NewRecorder(), req, &dst); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dst.Status != "resolved" || dst.Remarks != "fixed" {
		t.Fatalf("unexpected request: %+v", dst)
	}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)

	var resp map[string]string
	if code := h.do(http.MethodGet, "/healthz", nil, nil, &resp); code != http.StatusOK || resp["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %v", code, resp)
	}
}
