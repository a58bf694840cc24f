package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/hostel-tracker/apiserver/types"
)

func TestAnalyticsRoutes(t *testing.T) {
	h := newHarness(t)
	issue := h.createIssue(h.student, true)
	if code := h.do(http.MethodPatch, "/api/issues/"+issue.ID+"/status", &h.manager, StatusUpdateRequest{Status: types.StatusClosed}, nil); code != http.StatusOK {
		t.Fatalf("close issue: expected 200, got %d", code)
	}
	h.createIssue(h.neighbour, false)

	if code := h.do(http.MethodGet, "/api/analytics/overview", &h.staff, nil, nil); code != http.StatusForbidden {
		t.Fatalf("staff overview: expected 403, got %d", code)
	}

	var overview types.Overview
	if code := h.do(http.MethodGet, "/api/analytics/overview?hostel=H1", &h.manager, nil, &overview); code != http.StatusOK {
		t.Fatalf("overview: expected 200, got %d", code)
	}
	if overview.TotalIssues != 2 || overview.ResolvedCount != 1 || overview.IssuesByStatus["closed"] != 1 {
		t.Fatalf("unexpected overview: %+v", overview)
	}

	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format(time.DateOnly)
	if code := h.do(http.MethodGet, "/api/analytics/overview?startDate="+tomorrow, &h.manager, nil, &overview); code != http.StatusOK || overview.TotalIssues != 0 {
		t.Fatalf("future window: expected no issues, got %d %+v", code, overview)
	}
	if code := h.do(http.MethodGet, "/api/analytics/overview?startDate=yesterday", &h.manager, nil, nil); code != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", code)
	}

	var trends types.Trends
	if code := h.do(http.MethodGet, "/api/analytics/trends?days=7", &h.manager, nil, &trends); code != http.StatusOK {
		t.Fatalf("trends: expected 200, got %d", code)
	}
	if trends.Period != "7 days" || len(trends.Trends) != 1 || trends.Trends[0].Count != 2 {
		t.Fatalf("unexpected trends: %+v", trends)
	}
	if code := h.do(http.MethodGet, "/api/analytics/trends?days=abc", &h.manager, nil, nil); code != http.StatusBadRequest {
		t.Fatalf("bad days: expected 400, got %d", code)
	}

	var top types.TopIssues
	if code := h.do(http.MethodGet, "/api/analytics/top-issues?limit=5", &h.manager, nil, &top); code != http.StatusOK {
		t.Fatalf("top issues: expected 200, got %d", code)
	}
	if len(top.MostUpvoted) != 1 || top.MostUpvoted[0].ID != issue.ID {
		t.Fatalf("only public issues should be ranked: %+v", top)
	}
}

func TestNotificationRoutes(t *testing.T) {
	h := newHarness(t)

	var list NotificationListResponse
	if code := h.do(http.MethodGet, "/api/notifications?limit=5", &h.student, nil, &list); code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", code)
	}
	if list.Count != 0 || list.Notifications == nil {
		t.Fatalf("expected an empty inbox, got %+v", list)
	}
	if code := h.do(http.MethodGet, "/api/notifications?limit=x", &h.student, nil, nil); code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", code)
	}
	if code := h.do(http.MethodPatch, "/api/notifications/missing/read", &h.student, nil, nil); code != http.StatusNotFound {
		t.Fatalf("mark missing: expected 404, got %d", code)
	}
}

func TestParseOptionalDate(t *testing.T) {
	start, err := parseOptionalDate("2026-03-01", false)
	if err != nil || !start.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start: %v %v", start, err)
	}
	end, err := parseOptionalDate("2026-03-01", true)
	if err != nil || !end.Equal(time.Date(2026, 3, 1, 23, 59, 59, 999999999, time.UTC)) {
		t.Fatalf("unexpected end: %v %v", end, err)
	}
	exact, err := parseOptionalDate("2026-03-01T10:00:00Z", true)
	if err != nil || exact.Hour() != 10 {
		t.Fatalf("RFC 3339 must be kept as is: %v %v", exact, err)
	}
	if none, err := parseOptionalDate(" ", false); none != nil || err != nil {
		t.Fatalf("empty value must be nil: %v %v", none, err)
	}
}
