package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hostel-tracker/apiserver/internal/services"
	"github.com/hostel-tracker/apiserver/types"
)

// AnalyticsHandler provides the management dashboard endpoints.
type AnalyticsHandler struct {
	analyticsService *services.AnalyticsService
}

// NewAnalyticsHandler constructs a handler with the provided service.
func NewAnalyticsHandler(analyticsService *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// AnalyticsRouter registers analytics routes on the given router.
func AnalyticsRouter(r chi.Router, analyticsService *services.AnalyticsService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewAnalyticsHandler(analyticsService)

	r.Use(authMiddleware)
	r.Get("/overview", handler.Overview)
	r.Get("/trends", handler.Trends)
	r.Get("/top-issues", handler.TopIssues)
}

func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	start, err := parseOptionalDate(query.Get("startDate"), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseOptionalDate(query.Get("endDate"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	overview, err := h.analyticsService.Overview(r.Context(), actor, types.AnalyticsFilter{
		Hostel: strings.TrimSpace(query.Get("hostel")),
		Start:  start,
		End:    end,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *AnalyticsHandler) Trends(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	days, err := parseOptionalInt(r.URL.Query().Get("days"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	trends, err := h.analyticsService.Trends(r.Context(), actor, days, strings.TrimSpace(r.URL.Query().Get("hostel")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

func (h *AnalyticsHandler) TopIssues(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	limit, err := parseOptionalInt(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	top, err := h.analyticsService.TopIssues(r.Context(), actor, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, top)
}

func parseOptionalInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, errInvalidInt
	}
	return parsed, nil
}

// parseOptionalDate accepts RFC 3339 timestamps or plain dates. A plain
// end date covers the whole day.
func parseOptionalDate(value string, endOfDay bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, errInvalidDate
	}
	if endOfDay {
		parsed = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return &parsed, nil
}
