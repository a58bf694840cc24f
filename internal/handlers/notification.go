package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hostel-tracker/apiserver/internal/services"
	"github.com/hostel-tracker/apiserver/types"
)

// NotificationHandler serves the caller's notification inbox.
type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// NotificationRouter registers notification routes on the given router.
func NotificationRouter(r chi.Router, notificationService *services.NotificationService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewNotificationHandler(notificationService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListNotifications)
	r.Patch("/{notificationID}/read", handler.MarkRead)
}

func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	limit, err := parseOptionalInt(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	notifications, err := h.notificationService.List(r.Context(), actor, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NotificationListResponse{Count: len(notifications), Notifications: notifications})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(r.Context(), actor, chi.URLParam(r, "notificationID")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Notification marked as read"})
}

type NotificationListResponse struct {
	Count         int                  `json:"count"`
	Notifications []types.Notification `json:"notifications"`
}
