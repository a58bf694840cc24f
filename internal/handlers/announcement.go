package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hostel-tracker/apiserver/internal/services"
	"github.com/hostel-tracker/apiserver/types"
)

// AnnouncementHandler provides HTTP handlers for announcements.
type AnnouncementHandler struct {
	announcementService *services.AnnouncementService
}

// NewAnnouncementHandler constructs a handler with the provided service.
func NewAnnouncementHandler(announcementService *services.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{announcementService: announcementService}
}

// AnnouncementRouter registers announcement routes on the given router.
func AnnouncementRouter(r chi.Router, announcementService *services.AnnouncementService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewAnnouncementHandler(announcementService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListAnnouncements)
	r.Post("/", handler.CreateAnnouncement)
	r.Route("/{announcementID}", func(r chi.Router) {
		r.Get("/", handler.GetAnnouncement)
		r.Patch("/", handler.UpdateAnnouncement)
		r.Put("/", handler.UpdateAnnouncement)
		r.Delete("/", handler.DeleteAnnouncement)
	})
}

func (h *AnnouncementHandler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	all, err := parseOptionalBool(r.URL.Query().Get("all"), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	announcements, err := h.announcementService.List(r.Context(), actor, all)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AnnouncementListResponse{Count: len(announcements), Announcements: announcements})
}

func (h *AnnouncementHandler) GetAnnouncement(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	announcement, err := h.announcementService.Get(r.Context(), actor, chi.URLParam(r, "announcementID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, announcement)
}

func (h *AnnouncementHandler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req services.NewAnnouncement
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	announcement, err := h.announcementService.Create(r.Context(), actor, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AnnouncementResponse{Message: "Announcement created successfully", Announcement: announcement})
}

func (h *AnnouncementHandler) UpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var patch types.AnnouncementPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	announcement, err := h.announcementService.Update(r.Context(), actor, chi.URLParam(r, "announcementID"), patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AnnouncementResponse{Message: "Announcement updated successfully", Announcement: announcement})
}

func (h *AnnouncementHandler) DeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	if err := h.announcementService.Delete(r.Context(), actor, chi.URLParam(r, "announcementID")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Announcement deleted successfully"})
}

type AnnouncementListResponse struct {
	Count         int                  `json:"count"`
	Announcements []types.Announcement `json:"announcements"`
}

type AnnouncementResponse struct {
	Message      string             `json:"message"`
	Announcement types.Announcement `json:"announcement"`
}
