package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hostel-tracker/apiserver/internal/services"
	"github.com/hostel-tracker/apiserver/types"
)

// IssueHandler provides HTTP handlers for issues.
type IssueHandler struct {
	issueService *services.IssueService
}

// NewIssueHandler constructs a handler with the provided service.
func NewIssueHandler(issueService *services.IssueService) *IssueHandler {
	return &IssueHandler{issueService: issueService}
}

// IssueRouter registers issue routes on the given router. Every route
// requires authentication.
func IssueRouter(r chi.Router, issueService *services.IssueService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewIssueHandler(issueService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListIssues)
	r.Post("/", handler.CreateIssue)
	r.Route("/{issueID}", func(r chi.Router) {
		r.Get("/", handler.GetIssue)
		r.Delete("/", handler.DeleteIssue)
		r.Patch("/status", handler.UpdateStatus)
		r.Patch("/assign", handler.AssignIssue)
		r.Post("/comment", handler.AddComment)
		r.Post("/upvote", handler.ToggleUpvote)
	})
}

func (h *IssueHandler) ListIssues(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	issues, err := h.issueService.List(r.Context(), actor, types.IssueFilter{
		Status:   types.IssueStatus(strings.TrimSpace(query.Get("status"))),
		Category: types.IssueCategory(strings.TrimSpace(query.Get("category"))),
		Priority: types.IssuePriority(strings.TrimSpace(query.Get("priority"))),
		Hostel:   strings.TrimSpace(query.Get("hostel")),
		Block:    strings.TrimSpace(query.Get("block")),
		Search:   query.Get("search"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, IssueListResponse{Count: len(issues), Issues: issues})
}

func (h *IssueHandler) GetIssue(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	issue, err := h.issueService.Get(r.Context(), actor, chi.URLParam(r, "issueID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// CreateIssue accepts either a JSON body or a multipart form carrying up to
// five media files.
func (h *IssueHandler) CreateIssue(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	in, err := parseIssueRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	issue, err := h.issueService.Create(r.Context(), actor, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, IssueResponse{Message: "Issue created successfully", Issue: issue})
}

func (h *IssueHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req StatusUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	issue, err := h.issueService.UpdateStatus(r.Context(), actor, chi.URLParam(r, "issueID"), req.Status, req.Remarks)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, IssueResponse{Message: "Status updated successfully", Issue: issue})
}

func (h *IssueHandler) AssignIssue(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req AssignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	issue, err := h.issueService.Assign(r.Context(), actor, chi.URLParam(r, "issueID"), req.AssignedTo)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, IssueResponse{Message: "Issue assigned successfully", Issue: issue})
}

func (h *IssueHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	comments, err := h.issueService.Comment(r.Context(), actor, chi.URLParam(r, "issueID"), req.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CommentResponse{Message: "Comment added successfully", Comments: comments})
}

func (h *IssueHandler) ToggleUpvote(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	count, upvoted, err := h.issueService.ToggleUpvote(r.Context(), actor, chi.URLParam(r, "issueID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	message := "Upvote removed"
	if upvoted {
		message = "Issue upvoted"
	}
	writeJSON(w, http.StatusOK, UpvoteResponse{Message: message, Upvotes: count, HasUpvoted: upvoted})
}

func (h *IssueHandler) DeleteIssue(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	if err := h.issueService.Delete(r.Context(), actor, chi.URLParam(r, "issueID")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Issue deleted successfully"})
}

// CreateIssueRequest is the JSON body of a new issue. IsPublic defaults to
// true.
type CreateIssueRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Category    types.IssueCategory `json:"category"`
	Priority    types.IssuePriority `json:"priority"`
	IsPublic    *bool               `json:"isPublic"`
}

type StatusUpdateRequest struct {
	Status  types.IssueStatus `json:"status"`
	Remarks string            `json:"remarks"`
}

type AssignRequest struct {
	AssignedTo string `json:"assignedTo"`
}

type CommentRequest struct {
	Text string `json:"text"`
}

type IssueListResponse struct {
	Count  int           `json:"count"`
	Issues []types.Issue `json:"issues"`
}

type IssueResponse struct {
	Message string      `json:"message"`
	Issue   types.Issue `json:"issue"`
}

type CommentResponse struct {
	Message  string          `json:"message"`
	Comments []types.Comment `json:"comments"`
}

type UpvoteResponse struct {
	Message    string `json:"message"`
	Upvotes    int    `json:"upvotes"`
	HasUpvoted bool   `json:"hasUpvoted"`
}

func parseIssueRequest(w http.ResponseWriter, r *http.Request) (services.NewIssue, error) {
	if !isMultipart(r) {
		var req CreateIssueRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return services.NewIssue{}, errInvalidRequest
		}
		isPublic := true
		if req.IsPublic != nil {
			isPublic = *req.IsPublic
		}
		return services.NewIssue{
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
			Priority:    req.Priority,
			IsPublic:    isPublic,
		}, nil
	}

	if err := parseMultipart(r); err != nil {
		return services.NewIssue{}, err
	}
	isPublic, err := parseOptionalBool(r.FormValue("isPublic"), true)
	if err != nil {
		return services.NewIssue{}, err
	}
	media, err := parseUploads(r.MultipartForm, formFieldMedia, services.MaxIssueMedia)
	if err != nil {
		return services.NewIssue{}, err
	}
	return services.NewIssue{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    types.IssueCategory(strings.TrimSpace(r.FormValue("category"))),
		Priority:    types.IssuePriority(strings.TrimSpace(r.FormValue("priority"))),
		IsPublic:    isPublic,
		Media:       media,
	}, nil
}

func parseOptionalBool(value string, fallback bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, errInvalidBool
	}
	return parsed, nil
}
