package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hostel-tracker/apiserver/internal/services"
	"github.com/hostel-tracker/apiserver/types"
)

// LostFoundHandler provides HTTP handlers for lost and found items.
type LostFoundHandler struct {
	lostFoundService *services.LostFoundService
}

// NewLostFoundHandler constructs a handler with the provided service.
func NewLostFoundHandler(lostFoundService *services.LostFoundService) *LostFoundHandler {
	return &LostFoundHandler{lostFoundService: lostFoundService}
}

// LostFoundRouter registers lost and found routes on the given router.
func LostFoundRouter(r chi.Router, lostFoundService *services.LostFoundService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewLostFoundHandler(lostFoundService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListItems)
	r.Post("/", handler.CreateItem)
	r.Route("/{itemID}", func(r chi.Router) {
		r.Get("/", handler.GetItem)
		r.Patch("/", handler.UpdateItem)
		r.Delete("/", handler.DeleteItem)
		r.Post("/claim", handler.ClaimItem)
		r.Patch("/claim/{claimID}", handler.DecideClaim)
	})
}

func (h *LostFoundHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	items, err := h.lostFoundService.List(r.Context(), actor, types.ItemFilter{
		Status: types.ItemStatus(strings.TrimSpace(query.Get("status"))),
		Search: query.Get("search"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ItemListResponse{Count: len(items), Items: items})
}

func (h *LostFoundHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	item, err := h.lostFoundService.Get(r.Context(), actor, chi.URLParam(r, "itemID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// CreateItem accepts either a JSON body or a multipart form carrying up to
// three images.
func (h *LostFoundHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	in, err := parseItemRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.lostFoundService.Create(r.Context(), actor, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ItemResponse{Message: "Item reported successfully", Item: item})
}

func (h *LostFoundHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var patch types.ItemPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	item, err := h.lostFoundService.Update(r.Context(), actor, chi.URLParam(r, "itemID"), patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ItemResponse{Message: "Item updated successfully", Item: item})
}

func (h *LostFoundHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	if err := h.lostFoundService.Delete(r.Context(), actor, chi.URLParam(r, "itemID")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Item deleted successfully"})
}

func (h *LostFoundHandler) ClaimItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	item, err := h.lostFoundService.Claim(r.Context(), actor, chi.URLParam(r, "itemID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ItemResponse{Message: "Claim request submitted", Item: item})
}

func (h *LostFoundHandler) DecideClaim(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req ClaimDecisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	item, err := h.lostFoundService.DecideClaim(
		r.Context(),
		actor,
		chi.URLParam(r, "itemID"),
		chi.URLParam(r, "claimID"),
		req.Status,
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ItemResponse{Message: "Claim " + string(req.Status), Item: item})
}

type CreateItemRequest struct {
	ItemName    string           `json:"itemName"`
	Description string           `json:"description"`
	Location    string           `json:"location"`
	Status      types.ItemStatus `json:"status"`
	ContactInfo string           `json:"contactInfo"`
}

type ClaimDecisionRequest struct {
	Status types.ClaimStatus `json:"status"`
}

type ItemListResponse struct {
	Count int                   `json:"count"`
	Items []types.LostFoundItem `json:"items"`
}

type ItemResponse struct {
	Message string              `json:"message"`
	Item    types.LostFoundItem `json:"item"`
}

func parseItemRequest(w http.ResponseWriter, r *http.Request) (services.NewItem, error) {
	if !isMultipart(r) {
		var req CreateItemRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return services.NewItem{}, errInvalidRequest
		}
		return services.NewItem{
			ItemName:    req.ItemName,
			Description: req.Description,
			Location:    req.Location,
			Status:      req.Status,
			ContactInfo: req.ContactInfo,
		}, nil
	}

	if err := parseMultipart(r); err != nil {
		return services.NewItem{}, err
	}
	images, err := parseUploads(r.MultipartForm, formFieldImages, services.MaxItemImages)
	if err != nil {
		return services.NewItem{}, err
	}
	return services.NewItem{
		ItemName:    r.FormValue("itemName"),
		Description: r.FormValue("description"),
		Location:    r.FormValue("location"),
		Status:      types.ItemStatus(strings.TrimSpace(r.FormValue("status"))),
		ContactInfo: r.FormValue("contactInfo"),
		Images:      images,
	}, nil
}
