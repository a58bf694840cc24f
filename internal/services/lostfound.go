package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hostel-tracker/apiserver/internal/policy"
	"github.com/hostel-tracker/apiserver/types"
)

// MaxItemImages is the number of images accepted with a new item.
const MaxItemImages = 3

// LostFoundRepository defines persistence operations for lost and found
// items.
type LostFoundRepository interface {
	List(ctx context.Context, filter types.ItemFilter) ([]types.LostFoundItem, error)
	Get(ctx context.Context, id string) (types.LostFoundItem, error)
	Create(ctx context.Context, item types.LostFoundItem) (types.LostFoundItem, error)
	Mutate(ctx context.Context, id string, fn func(item *types.LostFoundItem) error) (types.LostFoundItem, error)
	Delete(ctx context.Context, id string) error
}

// LostFoundService encapsulates item reporting and the claim workflow.
type LostFoundService struct {
	repo   LostFoundRepository
	users  UserLookup
	media  *MediaService
	events *EventPublisher
	now    func() time.Time
}

func NewLostFoundService(repo LostFoundRepository, users UserLookup, media *MediaService, events *EventPublisher) *LostFoundService {
	return &LostFoundService{
		repo:   repo,
		users:  users,
		media:  media,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewItem is the client input for reporting an item.
type NewItem struct {
	ItemName    string
	Description string
	Location    string
	Status      types.ItemStatus
	ContactInfo string
	Images      []Upload
}

// Create reports a lost or found item. The hostel is copied from the
// reporter and the contact defaults to the reporter's phone.
func (s *LostFoundService) Create(ctx context.Context, actor policy.Actor, in NewItem) (types.LostFoundItem, error) {
	in.ItemName = strings.TrimSpace(in.ItemName)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.ContactInfo = strings.TrimSpace(in.ContactInfo)
	switch {
	case in.ItemName == "" || in.Description == "" || in.Location == "":
		return types.LostFoundItem{}, ErrValidation("itemName, description and location are required")
	case in.Status != types.ItemLost && in.Status != types.ItemFound:
		return types.LostFoundItem{}, ErrValidation("status must be lost or found")
	case len(in.Images) > MaxItemImages:
		return types.LostFoundItem{}, ErrValidation("at most 3 images are allowed")
	}

	reporter, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return types.LostFoundItem{}, storeError(err, "reporter not found", "failed to load reporter")
	}
	if in.ContactInfo == "" {
		in.ContactInfo = reporter.Phone
	}

	images, err := s.media.UploadAll(ctx, NamespaceLostFound, in.Images)
	if err != nil {
		return types.LostFoundItem{}, err
	}

	now := s.now()
	created, err := s.repo.Create(ctx, types.LostFoundItem{
		ItemName:      in.ItemName,
		Description:   in.Description,
		Location:      in.Location,
		Status:        in.Status,
		ReporterID:    reporter.ID,
		Images:        images,
		Hostel:        reporter.Hostel,
		ContactInfo:   in.ContactInfo,
		ClaimRequests: []types.ClaimRequest{},
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		s.media.Discard(ctx, images)
		return types.LostFoundItem{}, ErrUpstream("failed to create item", err)
	}
	return created, nil
}

// List returns items newest first. Students only see their own hostel.
func (s *LostFoundService) List(ctx context.Context, actor policy.Actor, filter types.ItemFilter) ([]types.LostFoundItem, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrValidation("invalid status filter")
	}
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Hostel = policy.ItemListHostel(actor)

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, ErrUpstream("failed to list items", err)
	}
	return items, nil
}

func (s *LostFoundService) Get(ctx context.Context, actor policy.Actor, id string) (types.LostFoundItem, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.LostFoundItem{}, storeError(err, "item not found", "failed to load item")
	}
	if hostel := policy.ItemListHostel(actor); hostel != "" && item.Hostel != hostel {
		return types.LostFoundItem{}, ErrNotFound("item not found")
	}
	return item, nil
}

// Claim files a pending claim request by actor.
func (s *LostFoundService) Claim(ctx context.Context, actor policy.Actor, id string) (types.LostFoundItem, error) {
	updated, err := s.repo.Mutate(ctx, id, func(item *types.LostFoundItem) error {
		if hostel := policy.ItemListHostel(actor); hostel != "" && item.Hostel != hostel {
			return ErrNotFound("item not found")
		}
		decision := policy.CanClaimItem(actor, item)
		switch {
		case decision.Allowed:
		case decision.Reason == policy.ReasonOwnItem:
			return ErrForbidden(decision, "cannot claim your own item")
		case decision.Reason == policy.ReasonItemClaimed:
			return ErrConflict(decision.Reason, "item already claimed")
		default:
			return ErrConflict(decision.Reason, "you have already requested to claim this item")
		}
		item.AddClaim(types.ClaimRequest{
			ID:          uuid.NewString(),
			ClaimantID:  actor.ID,
			RequestedAt: s.now(),
		})
		return nil
	})
	if err != nil {
		return types.LostFoundItem{}, storeError(err, "item not found", "failed to claim item")
	}

	s.events.Publish(ctx, types.Event{
		Kind:       types.EventClaimRequested,
		ResourceID: updated.ID,
		ActorID:    actor.ID,
		Recipients: recipients(actor.ID, updated.ReporterID),
		Subject:    updated.ItemName,
		Message:    "New claim request for " + updated.ItemName,
		OccurredAt: updated.UpdatedAt,
	})
	return updated, nil
}

// DecideClaim approves or rejects one pending claim. Other claims on the
// item are left as they are.
func (s *LostFoundService) DecideClaim(ctx context.Context, actor policy.Actor, itemID, claimID string, status types.ClaimStatus) (types.LostFoundItem, error) {
	if !status.Decision() {
		return types.LostFoundItem{}, ErrValidation("status must be approved or rejected")
	}

	var claimant string
	updated, err := s.repo.Mutate(ctx, itemID, func(item *types.LostFoundItem) error {
		if decision := policy.CanDecideClaim(actor, item); !decision.Allowed {
			return ErrForbidden(decision, "not allowed to decide claims on this item")
		}
		idx := item.Claim(claimID)
		if idx < 0 {
			return ErrNotFound("claim request not found")
		}
		if item.ClaimRequests[idx].Status != types.ClaimPending {
			return ErrConflict(ReasonClaimDecided, "claim request already decided")
		}
		if status == types.ClaimApproved && (item.Status == types.ItemClaimed || item.HasApprovedClaim()) {
			return ErrConflict(policy.ReasonItemClaimed, "item already claimed")
		}
		claimant = item.ClaimRequests[idx].ClaimantID
		item.DecideClaim(idx, status, actor.ID, s.now())
		return nil
	})
	if err != nil {
		return types.LostFoundItem{}, storeError(err, "item not found", "failed to update claim")
	}

	s.events.Publish(ctx, types.Event{
		Kind:       types.EventClaimDecided,
		ResourceID: updated.ID,
		ActorID:    actor.ID,
		Recipients: recipients(actor.ID, claimant),
		Subject:    updated.ItemName,
		Message:    "Your claim was " + string(status),
		OccurredAt: updated.UpdatedAt,
	})
	return updated, nil
}

// Update applies a partial update to the item.
func (s *LostFoundService) Update(ctx context.Context, actor policy.Actor, id string, patch types.ItemPatch) (types.LostFoundItem, error) {
	for _, field := range []*string{patch.ItemName, patch.Description, patch.Location} {
		if field == nil {
			continue
		}
		*field = strings.TrimSpace(*field)
		if *field == "" {
			return types.LostFoundItem{}, ErrValidation("itemName, description and location cannot be empty")
		}
	}
	if patch.ContactInfo != nil {
		*patch.ContactInfo = strings.TrimSpace(*patch.ContactInfo)
	}
	if patch.Status != nil && (!patch.Status.Valid() || *patch.Status == types.ItemClaimed) {
		return types.LostFoundItem{}, ErrValidation("status must be lost or found")
	}

	updated, err := s.repo.Mutate(ctx, id, func(item *types.LostFoundItem) error {
		if decision := policy.CanModifyItem(actor, item); !decision.Allowed {
			return ErrForbidden(decision, "not allowed to update this item")
		}
		if patch.Status != nil && (item.Status == types.ItemClaimed || item.HasApprovedClaim()) {
			return ErrConflict(policy.ReasonItemClaimed, "status of a claimed item cannot change")
		}
		patch.Apply(item)
		item.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return types.LostFoundItem{}, storeError(err, "item not found", "failed to update item")
	}
	return updated, nil
}

// Delete removes an item and its stored images.
func (s *LostFoundService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return storeError(err, "item not found", "failed to load item")
	}
	if decision := policy.CanModifyItem(actor, &item); !decision.Allowed {
		return ErrForbidden(decision, "not allowed to delete this item")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeError(err, "item not found", "failed to delete item")
	}
	s.media.Discard(ctx, item.Images)
	return nil
}
