package services

import (
	"context"
	"strings"
	"time"

	"github.com/hostel-tracker/apiserver/internal/policy"
	"github.com/hostel-tracker/apiserver/types"
)

// defaultTargetRoles applies when an announcement is created without roles.
var defaultTargetRoles = []types.Role{types.RoleStudent, types.RoleStaff}

// AnnouncementRepository defines persistence operations for announcements.
type AnnouncementRepository interface {
	List(ctx context.Context, activeOnly bool) ([]types.Announcement, error)
	Get(ctx context.Context, id string) (types.Announcement, error)
	Create(ctx context.Context, a types.Announcement) (types.Announcement, error)
	Mutate(ctx context.Context, id string, fn func(a *types.Announcement) error) (types.Announcement, error)
	Delete(ctx context.Context, id string) error
}

// AnnouncementService encapsulates announcements and their targeting.
type AnnouncementService struct {
	repo   AnnouncementRepository
	events *EventPublisher
	now    func() time.Time
}

func NewAnnouncementService(repo AnnouncementRepository, events *EventPublisher) *AnnouncementService {
	return &AnnouncementService{
		repo:   repo,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewAnnouncement is the client input for publishing an announcement. A nil
// TargetRoles means students and staff; an empty one means everyone.
type NewAnnouncement struct {
	Title         string       `json:"title"`
	Content       string       `json:"content"`
	TargetHostels []string     `json:"targetHostels"`
	TargetBlocks  []string     `json:"targetBlocks"`
	TargetRoles   []types.Role `json:"targetRoles"`
	IsActive      *bool        `json:"isActive"`
}

// List returns the active announcements targeted at actor, newest first.
// Targeting applies to every role. With all set, management gets every
// announcement including inactive and untargeted ones.
func (s *AnnouncementService) List(ctx context.Context, actor policy.Actor, all bool) ([]types.Announcement, error) {
	if all {
		if decision := policy.CanManageAnnouncements(actor); !decision.Allowed {
			return nil, ErrForbidden(decision, "only management can list all announcements")
		}
	}

	announcements, err := s.repo.List(ctx, !all)
	if err != nil {
		return nil, ErrUpstream("failed to list announcements", err)
	}
	if all {
		return announcements, nil
	}

	visible := make([]types.Announcement, 0, len(announcements))
	for i := range announcements {
		if policy.CanSeeAnnouncement(actor, &announcements[i]).Allowed {
			visible = append(visible, announcements[i])
		}
	}
	return visible, nil
}

// Get returns one announcement. Announcements hidden from actor are
// reported as not found. Management can load any announcement so it can
// be edited or re-activated.
func (s *AnnouncementService) Get(ctx context.Context, actor policy.Actor, id string) (types.Announcement, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Announcement{}, storeError(err, "announcement not found", "failed to load announcement")
	}
	if !actor.IsManagement() && (!a.IsActive || !policy.CanSeeAnnouncement(actor, &a).Allowed) {
		return types.Announcement{}, ErrNotFound("announcement not found")
	}
	return a, nil
}

func (s *AnnouncementService) Create(ctx context.Context, actor policy.Actor, in NewAnnouncement) (types.Announcement, error) {
	if decision := policy.CanManageAnnouncements(actor); !decision.Allowed {
		return types.Announcement{}, ErrForbidden(decision, "only management can create announcements")
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if in.Title == "" || in.Content == "" {
		return types.Announcement{}, ErrValidation("title and content are required")
	}
	if in.TargetRoles == nil {
		in.TargetRoles = defaultTargetRoles
	}
	if err := validateRoles(in.TargetRoles); err != nil {
		return types.Announcement{}, err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	now := s.now()
	created, err := s.repo.Create(ctx, types.Announcement{
		Title:         in.Title,
		Content:       in.Content,
		TargetHostels: cleanList(in.TargetHostels),
		TargetBlocks:  cleanList(in.TargetBlocks),
		TargetRoles:   in.TargetRoles,
		AuthorID:      actor.ID,
		IsActive:      active,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return types.Announcement{}, ErrUpstream("failed to create announcement", err)
	}

	s.events.Publish(ctx, types.Event{
		Kind:       types.EventAnnouncementCreated,
		ResourceID: created.ID,
		ActorID:    actor.ID,
		Audience:   audienceOf(created),
		Subject:    created.Title,
		Message:    created.Content,
		OccurredAt: created.CreatedAt,
	})
	return created, nil
}

// Update applies a partial update.
func (s *AnnouncementService) Update(ctx context.Context, actor policy.Actor, id string, patch types.AnnouncementPatch) (types.Announcement, error) {
	if decision := policy.CanManageAnnouncements(actor); !decision.Allowed {
		return types.Announcement{}, ErrForbidden(decision, "only management can update announcements")
	}
	for _, field := range []*string{patch.Title, patch.Content} {
		if field == nil {
			continue
		}
		*field = strings.TrimSpace(*field)
		if *field == "" {
			return types.Announcement{}, ErrValidation("title and content cannot be empty")
		}
	}
	if patch.TargetRoles != nil {
		if err := validateRoles(*patch.TargetRoles); err != nil {
			return types.Announcement{}, err
		}
	}
	if patch.TargetHostels != nil {
		hostels := cleanList(*patch.TargetHostels)
		patch.TargetHostels = &hostels
	}
	if patch.TargetBlocks != nil {
		blocks := cleanList(*patch.TargetBlocks)
		patch.TargetBlocks = &blocks
	}

	updated, err := s.repo.Mutate(ctx, id, func(a *types.Announcement) error {
		patch.Apply(a)
		a.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return types.Announcement{}, storeError(err, "announcement not found", "failed to update announcement")
	}
	return updated, nil
}

func (s *AnnouncementService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	if decision := policy.CanManageAnnouncements(actor); !decision.Allowed {
		return ErrForbidden(decision, "only management can delete announcements")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeError(err, "announcement not found", "failed to delete announcement")
	}
	return nil
}

func validateRoles(roles []types.Role) error {
	for _, role := range roles {
		if !role.Valid() {
			return ErrValidation("invalid target role: " + string(role))
		}
	}
	return nil
}

// cleanList trims entries and drops empty ones.
func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}

// audienceOf returns the readers to notify about a, or nil for an inactive
// announcement. Target blocks are not part of the audience.
func audienceOf(a types.Announcement) *types.Audience {
	if !a.IsActive {
		return nil
	}
	return &types.Audience{Hostels: a.TargetHostels, Roles: a.TargetRoles}
}
