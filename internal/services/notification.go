package services

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/hostel-tracker/apiserver/internal/policy"
	"github.com/hostel-tracker/apiserver/types"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// NotificationRepository defines persistence operations for notifications.
type NotificationRepository interface {
	CreateMany(ctx context.Context, notifications []types.Notification) error
	ListForUser(ctx context.Context, userID string, limit int) ([]types.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

// AudienceDirectory resolves a hostel and role target to user ids.
type AudienceDirectory interface {
	ListAudience(ctx context.Context, hostels []string, roles []types.Role) ([]string, error)
}

// NotificationService fans lifecycle events out to per-user inboxes.
type NotificationService struct {
	repo     NotificationRepository
	audience AudienceDirectory
	logger   *slog.Logger
	now      func() time.Time
}

// NewNotificationService builds the service. audience may be nil when
// only listing and marking notifications, in which case audience events
// reach their explicit recipients only.
func NewNotificationService(repo NotificationRepository, audience AudienceDirectory, logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{
		repo:     repo,
		audience: audience,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Consume handles one message from the event bus. Malformed payloads are
// logged and dropped so they are not redelivered forever.
func (s *NotificationService) Consume(ctx context.Context, data []byte) error {
	event, err := DecodeEvent(data)
	if err != nil {
		s.logger.WarnContext(ctx, "dropping malformed event", "error", err)
		return nil
	}
	return s.HandleEvent(ctx, event)
}

// HandleEvent stores one notification per recipient of event. An audience
// is resolved to users first and the actor is never notified.
func (s *NotificationService) HandleEvent(ctx context.Context, event types.Event) error {
	ids := event.Recipients
	if event.Audience != nil && s.audience != nil {
		members, err := s.audience.ListAudience(ctx, event.Audience.Hostels, event.Audience.Roles)
		if err != nil {
			return ErrUpstream("failed to resolve audience", err)
		}
		ids = append(slices.Clone(ids), members...)
	}
	targets := recipients(event.ActorID, ids...)
	if len(targets) == 0 {
		return nil
	}

	createdAt := event.OccurredAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	notifications := make([]types.Notification, 0, len(targets))
	for _, userID := range targets {
		notifications = append(notifications, types.Notification{
			ID:         uuid.NewString(),
			UserID:     userID,
			Kind:       event.Kind,
			Subject:    event.Subject,
			Message:    event.Message,
			ResourceID: event.ResourceID,
			CreatedAt:  createdAt,
		})
	}
	if err := s.repo.CreateMany(ctx, notifications); err != nil {
		return ErrUpstream("failed to store notifications", err)
	}
	s.logger.DebugContext(ctx, "notifications stored", "kind", event.Kind, "count", len(notifications))
	return nil
}

// List returns actor's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, actor policy.Actor, limit int) ([]types.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	notifications, err := s.repo.ListForUser(ctx, actor.ID, limit)
	if err != nil {
		return nil, ErrUpstream("failed to list notifications", err)
	}
	return notifications, nil
}

// MarkRead marks one of actor's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, actor policy.Actor, id string) error {
	if err := s.repo.MarkRead(ctx, actor.ID, id); err != nil {
		return storeError(err, "notification not found", "failed to update notification")
	}
	return nil
}
