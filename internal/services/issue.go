package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hostel-tracker/apiserver/internal/policy"
	"github.com/hostel-tracker/apiserver/internal/store"
	"github.com/hostel-tracker/apiserver/types"
)

// MaxIssueMedia is the number of files accepted with a new issue.
const MaxIssueMedia = 5

// IssueRepository defines persistence operations for issues.
type IssueRepository interface {
	List(ctx context.Context, scope types.IssueScope, filter types.IssueFilter) ([]types.Issue, error)
	Get(ctx context.Context, id string) (types.Issue, error)
	Create(ctx context.Context, issue types.Issue) (types.Issue, error)
	Mutate(ctx context.Context, id string, fn func(issue *types.Issue) error) (types.Issue, error)
	Delete(ctx context.Context, id string) error
}

// UserLookup resolves user profiles by id.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (types.User, error)
}

// IssueService encapsulates the issue lifecycle.
type IssueService struct {
	repo        IssueRepository
	users       UserLookup
	media       *MediaService
	events      *EventPublisher
	transitions types.TransitionValidator
	now         func() time.Time
}

func NewIssueService(repo IssueRepository, users UserLookup, media *MediaService, events *EventPublisher) *IssueService {
	return &IssueService{
		repo:        repo,
		users:       users,
		media:       media,
		events:      events,
		transitions: types.AnyTransition{},
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithTransitions replaces the status transition validator.
func (s *IssueService) WithTransitions(v types.TransitionValidator) *IssueService {
	s.transitions = v
	return s
}

// NewIssue is the client input for creating an issue.
type NewIssue struct {
	Title       string
	Description string
	Category    types.IssueCategory
	Priority    types.IssuePriority
	IsPublic    bool
	Media       []Upload
}

// Create reports a new issue. Location fields are copied from the
// reporter's profile.
func (s *IssueService) Create(ctx context.Context, actor policy.Actor, in NewIssue) (types.Issue, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Priority == "" {
		in.Priority = types.PriorityMedium
	}
	switch {
	case in.Title == "" || in.Description == "":
		return types.Issue{}, ErrValidation("title and description are required")
	case !in.Category.Valid():
		return types.Issue{}, ErrValidation("invalid category")
	case !in.Priority.Valid():
		return types.Issue{}, ErrValidation("invalid priority")
	case len(in.Media) > MaxIssueMedia:
		return types.Issue{}, ErrValidation("at most 5 media files are allowed")
	}

	reporter, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return types.Issue{}, storeError(err, "reporter not found", "failed to load reporter")
	}

	media, err := s.media.UploadAll(ctx, NamespaceIssues, in.Media)
	if err != nil {
		return types.Issue{}, err
	}

	issue := types.Issue{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Priority:    in.Priority,
		IsPublic:    in.IsPublic,
		ReporterID:  reporter.ID,
		Hostel:      reporter.Hostel,
		Block:       reporter.Block,
		Room:        reporter.RoomNumber,
		Media:       media,
		Comments:    []types.Comment{},
		Upvotes:     []string{},
	}
	issue.Seed(reporter.ID, s.now())

	created, err := s.repo.Create(ctx, issue)
	if err != nil {
		s.media.Discard(ctx, media)
		return types.Issue{}, ErrUpstream("failed to create issue", err)
	}

	s.events.Publish(ctx, types.Event{
		Kind:       types.EventIssueCreated,
		ResourceID: created.ID,
		ActorID:    actor.ID,
		Subject:    created.Title,
		Message:    "New issue reported in " + created.Hostel,
		OccurredAt: created.CreatedAt,
	})
	return created, nil
}

// List returns the issues actor may see, newest first.
func (s *IssueService) List(ctx context.Context, actor policy.Actor, filter types.IssueFilter) ([]types.Issue, error) {
	switch {
	case filter.Status != "" && !filter.Status.Valid():
		return nil, ErrValidation("invalid status filter")
	case filter.Category != "" && !filter.Category.Valid():
		return nil, ErrValidation("invalid category filter")
	case filter.Priority != "" && !filter.Priority.Valid():
		return nil, ErrValidation("invalid priority filter")
	}
	filter.Search = strings.TrimSpace(filter.Search)

	issues, err := s.repo.List(ctx, policy.IssueListScope(actor), policy.ScopeIssueFilter(actor, filter))
	if err != nil {
		return nil, ErrUpstream("failed to list issues", err)
	}
	return issues, nil
}

func (s *IssueService) Get(ctx context.Context, actor policy.Actor, id string) (types.Issue, error) {
	issue, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Issue{}, storeError(err, "issue not found", "failed to load issue")
	}
	if decision := policy.CanViewIssue(actor, &issue); !decision.Allowed {
		return types.Issue{}, ErrForbidden(decision, "access denied")
	}
	return issue, nil
}

// UpdateStatus moves the issue to status and appends a history entry in the
// same atomic update.
func (s *IssueService) UpdateStatus(ctx context.Context, actor policy.Actor, id string, status types.IssueStatus, remarks string) (types.Issue, error) {
	if !status.Valid() {
		return types.Issue{}, ErrValidation("invalid status")
	}
	remarks = strings.TrimSpace(remarks)

	var previous types.IssueStatus
	updated, err := s.repo.Mutate(ctx, id, func(issue *types.Issue) error {
		if decision := policy.CanUpdateIssueStatus(actor, issue); !decision.Allowed {
			return ErrForbidden(decision, "not allowed to update this issue")
		}
		if err := s.transitions.Validate(issue.Status, status); err != nil {
			return &Error{Kind: KindValidation, Reason: ReasonInvalidTransition, Message: err.Error(), Err: err}
		}
		previous = issue.Status
		issue.ApplyStatus(status, actor.ID, remarks, s.now())
		return nil
	})
	if err != nil {
		return types.Issue{}, storeError(err, "issue not found", "failed to update issue")
	}

	s.events.Publish(ctx, types.Event{
		Kind:       types.EventIssueStatusChanged,
		ResourceID: updated.ID,
		ActorID:    actor.ID,
		Recipients: recipients(actor.ID, updated.ReporterID),
		Subject:    updated.Title,
		Message:    "Status changed from " + string(previous) + " to " + string(updated.Status),
		OccurredAt: updated.UpdatedAt,
	})
	return updated, nil
}

// Assign hands the issue to a staff member and forces its status to
// assigned.
func (s *IssueService) Assign(ctx context.Context, actor policy.Actor, id, assigneeID string) (types.Issue, error) {
	if decision := policy.CanAssignIssue(actor); !decision.Allowed {
		return types.Issue{}, ErrForbidden(decision, "only management can assign issues")
	}
	assigneeID = strings.TrimSpace(assigneeID)
	if assigneeID == "" {
		return types.Issue{}, ErrValidation("assignee is required")
	}

	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Issue{}, ErrValidation("assignee must be a staff member")
		}
		return types.Issue{}, ErrUpstream("failed to load assignee", err)
	}
	if assignee.Role != types.RoleStaff {
		return types.Issue{}, ErrValidation("assignee must be a staff member")
	}

	updated, err := s.repo.Mutate(ctx, id, func(issue *types.Issue) error {
		if err := s.transitions.Validate(issue.Status, types.StatusAssigned); err != nil {
			return &Error{Kind: KindValidation, Reason: ReasonInvalidTransition, Message: err.Error(), Err: err}
		}
		issue.Assign(assignee.ID, actor.ID, s.now())
		return nil
	})
	if err != nil {
		return types.Issue{}, storeError(err, "issue not found", "failed to assign issue")
	}

	s.events.Publish(ctx, types.Event{
		Kind:       types.EventIssueAssigned,
		ResourceID: updated.ID,
		ActorID:    actor.ID,
		Recipients: recipients(actor.ID, assignee.ID, updated.ReporterID),
		Subject:    updated.Title,
		Message:    "Issue assigned to " + assignee.Name,
		OccurredAt: updated.UpdatedAt,
	})
	return updated, nil
}

// Comment appends a comment and returns the whole thread.
func (s *IssueService) Comment(ctx context.Context, actor policy.Actor, id, text string) ([]types.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrValidation("comment text is required")
	}

	updated, err := s.repo.Mutate(ctx, id, func(issue *types.Issue) error {
		if decision := policy.CanCommentIssue(actor, issue); !decision.Allowed {
			return ErrForbidden(decision, "not allowed to comment on this issue")
		}
		issue.AddComment(types.Comment{
			ID:        uuid.NewString(),
			UserID:    actor.ID,
			Text:      text,
			Timestamp: s.now(),
		})
		return nil
	})
	if err != nil {
		return nil, storeError(err, "issue not found", "failed to add comment")
	}

	assignee := ""
	if updated.AssigneeID != nil {
		assignee = *updated.AssigneeID
	}
	s.events.Publish(ctx, types.Event{
		Kind:       types.EventIssueCommented,
		ResourceID: updated.ID,
		ActorID:    actor.ID,
		Recipients: recipients(actor.ID, updated.ReporterID, assignee),
		Subject:    updated.Title,
		Message:    text,
		OccurredAt: updated.UpdatedAt,
	})
	return updated.Comments, nil
}

// ToggleUpvote adds or removes actor's upvote. It returns the new count and
// whether actor now upvotes the issue.
func (s *IssueService) ToggleUpvote(ctx context.Context, actor policy.Actor, id string) (int, bool, error) {
	var count int
	var upvoted bool
	_, err := s.repo.Mutate(ctx, id, func(issue *types.Issue) error {
		if decision := policy.CanUpvoteIssue(actor, issue); !decision.Allowed {
			return ErrForbidden(decision, "can only upvote public issues")
		}
		count, upvoted = issue.ToggleUpvote(actor.ID, s.now())
		return nil
	})
	if err != nil {
		return 0, false, storeError(err, "issue not found", "failed to toggle upvote")
	}
	return count, upvoted, nil
}

// Delete removes an issue and its stored media.
func (s *IssueService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	issue, err := s.repo.Get(ctx, id)
	if err != nil {
		return storeError(err, "issue not found", "failed to load issue")
	}
	if decision := policy.CanDeleteIssue(actor, &issue); !decision.Allowed {
		return ErrForbidden(decision, "not allowed to delete this issue")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeError(err, "issue not found", "failed to delete issue")
	}
	s.media.Discard(ctx, issue.Media)
	return nil
}
