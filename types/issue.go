package types

import (
	"slices"
	"time"
)

// IssueCategory classifies the kind of maintenance work an issue needs.
type IssueCategory string

// Supported issue categories.
const (
	CategoryPlumbing    IssueCategory = "plumbing"
	CategoryElectrical  IssueCategory = "electrical"
	CategoryCleanliness IssueCategory = "cleanliness"
	CategoryInternet    IssueCategory = "internet"
	CategoryFurniture   IssueCategory = "furniture"
	CategoryOther       IssueCategory = "other"
)

// Valid reports whether c is a known category.
func (c IssueCategory) Valid() bool {
	switch c {
	case CategoryPlumbing, CategoryElectrical, CategoryCleanliness,
		CategoryInternet, CategoryFurniture, CategoryOther:
		return true
	default:
		return false
	}
}

// IssuePriority indicates how urgently an issue should be handled.
type IssuePriority string

// Supported issue priorities.
const (
	PriorityLow       IssuePriority = "low"
	PriorityMedium    IssuePriority = "medium"
	PriorityHigh      IssuePriority = "high"
	PriorityEmergency IssuePriority = "emergency"
)

// Valid reports whether p is a known priority.
func (p IssuePriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityEmergency:
		return true
	default:
		return false
	}
}

// IssueStatus is the lifecycle state of an issue.
type IssueStatus string

// Supported issue statuses.
const (
	StatusReported   IssueStatus = "reported"
	StatusAssigned   IssueStatus = "assigned"
	StatusInProgress IssueStatus = "in-progress"
	StatusResolved   IssueStatus = "resolved"
	StatusClosed     IssueStatus = "closed"
)

// Valid reports whether s is a known status.
func (s IssueStatus) Valid() bool {
	switch s {
	case StatusReported, StatusAssigned, StatusInProgress, StatusResolved, StatusClosed:
		return true
	default:
		return false
	}
}

// Terminal reports whether s counts as a resolution for analytics.
func (s IssueStatus) Terminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// TransitionValidator decides whether an issue may move between two statuses.
type TransitionValidator interface {
	Validate(from, to IssueStatus) error
}

// AnyTransition allows every status change. Remarks on the history entry
// carry the rationale for the jump.
type AnyTransition struct{}

// Validate always succeeds.
func (AnyTransition) Validate(from, to IssueStatus) error {
	return nil
}

// Issue represents a maintenance issue reported by a resident.
//
// StatusHistory, Comments and Upvotes are owned by the issue and are only
// mutated through the methods below, inside a single atomic update of the
// issue record.
type Issue struct {
	// ID is the unique identifier of the issue.
	ID string `json:"id" db:"id"`

	// Title is a short summary of the problem.
	Title string `json:"title" db:"title"`

	// Description is the full problem statement.
	Description string `json:"description" db:"description"`

	// Category classifies the work required.
	Category IssueCategory `json:"category" db:"category"`

	// Priority indicates urgency.
	Priority IssuePriority `json:"priority" db:"priority"`

	// Status is the current lifecycle state. It always equals the status of
	// the last StatusHistory entry.
	Status IssueStatus `json:"status" db:"status"`

	// IsPublic makes the issue readable by every resident of its hostel.
	IsPublic bool `json:"isPublic" db:"is_public"`

	// ReporterID is the user who created the issue. Immutable.
	ReporterID string `json:"reportedBy" db:"reporter_id"`

	// AssigneeID is the staff member responsible for the issue, if any.
	AssigneeID *string `json:"assignedTo,omitempty" db:"assignee_id"`

	// Hostel, Block and Room are copied from the reporter's profile at
	// creation time.
	Hostel string `json:"hostel" db:"hostel"`
	Block  string `json:"block" db:"block"`
	Room   string `json:"room,omitempty" db:"room"`

	// Media holds URLs of uploaded photos or videos, in upload order.
	Media []string `json:"media" db:"media"`

	// StatusHistory is the append-only audit trail of status changes.
	StatusHistory []StatusChange `json:"statusHistory" db:"status_history"`

	// Comments is the append-only discussion thread.
	Comments []Comment `json:"comments" db:"comments"`

	// Upvotes is the set of users who upvoted the issue.
	Upvotes []string `json:"upvotes" db:"upvotes"`

	// CreatedAt is the timestamp at which the issue was reported.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent mutation.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// StatusChange is a single entry of an issue's status history.
type StatusChange struct {
	Status    IssueStatus `json:"status"`
	ChangedBy string      `json:"changedBy"`
	Timestamp time.Time   `json:"timestamp"`
	Remarks   string      `json:"remarks,omitempty"`
}

// Comment is a message posted on an issue.
type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// IsReporter reports whether userID created the issue.
func (i *Issue) IsReporter(userID string) bool {
	return userID != "" && i.ReporterID == userID
}

// IsAssignee reports whether userID is the current assignee.
func (i *Issue) IsAssignee(userID string) bool {
	return userID != "" && i.AssigneeID != nil && *i.AssigneeID == userID
}

// Seed initializes the lifecycle of a freshly created issue.
func (i *Issue) Seed(actorID string, at time.Time) {
	i.Status = StatusReported
	i.StatusHistory = []StatusChange{{
		Status:    StatusReported,
		ChangedBy: actorID,
		Timestamp: at,
		Remarks:   "Issue created",
	}}
	i.CreatedAt = at
	i.UpdatedAt = at
}

// ApplyStatus moves the issue to status and records the change.
func (i *Issue) ApplyStatus(status IssueStatus, actorID, remarks string, at time.Time) {
	if remarks == "" {
		remarks = "Status changed to " + string(status)
	}
	i.Status = status
	i.StatusHistory = append(i.StatusHistory, StatusChange{
		Status:    status,
		ChangedBy: actorID,
		Timestamp: at,
		Remarks:   remarks,
	})
	i.UpdatedAt = at
}

// Assign hands the issue to assigneeID and forces the status to assigned.
func (i *Issue) Assign(assigneeID, actorID string, at time.Time) {
	i.AssigneeID = &assigneeID
	i.ApplyStatus(StatusAssigned, actorID, "Issue assigned to staff member", at)
}

// AddComment appends a comment to the thread.
func (i *Issue) AddComment(comment Comment) {
	i.Comments = append(i.Comments, comment)
	i.UpdatedAt = comment.Timestamp
}

// ToggleUpvote adds userID to the upvote set, or removes it when already
// present. It returns the new upvote count and whether userID now upvotes.
func (i *Issue) ToggleUpvote(userID string, at time.Time) (int, bool) {
	i.UpdatedAt = at
	if idx := slices.Index(i.Upvotes, userID); idx >= 0 {
		i.Upvotes = slices.Delete(i.Upvotes, idx, idx+1)
		return len(i.Upvotes), false
	}
	i.Upvotes = append(i.Upvotes, userID)
	return len(i.Upvotes), true
}

// ResolvedAt returns the timestamp of the first resolved or closed history
// entry.
func (i *Issue) ResolvedAt() (time.Time, bool) {
	return FirstResolution(i.StatusHistory)
}

// FirstResolution returns the timestamp of the first resolved or closed entry
// in history.
func FirstResolution(history []StatusChange) (time.Time, bool) {
	for _, change := range history {
		if change.Status.Terminal() {
			return change.Timestamp, true
		}
	}
	return time.Time{}, false
}

// IssueFilter narrows an issue listing.
type IssueFilter struct {
	Status   IssueStatus
	Category IssueCategory
	Priority IssuePriority
	Hostel   string
	Block    string
	Search   string
}

// IssueScope restricts a listing to what an actor may see. The zero value
// means no restriction.
type IssueScope struct {
	// ReporterOrPublicHostel limits results to issues reported by
	// ReporterID or public issues in PublicHostel.
	ReporterOrPublicHostel bool
	ReporterID             string
	PublicHostel           string

	// AssigneeID limits results to issues assigned to this user.
	AssigneeID string
}
