package types

import "time"

// EventKind names a lifecycle event published on the event bus.
type EventKind string

// Published event kinds.
const (
	EventIssueCreated        EventKind = "issue.created"
	EventIssueStatusChanged  EventKind = "issue.status_changed"
	EventIssueAssigned       EventKind = "issue.assigned"
	EventIssueCommented      EventKind = "issue.commented"
	EventClaimRequested      EventKind = "claim.requested"
	EventClaimDecided        EventKind = "claim.decided"
	EventAnnouncementCreated EventKind = "announcement.created"
)

// NotifiedEventKinds are the kinds the notification worker turns into
// inbox entries. issue.created is published for other consumers only.
var NotifiedEventKinds = []EventKind{
	EventIssueStatusChanged,
	EventIssueAssigned,
	EventIssueCommented,
	EventClaimRequested,
	EventClaimDecided,
	EventAnnouncementCreated,
}

// Event is the payload published after a successful mutation.
type Event struct {
	Kind       EventKind `json:"kind"`
	ResourceID string    `json:"resourceId"`
	ActorID    string    `json:"actorId"`
	// Recipients are the users the event concerns, excluding the actor.
	Recipients []string `json:"recipients,omitempty"`
	// Audience addresses everyone matching a hostel and role target. The
	// consumer resolves it to users when the event is handled.
	Audience   *Audience `json:"audience,omitempty"`
	Subject    string    `json:"subject"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Audience is a hostel and role target. Empty lists match everyone.
type Audience struct {
	Hostels []string `json:"hostels,omitempty"`
	Roles   []Role   `json:"roles,omitempty"`
}

// Notification is a per-user inbox entry derived from an Event.
type Notification struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"userId" db:"user_id"`
	Kind       EventKind `json:"kind" db:"kind"`
	Subject    string    `json:"subject" db:"subject"`
	Message    string    `json:"message" db:"message"`
	ResourceID string    `json:"resourceId" db:"resource_id"`
	Read       bool      `json:"read" db:"read"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}
