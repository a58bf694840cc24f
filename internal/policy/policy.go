// Package policy maps (actor, resource, action) to an allow/deny decision.
//
// Every function is pure and total: it never fails and never touches
// storage. Callers pass the actor explicitly and act on the Decision.
package policy

import (
	"slices"

	"github.com/hostel-tracker/apiserver/types"
)

// Stable deny reason codes.
const (
	ReasonNotViewer          = "not_issue_viewer"
	ReasonStudentCannotEdit  = "student_cannot_update_status"
	ReasonNotAssignee        = "not_assignee"
	ReasonManagementOnly     = "management_only"
	ReasonPrivateIssue       = "private_issue"
	ReasonNotOwnerOrManager  = "not_owner_or_management"
	ReasonOwnItem            = "own_item"
	ReasonItemClaimed        = "item_already_claimed"
	ReasonDuplicateClaim     = "duplicate_claim"
	ReasonAnnouncementHidden = "announcement_not_targeted"
)

// Actor is the authenticated identity performing a request.
type Actor struct {
	ID     string
	Role   types.Role
	Hostel string
	Block  string
}

// ActorFromUser builds the actor for an authenticated user.
func ActorFromUser(user types.User) Actor {
	return Actor{
		ID:     user.ID,
		Role:   user.Role,
		Hostel: user.Hostel,
		Block:  user.Block,
	}
}

// IsManagement reports whether the actor has the management role.
func (a Actor) IsManagement() bool {
	return a.Role == types.RoleManagement
}

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow is the permitting decision.
var Allow = Decision{Allowed: true}

// Deny returns a refusing decision with a stable reason code.
func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// CanViewIssue allows the reporter, the assignee, management, and residents
// of the same hostel when the issue is public.
func CanViewIssue(actor Actor, issue *types.Issue) Decision {
	switch {
	case issue.IsReporter(actor.ID),
		issue.IsAssignee(actor.ID),
		actor.IsManagement(),
		issue.IsPublic && actor.Hostel == issue.Hostel:
		return Allow
	}
	return Deny(ReasonNotViewer)
}

// IssueListScope returns the query-time restriction for listing issues.
func IssueListScope(actor Actor) types.IssueScope {
	switch actor.Role {
	case types.RoleManagement:
		return types.IssueScope{}
	case types.RoleStaff:
		return types.IssueScope{AssigneeID: actor.ID}
	default:
		return types.IssueScope{
			ReporterOrPublicHostel: true,
			ReporterID:             actor.ID,
			PublicHostel:           actor.Hostel,
		}
	}
}

// ScopeIssueFilter drops the hostel and block filters for non-management
// actors.
func ScopeIssueFilter(actor Actor, filter types.IssueFilter) types.IssueFilter {
	if !actor.IsManagement() {
		filter.Hostel = ""
		filter.Block = ""
	}
	return filter
}

// CanUpdateIssueStatus allows management, and staff who are the assignee.
func CanUpdateIssueStatus(actor Actor, issue *types.Issue) Decision {
	switch actor.Role {
	case types.RoleManagement:
		return Allow
	case types.RoleStaff:
		if issue.IsAssignee(actor.ID) {
			return Allow
		}
		return Deny(ReasonNotAssignee)
	default:
		return Deny(ReasonStudentCannotEdit)
	}
}

// CanAssignIssue allows management only.
func CanAssignIssue(actor Actor) Decision {
	if actor.IsManagement() {
		return Allow
	}
	return Deny(ReasonManagementOnly)
}

// CanCommentIssue denies only students who are not the reporter of a
// private issue.
func CanCommentIssue(actor Actor, issue *types.Issue) Decision {
	if !issue.IsPublic && actor.Role == types.RoleStudent && !issue.IsReporter(actor.ID) {
		return Deny(ReasonPrivateIssue)
	}
	return Allow
}

// CanUpvoteIssue allows upvotes on public issues only.
func CanUpvoteIssue(actor Actor, issue *types.Issue) Decision {
	if !issue.IsPublic {
		return Deny(ReasonPrivateIssue)
	}
	return Allow
}

// CanDeleteIssue allows the reporter and management.
func CanDeleteIssue(actor Actor, issue *types.Issue) Decision {
	if issue.IsReporter(actor.ID) || actor.IsManagement() {
		return Allow
	}
	return Deny(ReasonNotOwnerOrManager)
}

// ItemListHostel returns the hostel a lost and found listing is limited
// to, or "" for no restriction.
func ItemListHostel(actor Actor) string {
	if actor.Role == types.RoleStudent {
		return actor.Hostel
	}
	return ""
}

// CanClaimItem refuses the item's reporter, items already claimed, and
// actors that filed a claim before.
func CanClaimItem(actor Actor, item *types.LostFoundItem) Decision {
	switch {
	case item.IsReporter(actor.ID):
		return Deny(ReasonOwnItem)
	case item.Status == types.ItemClaimed || item.HasApprovedClaim():
		return Deny(ReasonItemClaimed)
	case item.HasClaimBy(actor.ID):
		return Deny(ReasonDuplicateClaim)
	}
	return Allow
}

// CanModifyItem allows the reporter and management to update, delete or
// decide claims on an item.
func CanModifyItem(actor Actor, item *types.LostFoundItem) Decision {
	if item.IsReporter(actor.ID) || actor.IsManagement() {
		return Allow
	}
	return Deny(ReasonNotOwnerOrManager)
}

// CanDecideClaim allows the reporter and management.
func CanDecideClaim(actor Actor, item *types.LostFoundItem) Decision {
	return CanModifyItem(actor, item)
}

// CanManageAnnouncements allows management only.
func CanManageAnnouncements(actor Actor) Decision {
	if actor.IsManagement() {
		return Allow
	}
	return Deny(ReasonManagementOnly)
}

// CanSeeAnnouncement applies hostel and role targeting. Target blocks are
// not enforced.
func CanSeeAnnouncement(actor Actor, a *types.Announcement) Decision {
	hostelOK := len(a.TargetHostels) == 0 || slices.Contains(a.TargetHostels, actor.Hostel)
	roleOK := len(a.TargetRoles) == 0 || slices.Contains(a.TargetRoles, actor.Role)
	if hostelOK && roleOK {
		return Allow
	}
	return Deny(ReasonAnnouncementHidden)
}

// CanViewAnalytics allows management only.
func CanViewAnalytics(actor Actor) Decision {
	if actor.IsManagement() {
		return Allow
	}
	return Deny(ReasonManagementOnly)
}
