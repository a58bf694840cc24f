package policy

import (
	"testing"

	"github.com/hostel-tracker/apiserver/types"
)

var (
	student    = Actor{ID: "stu", Role: types.RoleStudent, Hostel: "H1", Block: "A"}
	otherStu   = Actor{ID: "stu2", Role: types.RoleStudent, Hostel: "H1", Block: "B"}
	farStudent = Actor{ID: "stu3", Role: types.RoleStudent, Hostel: "H2", Block: "A"}
	staff      = Actor{ID: "staff", Role: types.RoleStaff, Hostel: "H1"}
	otherStaff = Actor{ID: "staff2", Role: types.RoleStaff, Hostel: "H1"}
	manager    = Actor{ID: "mgr", Role: types.RoleManagement, Hostel: "HQ"}
)

func issueFor(reporter string, public bool, assignee string) *types.Issue {
	issue := &types.Issue{ReporterID: reporter, IsPublic: public, Hostel: "H1"}
	if assignee != "" {
		issue.AssigneeID = &assignee
	}
	return issue
}

func TestCanViewIssue(t *testing.T) {
	tests := []struct {
		name  string
		actor Actor
		issue *types.Issue
		want  bool
	}{
		{"reporter of private issue", student, issueFor("stu", false, ""), true},
		{"same hostel public issue", otherStu, issueFor("stu", true, ""), true},
		{"same hostel private issue", otherStu, issueFor("stu", false, ""), false},
		{"other hostel public issue", farStudent, issueFor("stu", true, ""), false},
		{"assignee of private issue", staff, issueFor("stu", false, "staff"), true},
		{"management sees everything", manager, issueFor("stu", false, ""), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanViewIssue(tt.actor, tt.issue)
			if got.Allowed != tt.want {
				t.Fatalf("expected allowed=%v, got %+v", tt.want, got)
			}
			if !got.Allowed && got.Reason != ReasonNotViewer {
				t.Fatalf("unexpected reason %q", got.Reason)
			}
		})
	}
}

func TestCanUpdateIssueStatus(t *testing.T) {
	assigned := issueFor("stu", true, "staff")
	tests := []struct {
		name   string
		actor  Actor
		want   bool
		reason string
	}{
		{"student", student, false, ReasonStudentCannotEdit},
		{"assigned staff", staff, true, ""},
		{"unassigned staff", otherStaff, false, ReasonNotAssignee},
		{"management", manager, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanUpdateIssueStatus(tt.actor, assigned)
			if got.Allowed != tt.want || got.Reason != tt.reason {
				t.Fatalf("expected (%v, %q), got %+v", tt.want, tt.reason, got)
			}
		})
	}
}

func TestIssueListScope(t *testing.T) {
	if scope := IssueListScope(manager); scope != (types.IssueScope{}) {
		t.Fatalf("management must be unrestricted, got %+v", scope)
	}
	if scope := IssueListScope(staff); scope.AssigneeID != "staff" || scope.ReporterOrPublicHostel {
		t.Fatalf("unexpected staff scope %+v", scope)
	}
	scope := IssueListScope(student)
	if !scope.ReporterOrPublicHostel || scope.ReporterID != "stu" || scope.PublicHostel != "H1" {
		t.Fatalf("unexpected student scope %+v", scope)
	}
}

func TestScopeIssueFilterDropsLocationForNonManagement(t *testing.T) {
	filter := types.IssueFilter{Hostel: "H2", Block: "C", Status: types.StatusReported}

	got := ScopeIssueFilter(student, filter)
	if got.Hostel != "" || got.Block != "" || got.Status != types.StatusReported {
		t.Fatalf("unexpected student filter %+v", got)
	}
	if got := ScopeIssueFilter(manager, filter); got != filter {
		t.Fatalf("management filter changed: %+v", got)
	}
}

func TestCommentAndUpvoteRules(t *testing.T) {
	private := issueFor("stu", false, "")
	if CanCommentIssue(otherStu, private).Allowed {
		t.Fatalf("other student must not comment on a private issue")
	}
	if !CanCommentIssue(student, private).Allowed {
		t.Fatalf("reporter must comment on own private issue")
	}
	if !CanCommentIssue(otherStaff, private).Allowed {
		t.Fatalf("staff may comment on any issue")
	}
	if got := CanUpvoteIssue(student, private); got.Allowed || got.Reason != ReasonPrivateIssue {
		t.Fatalf("upvoting a private issue must be denied, got %+v", got)
	}
	if !CanUpvoteIssue(farStudent, issueFor("stu", true, "")).Allowed {
		t.Fatalf("upvoting a public issue must be allowed")
	}
}

func TestCanDeleteIssue(t *testing.T) {
	issue := issueFor("stu", true, "staff")
	if !CanDeleteIssue(student, issue).Allowed || !CanDeleteIssue(manager, issue).Allowed {
		t.Fatalf("reporter and management must be able to delete")
	}
	if got := CanDeleteIssue(staff, issue); got.Allowed || got.Reason != ReasonNotOwnerOrManager {
		t.Fatalf("assignee must not delete, got %+v", got)
	}
}

func TestCanClaimItem(t *testing.T) {
	tests := []struct {
		name   string
		actor  Actor
		item   types.LostFoundItem
		reason string
	}{
		{"own item", student, types.LostFoundItem{ReporterID: "stu", Status: types.ItemFound}, ReasonOwnItem},
		{"already claimed", otherStu, types.LostFoundItem{ReporterID: "stu", Status: types.ItemClaimed}, ReasonItemClaimed},
		{
			"approved claim blocks even when status was edited",
			otherStu,
			types.LostFoundItem{
				ReporterID:    "stu",
				Status:        types.ItemFound,
				ClaimRequests: []types.ClaimRequest{{ClaimantID: "someone", Status: types.ClaimApproved}},
			},
			ReasonItemClaimed,
		},
		{
			"rejected claim still blocks",
			otherStu,
			types.LostFoundItem{
				ReporterID:    "stu",
				Status:        types.ItemFound,
				ClaimRequests: []types.ClaimRequest{{ClaimantID: "stu2", Status: types.ClaimRejected}},
			},
			ReasonDuplicateClaim,
		},
		{"allowed", otherStu, types.LostFoundItem{ReporterID: "stu", Status: types.ItemLost}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanClaimItem(tt.actor, &tt.item)
			if got.Allowed != (tt.reason == "") || got.Reason != tt.reason {
				t.Fatalf("expected reason %q, got %+v", tt.reason, got)
			}
		})
	}
}

func TestItemListHostel(t *testing.T) {
	if got := ItemListHostel(student); got != "H1" {
		t.Fatalf("students are limited to their hostel, got %q", got)
	}
	if got := ItemListHostel(staff); got != "" {
		t.Fatalf("staff are unrestricted, got %q", got)
	}
}

func TestCanSeeAnnouncement(t *testing.T) {
	tests := []struct {
		name  string
		actor Actor
		a     types.Announcement
		want  bool
	}{
		{"empty targets reach everyone", manager, types.Announcement{}, true},
		{"hostel match", student, types.Announcement{TargetHostels: []string{"H1"}}, true},
		{"hostel mismatch", farStudent, types.Announcement{TargetHostels: []string{"H1"}}, false},
		{"role mismatch", staff, types.Announcement{TargetRoles: []types.Role{types.RoleStudent}}, false},
		{
			"blocks are not enforced",
			otherStu,
			types.Announcement{TargetHostels: []string{"H1"}, TargetBlocks: []string{"A"}},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanSeeAnnouncement(tt.actor, &tt.a); got.Allowed != tt.want {
				t.Fatalf("expected allowed=%v, got %+v", tt.want, got)
			}
		})
	}
}

func TestManagementOnlyChecks(t *testing.T) {
	for _, check := range []func(Actor) Decision{CanAssignIssue, CanManageAnnouncements, CanViewAnalytics} {
		if !check(manager).Allowed {
			t.Fatalf("management must be allowed")
		}
		for _, actor := range []Actor{student, staff} {
			if got := check(actor); got.Allowed || got.Reason != ReasonManagementOnly {
				t.Fatalf("expected management_only for %s, got %+v", actor.Role, got)
			}
		}
	}
}
