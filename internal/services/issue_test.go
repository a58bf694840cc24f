package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/hostel-tracker/apiserver/internal/mq"
	"github.com/hostel-tracker/apiserver/types"
)

func TestCreateIssueSeedsLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issue, err := f.issues.Create(ctx, actorOf(f.student), NewIssue{
		Title:       "  No water  ",
		Description: "Block A has had no water since morning",
		Category:    types.CategoryPlumbing,
		IsPublic:    true,
	})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}

	if issue.ID == "" || issue.Title != "No water" {
		t.Fatalf("unexpected issue: %+v", issue)
	}
	if issue.Priority != types.PriorityMedium {
		t.Fatalf("expected default priority medium, got %q", issue.Priority)
	}
	if issue.Hostel != "H1" || issue.Block != "A" || issue.Room != "101" {
		t.Fatalf("location not copied from reporter: %s/%s/%s", issue.Hostel, issue.Block, issue.Room)
	}
	if issue.Status != types.StatusReported || len(issue.StatusHistory) != 1 {
		t.Fatalf("unexpected lifecycle seed: %q %+v", issue.Status, issue.StatusHistory)
	}
	if seed := issue.StatusHistory[0]; seed.ChangedBy != f.student.ID || !seed.Timestamp.Equal(issue.CreatedAt) {
		t.Fatalf("unexpected seed entry: %+v", seed)
	}
	if issue.Comments == nil || issue.Upvotes == nil || len(issue.Comments)+len(issue.Upvotes) != 0 {
		t.Fatalf("comments and upvotes must start empty")
	}

	sent := f.bus.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sent))
	}
	if sent[0].Attrs[mq.AttrEventKind] != string(types.EventIssueCreated) || sent[0].Channel != "hostel.events" {
		t.Fatalf("unexpected event message: %+v", sent[0])
	}
}

func TestCreateIssueValidation(t *testing.T) {
	f := newFixture(t)
	valid := NewIssue{Title: "t", Description: "d", Category: types.CategoryOther}

	tests := []struct {
		name   string
		mutate func(in *NewIssue)
	}{
		{"missing title", func(in *NewIssue) { in.Title = "   " }},
		{"missing description", func(in *NewIssue) { in.Description = "" }},
		{"bad category", func(in *NewIssue) { in.Category = "roof" }},
		{"bad priority", func(in *NewIssue) { in.Priority = "urgent" }},
		{"too many media", func(in *NewIssue) { in.Media = make([]Upload, MaxIssueMedia+1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := f.issues.Create(context.Background(), actorOf(f.student), in)
			expectKind(t, err, KindValidation, "")
		})
	}
}

func TestCreateIssueUploadsMedia(t *testing.T) {
	f := newFixture(t)

	issue, err := f.issues.Create(context.Background(), actorOf(f.student), NewIssue{
		Title:       "Broken fan",
		Description: "Ceiling fan wobbles",
		Category:    types.CategoryElectrical,
		Media: []Upload{
			{Filename: "fan.JPG", ContentType: "image/jpeg", Data: []byte("jpeg")},
			{Filename: "clip.mp4", ContentType: "video/mp4", Data: []byte("mp4")},
		},
	})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	if len(issue.Media) != 2 || len(f.objects.Keys()) != 2 {
		t.Fatalf("expected 2 stored media, got %v / %v", issue.Media, f.objects.Keys())
	}
	for _, url := range issue.Media {
		key, ok := f.objects.KeyFromURL(url)
		if !ok || !slices.Contains(f.objects.Keys(), key) {
			t.Fatalf("media url %q does not resolve to a stored object", url)
		}
	}

	if err := f.issues.Delete(context.Background(), actorOf(f.student), issue.ID); err != nil {
		t.Fatalf("delete issue: %v", err)
	}
	if keys := f.objects.Keys(); len(keys) != 0 {
		t.Fatalf("expected media to be discarded, got %v", keys)
	}
}

func TestCreateIssueRollsBackPartialUploads(t *testing.T) {
	f := newFixture(t)
	f.objects.FailAfter = 1

	_, err := f.issues.Create(context.Background(), actorOf(f.student), NewIssue{
		Title:       "Broken fan",
		Description: "Ceiling fan wobbles",
		Category:    types.CategoryElectrical,
		Media: []Upload{
			{Filename: "a.png", Data: []byte("a")},
			{Filename: "b.png", Data: []byte("b")},
		},
	})
	expectKind(t, err, KindUpstream, "")
	if keys := f.objects.Keys(); len(keys) != 0 {
		t.Fatalf("expected partial uploads to be removed, got %v", keys)
	}
	if issues, _ := f.issues.List(context.Background(), actorOf(f.manager), types.IssueFilter{}); len(issues) != 0 {
		t.Fatalf("no issue should be stored, got %d", len(issues))
	}
}

func TestListIssuesByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	own := f.createIssue(t, f.student, false)
	public := f.createIssue(t, f.neighbour, true)
	private := f.createIssue(t, f.neighbour, false)
	far := f.createIssue(t, f.farStudent, true)
	if _, err := f.issues.Assign(ctx, actorOf(f.manager), private.ID, f.staff.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	ids := func(issues []types.Issue) []string {
		out := make([]string, 0, len(issues))
		for _, issue := range issues {
			out = append(out, issue.ID)
		}
		slices.Sort(out)
		return out
	}
	sorted := func(v ...string) []string {
		slices.Sort(v)
		return v
	}

	tests := []struct {
		name   string
		actor  types.User
		filter types.IssueFilter
		want   []string
	}{
		{"student sees own and public same hostel", f.student, types.IssueFilter{}, sorted(own.ID, public.ID)},
		{"student hostel filter is ignored", f.student, types.IssueFilter{Hostel: "H2"}, sorted(own.ID, public.ID)},
		{"staff sees assigned only", f.staff, types.IssueFilter{}, sorted(private.ID)},
		{"other staff sees nothing", f.otherStaff, types.IssueFilter{}, sorted()},
		{"management sees all", f.manager, types.IssueFilter{}, sorted(own.ID, public.ID, private.ID, far.ID)},
		{"management hostel filter", f.manager, types.IssueFilter{Hostel: "H2"}, sorted(far.ID)},
		{"status filter", f.manager, types.IssueFilter{Status: types.StatusAssigned}, sorted(private.ID)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues, err := f.issues.List(ctx, actorOf(tt.actor), tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if got := ids(issues); !slices.Equal(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}

	_, err := f.issues.List(ctx, actorOf(f.manager), types.IssueFilter{Status: "open"})
	expectKind(t, err, KindValidation, "")
}

func TestListIssuesNewestFirst(t *testing.T) {
	f := newFixture(t)
	first := f.createIssue(t, f.student, true)
	second := f.createIssue(t, f.student, true)

	issues, err := f.issues.List(context.Background(), actorOf(f.student), types.IssueFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(issues) != 2 || issues[0].ID != second.ID || issues[1].ID != first.ID {
		t.Fatalf("expected newest first")
	}
}

func TestGetPrivateIssueIsForbiddenToOtherStudents(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, f.student, false)

	_, err := f.issues.Get(context.Background(), actorOf(f.neighbour), issue.ID)
	expectKind(t, err, KindAuthorization, "not_issue_viewer")

	if _, err := f.issues.Get(context.Background(), actorOf(f.manager), issue.ID); err != nil {
		t.Fatalf("management get: %v", err)
	}
	_, err = f.issues.Get(context.Background(), actorOf(f.manager), "missing")
	expectKind(t, err, KindNotFound, "")
}

func TestUpdateStatusPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.createIssue(t, f.student, true)
	if _, err := f.issues.Assign(ctx, actorOf(f.manager), issue.ID, f.staff.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	_, err := f.issues.UpdateStatus(ctx, actorOf(f.student), issue.ID, types.StatusResolved, "")
	expectKind(t, err, KindAuthorization, "student_cannot_update_status")
	_, err = f.issues.UpdateStatus(ctx, actorOf(f.otherStaff), issue.ID, types.StatusResolved, "")
	expectKind(t, err, KindAuthorization, "not_assignee")
	_, err = f.issues.UpdateStatus(ctx, actorOf(f.staff), issue.ID, "done", "")
	expectKind(t, err, KindValidation, "")
	_, err = f.issues.UpdateStatus(ctx, actorOf(f.staff), "missing", types.StatusResolved, "")
	expectKind(t, err, KindNotFound, "")

	stored, err := f.issues.Get(ctx, actorOf(f.manager), issue.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != types.StatusAssigned || len(stored.StatusHistory) != 2 {
		t.Fatalf("denied updates must not change the issue: %q %d", stored.Status, len(stored.StatusHistory))
	}

	updated, err := f.issues.UpdateStatus(ctx, actorOf(f.staff), issue.ID, types.StatusInProgress, "  on it ")
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	last := updated.StatusHistory[len(updated.StatusHistory)-1]
	if updated.Status != types.StatusInProgress || last.Status != types.StatusInProgress || last.Remarks != "on it" || last.ChangedBy != f.staff.ID {
		t.Fatalf("unexpected update: %q %+v", updated.Status, last)
	}
}

type forwardOnly struct{}

func (forwardOnly) Validate(from, to types.IssueStatus) error {
	order := []types.IssueStatus{types.StatusReported, types.StatusAssigned, types.StatusInProgress, types.StatusResolved, types.StatusClosed}
	if slices.Index(order, to) < slices.Index(order, from) {
		return fmt.Errorf("cannot move from %s to %s", from, to)
	}
	return nil
}

func TestTransitionValidatorRejectsWithoutWriting(t *testing.T) {
	f := newFixture(t)
	f.issues.WithTransitions(forwardOnly{})
	ctx := context.Background()
	issue := f.createIssue(t, f.student, true)

	if _, err := f.issues.UpdateStatus(ctx, actorOf(f.manager), issue.ID, types.StatusResolved, ""); err != nil {
		t.Fatalf("forward move: %v", err)
	}
	_, err := f.issues.Assign(ctx, actorOf(f.manager), issue.ID, f.staff.ID)
	expectKind(t, err, KindValidation, ReasonInvalidTransition)

	stored, _ := f.issues.Get(ctx, actorOf(f.manager), issue.ID)
	if stored.AssigneeID != nil || stored.Status != types.StatusResolved || len(stored.StatusHistory) != 2 {
		t.Fatalf("rejected assign must leave issue untouched: %+v", stored)
	}
}

func TestAssignIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.createIssue(t, f.student, true)

	_, err := f.issues.Assign(ctx, actorOf(f.staff), issue.ID, f.staff.ID)
	expectKind(t, err, KindAuthorization, "management_only")
	_, err = f.issues.Assign(ctx, actorOf(f.manager), issue.ID, f.neighbour.ID)
	expectKind(t, err, KindValidation, "")
	_, err = f.issues.Assign(ctx, actorOf(f.manager), issue.ID, "ghost")
	expectKind(t, err, KindValidation, "")
	_, err = f.issues.Assign(ctx, actorOf(f.manager), "missing", f.staff.ID)
	expectKind(t, err, KindNotFound, "")

	assigned, err := f.issues.Assign(ctx, actorOf(f.manager), issue.ID, f.staff.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !assigned.IsAssignee(f.staff.ID) || assigned.Status != types.StatusAssigned {
		t.Fatalf("unexpected assignment: %+v", assigned)
	}
	last := assigned.StatusHistory[len(assigned.StatusHistory)-1]
	if last.Status != types.StatusAssigned || last.ChangedBy != f.manager.ID {
		t.Fatalf("unexpected history entry: %+v", last)
	}

	events := f.events(t)
	got := events[len(events)-1]
	if got.Kind != types.EventIssueAssigned || !slices.Equal(got.Recipients, []string{f.staff.ID, f.student.ID}) {
		t.Fatalf("unexpected assign event: %+v", got)
	}
}

func TestCommentIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.createIssue(t, f.student, false)

	_, err := f.issues.Comment(ctx, actorOf(f.neighbour), issue.ID, "me too")
	expectKind(t, err, KindAuthorization, "private_issue")
	_, err = f.issues.Comment(ctx, actorOf(f.student), issue.ID, "   ")
	expectKind(t, err, KindValidation, "")

	if _, err := f.issues.Comment(ctx, actorOf(f.student), issue.ID, "still broken"); err != nil {
		t.Fatalf("comment: %v", err)
	}
	comments, err := f.issues.Comment(ctx, actorOf(f.staff), issue.ID, "coming at 5pm")
	if err != nil {
		t.Fatalf("staff comment: %v", err)
	}
	if len(comments) != 2 || comments[0].Text != "still broken" || comments[1].UserID != f.staff.ID {
		t.Fatalf("unexpected thread: %+v", comments)
	}
	if comments[0].ID == "" || comments[0].ID == comments[1].ID {
		t.Fatalf("comments need distinct ids")
	}

	events := f.events(t)
	got := events[len(events)-1]
	if got.Kind != types.EventIssueCommented || !slices.Equal(got.Recipients, []string{f.student.ID}) {
		t.Fatalf("unexpected comment event: %+v", got)
	}
}

func TestToggleUpvote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	public := f.createIssue(t, f.student, true)
	private := f.createIssue(t, f.student, false)

	count, upvoted, err := f.issues.ToggleUpvote(ctx, actorOf(f.neighbour), public.ID)
	if err != nil || count != 1 || !upvoted {
		t.Fatalf("expected (1, true, nil), got (%d, %v, %v)", count, upvoted, err)
	}
	count, upvoted, err = f.issues.ToggleUpvote(ctx, actorOf(f.neighbour), public.ID)
	if err != nil || count != 0 || upvoted {
		t.Fatalf("expected (0, false, nil), got (%d, %v, %v)", count, upvoted, err)
	}

	_, _, err = f.issues.ToggleUpvote(ctx, actorOf(f.student), private.ID)
	expectKind(t, err, KindAuthorization, "private_issue")
}

func TestConcurrentUpvotesAreNotLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.createIssue(t, f.student, true)

	const voters = 25
	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for i := range voters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			actor := actorOf(f.neighbour)
			actor.ID = fmt.Sprintf("voter-%d", i)
			if _, _, err := f.issues.ToggleUpvote(ctx, actor, issue.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("upvote: %v", err)
	}

	stored, _ := f.issues.Get(ctx, actorOf(f.manager), issue.ID)
	if len(stored.Upvotes) != voters {
		t.Fatalf("expected %d upvotes, got %d", voters, len(stored.Upvotes))
	}
}

func TestDeleteIssuePermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.createIssue(t, f.student, true)

	err := f.issues.Delete(ctx, actorOf(f.neighbour), issue.ID)
	expectKind(t, err, KindAuthorization, "not_owner_or_management")

	if err := f.issues.Delete(ctx, actorOf(f.manager), issue.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err = f.issues.Delete(ctx, actorOf(f.manager), issue.ID)
	expectKind(t, err, KindNotFound, "")
}

func TestRepositoryFailureIsUpstream(t *testing.T) {
	f := newFixture(t)
	f.issueRepo.Fail = true

	_, err := f.issues.List(context.Background(), actorOf(f.manager), types.IssueFilter{})
	expectKind(t, err, KindUpstream, "")
	if !errors.Is(err, &Error{Kind: KindUpstream}) {
		t.Fatalf("expected errors.Is to match upstream kind")
	}
}

// Scenario: a resident reports, management assigns, staff resolves, and the
// reporter is notified of every step taken by someone else.
func TestIssueLifecycleNotifiesReporter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issue := f.createIssue(t, f.student, true)
	if _, err := f.issues.Assign(ctx, actorOf(f.manager), issue.ID, f.staff.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.issues.UpdateStatus(ctx, actorOf(f.staff), issue.ID, types.StatusInProgress, ""); err != nil {
		t.Fatalf("in progress: %v", err)
	}
	resolved, err := f.issues.UpdateStatus(ctx, actorOf(f.staff), issue.ID, types.StatusResolved, "washer replaced")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	statuses := make([]types.IssueStatus, 0, len(resolved.StatusHistory))
	for _, change := range resolved.StatusHistory {
		statuses = append(statuses, change.Status)
	}
	want := []types.IssueStatus{types.StatusReported, types.StatusAssigned, types.StatusInProgress, types.StatusResolved}
	if !slices.Equal(statuses, want) {
		t.Fatalf("expected history %v, got %v", want, statuses)
	}

	f.deliver(t)
	inbox, err := f.notifications.List(ctx, actorOf(f.student), 0)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(inbox) != 3 {
		t.Fatalf("expected 3 notifications for the reporter, got %d", len(inbox))
	}
	staffInbox, _ := f.notifications.List(ctx, actorOf(f.staff), 0)
	if len(staffInbox) != 1 || staffInbox[0].Kind != types.EventIssueAssigned {
		t.Fatalf("expected one assignment notification for staff, got %+v", staffInbox)
	}
}
