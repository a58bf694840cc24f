package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hostel-tracker/apiserver/internal/policy"
	"github.com/hostel-tracker/apiserver/internal/tests/memstore"
	"github.com/hostel-tracker/apiserver/types"
)

// clock returns strictly increasing timestamps, one minute apart.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	clock         *clock
	users         *memstore.Users
	issueRepo     *memstore.Issues
	itemRepo      *memstore.Items
	announceRepo  *memstore.Announcements
	notifyRepo    *memstore.Notifications
	bus           *memstore.Bus
	objects       *memstore.Objects
	issues        *IssueService
	items         *LostFoundService
	announcements *AnnouncementService
	analytics     *AnalyticsService
	notifications *NotificationService

	student    types.User
	neighbour  types.User
	farStudent types.User
	staff      types.User
	otherStaff types.User
	manager    types.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		clock:        newClock(),
		users:        memstore.NewUsers(),
		issueRepo:    memstore.NewIssues(),
		itemRepo:     memstore.NewItems(),
		announceRepo: memstore.NewAnnouncements(),
		notifyRepo:   memstore.NewNotifications(),
		bus:          &memstore.Bus{},
		objects:      memstore.NewObjects(),
	}

	f.student = f.users.Add(types.User{ID: "u-student", Name: "Asha", Email: "asha@example.com", Role: types.RoleStudent, Hostel: "H1", Block: "A", RoomNumber: "101", Phone: "111"})
	f.neighbour = f.users.Add(types.User{ID: "u-neighbour", Name: "Bilal", Email: "bilal@example.com", Role: types.RoleStudent, Hostel: "H1", Block: "B", RoomNumber: "202", Phone: "222"})
	f.farStudent = f.users.Add(types.User{ID: "u-far", Name: "Chen", Email: "chen@example.com", Role: types.RoleStudent, Hostel: "H2", Block: "A", Phone: "333"})
	f.staff = f.users.Add(types.User{ID: "u-staff", Name: "Devi", Email: "devi@example.com", Role: types.RoleStaff, Hostel: "H1", Block: "A", Phone: "444"})
	f.otherStaff = f.users.Add(types.User{ID: "u-staff2", Name: "Eli", Email: "eli@example.com", Role: types.RoleStaff, Hostel: "H1", Block: "A", Phone: "555"})
	f.manager = f.users.Add(types.User{ID: "u-manager", Name: "Farah", Email: "farah@example.com", Role: types.RoleManagement, Hostel: "H1", Block: "A", Phone: "666"})

	media := NewMediaService(f.objects, logger)
	events := NewEventPublisher(f.bus, "hostel.events", logger)

	f.issues = NewIssueService(f.issueRepo, f.users, media, events)
	f.issues.now = f.clock.Now
	f.items = NewLostFoundService(f.itemRepo, f.users, media, events)
	f.items.now = f.clock.Now
	f.announcements = NewAnnouncementService(f.announceRepo, events)
	f.announcements.now = f.clock.Now
	f.analytics = NewAnalyticsService(memstore.NewAnalytics(f.issueRepo))
	f.analytics.now = f.clock.Now
	f.notifications = NewNotificationService(f.notifyRepo, f.users, logger)
	f.notifications.now = f.clock.Now
	return f
}

func actorOf(user types.User) policy.Actor {
	return policy.ActorFromUser(user)
}

// events decodes everything published on the bus so far.
func (f *fixture) events(t *testing.T) []types.Event {
	t.Helper()
	sent := f.bus.Sent()
	out := make([]types.Event, 0, len(sent))
	for _, msg := range sent {
		var event types.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		out = append(out, event)
	}
	return out
}

// deliver feeds every published message to the notification service.
func (f *fixture) deliver(t *testing.T) {
	t.Helper()
	for _, msg := range f.bus.Sent() {
		if err := f.notifications.Consume(context.Background(), msg.Data); err != nil {
			t.Fatalf("consume event: %v", err)
		}
	}
}

func (f *fixture) createIssue(t *testing.T, reporter types.User, public bool) types.Issue {
	t.Helper()
	issue, err := f.issues.Create(context.Background(), actorOf(reporter), NewIssue{
		Title:       "Leaking tap",
		Description: "Tap in the second floor washroom keeps running",
		Category:    types.CategoryPlumbing,
		Priority:    types.PriorityHigh,
		IsPublic:    public,
	})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	return issue
}

func expectKind(t *testing.T, err error, kind Kind, reason string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	var serviceErr *Error
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if serviceErr.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, serviceErr.Kind, err)
	}
	if reason != "" && serviceErr.Reason != reason {
		t.Fatalf("expected reason %q, got %q", reason, serviceErr.Reason)
	}
}
