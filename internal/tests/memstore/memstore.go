// Package memstore provides in-memory repositories with the same contract as
// the Postgres store, for use in tests.
//
// Mutate holds the repository lock for the whole read-modify-write and only
// writes back when fn succeeds, which mirrors the SELECT ... FOR UPDATE
// transaction of the real store.
package memstore

import (
	"context"
	"errors"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hostel-tracker/apiserver/internal/store"
	"github.com/hostel-tracker/apiserver/types"
)

// ErrInjected is returned by a repository whose Fail field is set.
var ErrInjected = errors.New("injected failure")

// Users is an in-memory user repository.
type Users struct {
	mu    sync.Mutex
	byID  map[string]types.User
	order []string
}

func NewUsers() *Users {
	return &Users{byID: make(map[string]types.User)}
}

// Add stores user as is, assigning an id when missing.
func (r *Users) Add(user types.User) types.User {
	created, _ := r.Create(context.Background(), user)
	return created
}

func (r *Users) GetByID(_ context.Context, id string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if user := r.byID[id]; user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *Users) ListByRole(_ context.Context, role types.Role) ([]types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]types.User, 0)
	for _, id := range r.order {
		if user := r.byID[id]; user.Role == role {
			users = append(users, user)
		}
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (r *Users) ListAudience(_ context.Context, hostels []string, roles []types.Role) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0)
	for _, id := range r.order {
		user := r.byID[id]
		if len(hostels) > 0 && !slices.Contains(hostels, user.Hostel) {
			continue
		}
		if len(roles) > 0 && !slices.Contains(roles, user.Role) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *Users) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Email != "" && existing.Email == user.Email {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
		user.UpdatedAt = user.CreatedAt
	}
	r.byID[user.ID] = user
	r.order = append(r.order, user.ID)
	return user, nil
}

// Issues is an in-memory issue repository.
type Issues struct {
	mu   sync.Mutex
	byID map[string]types.Issue
	// Fail makes every call return ErrInjected.
	Fail bool
}

func NewIssues() *Issues {
	return &Issues{byID: make(map[string]types.Issue)}
}

func (r *Issues) List(_ context.Context, scope types.IssueScope, filter types.IssueFilter) ([]types.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return nil, ErrInjected
	}

	issues := make([]types.Issue, 0)
	for _, issue := range r.byID {
		if scope.ReporterOrPublicHostel &&
			issue.ReporterID != scope.ReporterID &&
			!(issue.IsPublic && issue.Hostel == scope.PublicHostel) {
			continue
		}
		if scope.AssigneeID != "" && !issue.IsAssignee(scope.AssigneeID) {
			continue
		}
		if !matchIssue(issue, filter) {
			continue
		}
		issues = append(issues, copyIssue(issue))
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].CreatedAt.After(issues[j].CreatedAt) })
	return issues, nil
}

func matchIssue(issue types.Issue, filter types.IssueFilter) bool {
	switch {
	case filter.Status != "" && issue.Status != filter.Status,
		filter.Category != "" && issue.Category != filter.Category,
		filter.Priority != "" && issue.Priority != filter.Priority,
		filter.Hostel != "" && issue.Hostel != filter.Hostel,
		filter.Block != "" && issue.Block != filter.Block:
		return false
	}
	return filter.Search == "" || containsFold(filter.Search, issue.Title, issue.Description)
}

func (r *Issues) Get(_ context.Context, id string) (types.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return types.Issue{}, ErrInjected
	}
	issue, ok := r.byID[id]
	if !ok {
		return types.Issue{}, store.ErrNotFound
	}
	return copyIssue(issue), nil
}

func (r *Issues) Create(_ context.Context, issue types.Issue) (types.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return types.Issue{}, ErrInjected
	}
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	r.byID[issue.ID] = copyIssue(issue)
	return issue, nil
}

func (r *Issues) Mutate(_ context.Context, id string, fn func(issue *types.Issue) error) (types.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return types.Issue{}, ErrInjected
	}
	stored, ok := r.byID[id]
	if !ok {
		return types.Issue{}, store.ErrNotFound
	}
	working := copyIssue(stored)
	if err := fn(&working); err != nil {
		return types.Issue{}, err
	}
	r.byID[id] = copyIssue(working)
	return working, nil
}

func (r *Issues) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return ErrInjected
	}
	if _, ok := r.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

// Put replaces the stored issue, bypassing the service layer.
func (r *Issues) Put(issue types.Issue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[issue.ID] = copyIssue(issue)
}

func (r *Issues) snapshot() []types.Issue {
	r.mu.Lock()
	defer r.mu.Unlock()
	issues := make([]types.Issue, 0, len(r.byID))
	for _, issue := range r.byID {
		issues = append(issues, copyIssue(issue))
	}
	return issues
}

func copyIssue(issue types.Issue) types.Issue {
	if issue.AssigneeID != nil {
		assignee := *issue.AssigneeID
		issue.AssigneeID = &assignee
	}
	issue.Media = slices.Clone(issue.Media)
	issue.StatusHistory = slices.Clone(issue.StatusHistory)
	issue.Comments = slices.Clone(issue.Comments)
	issue.Upvotes = slices.Clone(issue.Upvotes)
	return issue
}

// Items is an in-memory lost and found repository.
type Items struct {
	mu   sync.Mutex
	byID map[string]types.LostFoundItem
}

func NewItems() *Items {
	return &Items{byID: make(map[string]types.LostFoundItem)}
}

func (r *Items) List(_ context.Context, filter types.ItemFilter) ([]types.LostFoundItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]types.LostFoundItem, 0)
	for _, item := range r.byID {
		switch {
		case filter.Status != "" && item.Status != filter.Status,
			filter.Hostel != "" && item.Hostel != filter.Hostel,
			filter.Search != "" && !containsFold(filter.Search, item.ItemName, item.Description, item.Location):
			continue
		}
		items = append(items, copyItem(item))
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (r *Items) Get(_ context.Context, id string) (types.LostFoundItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.byID[id]
	if !ok {
		return types.LostFoundItem{}, store.ErrNotFound
	}
	return copyItem(item), nil
}

func (r *Items) Create(_ context.Context, item types.LostFoundItem) (types.LostFoundItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	r.byID[item.ID] = copyItem(item)
	return item, nil
}

func (r *Items) Mutate(_ context.Context, id string, fn func(item *types.LostFoundItem) error) (types.LostFoundItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[id]
	if !ok {
		return types.LostFoundItem{}, store.ErrNotFound
	}
	working := copyItem(stored)
	if err := fn(&working); err != nil {
		return types.LostFoundItem{}, err
	}
	r.byID[id] = copyItem(working)
	return working, nil
}

// Put replaces the stored item, bypassing the service layer.
func (r *Items) Put(item types.LostFoundItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[item.ID] = copyItem(item)
}

func (r *Items) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func copyItem(item types.LostFoundItem) types.LostFoundItem {
	item.Images = slices.Clone(item.Images)
	item.ClaimRequests = slices.Clone(item.ClaimRequests)
	return item
}

// Announcements is an in-memory announcement repository.
type Announcements struct {
	mu   sync.Mutex
	byID map[string]types.Announcement
}

func NewAnnouncements() *Announcements {
	return &Announcements{byID: make(map[string]types.Announcement)}
}

func (r *Announcements) List(_ context.Context, activeOnly bool) ([]types.Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	announcements := make([]types.Announcement, 0)
	for _, a := range r.byID {
		if activeOnly && !a.IsActive {
			continue
		}
		announcements = append(announcements, a)
	}
	sort.SliceStable(announcements, func(i, j int) bool {
		return announcements[i].CreatedAt.After(announcements[j].CreatedAt)
	})
	return announcements, nil
}

func (r *Announcements) Get(_ context.Context, id string) (types.Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return types.Announcement{}, store.ErrNotFound
	}
	return a, nil
}

func (r *Announcements) Create(_ context.Context, a types.Announcement) (types.Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	r.byID[a.ID] = a
	return a, nil
}

func (r *Announcements) Mutate(_ context.Context, id string, fn func(a *types.Announcement) error) (types.Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[id]
	if !ok {
		return types.Announcement{}, store.ErrNotFound
	}
	working := stored
	working.TargetHostels = slices.Clone(stored.TargetHostels)
	working.TargetBlocks = slices.Clone(stored.TargetBlocks)
	working.TargetRoles = slices.Clone(stored.TargetRoles)
	if err := fn(&working); err != nil {
		return types.Announcement{}, err
	}
	r.byID[id] = working
	return working, nil
}

func (r *Announcements) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

// Notifications is an in-memory notification repository.
type Notifications struct {
	mu    sync.Mutex
	items []types.Notification
}

func NewNotifications() *Notifications {
	return &Notifications{}
}

func (r *Notifications) CreateMany(_ context.Context, notifications []types.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, notifications...)
	return nil
}

func (r *Notifications) ListForUser(_ context.Context, userID string, limit int) ([]types.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Notification, 0)
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].UserID == userID {
			out = append(out, r.items[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Notifications) MarkRead(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == id && r.items[i].UserID == userID {
			r.items[i].Read = true
			return nil
		}
	}
	return store.ErrNotFound
}

// All returns every stored notification in insertion order.
func (r *Notifications) All() []types.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.items)
}

// Bus records published messages.
type Bus struct {
	mu       sync.Mutex
	Messages []Published
	// Err is returned from Publish when set.
	Err error
}

// Published is one message sent through a Bus.
type Published struct {
	Channel string
	Data    []byte
	Attrs   map[string]string
}

func (b *Bus) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return "", b.Err
	}
	b.Messages = append(b.Messages, Published{Channel: channel, Data: slices.Clone(data), Attrs: attrs})
	return uuid.NewString(), nil
}

// Sent returns a copy of the published messages.
func (b *Bus) Sent() []Published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.Messages)
}

// Objects is an in-memory object store serving URLs under BaseURL.
type Objects struct {
	mu      sync.Mutex
	BaseURL string
	objects map[string][]byte
	// FailAfter makes Put fail once that many objects have been stored.
	FailAfter int
}

func NewObjects() *Objects {
	return &Objects{BaseURL: "http://media.test/bucket", objects: make(map[string][]byte)}
}

func (o *Objects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.FailAfter > 0 && len(o.objects) >= o.FailAfter {
		return ErrInjected
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	o.objects[key] = data
	return nil
}

func (o *Objects) Delete(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, key)
	return nil
}

func (o *Objects) URL(key string) string {
	return o.BaseURL + "/" + key
}

func (o *Objects) KeyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, o.BaseURL+"/")
	return key, ok && key != ""
}

// Keys returns the stored object keys, sorted.
func (o *Objects) Keys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	keys := make([]string, 0, len(o.objects))
	for key := range o.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func containsFold(term string, fields ...string) bool {
	term = strings.ToLower(term)
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}
