package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hostel-tracker/apiserver/internal/services"
	"github.com/hostel-tracker/apiserver/internal/tests/memstore"
	"github.com/hostel-tracker/apiserver/types"
)

const testSecret = "test-secret"

type harness struct {
	t       *testing.T
	router  *chi.Mux
	users   *memstore.Users
	objects *memstore.Objects

	student   types.User
	neighbour types.User
	staff     types.User
	manager   types.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		t:       t,
		users:   memstore.NewUsers(),
		objects: memstore.NewObjects(),
	}
	h.student = h.users.Add(types.User{ID: "stu", Name: "Asha", Email: "asha@example.com", Role: types.RoleStudent, Hostel: "H1", Block: "A", Phone: "1"})
	h.neighbour = h.users.Add(types.User{ID: "nbr", Name: "Bilal", Email: "bilal@example.com", Role: types.RoleStudent, Hostel: "H1", Block: "B", Phone: "2"})
	h.staff = h.users.Add(types.User{ID: "stf", Name: "Devi", Email: "devi@example.com", Role: types.RoleStaff, Hostel: "H1", Block: "A", Phone: "3"})
	h.manager = h.users.Add(types.User{ID: "mgr", Name: "Farah", Email: "farah@example.com", Role: types.RoleManagement, Hostel: "H1", Block: "A", Phone: "4"})

	issueRepo := memstore.NewIssues()
	media := services.NewMediaService(h.objects, logger)
	userService := services.NewUserService(h.users)
	auth := NewAuthHandler(userService, testSecret, time.Hour)

	h.router = chi.NewRouter()
	h.router.Get("/healthz", Healthz)
	h.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			AuthRouter(r, auth)
		})
		r.Route("/issues", func(r chi.Router) {
			IssueRouter(r, services.NewIssueService(issueRepo, h.users, media, nil), auth.RequireAuth)
		})
		r.Route("/lostfound", func(r chi.Router) {
			LostFoundRouter(r, services.NewLostFoundService(memstore.NewItems(), h.users, media, nil), auth.RequireAuth)
		})
		r.Route("/announcements", func(r chi.Router) {
			AnnouncementRouter(r, services.NewAnnouncementService(memstore.NewAnnouncements(), nil), auth.RequireAuth)
		})
		r.Route("/analytics", func(r chi.Router) {
			AnalyticsRouter(r, services.NewAnalyticsService(memstore.NewAnalytics(issueRepo)), auth.RequireAuth)
		})
		r.Route("/notifications", func(r chi.Router) {
			NotificationRouter(r, services.NewNotificationService(memstore.NewNotifications(), h.users, logger), auth.RequireAuth)
		})
	})
	return h
}

func (h *harness) token(user types.User) string {
	h.t.Helper()
	token, err := issueToken(user.ID, []byte(testSecret), time.Hour)
	if err != nil {
		h.t.Fatalf("issue token: %v", err)
	}
	return token
}

// do sends a JSON request as user (nil for anonymous) and decodes the
// response into out when out is not nil.
func (h *harness) do(method, path string, user *types.User, body any, out any) int {
	h.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+h.token(*user))
	}
	return h.serve(req, out)
}

func (h *harness) serve(req *http.Request, out any) int {
	h.t.Helper()
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			h.t.Fatalf("decode %s %s response %q: %v", req.Method, req.URL.Path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

type multipartFile struct {
	field    string
	filename string
	data     string
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files []multipartFile) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		_ = writer.WriteField(key, value)
	}
	for _, file := range files {
		part, err := writer.CreateFormFile(file.field, file.filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(file.data)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
