package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hostel-tracker/apiserver/config"
	"github.com/hostel-tracker/apiserver/internal/db"
	"github.com/hostel-tracker/apiserver/internal/handlers"
	"github.com/hostel-tracker/apiserver/internal/mq"
	"github.com/hostel-tracker/apiserver/internal/services"
	"github.com/hostel-tracker/apiserver/internal/storage"
	"github.com/hostel-tracker/apiserver/internal/store"
	"github.com/jmoiron/sqlx"
)

// Services bundles the use-case services the HTTP layer is built on.
type Services struct {
	Users         *services.UserService
	Issues        *services.IssueService
	LostFound     *services.LostFoundService
	Announcements *services.AnnouncementService
	Analytics     *services.AnalyticsService
	Notifications *services.NotificationService
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	media      *storage.Storage
	bus        *mq.MQ
	logger     *slog.Logger
}

// New connects the database, media storage and event bus and builds the
// HTTP server.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	var opened closers
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	opened = append(opened, dbConn)

	media, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		opened.close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	opened = append(opened, media)
	if err := media.EnsureBucket(ctx); err != nil {
		opened.close()
		return nil, fmt.Errorf("ensure bucket %s: %w", media.Bucket(), err)
	}

	bus, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		opened.close()
		return nil, err
	}
	var publisher services.Publisher
	if bus != nil {
		publisher = bus
	} else {
		logger.Info("event bus disabled")
	}

	svc := NewServices(
		dbConn,
		services.NewMediaService(media, logger),
		services.NewEventPublisher(publisher, cfg.MQ.Channel, logger),
		logger,
	)
	router := NewRouter(cfg, svc)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		media:      media,
		bus:        bus,
		logger:     logger,
	}, nil
}

// closers releases clients opened during startup, newest first.
type closers []io.Closer

func (c closers) close() {
	for i := len(c) - 1; i >= 0; i-- {
		_ = c[i].Close()
	}
}

// NewServices wires the Postgres repositories into the services.
func NewServices(dbConn *sql.DB, media *services.MediaService, events *services.EventPublisher, logger *slog.Logger) Services {
	userRepo := store.NewUserRepository(dbConn)
	analyticsRepo := store.NewAnalyticsRepository(sqlx.NewDb(dbConn, db.DriverName))

	return Services{
		Users:         services.NewUserService(userRepo),
		Issues:        services.NewIssueService(store.NewIssueRepository(dbConn), userRepo, media, events),
		LostFound:     services.NewLostFoundService(store.NewLostFoundRepository(dbConn), userRepo, media, events),
		Announcements: services.NewAnnouncementService(store.NewAnnouncementRepository(dbConn), events),
		Analytics:     services.NewAnalyticsService(analyticsRepo),
		Notifications: services.NewNotificationService(store.NewNotificationRepository(dbConn), userRepo, logger),
	}
}

// NewRouter builds the chi router serving the API.
func NewRouter(cfg config.Config, svc Services) *chi.Mux {
	auth := handlers.NewAuthHandler(svc.Users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, auth)
		})
		r.Route("/issues", func(r chi.Router) {
			handlers.IssueRouter(r, svc.Issues, auth.RequireAuth)
		})
		r.Route("/lostfound", func(r chi.Router) {
			handlers.LostFoundRouter(r, svc.LostFound, auth.RequireAuth)
		})
		r.Route("/announcements", func(r chi.Router) {
			handlers.AnnouncementRouter(r, svc.Announcements, auth.RequireAuth)
		})
		r.Route("/analytics", func(r chi.Router) {
			handlers.AnalyticsRouter(r, svc.Analytics, auth.RequireAuth)
		})
		r.Route("/notifications", func(r chi.Router) {
			handlers.NotificationRouter(r, svc.Notifications, auth.RequireAuth)
		})
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases the backing clients.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.bus != nil {
		_ = s.bus.Close()
	}
	if s.media != nil {
		_ = s.media.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
