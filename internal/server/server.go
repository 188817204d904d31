// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects the store, the cache,
// services, handlers and middleware, and decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config
//	  ├─ DATABASE_URL → sqlite.DB | postgres.DB ─┐
//	  └─ REDIS_*      → cache.Cache ──────────────┴→ cached.Articles
//	cached.Articles → ArticleService → ArticleHandler
//	cached.Articles → ArticleAccess (guard)
//	store           → UserService    → UserHandler
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/routes), rather than scattered across the codebase.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/sakif/knowledge-base/internal/auth"
	"github.com/sakif/knowledge-base/internal/cache"
	"github.com/sakif/knowledge-base/internal/config"
	"github.com/sakif/knowledge-base/internal/handler"
	"github.com/sakif/knowledge-base/internal/middleware"
	"github.com/sakif/knowledge-base/internal/repository"
	"github.com/sakif/knowledge-base/internal/repository/cached"
	"github.com/sakif/knowledge-base/internal/repository/postgres"
	sqliteRepo "github.com/sakif/knowledge-base/internal/repository/sqlite"
	"github.com/sakif/knowledge-base/internal/service"
)

// Store is a persistence backend: both repositories plus lifecycle.
// sqlite.DB and postgres.DB implement it.
type Store interface {
	repository.ArticleRepository
	repository.UserRepository
	Ping() error
	Close() error
}

var (
	_ Store = (*sqliteRepo.DB)(nil)
	_ Store = (*postgres.DB)(nil)
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store and the cache client. Start closes both once
// the HTTP server has stopped.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	store  Store
	cache  *cache.Cache
}

// New opens the store and the cache described by cfg and wires the router.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	c := cache.Connect(ctx, cfg.Redis, logger)

	s, err := NewWithStore(cfg, store, c, logger)
	if err != nil {
		store.Close()
		c.Close()
		return nil, err
	}
	return s, nil
}

// NewWithStore wires a server around an already opened store and cache.
// Tests use it with an in-memory SQLite store and a disabled cache.
func NewWithStore(cfg config.Config, store Store, c *cache.Cache, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
		cache:  c,
	}
	if err := s.routes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// openStore picks the backend from the URL scheme: postgres:// goes to
// Postgres, anything else is a SQLite path.
func openStore(ctx context.Context, databaseURL string) (Store, error) {
	if (config.Config{DatabaseURL: databaseURL}).UsesPostgres() {
		db, err := postgres.Open(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		return db, nil
	}

	if databaseURL != ":memory:" {
		// os.MkdirAll is like `mkdir -p`.
		if err := os.MkdirAll(filepath.Dir(databaseURL), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	return db, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// routes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /health                  → liveness + database ping
//	POST   /article                 → create           [auth]
//	GET    /article/search          → search           [optional auth]
//	GET    /article/{articleID}     → get              [uuid, article access]
//	PATCH  /article/{articleID}     → update           [uuid, auth, article access]
//	DELETE /article/{articleID}     → delete           [uuid, auth, article access]
//	POST   /user                    → sign-up          [rate limited]
//	POST   /user/login              → login            [rate limited]
//	GET    /user/search             → search           [auth]
//	GET    /user/{userID}           → get              [uuid, auth]
//	PATCH  /user/{userID}           → update own       [uuid, auth]
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added: RequestID → RealIP →
// Recoverer → Logger, then the per-route guards.
func (s *Server) routes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.JWTTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	articles := cached.NewArticles(s.store, s.cache, s.logger)
	access := auth.NewArticleAccess(articles, tokens, s.logger)

	articleHandler := handler.NewArticleHandler(service.NewArticleService(articles, s.logger), s.logger)
	userHandler := handler.NewUserHandler(service.NewUserService(s.store, tokens, passwords, s.logger), s.logger)

	requireAuth := auth.RequireAuth(tokens)
	limit := func() func(http.Handler) http.Handler {
		return httprate.LimitByIP(s.config.LoginRateLimit, time.Minute)
	}

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID) // Adds X-Request-ID header
	s.router.Use(chimiddleware.RealIP)    // Extracts real IP from X-Forwarded-For
	s.router.Use(chimiddleware.Recoverer) // Recovers from panics, returns 500
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/article", func(r chi.Router) {
		r.With(requireAuth).Post("/", articleHandler.HandleCreate)
		r.With(auth.OptionalAuth(tokens)).Get("/search", articleHandler.HandleSearch)

		r.Route("/{articleID}", func(r chi.Router) {
			r.Use(middleware.ValidateUUIDParams)
			guard := access.RequireArticleAccess("articleID")

			r.With(guard).Get("/", articleHandler.HandleGet)
			r.With(requireAuth, guard).Patch("/", articleHandler.HandleUpdate)
			r.With(requireAuth, guard).Delete("/", articleHandler.HandleDelete)
		})
	})

	// Each limited endpoint gets its own limiter, so sign-ups do not use up
	// the login budget.
	s.router.Route("/user", func(r chi.Router) {
		r.With(limit()).Post("/", userHandler.HandleCreate)
		r.With(limit()).Post("/login", userHandler.HandleLogin)
		r.With(requireAuth).Get("/search", userHandler.HandleSearch)

		r.Route("/{userID}", func(r chi.Router) {
			r.Use(middleware.ValidateUUIDParams)
			r.Use(requireAuth)

			r.Get("/", userHandler.HandleGet)
			r.Patch("/", userHandler.HandleUpdate)
		})
	})

	return nil
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
}

// handleHealth answers 200 when the database responds and 503 otherwise.
// The cache is reported but never fails the check.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Database: "ok", Cache: "disabled"}
	status := http.StatusOK

	if err := s.store.Ping(); err != nil {
		s.logger.Error("health check: database unreachable", slog.String("error", err.Error()))
		resp.Status = "unavailable"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if s.cache.Enabled() {
		resp.Cache = "enabled"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the cache client and the database
func (s *Server) Start() error {
	defer s.store.Close()
	defer s.cache.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.Bool("postgres", s.config.UsesPostgres()),
			slog.Bool("cache", s.cache.Enabled()),
			slog.String("env", s.config.Env),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
