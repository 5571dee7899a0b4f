// Package server sets up the HTTP server, router, background jobs and all
// route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware,
// routes and the periodic jobs, and decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server and its jobs start and stop together
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config.Config and creates the logger, then Server.New builds:
//
//	sqlite.DB ──┬─> AuthService ──> AuthHandler, auth.RequireAuth
//	            ├─> PlantService ─> PlantHandler
//	            ├─> LedgerService > LedgerHandler
//	            └─> reminder.Scanner ─> scheduler.Runner
//	storage.Intake ─> PlantService, LedgerService, /uploads/*
//
// This is the "composition root": every dependency is wired here and
// nowhere else.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/houseplant-tracker/internal/auth"
	"github.com/sakif/houseplant-tracker/internal/config"
	"github.com/sakif/houseplant-tracker/internal/handler"
	"github.com/sakif/houseplant-tracker/internal/middleware"
	"github.com/sakif/houseplant-tracker/internal/reminder"
	sqliteRepo "github.com/sakif/houseplant-tracker/internal/repository/sqlite"
	"github.com/sakif/houseplant-tracker/internal/scheduler"
	"github.com/sakif/houseplant-tracker/internal/service"
	"github.com/sakif/houseplant-tracker/internal/storage"
)

// shutdownTimeout is how long in-flight requests get after a signal.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and the job runner. Start closes
// both on the way out; Close does the same for servers that were never
// started (tests).
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	registry *prometheus.Registry
	runner   *scheduler.Runner
	auth     *service.AuthService
	scanner  *reminder.Scanner
}

// New creates a Server from cfg. The upload directory and the database are
// created if missing.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		registry: prometheus.NewRegistry(),
		runner:   scheduler.New(logger),
	}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	if err := s.setupJobs(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up jobs: %w", err)
	}

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET  /                                  → landing page (redirects when signed in)
// GET  /login, /register                  → HTML forms
// POST /login                             → sign in (rate limited per IP)
// POST /register                          → create account
// GET  /uploads/*                         → stored photos
// GET  /metrics                           → Prometheus
// POST /logout                            → (auth) end session
// GET  /api/me                            → (auth) current user
// DELETE /api/account                     → (auth) delete account
// GET  /api/plants                        → (auth) list, ?species= &location=
// POST /api/plants                        → (auth) add plant
// GET  /api/plants/{id}                   → (auth) detail with history
// POST /api/plants/{id}                   → (auth) edit plant
// POST /api/plants/{id}/delete            → (auth) delete plant
// POST /api/plants/{id}/care-events       → (auth) log care
// POST /api/plants/{id}/journal-entries   → (auth) add journal entry
// POST /api/care-events/{id}/delete       → (auth) delete care event
// POST /api/journal-entries/{id}/delete   → (auth) delete journal entry
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request (for tracing)
// 2. RealIP: extracts the real client IP from proxy headers
// 3. Recoverer: catches panics and returns 500 instead of crashing
// 4. Logger, Metrics: see every response, including recovered panics
func (s *Server) setupRoutes() error {
	cfg := s.config

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	intake, err := storage.NewIntake(cfg.Storage.UploadDir)
	if err != nil {
		return fmt.Errorf("creating upload directory: %w", err)
	}
	tokens, err := auth.NewTokenService(cfg.Auth.TokenSecret, cfg.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService(cfg.Auth.BcryptCost)

	// === SERVICES ===
	// s.db implements every repository interface; each service only sees
	// the interfaces it asked for.
	s.auth = service.NewAuthService(s.db, s.db, tokens, passwords, intake, s.logger)
	plantService := service.NewPlantService(s.db, s.db, intake, s.logger)
	ledgerService := service.NewLedgerService(s.db, s.db, intake, s.logger)
	s.scanner = reminder.NewScanner(s.db, s.logger, s.registry)

	// === HANDLERS ===
	flashes := handler.NewFlashStore([]byte(cfg.Auth.SessionSecret), cfg.Server.SecureCookies, s.logger)
	pages, err := handler.NewPages(flashes, s.logger)
	if err != nil {
		return err
	}
	view := handler.NewPresenter(loc)
	authHandler := handler.NewAuthHandler(s.auth, pages, flashes, cfg.Server.SecureCookies, s.logger)
	plantHandler := handler.NewPlantHandler(plantService, flashes, view, cfg.Storage.MaxUploadBytes, s.logger)
	ledgerHandler := handler.NewLedgerHandler(ledgerService, flashes, view, cfg.Storage.MaxUploadBytes, s.logger)

	loginLimiter := middleware.NewIPLimiter(middleware.RateLimitConfig{
		RequestsPerMinute: cfg.RateLimit.LoginPerMinute,
		BurstSize:         cfg.RateLimit.LoginBurst,
	})
	metrics := middleware.NewHTTPMetrics(s.registry)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(metrics.Middleware)

	// === Static files and metrics ===
	uploads := http.FileServer(intake.FileSystem())
	s.router.Handle(handler.UploadsPath+"*", http.StripPrefix(handler.UploadsPath, uploads))
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// === Public pages ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(s.auth))
		r.Get("/", pages.HandleLanding)
		r.Get("/login", authHandler.HandleLoginPage)
		r.Get("/register", authHandler.HandleRegisterPage)
		r.With(middleware.RateLimit(loginLimiter)).Post("/login", authHandler.HandleLogin)
		r.Post("/register", authHandler.HandleRegister)
	})

	// === Authenticated routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(s.auth))

		r.Post("/logout", authHandler.HandleLogout)

		r.Route("/api", func(r chi.Router) {
			r.Get("/me", authHandler.HandleMe)
			r.Delete("/account", authHandler.HandleDeleteAccount)

			r.Get("/plants", plantHandler.HandleList)
			r.Post("/plants", plantHandler.HandleCreate)
			r.Get("/plants/{id}", plantHandler.HandleDetail)
			r.Post("/plants/{id}", plantHandler.HandleUpdate)
			r.Post("/plants/{id}/delete", plantHandler.HandleDelete)
			r.Post("/plants/{id}/care-events", ledgerHandler.HandleAddCareEvent)
			r.Post("/plants/{id}/journal-entries", ledgerHandler.HandleAddJournalEntry)

			r.Post("/care-events/{id}/delete", ledgerHandler.HandleDeleteCareEvent)
			r.Post("/journal-entries/{id}/delete", ledgerHandler.HandleDeleteJournalEntry)
		})
	})

	return nil
}

// setupJobs registers the periodic work: the watering reminder scan and
// expired-session cleanup.
func (s *Server) setupJobs() error {
	s.runner.RunAtStart = true
	if err := s.runner.Every("reminder-scan", s.config.Reminder.Interval, s.scanner.Run); err != nil {
		return err
	}
	return s.runner.Every("session-prune", s.config.Reminder.SessionPruneInterval, s.pruneSessions)
}

func (s *Server) pruneSessions(ctx context.Context) {
	n, err := s.auth.PruneSessions(ctx)
	if err != nil {
		s.logger.Error("session prune failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		s.logger.Info("expired sessions removed", slog.Int64("count", n))
	}
}

// Start runs the HTTP server and the job runner until SIGINT or SIGTERM,
// then shuts both down gracefully.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Stop the job runner, waiting for a running scan to return
// 4. Close the database connection (flushes WAL, releases file lock)
//
// The HTTP server and the runner share one errgroup context: if the server
// fails to start, the runner is stopped too.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("database", s.config.Database.Path),
			slog.String("uploads", s.config.Storage.UploadDir),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.runner.Start(ctx)
		<-ctx.Done()

		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		s.runner.Stop()
		if err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}

// Close releases the database for a Server that was never started.
func (s *Server) Close() error {
	s.runner.Stop()
	return s.db.Close()
}
