package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the driving ports exposed over HTTP
type Services struct {
	Auth      driving.AuthService
	Documents driving.DocumentService
	Review    driving.ReviewService
	Pipeline  driving.PipelineTrigger
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	authService     driving.AuthService
	documentService driving.DocumentService
	reviewService   driving.ReviewService
	pipeline        driving.PipelineTrigger

	// Readiness checks by name (database, redis, ...)
	checks map[string]Pinger
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		AllowedOrigins: []string{"*"},
	}
}

// NewServer creates a new HTTP server. checks are pinged by /ready; nil
// entries are ignored.
func NewServer(cfg Config, svc Services, checks map[string]Pinger) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	live := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			live[name] = p
		}
	}

	s := &Server{
		router:          http.NewServeMux(),
		version:         cfg.Version,
		logger:          logger.With("component", "http"),
		authService:     svc.Auth,
		documentService: svc.Documents,
		reviewService:   svc.Review,
		pipeline:        svc.Pipeline,
		checks:          live,
	}
	s.setupRoutes()

	handler := NewRecoveryMiddleware(s.logger).Handler(
		NewLoggingMiddleware(s.logger).Handler(
			NewCORSMiddleware(cfg.AllowedOrigins).Handler(s.router)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService)
	authed := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(h)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(authMiddleware.RequireAdmin(h))
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Auth endpoints (public)
	s.router.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	s.router.Handle("GET /api/v1/me", authed(s.handleGetMe))

	// Documents
	s.router.Handle("GET /api/v1/documents", authed(s.handleListDocuments))
	s.router.Handle("GET /api/v1/documents/expired", authed(s.handleListExpiredDocuments))
	s.router.Handle("GET /api/v1/documents/{id}", authed(s.handleGetDocument))

	// Requests
	s.router.Handle("GET /api/v1/requests", authed(s.handleListRequests))
	s.router.Handle("GET /api/v1/requests/{id}", authed(s.handleGetRequest))
	s.router.Handle("GET /api/v1/requests/{id}/response", authed(s.handleGetRequestResponse))

	// Responses and the approval workflow
	s.router.Handle("GET /api/v1/responses", authed(s.handleListResponses))
	s.router.Handle("GET /api/v1/responses/{id}", authed(s.handleGetResponse))
	s.router.Handle("PUT /api/v1/responses/{id}/draft", authed(s.handleEditDraft))
	s.router.Handle("POST /api/v1/responses/{id}/approve", authed(s.handleApprove))
	s.router.Handle("POST /api/v1/responses/{id}/send", authed(s.handleSend))

	// Pipeline triggers (admin-only)
	s.router.Handle("POST /api/v1/indexing/run", admin(s.handleTriggerIndexing))
	s.router.Handle("POST /api/v1/intake/run", admin(s.handleTriggerIntake))
	s.router.Handle("POST /api/v1/drafts/retry", admin(s.handleTriggerDraftRetry))
	s.router.Handle("GET /api/v1/tasks/{id}", authed(s.handleGetTask))
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr, "version", s.version)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
