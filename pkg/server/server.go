package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nithins313/unbound2/pkg/approval"
	"github.com/nithins313/unbound2/pkg/audit"
	"github.com/nithins313/unbound2/pkg/config"
	"github.com/nithins313/unbound2/pkg/credits"
	"github.com/nithins313/unbound2/pkg/identity"
	"github.com/nithins313/unbound2/pkg/policy"
	"github.com/nithins313/unbound2/pkg/rules"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 15 * time.Second

// Dependencies are the engine components the HTTP surface exposes.
type Dependencies struct {
	Evaluator  *policy.Evaluator
	Identities identity.Registry
	Ledger     credits.Ledger
	Rules      *rules.Store
	Approvals  approval.Queue
	Audit      audit.Log
}

// Server is the HTTP API server.
type Server struct {
	cfg       *config.ServerConfig
	deps      Dependencies
	apiSecret string
	logger    *slog.Logger

	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates the API server.
func NewServer(cfg *config.ServerConfig, apiSecret string, deps Dependencies, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default().With("component", "server")
	}
	return &Server{
		cfg:          cfg,
		deps:         deps,
		apiSecret:    apiSecret,
		logger:       logger,
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting api server", "address", s.cfg.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", shutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("api server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is accepting requests.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Caller surface
	mux.Handle("POST /v1/execute", s.authMiddleware(http.HandlerFunc(s.handleExecute)))
	mux.Handle("GET /v1/credits", s.authMiddleware(http.HandlerFunc(s.handleCredits)))
	mux.Handle("GET /v1/history", s.authMiddleware(http.HandlerFunc(s.handleHistory)))

	// Admin surface
	admin := func(h http.HandlerFunc) http.Handler {
		return s.authMiddleware(s.adminMiddleware(h))
	}
	mux.Handle("POST /v1/admin/rules", admin(s.handleCreateRule))
	mux.Handle("GET /v1/admin/rules", admin(s.handleListRules))
	mux.Handle("DELETE /v1/admin/rules/{id}", admin(s.handleDeleteRule))
	mux.Handle("GET /v1/admin/approvals", admin(s.handleListApprovals))
	mux.Handle("PATCH /v1/admin/approvals/{id}", admin(s.handleDecideApproval))
	mux.Handle("DELETE /v1/admin/approvals/{id}", admin(s.handleDeleteApproval))
	mux.Handle("GET /v1/admin/logs", admin(s.handleListLogs))
	mux.Handle("POST /v1/admin/users", admin(s.handleCreateUser))
	mux.Handle("GET /v1/admin/users", admin(s.handleListUsers))
	mux.Handle("PATCH /v1/admin/users/{id}", admin(s.handleUpdateUser))
	mux.Handle("DELETE /v1/admin/users/{id}", admin(s.handleDeleteUser))

	// Operational surface
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = mux
	handler = requestIDMiddleware(handler)
	handler = loggingMiddleware(s.logger)(handler)
	handler = recoveryMiddleware(s.logger)(handler)
	return handler
}
