// Package api exposes the correlation engine over HTTP: tree browsing,
// search, visibility toggles, load control, history, and metrics.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"bimdex/internal/config"
	"bimdex/internal/engine"
	"bimdex/internal/history"
	"bimdex/internal/logging"
)

// Server represents the HTTP API server
type Server struct {
	router  *http.ServeMux
	server  *http.Server
	addr    string
	logger  *logging.Logger
	engine  *engine.Engine
	store   *history.Store
	metrics *MetricsCollector
	config  *config.Config
}

// NewServer creates a new HTTP server instance. store and metrics are
// optional; a nil config disables auth and keeps metrics enabled.
func NewServer(addr string, eng *engine.Engine, store *history.Store, metrics *MetricsCollector, cfg *config.Config, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	s := &Server{
		addr:    addr,
		logger:  logger,
		engine:  eng,
		store:   store,
		metrics: metrics,
		config:  cfg,
		router:  http.NewServeMux(),
	}

	s.registerRoutes()

	handler := s.applyMiddleware(s.router)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", map[string]interface{}{
		"addr": s.addr,
	})

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server", nil)

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server shut down successfully", nil)
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

// applyMiddleware wraps the handler with middleware in the correct order
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	// Apply middleware in reverse order (last one wraps first)
	handler = RecoveryMiddleware(s.logger)(handler)
	if s.authEnabled() {
		handler = BearerAuthMiddleware(s.config.Server.Auth.TokenHash, s.logger)(handler)
	}
	if s.metricsEnabled() {
		handler = MetricsMiddleware(s.metrics)(handler)
	}
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware()(handler)
	handler = CORSMiddleware()(handler)
	return handler
}

func (s *Server) authEnabled() bool {
	return s.config != nil && s.config.Server.Auth.Enabled && s.config.Server.Auth.TokenHash != ""
}

func (s *Server) metricsEnabled() bool {
	if s.metrics == nil {
		return false
	}
	if s.config == nil {
		return true
	}
	return s.config.Server.Metrics.Enabled
}
