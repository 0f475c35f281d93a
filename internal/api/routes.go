package api

import (
	"net/http"

	"bimdex/internal/version"
)

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	// Health and readiness checks
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/ready", s.handleReady)

	// System status
	s.router.HandleFunc("/status", s.handleStatus)

	// Browse tree operations
	s.router.HandleFunc("/v1/tree", s.handleTree)
	s.router.HandleFunc("/v1/search", s.handleSearch) // GET /v1/search?q=...
	s.router.HandleFunc("/v1/stats", s.handleStats)

	// Load control
	s.router.HandleFunc("/v1/load", s.handleLoad) // POST

	// Visibility toggles
	s.router.HandleFunc("/v1/visibility/node/", s.handleToggleNode)   // POST /v1/visibility/node/:identity
	s.router.HandleFunc("/v1/visibility/group/", s.handleToggleGroup) // POST /v1/visibility/group/:id

	// Load history
	s.router.HandleFunc("/v1/history", s.handleHistory)     // GET ?limit=N
	s.router.HandleFunc("/v1/history/", s.handleHistoryGet) // GET /v1/history/:id

	// Prometheus metrics
	if endpoint := s.metricsEndpoint(); endpoint != "" {
		s.router.HandleFunc(endpoint, s.handleMetrics)
	}

	// Root endpoint
	s.router.HandleFunc("/", s.handleRoot)
}

func (s *Server) metricsEndpoint() string {
	if !s.metricsEnabled() {
		return ""
	}
	if s.config != nil && s.config.Server.Metrics.Endpoint != "" {
		return s.config.Server.Metrics.Endpoint
	}
	return "/metrics"
}

// handleRoot handles requests to the root path
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	// Only handle exact root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}

	response := map[string]interface{}{
		"name":    "bimdex HTTP API",
		"version": version.Version,
		"endpoints": []string{
			"GET /health - Health check",
			"GET /ready - Readiness check (model loaded)",
			"GET /status - Active load status",
			"GET /v1/tree - Browse tree with visibility state",
			"GET /v1/search?q=query - Filter the browse tree",
			"GET /v1/stats - Correlation statistics",
			"POST /v1/load - Load a snapshot and its metadata",
			"POST /v1/visibility/node/:identity - Toggle one node",
			"POST /v1/visibility/group/:id - Toggle a whole group",
			"GET /v1/history?limit=N - Recent load history",
			"GET /v1/history/:id - One history record",
			"GET /metrics - Prometheus metrics",
		},
	}

	WriteJSON(w, response, http.StatusOK)
}
