package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bimdex/internal/engine"
	bimerrors "bimdex/internal/errors"
	"bimdex/internal/history"
	"bimdex/internal/version"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Loaded    bool      `json:"loaded"`
}

// StatusResponse represents the system status response
type StatusResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version"`
	Load      *engine.Status `json:"load,omitempty"`
}

// LoadRequest is the POST /v1/load payload. Empty paths fall back to
// the configured defaults.
type LoadRequest struct {
	SnapshotPath string `json:"snapshotPath"`
	MetadataPath string `json:"metadataPath,omitempty"`
}

// ToggleResponse reports the visibility applied by a toggle.
type ToggleResponse struct {
	ID      string `json:"id"`
	Scope   string `json:"scope"`
	Visible bool   `json:"visible"`
	Count   int    `json:"count"`
}

// HistoryResponse wraps a list of history records.
type HistoryResponse struct {
	Records []*history.LoadRecord `json:"records"`
	Total   int                   `json:"total"`
}

// handleHealth responds to liveness checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}

	WriteJSON(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
	}, http.StatusOK)
}

// handleReady responds to readiness checks: ready once a model is loaded
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}

	loaded := s.engine.Loaded()
	status := "ready"
	statusCode := http.StatusOK
	if !loaded {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	WriteJSON(w, ReadyResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Loaded:    loaded,
	}, statusCode)
}

// handleStatus reports the active load
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}

	response := StatusResponse{
		Status:    "idle",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
	}
	if load, err := s.engine.Status(); err == nil {
		response.Status = "loaded"
		response.Load = load
	}

	WriteJSON(w, response, http.StatusOK)
}

// TreeResponse carries the active browse tree plus visibility state.
type TreeResponse struct {
	Tree       interface{}     `json:"tree"`
	Visibility map[string]bool `json:"visibility"`
}

// handleTree returns the full browse tree
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}

	tree, visibility, err := s.engine.Tree()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	WriteJSON(w, TreeResponse{Tree: tree, Visibility: visibility}, http.StatusOK)
}

// handleSearch filters the browse tree by substring query
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}

	query := r.URL.Query().Get("q")
	filtered, err := s.engine.Search(query)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	WriteJSON(w, map[string]interface{}{
		"query":   query,
		"tree":    filtered,
		"matches": filtered.Len(),
	}, http.StatusOK)
}

// handleStats returns correlation statistics for the active load
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}

	status, err := s.engine.Status()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	WriteJSON(w, status, http.StatusOK)
}

// handleLoad triggers a load and records it in the history
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w)
		return
	}

	var req LoadRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			BadRequest(w, "invalid load request body")
			return
		}
	}

	result, err := s.engine.Load(engine.LoadOptions{
		SnapshotPath: req.SnapshotPath,
		MetadataPath: req.MetadataPath,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	if s.store != nil {
		if err := s.store.RecordLoad(history.FromLoadResult(result)); err != nil {
			s.logger.Warn("Failed to record load in history", map[string]interface{}{
				"loadId": result.LoadID,
				"error":  err.Error(),
			})
		}
	}

	// The tree is fetched separately; keep the load response small.
	result.Tree = nil
	result.Visibility = nil
	WriteJSON(w, result, http.StatusOK)
}

// handleToggleNode toggles visibility of a single node by identity
func (s *Server) handleToggleNode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w)
		return
	}

	identity := strings.TrimPrefix(r.URL.Path, "/v1/visibility/node/")
	if identity == "" {
		BadRequest(w, "missing node identity")
		return
	}

	visible, err := s.engine.ToggleNode(identity)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	WriteJSON(w, ToggleResponse{
		ID:      identity,
		Scope:   "node",
		Visible: visible,
		Count:   1,
	}, http.StatusOK)
}

// handleToggleGroup toggles visibility of a whole browse-tree group
func (s *Server) handleToggleGroup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w)
		return
	}

	groupID := strings.TrimPrefix(r.URL.Path, "/v1/visibility/group/")
	if groupID == "" {
		BadRequest(w, "missing group id")
		return
	}

	visible, count, err := s.engine.ToggleGroup(groupID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	WriteJSON(w, ToggleResponse{
		ID:      groupID,
		Scope:   "group",
		Visible: visible,
		Count:   count,
	}, http.StatusOK)
}

// handleHistory lists recent loads
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}
	if s.store == nil {
		s.writeEngineError(w, bimerrors.New(bimerrors.HistoryUnavailable, "load history is disabled", nil))
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			BadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	records, err := s.store.List(limit)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	WriteJSON(w, HistoryResponse{Records: records, Total: len(records)}, http.StatusOK)
}

// handleHistoryGet returns one history record by load id
func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}
	if s.store == nil {
		s.writeEngineError(w, bimerrors.New(bimerrors.HistoryUnavailable, "load history is disabled", nil))
		return
	}

	loadID := strings.TrimPrefix(r.URL.Path, "/v1/history/")
	if loadID == "" {
		BadRequest(w, "missing load id")
		return
	}

	record, err := s.store.Get(loadID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if record == nil {
		s.writeEngineError(w, bimerrors.Newf(bimerrors.HistoryNotFound, "no history record for load %s", loadID))
		return
	}

	WriteJSON(w, record, http.StatusOK)
}

// writeEngineError maps an engine error onto the HTTP response and the
// error counter.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	if s.metrics != nil {
		s.metrics.RecordError(string(bimerrors.CodeOf(err)))
	}
	WriteBimError(w, err)
}
