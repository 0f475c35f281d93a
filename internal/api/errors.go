package api

import (
	"encoding/json"
	"net/http"

	"bimdex/internal/errors"
)

// ErrorResponse represents an HTTP error response
type ErrorResponse struct {
	Error          string             `json:"error"`
	Code           string             `json:"code"`
	Details        interface{}        `json:"details,omitempty"`
	SuggestedFixes []errors.FixAction `json:"suggestedFixes,omitempty"`
}

// WriteError writes an error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := ErrorResponse{
		Error: err.Error(),
	}

	// If it's a bimdex error, include additional information
	if bimErr, ok := err.(*errors.Error); ok {
		resp.Code = string(bimErr.Code)
		resp.Details = bimErr.Details
		resp.SuggestedFixes = bimErr.SuggestedFixes
	} else {
		resp.Code = string(errors.InternalError)
	}

	json.NewEncoder(w).Encode(resp)
}

// WriteBimError writes a bimdex error with automatic status code mapping
func WriteBimError(w http.ResponseWriter, err error) {
	WriteError(w, err, MapErrorToStatus(errors.CodeOf(err)))
}

// MapErrorToStatus maps bimdex error codes to HTTP status codes
func MapErrorToStatus(code errors.ErrorCode) int {
	switch code {
	case errors.SnapshotNotFound:
		return http.StatusNotFound // 404
	case errors.SnapshotInvalid:
		return http.StatusUnprocessableEntity // 422
	case errors.MetadataInvalid:
		return http.StatusUnprocessableEntity // 422
	case errors.SceneEmpty:
		return http.StatusUnprocessableEntity // 422
	case errors.LoadSuperseded:
		return http.StatusConflict // 409
	case errors.NoActiveLoad:
		return http.StatusPreconditionFailed // 412
	case errors.NodeNotFound:
		return http.StatusNotFound // 404
	case errors.GroupNotFound:
		return http.StatusNotFound // 404
	case errors.HistoryUnavailable:
		return http.StatusServiceUnavailable // 503
	case errors.HistoryNotFound:
		return http.StatusNotFound // 404
	case errors.InvalidRequest:
		return http.StatusBadRequest // 400
	case errors.Unauthorized:
		return http.StatusUnauthorized // 401
	case errors.InternalError:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// BadRequest writes a 400 Bad Request error
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, &errors.Error{
		Code:    errors.InvalidRequest,
		Message: message,
	}, http.StatusBadRequest)
}

// MethodNotAllowed writes a 405 Method Not Allowed error
func MethodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

// InternalServerError writes a 500 Internal Server Error
func InternalServerError(w http.ResponseWriter, message string) {
	WriteError(w, &errors.Error{
		Code:    errors.InternalError,
		Message: message,
	}, http.StatusInternalServerError)
}
