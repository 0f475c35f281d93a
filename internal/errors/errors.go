// Package errors defines the stable error codes used across bimdex.
// Correlation itself is best-effort and never errors; these codes cover the
// boundaries around it (inputs, lookups, the load lifecycle, the API).
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// SceneEmpty indicates a scene with no renderable nodes
	SceneEmpty ErrorCode = "SCENE_EMPTY"
	// SnapshotNotFound indicates the scene snapshot file is missing
	SnapshotNotFound ErrorCode = "SNAPSHOT_NOT_FOUND"
	// SnapshotInvalid indicates the scene snapshot could not be decoded
	SnapshotInvalid ErrorCode = "SNAPSHOT_INVALID"
	// MetadataInvalid indicates the metadata payload could not be decoded
	MetadataInvalid ErrorCode = "METADATA_INVALID"
	// LoadSuperseded indicates a load finished after a newer load started
	LoadSuperseded ErrorCode = "LOAD_SUPERSEDED"
	// NoActiveLoad indicates no model has been loaded yet
	NoActiveLoad ErrorCode = "NO_ACTIVE_LOAD"
	// NodeNotFound indicates the node identity is not part of the current load
	NodeNotFound ErrorCode = "NODE_NOT_FOUND"
	// GroupNotFound indicates the group id is not part of the current tree
	GroupNotFound ErrorCode = "GROUP_NOT_FOUND"
	// HistoryUnavailable indicates the history store could not be opened
	HistoryUnavailable ErrorCode = "HISTORY_UNAVAILABLE"
	// HistoryNotFound indicates no history record exists for a load id
	HistoryNotFound ErrorCode = "HISTORY_NOT_FOUND"
	// InvalidRequest indicates a malformed API request
	InvalidRequest ErrorCode = "INVALID_REQUEST"
	// Unauthorized indicates a missing or invalid API token
	Unauthorized ErrorCode = "UNAUTHORIZED"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Command     string `json:"command,omitempty"`
	Safe        bool   `json:"safe,omitempty"`
	Description string `json:"description,omitempty"`
}

// Error is a bimdex error with a stable code, message, and optional cause.
type Error struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Newf creates a new Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// CodeOf extracts the ErrorCode from err, or InternalError when err is not a
// bimdex error.
func CodeOf(err error) ErrorCode {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return InternalError
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// errorActions maps error codes to suggested fix actions
var errorActions = map[ErrorCode][]FixAction{
	SnapshotNotFound: {
		{
			Command:     "bimdex doctor",
			Safe:        true,
			Description: "Check configured input paths",
		},
	},
	SnapshotInvalid: {
		{
			Command:     "bimdex doctor --check=scene",
			Safe:        true,
			Description: "Validate the scene snapshot document",
		},
	},
	MetadataInvalid: {
		{
			Command:     "bimdex doctor --check=metadata",
			Safe:        true,
			Description: "Validate the metadata payload",
		},
	},
	NoActiveLoad: {
		{
			Command:     "bimdex load <snapshot>",
			Safe:        true,
			Description: "Load a model before querying it",
		},
	},
	HistoryUnavailable: {
		{
			Command:     "bimdex doctor --check=history",
			Safe:        true,
			Description: "Check the history database",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := errorActions[code]; ok {
		return fixes
	}
	return nil
}
