package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := New(SceneEmpty, "no renderable nodes in scene", nil)

	msg := err.Error()
	if !strings.Contains(msg, "SCENE_EMPTY") {
		t.Errorf("Error() should contain the code, got: %s", msg)
	}
	if !strings.Contains(msg, "no renderable nodes") {
		t.Errorf("Error() should contain the message, got: %s", msg)
	}
}

func TestErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("unexpected end of JSON input")
	err := New(SnapshotInvalid, "decoding snapshot", cause)

	if !strings.Contains(err.Error(), "unexpected end of JSON input") {
		t.Errorf("Error() should include cause, got: %s", err.Error())
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestNewf(t *testing.T) {
	err := Newf(NodeNotFound, "node %s not in current load", "abc123")
	if !strings.Contains(err.Error(), "abc123") {
		t.Errorf("Newf should format the message, got: %s", err.Error())
	}
}

func TestCodeOf(t *testing.T) {
	err := New(GroupNotFound, "missing group", nil)
	if CodeOf(err) != GroupNotFound {
		t.Errorf("CodeOf = %s, want GROUP_NOT_FOUND", CodeOf(err))
	}

	wrapped := fmt.Errorf("handler: %w", err)
	if CodeOf(wrapped) != GroupNotFound {
		t.Error("CodeOf should see through wrapping")
	}

	plain := fmt.Errorf("plain error")
	if CodeOf(plain) != InternalError {
		t.Error("CodeOf on a plain error should be INTERNAL_ERROR")
	}
}

func TestHasCode(t *testing.T) {
	err := New(SceneEmpty, "empty", nil)
	if !HasCode(err, SceneEmpty) {
		t.Error("HasCode should match the code")
	}
	if HasCode(err, NodeNotFound) {
		t.Error("HasCode should not match a different code")
	}
	if HasCode(nil, SceneEmpty) {
		t.Error("HasCode on nil should be false")
	}
}

func TestSuggestedFixes(t *testing.T) {
	err := New(SnapshotNotFound, "missing file", nil)
	if len(err.SuggestedFixes) == 0 {
		t.Fatal("SnapshotNotFound should carry suggested fixes")
	}
	if err.SuggestedFixes[0].Command == "" {
		t.Error("suggested fix should name a command")
	}

	if fixes := GetSuggestedFixes(LoadSuperseded); fixes != nil {
		t.Error("LoadSuperseded has no fixes configured")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(MetadataInvalid, "bad payload", nil).WithDetails(map[string]string{"path": "meta.json"})
	details, ok := err.Details.(map[string]string)
	if !ok || details["path"] != "meta.json" {
		t.Error("WithDetails should attach details")
	}
}
