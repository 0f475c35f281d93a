package match

import (
	"encoding/json"
	"testing"

	"bimdex/internal/metadata"
	"bimdex/internal/scene"
)

func indexFrom(t *testing.T, payload string) *metadata.Index {
	t.Helper()
	var v interface{}
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		t.Fatalf("bad test payload: %v", err)
	}
	return metadata.Parse(v)
}

func TestResolve_GUIDSubstring(t *testing.T) {
	idx := indexFrom(t, `{"objects": [
		{"objectid": 1, "externalId": "00000000-0000-0000-0000-000000000001-abcdef12"},
		{"objectid": 2, "externalId": "00000000-0000-0000-0000-000000000002-abcdef12"}
	]}`)

	node := &scene.Node{Name: "Mesh 00000000-0000-0000-0000-000000000001 solid"}

	got := Resolve(node, idx)
	if got == nil {
		t.Fatal("Resolve() = nil, want match")
	}
	if got.Record.ElementID != "1" {
		t.Errorf("matched element %s, want 1", got.Record.ElementID)
	}
	if got.Method != MethodGUIDSubstring {
		t.Errorf("Method = %q, want %q", got.Method, MethodGUIDSubstring)
	}
}

func TestResolve_GUIDCaseInsensitive(t *testing.T) {
	idx := indexFrom(t, `{"objects": [
		{"objectid": 1, "externalId": "CAFEBABE-DEAD-BEEF-F00D-0123456789AB"}
	]}`)

	node := &scene.Node{Name: "cafebabe-dead-beef-f00d-0123456789ab"}

	if got := Resolve(node, idx); got == nil || got.Record.ElementID != "1" {
		t.Errorf("Resolve() = %+v, want case-insensitive match on element 1", got)
	}
}

func TestResolve_FirstInIndexOrder(t *testing.T) {
	// Both records contain the candidate; the first in index order wins
	idx := indexFrom(t, `{"objects": [
		{"objectid": 10, "externalId": "prefix-aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"},
		{"objectid": 11, "externalId": "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee-suffix01"}
	]}`)

	node := &scene.Node{Name: "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"}

	got := Resolve(node, idx)
	if got == nil || got.Record.ElementID != "10" {
		t.Errorf("Resolve() matched %+v, want first record in index order", got)
	}
}

func TestResolve_NumericFallback(t *testing.T) {
	idx := indexFrom(t, `{"objects": [
		{"objectid": 4821, "externalId": "no-guid-here", "properties": {"Family": "Basic Wall"}}
	]}`)

	node := &scene.Node{Name: "Wall-Element_4821-mesh"}

	got := Resolve(node, idx)
	if got == nil {
		t.Fatal("Resolve() = nil, want numeric match")
	}
	if got.Method != MethodNumericID {
		t.Errorf("Method = %q, want %q", got.Method, MethodNumericID)
	}
	if got.Record.FamilyName != "Basic Wall" {
		t.Errorf("matched wrong record: %+v", got.Record)
	}
}

func TestResolve_GUIDBeatsNumeric(t *testing.T) {
	idx := indexFrom(t, `{"objects": [
		{"objectid": 4821, "externalId": "not-matching"},
		{"objectid": 5, "externalId": "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"}
	]}`)

	node := &scene.Node{
		Name:         "Element_4821",
		GeometryName: "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
	}

	got := Resolve(node, idx)
	if got == nil || got.Record.ElementID != "5" {
		t.Errorf("Resolve() = %+v, want GUID strategy to win", got)
	}
}

func TestResolve_NoMatch(t *testing.T) {
	idx := indexFrom(t, `{"objects": [
		{"objectid": 1, "externalId": "11111111-2222-3333-4444-555555555555"}
	]}`)

	if got := Resolve(&scene.Node{Name: "Unrelated"}, idx); got != nil {
		t.Errorf("Resolve() = %+v, want nil", got)
	}
}

func TestResolve_EmptyIndex(t *testing.T) {
	node := &scene.Node{Name: "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"}

	if got := Resolve(node, metadata.NewIndex()); got != nil {
		t.Errorf("Resolve() on empty index = %+v, want nil", got)
	}
	if got := Resolve(node, nil); got != nil {
		t.Errorf("Resolve() on nil index = %+v, want nil", got)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	idx := indexFrom(t, `{"objects": [
		{"objectid": 1, "externalId": "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"},
		{"objectid": 2, "externalId": "bbbbbbbb-bbbb-cccc-dddd-eeeeeeeeeeee"},
		{"objectid": 3, "externalId": "cccccccc-bbbb-cccc-dddd-eeeeeeeeeeee"}
	]}`)

	node := &scene.Node{
		Name:        "bbbbbbbb-bbbb-cccc-dddd-eeeeeeeeeeee",
		Annotations: map[string]string{"dbid": "3"},
	}

	first := Resolve(node, idx)
	if first == nil {
		t.Fatal("Resolve() = nil, want match")
	}
	for i := 0; i < 10; i++ {
		again := Resolve(node, idx)
		if again == nil || again.Record != first.Record || again.Method != first.Method {
			t.Fatalf("Resolve() is not deterministic: first=%+v again=%+v", first, again)
		}
	}
}
