package match

import (
	"testing"

	"bimdex/internal/scene"
)

func TestCandidates_GUIDFromName(t *testing.T) {
	node := &scene.Node{Name: "Wall [3f2a91bc-0000-4fd1-a2b3-9e8d7c6b5a40]"}

	got := Candidates(node)
	if len(got) != 1 {
		t.Fatalf("Candidates() returned %d, want 1", len(got))
	}
	if got[0].Kind != KindGUID {
		t.Errorf("Kind = %q, want %q", got[0].Kind, KindGUID)
	}
	if got[0].Value != "3f2a91bc-0000-4fd1-a2b3-9e8d7c6b5a40" {
		t.Errorf("Value = %q", got[0].Value)
	}
	if got[0].Source != "name" {
		t.Errorf("Source = %q, want %q", got[0].Source, "name")
	}
}

func TestCandidates_GUIDWithTrailingSegment(t *testing.T) {
	node := &scene.Node{Name: "00000000-0000-0000-0000-000000000001-abcdef12"}

	got := Candidates(node)
	if len(got) != 1 {
		t.Fatalf("Candidates() returned %d, want 1", len(got))
	}
	if got[0].Value != "00000000-0000-0000-0000-000000000001-abcdef12" {
		t.Errorf("trailing 8-hex segment should be captured, got %q", got[0].Value)
	}
}

func TestCandidates_FieldOrder(t *testing.T) {
	node := &scene.Node{
		Name:          "plain name",
		GeometryName:  "geo-aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		MaterialNames: []string{"mat-11111111-2222-3333-4444-555555555555"},
	}

	got := Candidates(node)
	if len(got) != 2 {
		t.Fatalf("Candidates() returned %d, want 2", len(got))
	}
	if got[0].Source != "geometry" || got[1].Source != "material" {
		t.Errorf("order = [%s %s], want [geometry material]", got[0].Source, got[1].Source)
	}
}

func TestCandidates_PrefixedNumeric(t *testing.T) {
	tests := []struct {
		name  string
		node  string
		want  string
		found bool
	}{
		{"element underscore", "Wall-Element_4821-mesh", "4821", true},
		{"element dash", "element-99", "99", true},
		{"id underscore", "ID_123", "123", true},
		{"id dash", "id-456", "456", true},
		{"mixed case", "ELEMENT_77", "77", true},
		{"no digits", "Element_", "", false},
		{"embedded id not a prefix", "Grid-42", "", false},
		{"plain digits", "4821", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Candidates(&scene.Node{Name: tt.node})

			var numeric *Candidate
			for i := range got {
				if got[i].Kind == KindNumeric {
					numeric = &got[i]
					break
				}
			}

			if tt.found {
				if numeric == nil {
					t.Fatalf("no numeric candidate extracted from %q", tt.node)
				}
				if numeric.Value != tt.want {
					t.Errorf("Value = %q, want %q", numeric.Value, tt.want)
				}
			} else if numeric != nil {
				t.Errorf("unexpected numeric candidate %q from %q", numeric.Value, tt.node)
			}
		})
	}
}

func TestCandidates_Annotations(t *testing.T) {
	node := &scene.Node{
		Name: "Unnamed",
		Annotations: map[string]string{
			"identifier": "cafebabe-dead-beef-f00d-0123456789ab",
			"dbid":       "8890",
		},
	}

	got := Candidates(node)
	if len(got) != 2 {
		t.Fatalf("Candidates() returned %d, want 2", len(got))
	}
	if got[0].Kind != KindGUID || got[0].Value != "cafebabe-dead-beef-f00d-0123456789ab" {
		t.Errorf("first candidate = %+v, want annotation GUID", got[0])
	}
	if got[1].Kind != KindNumeric || got[1].Value != "8890" {
		t.Errorf("second candidate = %+v, want raw numeric annotation", got[1])
	}
}

func TestCandidates_GUIDsPrecedeNumerics(t *testing.T) {
	node := &scene.Node{
		Name:         "Element_4821",
		GeometryName: "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
	}

	got := Candidates(node)
	if len(got) != 2 {
		t.Fatalf("Candidates() returned %d, want 2", len(got))
	}
	if got[0].Kind != KindGUID {
		t.Errorf("first candidate kind = %q, want %q", got[0].Kind, KindGUID)
	}
	if got[1].Kind != KindNumeric {
		t.Errorf("second candidate kind = %q, want %q", got[1].Kind, KindNumeric)
	}
}

func TestCandidates_Dedup(t *testing.T) {
	node := &scene.Node{
		Name:         "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		GeometryName: "AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE",
	}

	got := Candidates(node)
	if len(got) != 1 {
		t.Errorf("Candidates() returned %d, want 1 (case-insensitive dedup)", len(got))
	}
}

func TestCandidates_NilAndEmpty(t *testing.T) {
	if got := Candidates(nil); got != nil {
		t.Errorf("Candidates(nil) = %v, want nil", got)
	}
	if got := Candidates(&scene.Node{Name: "Plain Wall"}); len(got) != 0 {
		t.Errorf("Candidates() returned %d, want 0", len(got))
	}
}
