package match

import (
	"strings"

	"bimdex/internal/metadata"
	"bimdex/internal/scene"
)

// Method records which strategy produced a match
type Method string

const (
	MethodGUIDSubstring Method = "guid-substring"
	MethodNumericID     Method = "numeric-id"
)

// Result is a successful node-to-record resolution
type Result struct {
	Record    *metadata.Record `json:"record"`
	Method    Method           `json:"method"`
	Candidate string           `json:"candidate"`
}

// Resolve matches a scene node against the metadata index. Strategies
// run in strict order and short-circuit on the first hit:
//
//  1. each GUID candidate is scanned against every record, accepting
//     the first record whose externalId contains the candidate
//     case-insensitively (external ids may be composite tokens),
//  2. each numeric candidate is looked up directly by element id.
//
// Returns nil when the index is empty or nothing matched. The scan in
// step 1 follows the index's stable iteration order, so resolution is
// deterministic for identical inputs.
func Resolve(node *scene.Node, idx *metadata.Index) *Result {
	if idx.Len() == 0 {
		return nil
	}

	candidates := Candidates(node)

	for _, c := range candidates {
		if c.Kind != KindGUID {
			continue
		}
		needle := strings.ToLower(c.Value)
		for _, rec := range idx.Records() {
			if strings.Contains(strings.ToLower(rec.ExternalID), needle) {
				return &Result{Record: rec, Method: MethodGUIDSubstring, Candidate: c.Value}
			}
		}
	}

	for _, c := range candidates {
		if c.Kind != KindNumeric {
			continue
		}
		if rec, ok := idx.Get(c.Value); ok {
			return &Result{Record: rec, Method: MethodNumericID, Candidate: c.Value}
		}
	}

	return nil
}
