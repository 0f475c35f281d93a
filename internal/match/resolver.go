package match

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"bimdex/internal/scene"
)

// CandidateKind distinguishes how a candidate identifier is matched
type CandidateKind string

const (
	KindGUID    CandidateKind = "guid"
	KindNumeric CandidateKind = "numeric"
)

// Candidate is one identifier extracted from a scene node
type Candidate struct {
	Value  string        `json:"value"`
	Kind   CandidateKind `json:"kind"`
	Source string        `json:"source"`
}

var (
	// 8-4-4-4-12 hex segments, optionally with a trailing 8-hex segment
	guidPattern = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}(?:-[0-9a-f]{8})?`)

	// Element_123, ID_456, element-123, id-456
	numericIDPattern = regexp.MustCompile(`(?i)\b(?:element|id)[_-](\d+)`)

	// digitsOnly accepts raw numeric annotation values
	digitsOnly = regexp.MustCompile(`^\d+$`)
)

// Annotation keys that may carry identifiers, in priority order
var identifierAnnotationKeys = []string{
	"identifier", "id", "elementid", "element_id", "dbid", "externalid", "guid",
}

// Candidates extracts identifier candidates from a node, most specific
// first: GUID-shaped tokens from name, geometry name, material names,
// stringified numeric id and identifier annotations, then prefixed
// numeric ids from name and geometry name, then raw numeric annotations.
// One match is taken per field; duplicates are dropped.
func Candidates(node *scene.Node) []Candidate {
	if node == nil {
		return nil
	}

	var out []Candidate
	seen := make(map[string]bool)

	add := func(value string, kind CandidateKind, source string) {
		if value == "" {
			return
		}
		key := string(kind) + ":" + strings.ToLower(value)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Candidate{Value: value, Kind: kind, Source: source})
	}

	annotations := identifierAnnotations(node)

	// GUID-shaped tokens, fixed field order
	add(guidPattern.FindString(node.Name), KindGUID, "name")
	add(guidPattern.FindString(node.GeometryName), KindGUID, "geometry")
	for _, material := range node.MaterialNames {
		add(guidPattern.FindString(material), KindGUID, "material")
	}
	add(guidPattern.FindString(strconv.FormatInt(node.ID, 10)), KindGUID, "id")
	for _, value := range annotations {
		add(guidPattern.FindString(value), KindGUID, "annotation")
	}

	// Prefixed numeric ids
	if m := numericIDPattern.FindStringSubmatch(node.Name); m != nil {
		add(m[1], KindNumeric, "name")
	}
	if m := numericIDPattern.FindStringSubmatch(node.GeometryName); m != nil {
		add(m[1], KindNumeric, "geometry")
	}

	// Raw numeric annotations
	for _, value := range annotations {
		if digitsOnly.MatchString(value) {
			add(value, KindNumeric, "annotation")
		}
	}

	return out
}

// identifierAnnotations returns the values of identifier-like annotation
// keys in a deterministic priority order.
func identifierAnnotations(node *scene.Node) []string {
	if len(node.Annotations) == 0 {
		return nil
	}

	// Lowercase the keys; on case collisions the lexicographically
	// first original key wins.
	byLower := make(map[string]string, len(node.Annotations))
	keys := make([]string, 0, len(node.Annotations))
	for k := range node.Annotations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lower := strings.ToLower(k)
		if _, taken := byLower[lower]; !taken {
			byLower[lower] = node.Annotations[k]
		}
	}

	var values []string
	for _, key := range identifierAnnotationKeys {
		if v, ok := byLower[key]; ok && v != "" {
			values = append(values, v)
		}
	}
	return values
}
