package naming

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"bimdex/internal/metadata"
	"bimdex/internal/scene"
)

// AncestorMaxDepth caps the ancestor walk in the display-name cascade
const AncestorMaxDepth = 3

// Generic exporter tokens stripped from the edges of raw names.
// Longer tokens come first so boundary checks see the full word.
var genericTokens = []string{
	"geometry", "element", "object", "shape", "mesh", "geom", "node",
}

// A run of four or more digits is treated as an element id
var digitRunPattern = regexp.MustCompile(`\d{4,}`)

const separatorCutset = " \t_-.:/\\|#()[]{}<>"

// Clean normalizes a raw node, geometry or material name. A digit run
// of four or more becomes "Element_<run>"; otherwise generic exporter
// tokens and separators are stripped from both edges.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if run := digitRunPattern.FindString(s); run != "" {
		return "Element_" + run
	}

	for {
		s = strings.Trim(s, separatorCutset)
		next, stripped := stripEdgeToken(s)
		if !stripped {
			break
		}
		s = next
	}
	return strings.Trim(s, separatorCutset)
}

// stripEdgeToken removes one generic token from either edge of s.
// Tokens are only stripped on a separator boundary, so "Meshuggah"
// keeps its name while "mesh_wall" loses its prefix.
func stripEdgeToken(s string) (string, bool) {
	if s == "" {
		return s, false
	}
	lower := strings.ToLower(s)

	for _, tok := range genericTokens {
		if strings.HasPrefix(lower, tok) {
			rest := s[len(tok):]
			if rest == "" || isSeparator(rest[0]) {
				return rest, true
			}
		}
		if strings.HasSuffix(lower, tok) {
			head := s[:len(s)-len(tok)]
			if head == "" || isSeparator(head[len(head)-1]) {
				return head, true
			}
		}
	}

	// Leading "id"/"ID" prefix
	if strings.HasPrefix(lower, "id") {
		rest := s[2:]
		if rest == "" || isSeparator(rest[0]) {
			return rest, true
		}
	}

	return s, false
}

func isSeparator(b byte) bool {
	return strings.IndexByte(separatorCutset, b) >= 0
}

// NonTrivial reports whether a cleaned name is worth displaying
func NonTrivial(s string) bool {
	if utf8.RuneCountInString(s) <= 2 {
		return false
	}
	lower := strings.ToLower(s)
	return lower != "node" && lower != "unnamed"
}

// Derive produces the display name for a node. Precedence: matched
// record's display name, cleaned geometry name, cleaned material names,
// cleaned node name, a named ancestor with the node's sibling ordinal
// appended, then a synthetic fallback from the identity token.
func Derive(node *scene.Node, rec *metadata.Record, ordinalWithinParent int) string {
	if rec != nil && rec.DisplayName != "" {
		return rec.DisplayName
	}

	if name := Clean(node.GeometryName); NonTrivial(name) {
		return name
	}

	for _, material := range node.MaterialNames {
		if name := Clean(material); NonTrivial(name) {
			return name
		}
	}

	if name := Clean(node.Name); NonTrivial(name) {
		return name
	}

	for _, ancestor := range node.Ancestors(AncestorMaxDepth) {
		if name := Clean(ancestor.Name); NonTrivial(name) {
			return fmt.Sprintf("%s_%d", name, ordinalWithinParent+1)
		}
	}

	return "Element_" + shortIdentity(node.Identity)
}

func shortIdentity(identity string) string {
	if len(identity) > 8 {
		return identity[:8]
	}
	return identity
}
