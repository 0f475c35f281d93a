package metadata

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Record is one normalized element description from the metadata payload
type Record struct {
	ElementID   string `json:"elementId"`
	ExternalID  string `json:"externalId"`
	FamilyName  string `json:"familyName,omitempty"`
	TypeName    string `json:"typeName,omitempty"`
	Category    string `json:"category,omitempty"`
	DisplayName string `json:"displayName"`
}

// Index maps element identifiers to Records. Iteration over Records()
// is stable: records keep the position of their first insertion even
// when a later duplicate element id overwrites the value.
type Index struct {
	records []*Record
	pos     map[string]int
}

// NewIndex returns an empty index
func NewIndex() *Index {
	return &Index{pos: make(map[string]int)}
}

// Len returns the number of indexed records
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.records)
}

// Get looks up a record by its element id
func (idx *Index) Get(elementID string) (*Record, bool) {
	if idx == nil {
		return nil, false
	}
	i, ok := idx.pos[elementID]
	if !ok {
		return nil, false
	}
	return idx.records[i], true
}

// Records returns all records in stable insertion order
func (idx *Index) Records() []*Record {
	if idx == nil {
		return nil
	}
	return idx.records
}

func (idx *Index) add(rec *Record) {
	if i, ok := idx.pos[rec.ElementID]; ok {
		// Last write wins, original position kept
		idx.records[i] = rec
		return
	}
	idx.pos[rec.ElementID] = len(idx.records)
	idx.records = append(idx.records, rec)
}

// Conventional root fields checked before walking the raw value itself
var rootFields = []string{"data", "objects"}

// Child-container list fields recursed into at every level
var childFields = []string{"objects", "children"}

// Element-pointer and external-identifier key spellings accepted on a leaf
var (
	elementKeys  = []string{"objectid", "objectId", "dbId", "elementId"}
	externalKeys = []string{"externalId", "externalID", "external_id", "guid"}
)

// Property labels accepted per concept, compared case-insensitively
var (
	familyLabels   = []string{"family", "family name", "familyname"}
	typeLabels     = []string{"type", "type name", "typename"}
	categoryLabels = []string{"category", "category name", "categoryname"}
)

// Parse builds an Index from an arbitrarily nested metadata payload.
// A nil payload is valid and yields an empty index. Malformed or
// partial input degrades to fewer records, never to an error.
func Parse(raw interface{}) *Index {
	idx := NewIndex()
	if raw == nil {
		return idx
	}

	root := raw
	if m, ok := raw.(map[string]interface{}); ok {
		for _, field := range rootFields {
			if v, present := m[field]; present && v != nil {
				root = v
				break
			}
		}
	}

	walk(root, idx)
	return idx
}

func walk(v interface{}, idx *Index) {
	switch t := v.(type) {
	case []interface{}:
		for _, item := range t {
			walk(item, idx)
		}
	case map[string]interface{}:
		elementID, hasElement := lookupKey(t, elementKeys)
		externalID, hasExternal := lookupKey(t, externalKeys)
		if hasElement && hasExternal {
			idx.add(buildRecord(elementID, externalID, t))
		}
		// Children are visited regardless of whether this was a leaf
		for _, field := range childFields {
			if child, present := t[field]; present {
				walk(child, idx)
			}
		}
	}
}

func lookupKey(m map[string]interface{}, keys []string) (string, bool) {
	for _, key := range keys {
		if v, present := m[key]; present {
			if s := stringify(v); s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func buildRecord(elementID, externalID string, m map[string]interface{}) *Record {
	family, typ, category := extractAttributes(m["properties"])
	rec := &Record{
		ElementID:  elementID,
		ExternalID: externalID,
		FamilyName: family,
		TypeName:   typ,
		Category:   category,
	}
	rec.DisplayName = deriveDisplayName(rec)
	return rec
}

// extractAttributes pulls family/type/category out of a property bag.
// The bag is either flat (label -> value) or sectioned (section name ->
// label map); sections are scanned in sorted name order so the result
// does not depend on map iteration order.
func extractAttributes(v interface{}) (family, typ, category string) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return
	}

	family, typ, category = lookupLabels(m)

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		section, isMap := m[name].(map[string]interface{})
		if !isMap {
			continue
		}
		f, t, c := lookupLabels(section)
		if family == "" {
			family = f
		}
		if typ == "" {
			typ = t
		}
		if category == "" {
			category = c
		}
	}
	return
}

func lookupLabels(m map[string]interface{}) (family, typ, category string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		s := stringify(m[k])
		if s == "" {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(k))
		switch {
		case family == "" && containsLabel(familyLabels, label):
			family = s
		case typ == "" && containsLabel(typeLabels, label):
			typ = s
		case category == "" && containsLabel(categoryLabels, label):
			category = s
		}
	}
	return
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

func deriveDisplayName(rec *Record) string {
	switch {
	case rec.FamilyName != "" && rec.TypeName != "":
		return rec.FamilyName + " - " + rec.TypeName
	case rec.FamilyName != "":
		return rec.FamilyName
	case rec.TypeName != "":
		return rec.TypeName
	default:
		return "Element_" + rec.ElementID
	}
}

// stringify renders scalar payload values as strings. JSON numbers
// arrive as float64; integral values must not pick up a ".0" suffix.
func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	default:
		return ""
	}
}
