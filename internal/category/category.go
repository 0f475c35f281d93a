package category

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"

	"bimdex/internal/metadata"
	"bimdex/internal/scene"
)

// Category labels produced outside the keyword table
const (
	GenericModels   = "Generic Models"
	TextAnnotations = "Text & Annotations"
)

// ancestorMaxDepth caps the ancestor walk in the keyword fallback
const ancestorMaxDepth = 3

//go:embed categories.toml
var defaultTableTOML []byte

// Rule associates a category label with its keyword substrings
type Rule struct {
	Label    string   `toml:"label"`
	Keywords []string `toml:"keywords"`
}

// Table holds the discipline code map and the ordered keyword rules.
// Rule order is significant: the first matching rule wins.
type Table struct {
	Codes map[string]string `toml:"codes"`
	Rules []Rule            `toml:"rule"`
}

var (
	defaultTableOnce sync.Once
	defaultTable     *Table
	defaultTableErr  error
)

// DefaultTable returns the embedded category table
func DefaultTable() (*Table, error) {
	defaultTableOnce.Do(func() {
		defaultTable, defaultTableErr = ParseTable(defaultTableTOML)
	})
	return defaultTable, defaultTableErr
}

// LoadTable reads a category table override from a TOML file
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read category table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes a category table and lowercases all keywords so
// matching stays case-insensitive regardless of how the file is written.
func ParseTable(data []byte) (*Table, error) {
	var table Table
	if err := toml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse category table: %w", err)
	}

	for i := range table.Rules {
		for j, keyword := range table.Rules[i].Keywords {
			table.Rules[i].Keywords[j] = strings.ToLower(keyword)
		}
	}

	return &table, nil
}

// Classifier assigns discipline categories to scene nodes
type Classifier struct {
	table *Table
}

// NewClassifier creates a classifier over the given table
func NewClassifier(table *Table) *Classifier {
	return &Classifier{table: table}
}

// MapCode maps a raw discipline code through the code table; unmapped
// codes pass through unchanged.
func (c *Classifier) MapCode(code string) string {
	if label, ok := c.table.Codes[code]; ok {
		return label
	}
	return code
}

// Classify assigns a category to a node. Order: matched record's
// mapped discipline code, the text-like flag, keyword matching over the
// node's own strings, keyword matching over up to three ancestor names
// nearest-first, then the default bucket.
func (c *Classifier) Classify(node *scene.Node, displayName string, rec *metadata.Record, textLike bool) string {
	if rec != nil && rec.Category != "" {
		return c.MapCode(rec.Category)
	}

	if textLike {
		return TextAnnotations
	}

	search := strings.ToLower(strings.Join([]string{
		displayName,
		node.Name,
		node.GeometryName,
		strings.Join(node.MaterialNames, " "),
	}, " "))
	if label, ok := c.matchKeywords(search); ok {
		return label
	}

	for _, ancestor := range node.Ancestors(ancestorMaxDepth) {
		if label, ok := c.matchKeywords(strings.ToLower(ancestor.Name)); ok {
			return label
		}
	}

	return GenericModels
}

func (c *Classifier) matchKeywords(search string) (string, bool) {
	for _, rule := range c.table.Rules {
		for _, keyword := range rule.Keywords {
			if keyword != "" && strings.Contains(search, keyword) {
				return rule.Label, true
			}
		}
	}
	return "", false
}
