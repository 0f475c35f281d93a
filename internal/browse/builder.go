package browse

import (
	"bimdex/internal/category"
	bimerrors "bimdex/internal/errors"
	"bimdex/internal/logging"
	"bimdex/internal/match"
	"bimdex/internal/metadata"
	"bimdex/internal/naming"
	"bimdex/internal/scene"
)

// TextTriangleLimit is the triangle count below which a renderable node
// is assumed to be an annotation or label rather than solid geometry.
const TextTriangleLimit = 100

// Stats summarizes one tree build
type Stats struct {
	Renderable   int            `json:"renderable"`
	Matched      int            `json:"matched"`
	Unmatched    int            `json:"unmatched"`
	MatchMethods map[string]int `json:"matchMethods,omitempty"`
	Groups       int            `json:"groups"`
	Categories   int            `json:"categories"`
	TextLike     int            `json:"textLike"`
}

// Builder assembles browse trees from scene graphs and metadata
type Builder struct {
	classifier *category.Classifier
	logger     *logging.Logger
}

// NewBuilder creates a tree builder
func NewBuilder(classifier *category.Classifier, logger *logging.Logger) *Builder {
	return &Builder{classifier: classifier, logger: logger}
}

// Build walks the scene graph once, resolves every renderable node
// against the metadata index, derives display names and categories,
// and partitions the results into a browse tree: one tree node per
// structural group when the graph is well-grouped, category buckets
// for everything left over. The returned visibility map is seeded from
// each node's visibility at build time.
func (b *Builder) Build(root *scene.Node, idx *metadata.Index) (*Tree, VisibilityMap, *Stats, error) {
	if root == nil {
		return nil, nil, nil, bimerrors.New(bimerrors.SceneEmpty, "no scene graph to build from", nil)
	}

	// Pre-pass: flag low-triangle nodes as text-like. The flag lives in
	// an engine-owned side table, never on the scene nodes themselves.
	textLike := make(map[string]bool)
	var renderable []*scene.Node
	root.Walk(func(n *scene.Node) {
		if !n.Renderable {
			return
		}
		renderable = append(renderable, n)
		if n.TriangleCount() < TextTriangleLimit {
			textLike[n.Identity] = true
		}
	})

	if len(renderable) == 0 {
		return nil, nil, nil, bimerrors.New(bimerrors.SceneEmpty, "scene graph has no renderable nodes", nil)
	}

	stats := &Stats{
		Renderable:   len(renderable),
		TextLike:     len(textLike),
		MatchMethods: make(map[string]int),
	}

	// Resolve, name and classify every renderable node once
	entries := make(map[string]*Entry, len(renderable))
	for _, n := range renderable {
		result := match.Resolve(n, idx)
		var rec *metadata.Record
		if result != nil {
			rec = result.Record
			stats.Matched++
			stats.MatchMethods[string(result.Method)]++
		} else {
			stats.Unmatched++
		}

		displayName := naming.Derive(n, rec, n.OrdinalWithinParent())
		entries[n.Identity] = &Entry{
			Identity:    n.Identity,
			DisplayName: displayName,
			Category:    b.classifier.Classify(n, displayName, rec, textLike[n.Identity]),
			Path:        n.Path(),
			Node:        n,
		}
	}

	tree := &Tree{}
	claimed := make(map[string]bool)

	// Group pass: only when the graph is well-grouped. Groups are
	// visited in the graph's native pre-order; each renderable node
	// belongs to the first group whose subtree contains it.
	groups := groupCandidates(root)
	if len(groups) > 1 {
		for _, g := range groups {
			var items []*Entry
			g.Walk(func(n *scene.Node) {
				if !n.Renderable || claimed[n.Identity] {
					return
				}
				claimed[n.Identity] = true
				items = append(items, entries[n.Identity])
			})
			if len(items) == 0 {
				continue
			}

			label := naming.Clean(g.Name)
			if !naming.NonTrivial(label) {
				label = items[0].Category
			}
			tree.Nodes = append(tree.Nodes, &TreeNode{
				ID:          g.Identity,
				DisplayName: label,
				Kind:        KindGroup,
				Items:       items,
			})
			stats.Groups++
		}
	}

	// Category pass: bucket everything no group claimed, in pre-order,
	// one tree node per distinct category in first-appearance order.
	buckets := make(map[string]*TreeNode)
	for _, n := range renderable {
		if claimed[n.Identity] {
			continue
		}
		e := entries[n.Identity]
		bucket, ok := buckets[e.Category]
		if !ok {
			bucket = &TreeNode{
				ID:          e.Category,
				DisplayName: e.Category,
				Kind:        KindCategory,
			}
			buckets[e.Category] = bucket
			tree.Nodes = append(tree.Nodes, bucket)
			stats.Categories++
		}
		bucket.Items = append(bucket.Items, e)
	}

	visibility := make(VisibilityMap, len(renderable))
	for _, n := range renderable {
		visibility[n.Identity] = n.Visible
	}

	b.logger.Debug("browse tree built", map[string]interface{}{
		"renderable": stats.Renderable,
		"matched":    stats.Matched,
		"groups":     stats.Groups,
		"categories": stats.Categories,
		"text_like":  stats.TextLike,
	})

	return tree, visibility, stats, nil
}

// groupCandidates returns the structural group nodes eligible for the
// group pass: non-renderable, not the scene root, with at least one
// renderable descendant, in pre-order.
func groupCandidates(root *scene.Node) []*scene.Node {
	var out []*scene.Node
	root.Walk(func(n *scene.Node) {
		if n.Renderable || n.IsRoot() {
			return
		}
		if n.HasRenderableDescendant() {
			out = append(out, n)
		}
	})
	return out
}
