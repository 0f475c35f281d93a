package browse

import (
	"strings"

	"bimdex/internal/scene"
)

// NodeKind distinguishes structural groups from category buckets
type NodeKind string

const (
	KindGroup    NodeKind = "group"
	KindCategory NodeKind = "category"
)

// Entry is one renderable element in the browse tree
type Entry struct {
	Identity    string      `json:"identity"`
	DisplayName string      `json:"displayName"`
	Category    string      `json:"category"`
	Path        string      `json:"path"`
	Node        *scene.Node `json:"-"`
}

// TreeNode is one group or category bucket holding element entries
type TreeNode struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Kind        NodeKind `json:"kind"`
	Expanded    bool     `json:"expanded"`
	Items       []*Entry `json:"items"`
}

// Tree is the complete browse tree for one load
type Tree struct {
	Nodes []*TreeNode `json:"nodes"`
}

// VisibilityMap mirrors per-element visibility keyed by node identity
type VisibilityMap map[string]bool

// Len returns the total number of entries across all tree nodes
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, tn := range t.Nodes {
		n += len(tn.Items)
	}
	return n
}

// FindEntry looks up an entry by its node identity
func (t *Tree) FindEntry(identity string) *Entry {
	if t == nil {
		return nil
	}
	for _, tn := range t.Nodes {
		for _, e := range tn.Items {
			if e.Identity == identity {
				return e
			}
		}
	}
	return nil
}

// FindNode looks up a group or category bucket by its id
func (t *Tree) FindNode(id string) *TreeNode {
	if t == nil {
		return nil
	}
	for _, tn := range t.Nodes {
		if tn.ID == id {
			return tn
		}
	}
	return nil
}

// Filter returns a new tree containing only entries whose display name,
// or whose owning tree node's display name, contains the query
// case-insensitively. Tree nodes left with no entries are omitted. The
// input tree is never mutated; entries are shared, not copied.
func Filter(tree *Tree, query string) *Tree {
	if tree == nil {
		return nil
	}

	q := strings.ToLower(strings.TrimSpace(query))
	out := &Tree{}

	for _, tn := range tree.Nodes {
		var kept []*Entry
		if q == "" || strings.Contains(strings.ToLower(tn.DisplayName), q) {
			kept = append(kept, tn.Items...)
		} else {
			for _, e := range tn.Items {
				if strings.Contains(strings.ToLower(e.DisplayName), q) {
					kept = append(kept, e)
				}
			}
		}
		if len(kept) == 0 {
			continue
		}
		out.Nodes = append(out.Nodes, &TreeNode{
			ID:          tn.ID,
			DisplayName: tn.DisplayName,
			Kind:        tn.Kind,
			Expanded:    tn.Expanded,
			Items:       kept,
		})
	}

	return out
}
