package scene

import (
	"strings"
)

// Kind classifies a node's structural role in the scene graph
type Kind string

const (
	KindScene Kind = "scene"
	KindGroup Kind = "group"
	KindMesh  Kind = "mesh"
)

// Node is a single entry in the loaded scene graph
type Node struct {
	ID            int64
	Identity      string
	Name          string
	GeometryName  string
	MaterialNames []string
	Kind          Kind
	Renderable    bool
	Visible       bool
	IndexCount    int
	VertexCount   int
	Annotations   map[string]string

	Parent   *Node
	Children []*Node
}

// IsRoot reports whether this node is the scene root
func (n *Node) IsRoot() bool {
	return n.Parent == nil
}

// TriangleCount derives the triangle count from the node's geometry.
// Index count wins when present, otherwise the vertex count is used.
func (n *Node) TriangleCount() int {
	if n.IndexCount > 0 {
		return n.IndexCount / 3
	}
	return n.VertexCount / 3
}

// Walk visits n and all its descendants in pre-order
func (n *Node) Walk(visit func(node *Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, child := range n.Children {
		child.Walk(visit)
	}
}

// Ancestors returns up to max ancestors of n, nearest first.
// The walk stops before the scene root.
func (n *Node) Ancestors(max int) []*Node {
	var out []*Node
	for cur := n.Parent; cur != nil && !cur.IsRoot() && len(out) < max; cur = cur.Parent {
		out = append(out, cur)
	}
	return out
}

// OrdinalWithinParent returns n's index among its parent's children,
// or 0 for the root.
func (n *Node) OrdinalWithinParent() int {
	if n.Parent == nil {
		return 0
	}
	for i, sibling := range n.Parent.Children {
		if sibling == n {
			return i
		}
	}
	return 0
}

// Path returns the slash-joined node names from the root down to n
func (n *Node) Path() string {
	var names []string
	for cur := n; cur != nil; cur = cur.Parent {
		names = append(names, cur.Name)
	}
	// Reverse into root-first order
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, "/")
}

// HasRenderableDescendant reports whether any node below n is renderable
func (n *Node) HasRenderableDescendant() bool {
	for _, child := range n.Children {
		if child.Renderable || child.HasRenderableDescendant() {
			return true
		}
	}
	return false
}

// Summary aggregates scene-wide counts
type Summary struct {
	NodeCount       int `json:"nodeCount"`
	RenderableCount int `json:"renderableCount"`
	GroupCount      int `json:"groupCount"`
	TriangleCount   int `json:"triangleCount"`
}

// Summarize walks the tree once and collects scene-wide counts
func Summarize(root *Node) Summary {
	var s Summary
	root.Walk(func(node *Node) {
		s.NodeCount++
		if node.Renderable {
			s.RenderableCount++
			s.TriangleCount += node.TriangleCount()
		}
		if node.Kind == KindGroup {
			s.GroupCount++
		}
	})
	return s
}
