package browse

import (
	"encoding/json"
	"testing"

	"bimdex/internal/category"
	bimerrors "bimdex/internal/errors"
	"bimdex/internal/logging"
	"bimdex/internal/metadata"
	"bimdex/internal/scene"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	table, err := category.DefaultTable()
	if err != nil {
		t.Fatalf("DefaultTable() error = %v", err)
	}
	return NewBuilder(category.NewClassifier(table), logging.NewDiscard())
}

func newMesh(name string, indexCount, vertexCount int) *scene.Node {
	return &scene.Node{
		Name:        name,
		Identity:    "id-" + name,
		Kind:        scene.KindMesh,
		Renderable:  true,
		Visible:     true,
		IndexCount:  indexCount,
		VertexCount: vertexCount,
	}
}

func newGroup(name string, children ...*scene.Node) *scene.Node {
	g := &scene.Node{Name: name, Identity: "id-" + name, Kind: scene.KindGroup, Visible: true}
	for _, c := range children {
		c.Parent = g
		g.Children = append(g.Children, c)
	}
	return g
}

func newScene(children ...*scene.Node) *scene.Node {
	s := &scene.Node{Name: "Scene", Identity: "id-root", Kind: scene.KindScene, Visible: true}
	for _, c := range children {
		c.Parent = s
		s.Children = append(s.Children, c)
	}
	return s
}

func metadataIndex(t *testing.T, payload string) *metadata.Index {
	t.Helper()
	var v interface{}
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		t.Fatalf("bad test payload: %v", err)
	}
	return metadata.Parse(v)
}

// assertPartition checks the core invariant: every renderable node
// appears exactly once across the whole tree.
func assertPartition(t *testing.T, tree *Tree, wantEntries int) {
	t.Helper()
	seen := make(map[string]bool)
	total := 0
	for _, tn := range tree.Nodes {
		for _, e := range tn.Items {
			total++
			if seen[e.Identity] {
				t.Errorf("identity %s appears more than once", e.Identity)
			}
			seen[e.Identity] = true
		}
	}
	if total != wantEntries {
		t.Errorf("tree holds %d entries, want %d", total, wantEntries)
	}
}

func TestBuild_GroupedPartition(t *testing.T) {
	root := newScene(
		newGroup("Level 1", newMesh("Wall-A", 300, 0), newMesh("Wall-B", 300, 0)),
		newGroup("Level 2", newMesh("Slab-C", 600, 0)),
	)

	tree, visibility, stats, err := newTestBuilder(t).Build(root, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	assertPartition(t, tree, 3)

	if len(tree.Nodes) != 2 {
		t.Fatalf("tree has %d nodes, want 2 groups", len(tree.Nodes))
	}
	for _, tn := range tree.Nodes {
		if tn.Kind != KindGroup {
			t.Errorf("node %s kind = %q, want %q", tn.ID, tn.Kind, KindGroup)
		}
	}
	if stats.Groups != 2 {
		t.Errorf("stats.Groups = %d, want 2", stats.Groups)
	}
	if len(visibility) != 3 {
		t.Errorf("visibility has %d entries, want 3", len(visibility))
	}
}

func TestBuild_SingleGroupFallsBackToCategories(t *testing.T) {
	root := newScene(
		newGroup("Only Group",
			newMesh("Basic Wall 01", 300, 0),
			newMesh("Door Panel 01", 300, 0),
		),
	)

	tree, _, stats, err := newTestBuilder(t).Build(root, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	assertPartition(t, tree, 2)

	if stats.Groups != 0 {
		t.Errorf("stats.Groups = %d, want 0 (single group is not enough)", stats.Groups)
	}
	for _, tn := range tree.Nodes {
		if tn.Kind != KindCategory {
			t.Errorf("node %s kind = %q, want %q", tn.ID, tn.Kind, KindCategory)
		}
	}
	if tree.FindNode("Walls") == nil {
		t.Error("expected a Walls category bucket")
	}
	if tree.FindNode("Doors") == nil {
		t.Error("expected a Doors category bucket")
	}
}

func TestBuild_NestedGroupsFirstClaimWins(t *testing.T) {
	inner := newGroup("Inner", newMesh("Mesh-1", 300, 0))
	outer := newGroup("Outer Assembly")
	inner.Parent = outer
	outer.Children = append(outer.Children, inner)
	m2 := newMesh("Mesh-2", 300, 0)
	m2.Parent = outer
	outer.Children = append(outer.Children, m2)

	root := newScene(outer, newGroup("Other", newMesh("Mesh-3", 300, 0)))

	tree, _, stats, err := newTestBuilder(t).Build(root, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	assertPartition(t, tree, 3)

	// Outer claims both of its meshes first; Inner ends up empty and
	// is dropped from the tree.
	if len(tree.Nodes) != 2 {
		t.Fatalf("tree has %d nodes, want 2", len(tree.Nodes))
	}
	if tree.Nodes[0].ID != "id-Outer Assembly" {
		t.Errorf("first group = %s, want outer", tree.Nodes[0].ID)
	}
	if len(tree.Nodes[0].Items) != 2 {
		t.Errorf("outer claimed %d items, want 2", len(tree.Nodes[0].Items))
	}
	if tree.FindNode("id-Inner") != nil {
		t.Error("inner group should be dropped after losing all claims")
	}
	if stats.Groups != 2 {
		t.Errorf("stats.Groups = %d, want 2", stats.Groups)
	}
}

func TestBuild_GroupLabels(t *testing.T) {
	root := newScene(
		newGroup("North Facade", newMesh("Basic Wall 01", 300, 0)),
		newGroup("node", newMesh("Door Panel 01", 300, 0)),
	)

	tree, _, _, err := newTestBuilder(t).Build(root, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	named := tree.FindNode("id-North Facade")
	if named == nil || named.DisplayName != "North Facade" {
		t.Errorf("group label = %+v, want own non-trivial name", named)
	}

	trivial := tree.FindNode("id-node")
	if trivial == nil || trivial.DisplayName != "Doors" {
		t.Errorf("group label = %+v, want first child's category", trivial)
	}
}

func TestBuild_TextLikeThreshold(t *testing.T) {
	// 30 triangles from an unindexed vertex buffer
	small := newMesh("small-01", 0, 90)
	solid := newMesh("solid-01", 300, 0)
	root := newScene(newGroup("A", small), newGroup("B", solid))

	tree, _, stats, err := newTestBuilder(t).Build(root, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	e := tree.FindEntry("id-small-01")
	if e == nil {
		t.Fatal("label entry not found")
	}
	if e.Category != category.TextAnnotations {
		t.Errorf("Category = %q, want %q", e.Category, category.TextAnnotations)
	}
	if stats.TextLike != 1 {
		t.Errorf("stats.TextLike = %d, want 1", stats.TextLike)
	}

	s := tree.FindEntry("id-solid-01")
	if s.Category == category.TextAnnotations {
		t.Error("100-triangle node must not be text-like")
	}
}

func TestBuild_MetadataDrivenEntries(t *testing.T) {
	idx := metadataIndex(t, `{"data": {"objects": [
		{
			"objectid": 4821,
			"externalId": "3f2a91bc-0000-4fd1-a2b3-9e8d7c6b5a40",
			"properties": {
				"Identity Data": {"Family": "Basic Wall", "Type": "Generic - 200mm"},
				"Other": {"Category": "OST_Walls"}
			}
		}
	]}}`)

	mesh := newMesh("3f2a91bc-0000-4fd1-a2b3-9e8d7c6b5a40", 3000, 0)
	root := newScene(newGroup("G1", mesh), newGroup("G2", newMesh("plain", 300, 0)))

	tree, _, stats, err := newTestBuilder(t).Build(root, idx)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	e := tree.FindEntry(mesh.Identity)
	if e == nil {
		t.Fatal("matched entry not found")
	}
	if e.DisplayName != "Basic Wall - Generic - 200mm" {
		t.Errorf("DisplayName = %q, want record display name", e.DisplayName)
	}
	if e.Category != "Walls" {
		t.Errorf("Category = %q, want %q", e.Category, "Walls")
	}

	if stats.Matched != 1 || stats.Unmatched != 1 {
		t.Errorf("match stats = %d/%d, want 1 matched, 1 unmatched", stats.Matched, stats.Unmatched)
	}
	if stats.MatchMethods["guid-substring"] != 1 {
		t.Errorf("MatchMethods = %v, want one guid-substring hit", stats.MatchMethods)
	}
}

func TestBuild_VisibilitySeeded(t *testing.T) {
	shown := newMesh("shown", 300, 0)
	hidden := newMesh("hidden", 300, 0)
	hidden.Visible = false
	root := newScene(newGroup("A", shown), newGroup("B", hidden))

	_, visibility, _, err := newTestBuilder(t).Build(root, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if !visibility["id-shown"] {
		t.Error("visible node should seed true")
	}
	if visibility["id-hidden"] {
		t.Error("hidden node should seed false")
	}
}

func TestBuild_PathString(t *testing.T) {
	mesh := newMesh("Duct-1", 300, 0)
	root := newScene(newGroup("Level 3", newGroup("HVAC", mesh)), newGroup("Other", newMesh("x", 300, 0)))
	_ = root

	tree, _, _, err := newTestBuilder(t).Build(root, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	e := tree.FindEntry("id-Duct-1")
	if e == nil {
		t.Fatal("entry not found")
	}
	if e.Path != "Scene/Level 3/HVAC/Duct-1" {
		t.Errorf("Path = %q, want %q", e.Path, "Scene/Level 3/HVAC/Duct-1")
	}
}

func TestBuild_EmptyScene(t *testing.T) {
	b := newTestBuilder(t)

	_, _, _, err := b.Build(nil, nil)
	if !bimerrors.HasCode(err, bimerrors.SceneEmpty) {
		t.Errorf("Build(nil) error = %v, want code %s", err, bimerrors.SceneEmpty)
	}

	empty := newScene(newGroup("Empty"))
	_, _, _, err = b.Build(empty, nil)
	if !bimerrors.HasCode(err, bimerrors.SceneEmpty) {
		t.Errorf("Build(empty) error = %v, want code %s", err, bimerrors.SceneEmpty)
	}
}

func TestBuild_CategoryFirstAppearanceOrder(t *testing.T) {
	root := newScene(
		newGroup("Only",
			newMesh("Door Panel", 300, 0),
			newMesh("Basic Wall", 300, 0),
			newMesh("Another Door", 300, 0),
		),
	)

	tree, _, _, err := newTestBuilder(t).Build(root, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(tree.Nodes) != 2 {
		t.Fatalf("tree has %d nodes, want 2", len(tree.Nodes))
	}
	if tree.Nodes[0].ID != "Doors" || tree.Nodes[1].ID != "Walls" {
		t.Errorf("bucket order = [%s %s], want [Doors Walls]", tree.Nodes[0].ID, tree.Nodes[1].ID)
	}
	if len(tree.Nodes[0].Items) != 2 {
		t.Errorf("Doors bucket has %d items, want 2", len(tree.Nodes[0].Items))
	}
}
