package engine

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bimdex/internal/browse"
	"bimdex/internal/category"
	bimerrors "bimdex/internal/errors"
	"bimdex/internal/logging"
	"bimdex/internal/scene"
)

const engineSnapshotJSON = `{
	"generator": "revit-export 2.3",
	"root": {
		"name": "Scene",
		"children": [
			{
				"name": "Level 1",
				"children": [
					{"name": "wall-3f2a91bc-aaaa-4fd1-a2b3-9e8d7c6b5a40", "geometry": {"name": "wall_geo", "indexCount": 600}},
					{"name": "Door-Element_4821", "geometry": {"name": "door_geo", "indexCount": 450}},
					{"name": "Pipe-Riser", "geometry": {"name": "pipe_geo", "indexCount": 330}}
				]
			},
			{
				"name": "Level 2",
				"children": [
					{"name": "Duct-Main", "geometry": {"name": "duct_geo", "indexCount": 900}}
				]
			}
		]
	}
}`

const engineMetadataJSON = `{
	"data": [
		{
			"objectid": 101,
			"externalId": "3f2a91bc-aaaa-4fd1-a2b3-9e8d7c6b5a40",
			"properties": {
				"Identity Data": {"Family": "Basic Wall", "Type": "Generic - 200mm", "Category": "OST_Walls"}
			}
		},
		{
			"objectid": 4821,
			"externalId": "door-4821-ext",
			"properties": {"Family": "Single Door", "Type": "0915 x 2134mm", "Category": "OST_Doors"}
		}
	]
}`

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func newTestEngine(t *testing.T, observer Observer) *Engine {
	t.Helper()
	eng, err := New(nil, logging.NewDiscard(), observer)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return eng
}

func loadTestScene(t *testing.T, eng *Engine) *LoadResult {
	t.Helper()
	dir := t.TempDir()
	result, err := eng.Load(LoadOptions{
		SnapshotPath: writeTestFile(t, dir, "model.json", engineSnapshotJSON),
		MetadataPath: writeTestFile(t, dir, "metadata.json", engineMetadataJSON),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return result
}

func findGroup(t *testing.T, tree *browse.Tree, displayName string) *browse.TreeNode {
	t.Helper()
	for _, node := range tree.Nodes {
		if node.DisplayName == displayName {
			return node
		}
	}
	t.Fatalf("No tree node named %q", displayName)
	return nil
}

func TestLoad_InstallsState(t *testing.T) {
	eng := newTestEngine(t, NopObserver{})

	result := loadTestScene(t, eng)

	if result.LoadID == "" {
		t.Error("LoadID should not be empty")
	}
	if result.Scene.RenderableCount != 4 {
		t.Errorf("RenderableCount = %d, want 4", result.Scene.RenderableCount)
	}
	if result.MetadataRecords != 2 {
		t.Errorf("MetadataRecords = %d, want 2", result.MetadataRecords)
	}
	if result.Correlation.Matched != 2 {
		t.Errorf("Matched = %d, want 2", result.Correlation.Matched)
	}
	if result.Correlation.Unmatched != 2 {
		t.Errorf("Unmatched = %d, want 2", result.Correlation.Unmatched)
	}
	if result.MatchRate != 0.5 {
		t.Errorf("MatchRate = %v, want 0.5", result.MatchRate)
	}
	if !eng.Loaded() {
		t.Error("Loaded() should be true after a successful load")
	}

	status, err := eng.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.LoadID != result.LoadID {
		t.Errorf("Status().LoadID = %q, want %q", status.LoadID, result.LoadID)
	}
	if status.Scene.TriangleCount != result.Scene.TriangleCount {
		t.Errorf("Status triangle count = %d, want %d", status.Scene.TriangleCount, result.Scene.TriangleCount)
	}
}

func TestLoad_MetadataDrivenNames(t *testing.T) {
	eng := newTestEngine(t, NopObserver{})
	result := loadTestScene(t, eng)

	level1 := findGroup(t, result.Tree, "Level 1")
	if len(level1.Items) != 3 {
		t.Fatalf("Level 1 has %d items, want 3", len(level1.Items))
	}

	byName := make(map[string]*browse.Entry)
	for _, entry := range level1.Items {
		byName[entry.DisplayName] = entry
	}
	wall, ok := byName["Basic Wall - Generic - 200mm"]
	if !ok {
		t.Fatalf("Wall entry not renamed from metadata, have %v", keysOf(byName))
	}
	if wall.Category != "Walls" {
		t.Errorf("wall.Category = %q, want %q", wall.Category, "Walls")
	}
	door, ok := byName["Single Door - 0915 x 2134mm"]
	if !ok {
		t.Fatalf("Door entry not renamed from metadata, have %v", keysOf(byName))
	}
	if door.Category != "Doors" {
		t.Errorf("door.Category = %q, want %q", door.Category, "Doors")
	}
	if _, ok := byName["Pipe-Riser"]; !ok {
		t.Errorf("Unmatched pipe should keep its cleaned node name, have %v", keysOf(byName))
	}
}

func keysOf(m map[string]*browse.Entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func TestLoad_FailureKeepsPreviousState(t *testing.T) {
	eng := newTestEngine(t, NopObserver{})
	first := loadTestScene(t, eng)

	_, err := eng.Load(LoadOptions{SnapshotPath: filepath.Join(t.TempDir(), "missing.json")})
	if !bimerrors.HasCode(err, bimerrors.SnapshotNotFound) {
		t.Fatalf("Load() error = %v, want SNAPSHOT_NOT_FOUND", err)
	}

	status, err := eng.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.LoadID != first.LoadID {
		t.Errorf("Failed load replaced state: LoadID = %q, want %q", status.LoadID, first.LoadID)
	}
}

func TestLoad_NoPathConfigured(t *testing.T) {
	eng := newTestEngine(t, NopObserver{})
	_, err := eng.Load(LoadOptions{})
	if !bimerrors.HasCode(err, bimerrors.SnapshotNotFound) {
		t.Fatalf("Load() error = %v, want SNAPSHOT_NOT_FOUND", err)
	}
}

func TestToggleNode(t *testing.T) {
	eng := newTestEngine(t, NopObserver{})
	result := loadTestScene(t, eng)

	identity := findGroup(t, result.Tree, "Level 2").Items[0].Identity

	visible, err := eng.ToggleNode(identity)
	if err != nil {
		t.Fatalf("ToggleNode() error = %v", err)
	}
	if visible {
		t.Error("First toggle of a visible node should hide it")
	}

	_, vis, err := eng.Tree()
	if err != nil {
		t.Fatalf("Tree() error = %v", err)
	}
	if vis[identity] {
		t.Error("Visibility map should record the node as hidden")
	}

	visible, err = eng.ToggleNode(identity)
	if err != nil {
		t.Fatalf("ToggleNode() error = %v", err)
	}
	if !visible {
		t.Error("Second toggle should restore visibility")
	}
}

func TestToggleNode_Unknown(t *testing.T) {
	eng := newTestEngine(t, NopObserver{})
	loadTestScene(t, eng)

	_, err := eng.ToggleNode("identity-from-a-previous-load")
	if !bimerrors.HasCode(err, bimerrors.NodeNotFound) {
		t.Fatalf("ToggleNode() error = %v, want NODE_NOT_FOUND", err)
	}
}

func TestToggleNode_NoActiveLoad(t *testing.T) {
	eng := newTestEngine(t, NopObserver{})
	_, err := eng.ToggleNode("anything")
	if !bimerrors.HasCode(err, bimerrors.NoActiveLoad) {
		t.Fatalf("ToggleNode() error = %v, want NO_ACTIVE_LOAD", err)
	}
}

func TestToggleGroup_MixedBecomesVisible(t *testing.T) {
	eng := newTestEngine(t, NopObserver{})
	result := loadTestScene(t, eng)

	group := findGroup(t, result.Tree, "Level 1")
	if len(group.Items) != 3 {
		t.Fatalf("Group has %d items, want 3", len(group.Items))
	}

	// Hide one of three members, then toggle the group: a mixed group
	// must become fully visible, not fully hidden.
	if _, err := eng.ToggleNode(group.Items[0].Identity); err != nil {
		t.Fatalf("ToggleNode() error = %v", err)
	}

	visible, count, err := eng.ToggleGroup(group.ID)
	if err != nil {
		t.Fatalf("ToggleGroup() error = %v", err)
	}
	if !visible {
		t.Error("Mixed group should toggle to visible")
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	_, vis, err := eng.Tree()
	if err != nil {
		t.Fatalf("Tree() error = %v", err)
	}
	for _, item := range group.Items {
		if !vis[item.Identity] {
			t.Errorf("Member %q should be visible after group toggle", item.DisplayName)
		}
	}

	// A fully visible group toggles to fully hidden.
	visible, _, err = eng.ToggleGroup(group.ID)
	if err != nil {
		t.Fatalf("ToggleGroup() error = %v", err)
	}
	if visible {
		t.Error("Fully visible group should toggle to hidden")
	}
	_, vis, _ = eng.Tree()
	for _, item := range group.Items {
		if vis[item.Identity] {
			t.Errorf("Member %q should be hidden after second group toggle", item.DisplayName)
		}
	}
}

func TestToggleGroup_Unknown(t *testing.T) {
	eng := newTestEngine(t, NopObserver{})
	loadTestScene(t, eng)

	_, _, err := eng.ToggleGroup("no-such-group")
	if !bimerrors.HasCode(err, bimerrors.GroupNotFound) {
		t.Fatalf("ToggleGroup() error = %v, want GROUP_NOT_FOUND", err)
	}
}

func TestSearch(t *testing.T) {
	eng := newTestEngine(t, NopObserver{})
	loadTestScene(t, eng)

	filtered, err := eng.Search("duct")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if filtered.Len() != 1 {
		t.Errorf("Search(duct) matched %d entries, want 1", filtered.Len())
	}

	all, err := eng.Search("")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if all.Len() != 4 {
		t.Errorf("Empty query matched %d entries, want 4", all.Len())
	}
}

func TestSearch_NoActiveLoad(t *testing.T) {
	eng := newTestEngine(t, NopObserver{})
	_, err := eng.Search("wall")
	if !bimerrors.HasCode(err, bimerrors.NoActiveLoad) {
		t.Fatalf("Search() error = %v, want NO_ACTIVE_LOAD", err)
	}
}

func TestStatus_NoActiveLoad(t *testing.T) {
	eng := newTestEngine(t, NopObserver{})
	if eng.Loaded() {
		t.Error("Loaded() should be false before any load")
	}
	_, err := eng.Status()
	if !bimerrors.HasCode(err, bimerrors.NoActiveLoad) {
		t.Fatalf("Status() error = %v, want NO_ACTIVE_LOAD", err)
	}
}

// blockingLoader blocks the first Load call until released, so a test
// can start a second load while the first is still in flight.
type blockingLoader struct {
	root    *scene.Node
	started chan struct{}
	release chan struct{}
	first   atomic.Bool
}

func (l *blockingLoader) Load(string) (*scene.Node, error) {
	if l.first.CompareAndSwap(false, true) {
		l.started <- struct{}{}
		<-l.release
	}
	return l.root, nil
}

type stubFetcher struct{}

func (stubFetcher) Fetch(string) (interface{}, error) { return nil, nil }

func stubSceneRoot() *scene.Node {
	root := &scene.Node{ID: 0, Identity: "root", Name: "Scene", Kind: scene.KindScene, Visible: true}
	mesh := &scene.Node{ID: 1, Identity: "mesh-1", Name: "Duct-Main", Kind: scene.KindMesh, Renderable: true, Visible: true, IndexCount: 900, Parent: root}
	root.Children = []*scene.Node{mesh}
	return root
}

func newStubEngine(t *testing.T, loader SnapshotLoader, observer Observer) *Engine {
	t.Helper()
	table, err := category.DefaultTable()
	if err != nil {
		t.Fatalf("DefaultTable() error = %v", err)
	}
	return &Engine{
		logger:   logging.NewDiscard(),
		loader:   loader,
		fetcher:  stubFetcher{},
		builder:  browse.NewBuilder(category.NewClassifier(table), logging.NewDiscard()),
		observer: observer,
	}
}

func TestLoad_SupersededDiscardsResult(t *testing.T) {
	recorder := &recordingObserver{}
	loader := &blockingLoader{
		root:    stubSceneRoot(),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	eng := newStubEngine(t, loader, recorder)

	firstErr := make(chan error, 1)
	go func() {
		_, err := eng.Load(LoadOptions{SnapshotPath: "first.json"})
		firstErr <- err
	}()

	// Wait until the first load is inside the loader, then run a second
	// load to completion before releasing the first.
	<-loader.started
	second, err := eng.Load(LoadOptions{SnapshotPath: "second.json"})
	if err != nil {
		t.Fatalf("Second Load() error = %v", err)
	}
	close(loader.release)

	err = <-firstErr
	if !bimerrors.HasCode(err, bimerrors.LoadSuperseded) {
		t.Fatalf("First Load() error = %v, want LOAD_SUPERSEDED", err)
	}

	status, err := eng.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.LoadID != second.LoadID {
		t.Errorf("Active LoadID = %q, want the second load %q", status.LoadID, second.LoadID)
	}
	if status.SnapshotPath != "second.json" {
		t.Errorf("Active snapshot = %q, want second.json", status.SnapshotPath)
	}
	if recorder.count("discarded") != 1 {
		t.Errorf("discarded events = %d, want 1", recorder.count("discarded"))
	}
	if recorder.count("completed") != 1 {
		t.Errorf("completed events = %d, want 1", recorder.count("completed"))
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingObserver) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingObserver) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func (r *recordingObserver) LoadStarted(string, string) { r.record("started") }

func (r *recordingObserver) LoadCompleted(string, *browse.Stats, time.Duration) {
	r.record("completed")
}

func (r *recordingObserver) LoadDiscarded(string, string) { r.record("discarded") }

func (r *recordingObserver) VisibilityToggled(string, int, bool) { r.record("toggled") }

func (r *recordingObserver) SearchPerformed(string, int) { r.record("search") }

func TestObserverEvents(t *testing.T) {
	recorder := &recordingObserver{}
	eng := newTestEngine(t, recorder)
	result := loadTestScene(t, eng)

	if recorder.count("started") != 1 || recorder.count("completed") != 1 {
		t.Errorf("events = %v, want one started and one completed", recorder.events)
	}

	identity := findGroup(t, result.Tree, "Level 2").Items[0].Identity
	if _, err := eng.ToggleNode(identity); err != nil {
		t.Fatalf("ToggleNode() error = %v", err)
	}
	if _, err := eng.Search("duct"); err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if recorder.count("toggled") != 1 {
		t.Errorf("toggled events = %d, want 1", recorder.count("toggled"))
	}
	if recorder.count("search") != 1 {
		t.Errorf("search events = %d, want 1", recorder.count("search"))
	}
}

func TestCombineObservers(t *testing.T) {
	a := &recordingObserver{}
	b := &recordingObserver{}
	combined := CombineObservers(a, nil, b)

	combined.LoadStarted("id", "path")
	combined.SearchPerformed("q", 3)

	for _, recorder := range []*recordingObserver{a, b} {
		if recorder.count("started") != 1 || recorder.count("search") != 1 {
			t.Errorf("observer events = %v, want started and search", recorder.events)
		}
	}
}
