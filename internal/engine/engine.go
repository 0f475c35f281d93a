// Package engine coordinates snapshot loading, metadata correlation, and
// browse-tree assembly, and owns the visibility state of the active load.
// It connects the scene loader, metadata fetcher, category classifier, and
// tree builder behind a single concurrency-safe facade.
package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"bimdex/internal/browse"
	"bimdex/internal/category"
	"bimdex/internal/config"
	bimerrors "bimdex/internal/errors"
	"bimdex/internal/logging"
	"bimdex/internal/metadata"
	"bimdex/internal/scene"
)

// SnapshotLoader reads a scene snapshot into a node tree.
type SnapshotLoader interface {
	Load(path string) (*scene.Node, error)
}

// MetadataFetcher reads raw element metadata from disk.
type MetadataFetcher interface {
	Fetch(path string) (interface{}, error)
}

// Engine is the central coordinator for bimdex.
type Engine struct {
	logger   *logging.Logger
	config   *config.Config
	loader   SnapshotLoader
	fetcher  MetadataFetcher
	builder  *browse.Builder
	observer Observer

	// Active load state. latestStarted is a generation counter: every
	// Load bumps it before doing any work, and a finished load installs
	// its result only if no newer load has started in the meantime.
	mu            sync.RWMutex
	latestStarted uint64
	state         *loadState
}

type loadState struct {
	loadID       string
	snapshotPath string
	metadataPath string
	loadedAt     time.Time
	duration     time.Duration
	root         *scene.Node
	index        *metadata.Index
	tree         *browse.Tree
	visibility   browse.VisibilityMap
	stats        *browse.Stats
	summary      scene.Summary
}

// LoadOptions name the inputs for one load pass. Empty paths fall back
// to the configured defaults.
type LoadOptions struct {
	SnapshotPath string
	MetadataPath string
}

// LoadResult is what a completed load returns to its caller.
type LoadResult struct {
	LoadID          string               `json:"loadId"`
	SnapshotPath    string               `json:"snapshotPath"`
	MetadataPath    string               `json:"metadataPath,omitempty"`
	Scene           scene.Summary        `json:"scene"`
	MetadataRecords int                  `json:"metadataRecords"`
	Correlation     *browse.Stats        `json:"correlation"`
	MatchRate       float64              `json:"matchRate"`
	DurationMs      int64                `json:"durationMs"`
	Tree            *browse.Tree         `json:"tree,omitempty"`
	Visibility      browse.VisibilityMap `json:"visibility,omitempty"`
}

// Status describes the active load.
type Status struct {
	LoadID          string        `json:"loadId"`
	SnapshotPath    string        `json:"snapshotPath"`
	MetadataPath    string        `json:"metadataPath,omitempty"`
	LoadedAt        time.Time     `json:"loadedAt"`
	DurationMs      int64         `json:"durationMs"`
	Scene           scene.Summary `json:"scene"`
	MetadataRecords int           `json:"metadataRecords"`
	Correlation     *browse.Stats `json:"correlation"`
	MatchRate       float64       `json:"matchRate"`
}

// New creates an engine wired with the production loader, fetcher, and
// builder. A nil observer defaults to logging every lifecycle event.
func New(cfg *config.Config, logger *logging.Logger, observer Observer) (*Engine, error) {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	if observer == nil {
		observer = NewLogObserver(logger)
	}

	var table *category.Table
	var err error
	if cfg != nil && cfg.Scene.Categories != "" {
		table, err = category.LoadTable(cfg.Scene.Categories)
	} else {
		table, err = category.DefaultTable()
	}
	if err != nil {
		return nil, err
	}

	return &Engine{
		logger:   logger,
		config:   cfg,
		loader:   scene.NewLoader(logger),
		fetcher:  metadata.NewFetcher(logger),
		builder:  browse.NewBuilder(category.NewClassifier(table), logger),
		observer: observer,
	}, nil
}

// Load reads a snapshot and its metadata, correlates them, and installs
// the resulting browse tree as the active state. Loads are supersede-only:
// a load that finishes after a newer one has started discards its result
// and returns a LOAD_SUPERSEDED error. A failed load leaves the previous
// state untouched.
func (e *Engine) Load(opts LoadOptions) (*LoadResult, error) {
	snapshotPath := opts.SnapshotPath
	metadataPath := opts.MetadataPath
	if e.config != nil {
		if snapshotPath == "" {
			snapshotPath = e.config.Scene.Snapshot
		}
		if metadataPath == "" {
			metadataPath = e.config.Scene.Metadata
		}
	}
	if snapshotPath == "" {
		return nil, bimerrors.New(bimerrors.SnapshotNotFound, "no snapshot path given or configured", nil)
	}

	loadID := uuid.New().String()

	e.mu.Lock()
	e.latestStarted++
	generation := e.latestStarted
	e.mu.Unlock()

	e.observer.LoadStarted(loadID, snapshotPath)
	started := time.Now()

	root, err := e.loader.Load(snapshotPath)
	if err != nil {
		return nil, err
	}

	raw, err := e.fetcher.Fetch(metadataPath)
	if err != nil {
		return nil, err
	}
	idx := metadata.Parse(raw)

	tree, visibility, stats, err := e.builder.Build(root, idx)
	if err != nil {
		return nil, err
	}

	duration := time.Since(started)
	state := &loadState{
		loadID:       loadID,
		snapshotPath: snapshotPath,
		metadataPath: metadataPath,
		loadedAt:     started,
		duration:     duration,
		root:         root,
		index:        idx,
		tree:         tree,
		visibility:   visibility,
		stats:        stats,
		summary:      scene.Summarize(root),
	}

	e.mu.Lock()
	if generation != e.latestStarted {
		e.mu.Unlock()
		e.observer.LoadDiscarded(loadID, "superseded")
		return nil, bimerrors.Newf(bimerrors.LoadSuperseded, "load %s superseded before completion", loadID)
	}
	e.state = state
	e.mu.Unlock()

	e.observer.LoadCompleted(loadID, stats, duration)

	return &LoadResult{
		LoadID:          loadID,
		SnapshotPath:    snapshotPath,
		MetadataPath:    metadataPath,
		Scene:           state.summary,
		MetadataRecords: idx.Len(),
		Correlation:     stats,
		MatchRate:       matchRate(stats),
		DurationMs:      duration.Milliseconds(),
		Tree:            tree,
		Visibility:      visibility,
	}, nil
}

// Loaded reports whether an active load exists.
func (e *Engine) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state != nil
}

// Status returns a summary of the active load.
func (e *Engine) Status() (*Status, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == nil {
		return nil, bimerrors.New(bimerrors.NoActiveLoad, "no scene is loaded", nil)
	}
	st := e.state
	return &Status{
		LoadID:          st.loadID,
		SnapshotPath:    st.snapshotPath,
		MetadataPath:    st.metadataPath,
		LoadedAt:        st.loadedAt,
		DurationMs:      st.duration.Milliseconds(),
		Scene:           st.summary,
		MetadataRecords: st.index.Len(),
		Correlation:     st.stats,
		MatchRate:       matchRate(st.stats),
	}, nil
}

// Tree returns the active browse tree together with a copy of the
// visibility map. The tree itself is shared and must be treated as
// read-only by callers.
func (e *Engine) Tree() (*browse.Tree, browse.VisibilityMap, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == nil {
		return nil, nil, bimerrors.New(bimerrors.NoActiveLoad, "no scene is loaded", nil)
	}
	visibility := make(browse.VisibilityMap, len(e.state.visibility))
	for identity, visible := range e.state.visibility {
		visibility[identity] = visible
	}
	return e.state.tree, visibility, nil
}

// Search filters the active browse tree by a case-insensitive substring
// query. The filtered tree shares entries with the active one but never
// mutates it.
func (e *Engine) Search(query string) (*browse.Tree, error) {
	e.mu.RLock()
	state := e.state
	var filtered *browse.Tree
	if state != nil {
		filtered = browse.Filter(state.tree, query)
	}
	e.mu.RUnlock()

	if state == nil {
		return nil, bimerrors.New(bimerrors.NoActiveLoad, "no scene is loaded", nil)
	}
	e.observer.SearchPerformed(query, filtered.Len())
	return filtered, nil
}

// ToggleNode flips the visibility of a single node, addressed by its
// stable identity, and returns the new visibility. Identities from a
// superseded load are rejected with NODE_NOT_FOUND.
func (e *Engine) ToggleNode(identity string) (bool, error) {
	e.mu.Lock()
	if e.state == nil {
		e.mu.Unlock()
		return false, bimerrors.New(bimerrors.NoActiveLoad, "no scene is loaded", nil)
	}
	entry := e.state.tree.FindEntry(identity)
	if entry == nil {
		e.mu.Unlock()
		return false, bimerrors.Newf(bimerrors.NodeNotFound, "node %s is not part of the active load", identity)
	}
	next := !e.state.visibility[identity]
	e.state.visibility[identity] = next
	if entry.Node != nil {
		entry.Node.Visible = next
	}
	e.mu.Unlock()

	e.observer.VisibilityToggled("node", 1, next)
	return next, nil
}

// ToggleGroup flips the visibility of every member of a browse-tree
// group at once. If any member is hidden the whole group becomes
// visible, otherwise the whole group becomes hidden. Returns the applied
// visibility and the number of members affected.
func (e *Engine) ToggleGroup(groupID string) (bool, int, error) {
	e.mu.Lock()
	if e.state == nil {
		e.mu.Unlock()
		return false, 0, bimerrors.New(bimerrors.NoActiveLoad, "no scene is loaded", nil)
	}
	group := e.state.tree.FindNode(groupID)
	if group == nil {
		e.mu.Unlock()
		return false, 0, bimerrors.Newf(bimerrors.GroupNotFound, "group %s is not part of the active load", groupID)
	}

	target := false
	for _, item := range group.Items {
		if !e.state.visibility[item.Identity] {
			target = true
			break
		}
	}
	for _, item := range group.Items {
		e.state.visibility[item.Identity] = target
		if item.Node != nil {
			item.Node.Visible = target
		}
	}
	count := len(group.Items)
	e.mu.Unlock()

	e.observer.VisibilityToggled("group", count, target)
	return target, count, nil
}

func matchRate(stats *browse.Stats) float64 {
	if stats == nil || stats.Renderable == 0 {
		return 0
	}
	return float64(stats.Matched) / float64(stats.Renderable)
}
