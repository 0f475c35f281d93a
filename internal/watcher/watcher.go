// Package watcher polls scene input files for changes.
package watcher

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"bimdex/internal/config"
	"bimdex/internal/logging"
)

// EventType represents the type of file system event
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

// Event represents a file system event
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// String returns a string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ChangeHandler is called with the batched events once a change burst
// has settled
type ChangeHandler func(events []Event)

// Watcher polls snapshot and metadata files for changes. Changes to
// all watched files share one debounce window, so a snapshot and its
// metadata written back to back produce a single handler call.
type Watcher struct {
	config  config.WatchConfig
	logger  *logging.Logger
	handler ChangeHandler
	files   map[string]*fileWatcher
	batch   *BatchDebouncer

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
	wg     sync.WaitGroup
}

// fileWatcher tracks one file's last observed state. Its fields are
// only touched by the owning poll goroutine after registration.
type fileWatcher struct {
	path     string
	exists   bool
	lastMod  time.Time
	lastSize int64
	stopCh   chan struct{}
}

// New creates a new file watcher
func New(cfg config.WatchConfig, logger *logging.Logger, handler ChangeHandler) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher{
		config:  cfg,
		logger:  logger,
		handler: handler,
		files:   make(map[string]*fileWatcher),
		ctx:     ctx,
		cancel:  cancel,
	}

	debounce := time.Duration(cfg.DebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	w.batch = NewBatchDebouncer(debounce, func(events []Event) {
		if w.handler != nil {
			w.handler(events)
		}
	})

	return w
}

// Start begins watching
func (w *Watcher) Start() error {
	if !w.config.Enabled {
		w.logger.Info("File watcher is disabled", nil)
		return nil
	}

	w.logger.Info("Starting file watcher", map[string]interface{}{
		"debounceMs":     w.config.DebounceMs,
		"pollIntervalMs": w.config.PollIntervalMs,
	})

	return nil
}

// Stop stops watching
func (w *Watcher) Stop() error {
	w.logger.Info("Stopping file watcher", nil)
	w.cancel()

	w.mu.Lock()
	for _, fw := range w.files {
		close(fw.stopCh)
	}
	w.files = make(map[string]*fileWatcher)
	w.mu.Unlock()

	w.wg.Wait()
	w.batch.Cancel()
	w.logger.Info("File watcher stopped", nil)
	return nil
}

// Watch starts watching a file. The file does not have to exist yet;
// its creation is reported as an event.
func (w *Watcher) Watch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.files[path]; exists {
		return nil // Already watching
	}

	fw := &fileWatcher{
		path:   path,
		stopCh: make(chan struct{}),
	}

	// Seed the baseline so a pre-existing file does not fire an event
	if info, err := os.Stat(path); err == nil {
		fw.exists = true
		fw.lastMod = info.ModTime()
		fw.lastSize = info.Size()
	}

	w.files[path] = fw

	w.wg.Add(1)
	go w.pollFile(fw)

	w.logger.Info("Watching file", map[string]interface{}{
		"path": path,
	})

	return nil
}

// Unwatch stops watching a file
func (w *Watcher) Unwatch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if fw, exists := w.files[path]; exists {
		close(fw.stopCh)
		delete(w.files, path)
		w.logger.Info("Stopped watching file", map[string]interface{}{
			"path": path,
		})
	}
}

// pollFile polls a single file for changes
// Using polling instead of fsnotify for simplicity and cross-platform compatibility
func (w *Watcher) pollFile(fw *fileWatcher) {
	defer w.wg.Done()

	pollInterval := time.Duration(w.config.PollIntervalMs) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.checkFile(fw)
		case <-fw.stopCh:
			return
		case <-w.ctx.Done():
			return
		}
	}
}

// checkFile compares the file's current state against the last
// observed one. Size is compared as well as mtime so rapid rewrites
// within the filesystem's timestamp granularity are still caught.
func (w *Watcher) checkFile(fw *fileWatcher) {
	info, err := os.Stat(fw.path)

	var event *Event
	switch {
	case err != nil && fw.exists:
		fw.exists = false
		fw.lastMod = time.Time{}
		fw.lastSize = 0
		event = &Event{Type: EventDelete, Path: fw.path, Timestamp: time.Now()}
	case err != nil:
		return
	case !fw.exists:
		fw.exists = true
		fw.lastMod = info.ModTime()
		fw.lastSize = info.Size()
		event = &Event{Type: EventCreate, Path: fw.path, Timestamp: time.Now()}
	case !info.ModTime().Equal(fw.lastMod) || info.Size() != fw.lastSize:
		fw.lastMod = info.ModTime()
		fw.lastSize = info.Size()
		event = &Event{Type: EventModify, Path: fw.path, Timestamp: time.Now()}
	}

	if event != nil {
		w.logger.Debug("File change detected", map[string]interface{}{
			"path":  event.Path,
			"event": event.Type.String(),
		})
		w.batch.Add(*event)
	}
}

// WatchedFiles returns the sorted list of watched file paths
func (w *Watcher) WatchedFiles() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	files := make([]string, 0, len(w.files))
	for path := range w.files {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// Stats returns watcher statistics
func (w *Watcher) Stats() map[string]interface{} {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return map[string]interface{}{
		"enabled":        w.config.Enabled,
		"watchedFiles":   len(w.files),
		"debounceMs":     w.config.DebounceMs,
		"pollIntervalMs": w.config.PollIntervalMs,
	}
}
