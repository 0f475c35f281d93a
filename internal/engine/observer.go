package engine

import (
	"time"

	"bimdex/internal/browse"
	"bimdex/internal/logging"
)

// Observer receives lifecycle notifications from the engine. Implementations
// must be safe for concurrent use and must not call back into the engine.
type Observer interface {
	LoadStarted(loadID, snapshotPath string)
	LoadCompleted(loadID string, stats *browse.Stats, duration time.Duration)
	LoadDiscarded(loadID, reason string)
	VisibilityToggled(scope string, count int, visible bool)
	SearchPerformed(query string, matches int)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) LoadStarted(string, string) {}

func (NopObserver) LoadCompleted(string, *browse.Stats, time.Duration) {}

func (NopObserver) LoadDiscarded(string, string) {}

func (NopObserver) VisibilityToggled(string, int, bool) {}

func (NopObserver) SearchPerformed(string, int) {}

// LogObserver writes lifecycle events to the structured logger.
type LogObserver struct {
	logger *logging.Logger
}

// NewLogObserver creates an observer backed by the given logger.
func NewLogObserver(logger *logging.Logger) *LogObserver {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) LoadStarted(loadID, snapshotPath string) {
	o.logger.Info("Load started", map[string]interface{}{
		"loadId":   loadID,
		"snapshot": snapshotPath,
	})
}

func (o *LogObserver) LoadCompleted(loadID string, stats *browse.Stats, duration time.Duration) {
	fields := map[string]interface{}{
		"loadId":     loadID,
		"durationMs": duration.Milliseconds(),
	}
	if stats != nil {
		fields["renderable"] = stats.Renderable
		fields["matched"] = stats.Matched
		fields["groups"] = stats.Groups
		fields["categories"] = stats.Categories
	}
	o.logger.Info("Load completed", fields)
}

func (o *LogObserver) LoadDiscarded(loadID, reason string) {
	o.logger.Warn("Load discarded", map[string]interface{}{
		"loadId": loadID,
		"reason": reason,
	})
}

func (o *LogObserver) VisibilityToggled(scope string, count int, visible bool) {
	o.logger.Debug("Visibility toggled", map[string]interface{}{
		"scope":   scope,
		"count":   count,
		"visible": visible,
	})
}

func (o *LogObserver) SearchPerformed(query string, matches int) {
	o.logger.Debug("Search performed", map[string]interface{}{
		"query":   query,
		"matches": matches,
	})
}

// CombineObservers fans every notification out to all given observers.
func CombineObservers(observers ...Observer) Observer {
	filtered := make(multiObserver, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			filtered = append(filtered, obs)
		}
	}
	return filtered
}

type multiObserver []Observer

func (m multiObserver) LoadStarted(loadID, snapshotPath string) {
	for _, obs := range m {
		obs.LoadStarted(loadID, snapshotPath)
	}
}

func (m multiObserver) LoadCompleted(loadID string, stats *browse.Stats, duration time.Duration) {
	for _, obs := range m {
		obs.LoadCompleted(loadID, stats, duration)
	}
}

func (m multiObserver) LoadDiscarded(loadID, reason string) {
	for _, obs := range m {
		obs.LoadDiscarded(loadID, reason)
	}
}

func (m multiObserver) VisibilityToggled(scope string, count int, visible bool) {
	for _, obs := range m {
		obs.VisibilityToggled(scope, count, visible)
	}
}

func (m multiObserver) SearchPerformed(query string, matches int) {
	for _, obs := range m {
		obs.SearchPerformed(query, matches)
	}
}
