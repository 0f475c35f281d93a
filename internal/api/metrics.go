package api

import (
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"bimdex/internal/browse"
	"bimdex/internal/version"
)

// MetricsCollector collects and exposes Prometheus metrics. It also
// implements engine.Observer so load, toggle, and search events feed the
// counters without extra plumbing.
type MetricsCollector struct {
	// Counters
	loadsTotal         *Counter
	togglesTotal       *Counter
	searchesTotal      *Counter
	searchResultsTotal *Counter
	errorsTotal        *Counter
	httpRequestsTotal  *Counter

	// Histograms
	loadDuration *Histogram

	// Gauges
	matchRate        *Gauge
	renderableNodes  *Gauge
	matchedNodes     *Gauge
	treeGroups       *Gauge
	treeCategories   *Gauge
	goroutines       *Gauge
	memoryAlloc      *Gauge

	startTime time.Time
}

// Counter is a monotonically increasing counter
type Counter struct {
	name   string
	help   string
	labels []string
	values sync.Map // map[string]*uint64
}

// Histogram tracks distributions of values
type Histogram struct {
	name    string
	help    string
	labels  []string
	buckets []float64
	values  sync.Map // map[string]*histogramValue
}

type histogramValue struct {
	mu      sync.Mutex
	sum     float64
	count   uint64
	buckets []uint64
}

// Gauge is a metric that can go up and down
type Gauge struct {
	name   string
	help   string
	labels []string
	values sync.Map // map[string]*float64
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	m := &MetricsCollector{
		startTime: time.Now(),
	}

	m.loadsTotal = &Counter{
		name:   "bimdex_loads_total",
		help:   "Total number of load operations by outcome",
		labels: []string{"status"},
	}

	m.togglesTotal = &Counter{
		name:   "bimdex_visibility_toggles_total",
		help:   "Total number of visibility toggles by scope",
		labels: []string{"scope"},
	}

	m.searchesTotal = &Counter{
		name:   "bimdex_searches_total",
		help:   "Total number of tree searches",
		labels: []string{},
	}

	m.searchResultsTotal = &Counter{
		name:   "bimdex_search_results_total",
		help:   "Total number of search results returned",
		labels: []string{},
	}

	m.errorsTotal = &Counter{
		name:   "bimdex_errors_total",
		help:   "Total number of errors by code",
		labels: []string{"code"},
	}

	m.httpRequestsTotal = &Counter{
		name:   "bimdex_http_requests_total",
		help:   "Total number of HTTP requests by method and status",
		labels: []string{"method", "status"},
	}

	m.loadDuration = &Histogram{
		name:    "bimdex_load_duration_seconds",
		help:    "Duration of load operations in seconds",
		labels:  []string{},
		buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}

	m.matchRate = &Gauge{
		name:   "bimdex_match_rate",
		help:   "Fraction of renderable nodes matched to metadata (0-1)",
		labels: []string{},
	}

	m.renderableNodes = &Gauge{
		name:   "bimdex_renderable_nodes",
		help:   "Renderable nodes in the active load",
		labels: []string{},
	}

	m.matchedNodes = &Gauge{
		name:   "bimdex_matched_nodes",
		help:   "Metadata-matched nodes in the active load",
		labels: []string{},
	}

	m.treeGroups = &Gauge{
		name:   "bimdex_tree_groups",
		help:   "Structural groups in the active browse tree",
		labels: []string{},
	}

	m.treeCategories = &Gauge{
		name:   "bimdex_tree_categories",
		help:   "Category buckets in the active browse tree",
		labels: []string{},
	}

	m.goroutines = &Gauge{
		name:   "bimdex_goroutines",
		help:   "Number of goroutines",
		labels: []string{},
	}

	m.memoryAlloc = &Gauge{
		name:   "bimdex_memory_alloc_bytes",
		help:   "Allocated memory in bytes",
		labels: []string{},
	}

	return m
}

// LoadStarted implements engine.Observer
func (m *MetricsCollector) LoadStarted(loadID, snapshotPath string) {
	m.loadsTotal.Inc("started")
}

// LoadCompleted implements engine.Observer
func (m *MetricsCollector) LoadCompleted(loadID string, stats *browse.Stats, duration time.Duration) {
	m.loadsTotal.Inc("completed")
	m.loadDuration.Observe(duration.Seconds())
	if stats == nil {
		return
	}
	m.renderableNodes.Set(float64(stats.Renderable))
	m.matchedNodes.Set(float64(stats.Matched))
	m.treeGroups.Set(float64(stats.Groups))
	m.treeCategories.Set(float64(stats.Categories))
	if stats.Renderable > 0 {
		m.matchRate.Set(float64(stats.Matched) / float64(stats.Renderable))
	}
}

// LoadDiscarded implements engine.Observer
func (m *MetricsCollector) LoadDiscarded(loadID, reason string) {
	m.loadsTotal.Inc("discarded")
}

// VisibilityToggled implements engine.Observer
func (m *MetricsCollector) VisibilityToggled(scope string, count int, visible bool) {
	m.togglesTotal.Inc(scope)
}

// SearchPerformed implements engine.Observer
func (m *MetricsCollector) SearchPerformed(query string, matches int) {
	m.searchesTotal.Inc()
	m.searchResultsTotal.Add(uint64(matches))
}

// RecordError records an error by code
func (m *MetricsCollector) RecordError(code string) {
	m.errorsTotal.Inc(code)
}

// RecordHTTPRequest records one served request
func (m *MetricsCollector) RecordHTTPRequest(method string, status int) {
	m.httpRequestsTotal.Inc(method, fmt.Sprintf("%d", status))
}

// WritePrometheus writes metrics in Prometheus text format
func (m *MetricsCollector) WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Update runtime metrics
	m.goroutines.Set(float64(runtime.NumGoroutine()))
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.memoryAlloc.Set(float64(memStats.Alloc))

	fmt.Fprintf(w, "# HELP bimdex_info bimdex build information\n")
	fmt.Fprintf(w, "# TYPE bimdex_info gauge\n")
	fmt.Fprintf(w, "bimdex_info{version=%q} 1\n\n", version.Version)

	fmt.Fprintf(w, "# HELP bimdex_uptime_seconds Time since bimdex started\n")
	fmt.Fprintf(w, "# TYPE bimdex_uptime_seconds counter\n")
	fmt.Fprintf(w, "bimdex_uptime_seconds %.3f\n\n", time.Since(m.startTime).Seconds())

	m.writeCounter(w, m.loadsTotal)
	m.writeCounter(w, m.togglesTotal)
	m.writeCounter(w, m.searchesTotal)
	m.writeCounter(w, m.searchResultsTotal)
	m.writeCounter(w, m.errorsTotal)
	m.writeCounter(w, m.httpRequestsTotal)

	m.writeHistogram(w, m.loadDuration)

	m.writeGauge(w, m.matchRate)
	m.writeGauge(w, m.renderableNodes)
	m.writeGauge(w, m.matchedNodes)
	m.writeGauge(w, m.treeGroups)
	m.writeGauge(w, m.treeCategories)
	m.writeGauge(w, m.goroutines)
	m.writeGauge(w, m.memoryAlloc)
}

func (m *MetricsCollector) writeCounter(w http.ResponseWriter, c *Counter) {
	fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
	fmt.Fprintf(w, "# TYPE %s counter\n", c.name)

	var keys []string
	c.values.Range(func(key, value interface{}) bool {
		keys = append(keys, key.(string))
		return true
	})
	sort.Strings(keys)

	for _, key := range keys {
		val, _ := c.values.Load(key)
		if ptr, ok := val.(*uint64); ok {
			fmt.Fprintf(w, "%s%s %d\n", c.name, key, atomic.LoadUint64(ptr))
		}
	}
	fmt.Fprintln(w)
}

func (m *MetricsCollector) writeHistogram(w http.ResponseWriter, h *Histogram) {
	fmt.Fprintf(w, "# HELP %s %s\n", h.name, h.help)
	fmt.Fprintf(w, "# TYPE %s histogram\n", h.name)

	var keys []string
	h.values.Range(func(key, value interface{}) bool {
		keys = append(keys, key.(string))
		return true
	})
	sort.Strings(keys)

	for _, key := range keys {
		val, _ := h.values.Load(key)
		hv, ok := val.(*histogramValue)
		if !ok {
			continue
		}
		hv.mu.Lock()
		cumulative := uint64(0)
		for i, bucket := range h.buckets {
			cumulative += hv.buckets[i]
			fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, bucketKey(key, fmt.Sprintf("%g", bucket)), cumulative)
		}
		cumulative += hv.buckets[len(h.buckets)]
		fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, bucketKey(key, "+Inf"), cumulative)
		fmt.Fprintf(w, "%s_sum%s %.6f\n", h.name, key, hv.sum)
		fmt.Fprintf(w, "%s_count%s %d\n", h.name, key, hv.count)
		hv.mu.Unlock()
	}
	fmt.Fprintln(w)
}

// bucketKey splices the le label into an existing label key.
func bucketKey(key, le string) string {
	if key == "" {
		return fmt.Sprintf("{le=%q}", le)
	}
	return key[:len(key)-1] + fmt.Sprintf(",le=%q}", le)
}

func (m *MetricsCollector) writeGauge(w http.ResponseWriter, g *Gauge) {
	fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help)
	fmt.Fprintf(w, "# TYPE %s gauge\n", g.name)

	var keys []string
	g.values.Range(func(key, value interface{}) bool {
		keys = append(keys, key.(string))
		return true
	})
	sort.Strings(keys)

	for _, key := range keys {
		val, _ := g.values.Load(key)
		if ptr, ok := val.(*float64); ok {
			fmt.Fprintf(w, "%s%s %.6f\n", g.name, key, *ptr)
		}
	}
	fmt.Fprintln(w)
}

// Counter methods
func (c *Counter) Inc(labelValues ...string) {
	c.Add(1, labelValues...)
}

func (c *Counter) Add(delta uint64, labelValues ...string) {
	key := c.labelsToKey(labelValues)
	val, _ := c.values.LoadOrStore(key, new(uint64))
	atomic.AddUint64(val.(*uint64), delta)
}

func (c *Counter) labelsToKey(values []string) string {
	return labelsToKey(c.labels, values)
}

// Histogram methods
func (h *Histogram) Observe(value float64, labelValues ...string) {
	key := h.labelsToKey(labelValues)

	val, _ := h.values.LoadOrStore(key, &histogramValue{
		buckets: make([]uint64, len(h.buckets)+1), // +1 for +Inf
	})
	hv := val.(*histogramValue)

	hv.mu.Lock()
	defer hv.mu.Unlock()

	hv.sum += value
	hv.count++

	bucketIdx := len(h.buckets) // Default to +Inf
	for i, bound := range h.buckets {
		if value <= bound {
			bucketIdx = i
			break
		}
	}
	hv.buckets[bucketIdx]++
}

func (h *Histogram) labelsToKey(values []string) string {
	return labelsToKey(h.labels, values)
}

// Gauge methods
func (g *Gauge) Set(value float64, labelValues ...string) {
	key := labelsToKey(g.labels, labelValues)
	ptr := new(float64)
	*ptr = value
	g.values.Store(key, ptr)
}

func labelsToKey(labels, values []string) string {
	if len(labels) == 0 || len(values) == 0 {
		return ""
	}

	pairs := make([]string, 0, len(labels))
	for i, label := range labels {
		if i < len(values) {
			pairs = append(pairs, fmt.Sprintf("%s=%q", label, values[i]))
		}
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

// handleMetrics handles the /metrics endpoint
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}

	if s.metrics == nil {
		http.Error(w, "Metrics not enabled", http.StatusNotImplemented)
		return
	}

	s.metrics.WritePrometheus(w)
}
