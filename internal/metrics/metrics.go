package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Registry is an in-memory metrics store served as JSON by the daemon's
// status endpoint. Counters only go up, gauges hold the latest value,
// timers accumulate duration statistics.
type Registry struct {
	mu        sync.RWMutex
	counters  map[string]float64
	gauges    map[string]float64
	timers    map[string]*timerStats
	startTime time.Time
}

type timerStats struct {
	Count int64   `json:"count"`
	SumMs float64 `json:"sum_ms"`
	MinMs float64 `json:"min_ms"`
	MaxMs float64 `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
}

func NewRegistry() *Registry {
	return &Registry{
		counters:  make(map[string]float64),
		gauges:    make(map[string]float64),
		timers:    make(map[string]*timerStats),
		startTime: time.Now(),
	}
}

var globalRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return globalRegistry
}

func (r *Registry) IncrementCounter(name string, labels map[string]string) {
	r.AddToCounter(name, 1, labels)
}

func (r *Registry) AddToCounter(name string, value float64, labels map[string]string) {
	key := metricKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[key] += value
}

func (r *Registry) SetGauge(name string, value float64, labels map[string]string) {
	key := metricKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[key] = value
}

func (r *Registry) RecordTimer(name string, d time.Duration, labels map[string]string) {
	key := metricKey(name, labels)
	ms := float64(d.Nanoseconds()) / 1e6

	r.mu.Lock()
	defer r.mu.Unlock()

	stats, ok := r.timers[key]
	if !ok {
		r.timers[key] = &timerStats{Count: 1, SumMs: ms, MinMs: ms, MaxMs: ms, AvgMs: ms}
		return
	}

	stats.Count++
	stats.SumMs += ms
	if ms < stats.MinMs {
		stats.MinMs = ms
	}
	if ms > stats.MaxMs {
		stats.MaxMs = ms
	}
	stats.AvgMs = stats.SumMs / float64(stats.Count)
}

// Counter returns the current value of a counter, mostly for tests.
func (r *Registry) Counter(name string, labels map[string]string) float64 {
	key := metricKey(name, labels)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[key]
}

// Gauge returns the current value of a gauge.
func (r *Registry) Gauge(name string, labels map[string]string) float64 {
	key := metricKey(name, labels)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gauges[key]
}

// Snapshot returns all metrics in a JSON-encodable shape.
func (r *Registry) Snapshot() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counters := make(map[string]float64, len(r.counters))
	for k, v := range r.counters {
		counters[k] = v
	}
	gauges := make(map[string]float64, len(r.gauges))
	for k, v := range r.gauges {
		gauges[k] = v
	}
	timers := make(map[string]timerStats, len(r.timers))
	for k, v := range r.timers {
		timers[k] = *v
	}

	return map[string]interface{}{
		"counters":  counters,
		"gauges":    gauges,
		"timers":    timers,
		"uptime_ms": time.Since(r.startTime).Milliseconds(),
		"timestamp": time.Now().Unix(),
	}
}

// metricKey folds labels into the metric name deterministically so the
// same label set always hits the same entry.
func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteByte('_')
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(labels[k])
	}
	return b.String()
}

// Convenience functions for the global registry.

func IncrementCounter(name string, labels map[string]string) {
	globalRegistry.IncrementCounter(name, labels)
}

func SetGauge(name string, value float64, labels map[string]string) {
	globalRegistry.SetGauge(name, value, labels)
}

func RecordTimer(name string, d time.Duration, labels map[string]string) {
	globalRegistry.RecordTimer(name, d, labels)
}
