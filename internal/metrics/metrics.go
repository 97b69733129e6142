// Package metrics keeps lightweight in-memory counters and timers for the
// daemon, exposed over the admin API.
package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Counter is a monotonically increasing value with optional labels.
type Counter struct {
	Name       string            `json:"name"`
	Value      float64           `json:"value"`
	Labels     map[string]string `json:"labels,omitempty"`
	LastUpdate time.Time         `json:"last_update"`
}

// Timer aggregates duration samples.
type Timer struct {
	Count   int64   `json:"count"`
	Sum     float64 `json:"sum_ms"`
	Min     float64 `json:"min_ms"`
	Max     float64 `json:"max_ms"`
	Average float64 `json:"avg_ms"`
	P95     float64 `json:"p95_ms,omitempty"`

	samples []float64
}

// Registry holds all metrics. The zero value is not usable; call
// NewRegistry.
type Registry struct {
	mu        sync.RWMutex
	counters  map[string]*Counter
	timers    map[string]*Timer
	startTime time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		counters:  make(map[string]*Counter),
		timers:    make(map[string]*Timer),
		startTime: time.Now(),
	}
}

var globalRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return globalRegistry
}

// Increment adds one to the named counter.
func (r *Registry) Increment(name string, labels map[string]string) {
	r.Add(name, 1, labels)
}

// Add adds value to the named counter, creating it on first use.
func (r *Registry) Add(name string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := metricKey(name, labels)
	if c, ok := r.counters[key]; ok {
		c.Value += value
		c.LastUpdate = time.Now()
		return
	}
	r.counters[key] = &Counter{
		Name:       name,
		Value:      value,
		Labels:     copyLabels(labels),
		LastUpdate: time.Now(),
	}
}

// Observe records one duration sample on the named timer. Only the last
// 1000 samples contribute to the percentile.
func (r *Registry) Observe(name string, d time.Duration, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := metricKey(name, labels)
	ms := float64(d.Nanoseconds()) / 1e6

	t, ok := r.timers[key]
	if !ok {
		t = &Timer{Min: ms, Max: ms}
		r.timers[key] = t
	}

	t.Count++
	t.Sum += ms
	t.Average = t.Sum / float64(t.Count)
	if ms < t.Min {
		t.Min = ms
	}
	if ms > t.Max {
		t.Max = ms
	}

	t.samples = append(t.samples, ms)
	if len(t.samples) > 1000 {
		t.samples = t.samples[len(t.samples)-1000:]
	}
	if len(t.samples) >= 10 {
		t.P95 = percentile(t.samples, 0.95)
	}
}

// Snapshot returns all metrics plus process uptime.
func (r *Registry) Snapshot() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counters := make(map[string]Counter, len(r.counters))
	for key, c := range r.counters {
		counters[key] = *c
	}
	timers := make(map[string]Timer, len(r.timers))
	for key, t := range r.timers {
		snapshot := *t
		snapshot.samples = nil
		timers[key] = snapshot
	}

	return map[string]interface{}{
		"counters":  counters,
		"timers":    timers,
		"uptime_ms": time.Since(r.startTime).Milliseconds(),
		"timestamp": time.Now().Unix(),
	}
}

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

func percentile(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	c := make(map[string]string, len(labels))
	for k, v := range labels {
		c[k] = v
	}
	return c
}

// Convenience functions for the process-wide registry.

func Increment(name string, labels map[string]string) {
	globalRegistry.Increment(name, labels)
}

func Observe(name string, d time.Duration, labels map[string]string) {
	globalRegistry.Observe(name, d, labels)
}

func Snapshot() map[string]interface{} {
	return globalRegistry.Snapshot()
}
