// Package metrics keeps in-process latency percentiles for workflow steps.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Tracker keeps a sliding window of durations.
type Tracker struct {
	mu      sync.Mutex
	samples []time.Duration
	window  int
	total   int64
}

func NewTracker(window int) *Tracker {
	if window <= 0 {
		window = 500
	}
	return &Tracker{samples: make([]time.Duration, 0, window), window: window}
}

func (t *Tracker) Record(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.samples) >= t.window {
		// drop the oldest tenth at once
		drop := t.window / 10
		if drop < 1 {
			drop = 1
		}
		t.samples = append(t.samples[:0], t.samples[drop:]...)
	}
	t.samples = append(t.samples, d)
	t.total++
}

// Summary describes the samples currently in the window. Count is the
// lifetime number of recordings.
type Summary struct {
	Count int64   `json:"count"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	MaxMs float64 `json:"max_ms"`
}

func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	sorted := make([]time.Duration, len(t.samples))
	copy(sorted, t.samples)
	total := t.total
	t.mu.Unlock()

	if len(sorted) == 0 {
		return Summary{Count: total}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	return Summary{
		Count: total,
		AvgMs: ms(sum / time.Duration(len(sorted))),
		P50Ms: ms(percentile(sorted, 0.50)),
		P95Ms: ms(percentile(sorted, 0.95)),
		MaxMs: ms(sorted[len(sorted)-1]),
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	return sorted[int(float64(len(sorted)-1)*p)]
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// Registry holds one tracker per name.
type Registry struct {
	mu       sync.RWMutex
	trackers map[string]*Tracker
	window   int
}

func NewRegistry(window int) *Registry {
	return &Registry{trackers: make(map[string]*Tracker), window: window}
}

func (r *Registry) Record(name string, d time.Duration) {
	r.mu.RLock()
	t, ok := r.trackers[name]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		if t, ok = r.trackers[name]; !ok {
			t = NewTracker(r.window)
			r.trackers[name] = t
		}
		r.mu.Unlock()
	}
	t.Record(d)
}

// Summaries returns a snapshot keyed by name.
func (r *Registry) Summaries() map[string]Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Summary, len(r.trackers))
	for name, t := range r.trackers {
		out[name] = t.Summary()
	}
	return out
}
