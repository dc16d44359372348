package service

import (
	"sync"
	"time"
)

const (
	DefaultLatencyWindow = 100
	DefaultMaxLatency    = 100 * time.Millisecond
)

// Performance status derived from the rolling latency window.
const (
	PerfHealthy  = "healthy"
	PerfDegraded = "degraded"
)

// Monitor keeps a fixed-capacity sliding window of emit latencies plus
// per-event-type counters. The counters are reset periodically by the
// hub's janitor loop to bound memory over long uptimes.
type Monitor struct {
	mu sync.Mutex

	window   []float64 // latency samples, milliseconds
	capacity int
	next     int

	maxLatency time.Duration
	counts     map[string]int64
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithLatencyWindow sets the sliding window capacity.
func WithLatencyWindow(n int) MonitorOption {
	return func(m *Monitor) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// WithMaxLatency sets the rolling-average threshold above which the hub is
// reported degraded.
func WithMaxLatency(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.maxLatency = d
		}
	}
}

func NewMonitor(opts ...MonitorOption) *Monitor {
	m := &Monitor{
		capacity:   DefaultLatencyWindow,
		maxLatency: DefaultMaxLatency,
		counts:     make(map[string]int64),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.window = make([]float64, 0, m.capacity)
	return m
}

// RecordLatency appends a latency sample, dropping the oldest when the
// window is full.
func (m *Monitor) RecordLatency(start, end time.Time) {
	sample := float64(end.Sub(start).Microseconds()) / 1000.0

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.window) < m.capacity {
		m.window = append(m.window, sample)
		return
	}
	m.window[m.next] = sample
	m.next = (m.next + 1) % m.capacity
}

// RecordEvent increments the per-type counter.
func (m *Monitor) RecordEvent(eventType string) {
	m.mu.Lock()
	m.counts[eventType]++
	m.mu.Unlock()
}

// ResetCounts clears the per-type counters.
func (m *Monitor) ResetCounts() {
	m.mu.Lock()
	m.counts = make(map[string]int64)
	m.mu.Unlock()
}

// PerformanceSnapshot is a point-in-time view of the emit path, exposed in
// emit results and the health aggregate. Latencies are milliseconds.
type PerformanceSnapshot struct {
	Status         string           `json:"status"`
	AverageLatency float64          `json:"averageLatency"`
	MaxLatency     float64          `json:"maxLatency"`
	MinLatency     float64          `json:"minLatency"`
	EventCounts    map[string]int64 `json:"eventCounts"`
}

// Snapshot derives the current performance view.
func (m *Monitor) Snapshot() PerformanceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := PerformanceSnapshot{
		Status:      PerfHealthy,
		EventCounts: make(map[string]int64, len(m.counts)),
	}
	for t, n := range m.counts {
		snap.EventCounts[t] = n
	}

	if len(m.window) == 0 {
		return snap
	}

	var sum float64
	snap.MinLatency = m.window[0]
	for _, sample := range m.window {
		sum += sample
		if sample > snap.MaxLatency {
			snap.MaxLatency = sample
		}
		if sample < snap.MinLatency {
			snap.MinLatency = sample
		}
	}
	snap.AverageLatency = sum / float64(len(m.window))

	if snap.AverageLatency > float64(m.maxLatency.Microseconds())/1000.0 {
		snap.Status = PerfDegraded
	}
	return snap
}
