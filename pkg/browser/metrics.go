package browser

import (
	"sync/atomic"
	"time"
)

// Metrics tracks browser runtime performance counters.
type Metrics struct {
	// Session counts
	SessionsCreated atomic.Int64
	SessionsClosed  atomic.Int64
	ActiveSessions  atomic.Int64

	// Operation counts
	NavigateCount atomic.Int64
	FindCount     atomic.Int64
	ActionCount   atomic.Int64
	FailureCount  atomic.Int64

	// Navigation latency
	NavigateLatencySum   atomic.Int64 // nanoseconds sum for averaging
	NavigateLatencyCount atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordSessionCreated increments session creation counters.
func (m *Metrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Add(1)
	m.ActiveSessions.Add(1)
}

// RecordSessionClosed increments session close counters.
func (m *Metrics) RecordSessionClosed() {
	if m == nil {
		return
	}
	m.SessionsClosed.Add(1)
	m.ActiveSessions.Add(-1)
}

// RecordNavigate tracks a navigation and its latency.
func (m *Metrics) RecordNavigate(latency time.Duration) {
	if m == nil {
		return
	}
	m.NavigateCount.Add(1)
	m.NavigateLatencySum.Add(latency.Nanoseconds())
	m.NavigateLatencyCount.Add(1)
}

// RecordFind increments the element lookup counter.
func (m *Metrics) RecordFind() {
	if m == nil {
		return
	}
	m.FindCount.Add(1)
}

// RecordAction increments the action counter.
func (m *Metrics) RecordAction() {
	if m == nil {
		return
	}
	m.ActionCount.Add(1)
}

// RecordFailure increments the failure counter.
func (m *Metrics) RecordFailure() {
	if m == nil {
		return
	}
	m.FailureCount.Add(1)
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	avgNav := time.Duration(0)
	count := m.NavigateLatencyCount.Load()
	if count > 0 {
		avgNav = time.Duration(m.NavigateLatencySum.Load() / count)
	}
	return MetricsSnapshot{
		SessionsCreated:        m.SessionsCreated.Load(),
		SessionsClosed:         m.SessionsClosed.Load(),
		ActiveSessions:         m.ActiveSessions.Load(),
		NavigateCount:          m.NavigateCount.Load(),
		FindCount:              m.FindCount.Load(),
		ActionCount:            m.ActionCount.Load(),
		FailureCount:           m.FailureCount.Load(),
		AverageNavigateLatency: avgNav,
	}
}

// MetricsSnapshot is a point-in-time copy of browser metrics.
type MetricsSnapshot struct {
	SessionsCreated        int64
	SessionsClosed         int64
	ActiveSessions         int64
	NavigateCount          int64
	FindCount              int64
	ActionCount            int64
	FailureCount           int64
	AverageNavigateLatency time.Duration
}
