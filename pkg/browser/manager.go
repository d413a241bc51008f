package browser

import (
	"context"
	"fmt"
	"sync"
)

// Manager tracks active browser sessions for a runtime, keyed by pool slot.
// Workers register their own slot's session; a concurrent Stop path closes
// all of them. Every read-modify-write goes through one mutex.
type Manager struct {
	runtime  Runtime
	sessions map[int]Session
	mu       sync.Mutex
	metrics  *Metrics
}

// NewManager creates a Manager backed by the provided runtime.
func NewManager(runtime Runtime) *Manager {
	return &Manager{
		runtime:  runtime,
		sessions: make(map[int]Session),
		metrics:  NewMetrics(),
	}
}

// Metrics returns the manager's counters.
func (m *Manager) Metrics() *Metrics {
	if m == nil {
		return nil
	}
	return m.metrics
}

// CreateSession allocates a new browser session for a slot.
func (m *Manager) CreateSession(ctx context.Context, slot int, cfg SessionConfig) (Session, error) {
	if m == nil || m.runtime == nil {
		return nil, ErrUnavailable
	}
	if slot < 0 {
		return nil, fmt.Errorf("slot must be non-negative, got %d", slot)
	}
	m.mu.Lock()
	if _, exists := m.sessions[slot]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("session already exists for slot %d", slot)
	}
	m.mu.Unlock()

	sess, err := m.runtime.NewSession(ctx, cfg)
	if err != nil {
		m.metrics.RecordFailure()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[slot] = sess
	m.mu.Unlock()
	m.metrics.RecordSessionCreated()
	return sess, nil
}

// GetSession returns a slot's session.
func (m *Manager) GetSession(slot int) (Session, bool) {
	if m == nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[slot]
	return sess, ok
}

// CloseSession closes and removes a slot's session.
func (m *Manager) CloseSession(slot int) error {
	if m == nil {
		return ErrUnavailable
	}
	m.mu.Lock()
	sess, ok := m.sessions[slot]
	if ok {
		delete(m.sessions, slot)
	}
	m.mu.Unlock()
	if !ok || sess == nil {
		return ErrSessionClosed
	}
	m.metrics.RecordSessionClosed()
	return sess.Close()
}

// ActiveSlots returns the slots that currently own a session.
func (m *Manager) ActiveSlots() []int {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	slots := make([]int, 0, len(m.sessions))
	for slot := range m.sessions {
		slots = append(slots, slot)
	}
	return slots
}

// Close closes all sessions and releases the runtime.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	sessions := make([]Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[int]Session)
	m.mu.Unlock()

	var lastErr error
	for _, sess := range sessions {
		if sess == nil {
			continue
		}
		m.metrics.RecordSessionClosed()
		if err := sess.Close(); err != nil {
			lastErr = err
		}
	}
	if m.runtime != nil {
		if err := m.runtime.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
