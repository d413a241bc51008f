package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// fakeRuntime implements Runtime for testing.
type fakeRuntime struct {
	mu      sync.Mutex
	created int
	failing bool
	closed  bool
}

func (r *fakeRuntime) NewSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return nil, errors.New("runtime down")
	}
	r.created++
	return &fakeSession{id: cfg.SessionID}, nil
}

func (r *fakeRuntime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

type fakeSession struct {
	id     string
	closed bool
}

func (s *fakeSession) ID() string                                      { return s.id }
func (s *fakeSession) Navigate(ctx context.Context, url string) error  { return nil }
func (s *fakeSession) CurrentURL(ctx context.Context) (string, error)  { return "about:blank", nil }
func (s *fakeSession) Find(ctx context.Context, sel Selector) (Element, error) {
	return nil, ErrNoSuchElement
}
func (s *fakeSession) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	return nil, nil
}
func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func TestManager_CreateAndGet(t *testing.T) {
	rt := &fakeRuntime{}
	m := NewManager(rt)
	ctx := context.Background()

	sess, err := m.CreateSession(ctx, 0, SessionConfig{SessionID: "profile_0"})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if sess.ID() != "profile_0" {
		t.Errorf("ID = %q, want profile_0", sess.ID())
	}

	got, ok := m.GetSession(0)
	if !ok || got != sess {
		t.Error("GetSession(0) should return the created session")
	}

	if _, ok := m.GetSession(1); ok {
		t.Error("GetSession(1) should report missing session")
	}
}

func TestManager_DuplicateSlotRejected(t *testing.T) {
	m := NewManager(&fakeRuntime{})
	ctx := context.Background()

	if _, err := m.CreateSession(ctx, 2, SessionConfig{SessionID: "profile_2"}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := m.CreateSession(ctx, 2, SessionConfig{SessionID: "profile_2"}); err == nil {
		t.Error("second CreateSession for the same slot should fail")
	}
}

func TestManager_NegativeSlotRejected(t *testing.T) {
	m := NewManager(&fakeRuntime{})
	if _, err := m.CreateSession(context.Background(), -1, SessionConfig{}); err == nil {
		t.Error("CreateSession(-1) should fail")
	}
}

func TestManager_CloseSession(t *testing.T) {
	m := NewManager(&fakeRuntime{})
	ctx := context.Background()

	sess, _ := m.CreateSession(ctx, 0, SessionConfig{SessionID: "profile_0"})

	if err := m.CloseSession(0); err != nil {
		t.Errorf("CloseSession() error = %v", err)
	}
	if !sess.(*fakeSession).closed {
		t.Error("underlying session should be closed")
	}
	if _, ok := m.GetSession(0); ok {
		t.Error("closed session should be removed from the registry")
	}
	if err := m.CloseSession(0); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("closing a missing slot = %v, want ErrSessionClosed", err)
	}
}

func TestManager_CloseAll(t *testing.T) {
	rt := &fakeRuntime{}
	m := NewManager(rt)
	ctx := context.Background()

	sessions := make([]*fakeSession, 0, 3)
	for slot := 0; slot < 3; slot++ {
		s, err := m.CreateSession(ctx, slot, SessionConfig{SessionID: fmt.Sprintf("profile_%d", slot)})
		if err != nil {
			t.Fatalf("CreateSession(%d) error = %v", slot, err)
		}
		sessions = append(sessions, s.(*fakeSession))
	}

	if err := m.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	for i, s := range sessions {
		if !s.closed {
			t.Errorf("session %d not closed", i)
		}
	}
	if !rt.closed {
		t.Error("runtime should be closed")
	}
	if got := len(m.ActiveSlots()); got != 0 {
		t.Errorf("ActiveSlots() = %d, want 0", got)
	}
}

func TestManager_MetricsTrackSessions(t *testing.T) {
	m := NewManager(&fakeRuntime{})
	ctx := context.Background()

	m.CreateSession(ctx, 0, SessionConfig{SessionID: "profile_0"})
	m.CreateSession(ctx, 1, SessionConfig{SessionID: "profile_1"})
	m.CloseSession(0)

	snap := m.Metrics().Snapshot()
	if snap.SessionsCreated != 2 {
		t.Errorf("SessionsCreated = %d, want 2", snap.SessionsCreated)
	}
	if snap.SessionsClosed != 1 {
		t.Errorf("SessionsClosed = %d, want 1", snap.SessionsClosed)
	}
	if snap.ActiveSessions != 1 {
		t.Errorf("ActiveSessions = %d, want 1", snap.ActiveSessions)
	}
}

func TestManager_CreateFailureCounted(t *testing.T) {
	rt := &fakeRuntime{failing: true}
	m := NewManager(rt)

	if _, err := m.CreateSession(context.Background(), 0, SessionConfig{}); err == nil {
		t.Fatal("CreateSession should fail when runtime is down")
	}
	if got := m.Metrics().Snapshot().FailureCount; got != 1 {
		t.Errorf("FailureCount = %d, want 1", got)
	}
}
