package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/theanhybdz2k4/new-sora/pkg/logging"
)

var (
	// ErrAlreadyRan is returned when Run is called on a manager that has
	// already started a run. Managers are single-use.
	ErrAlreadyRan = errors.New("pool: run already started")

	// ErrInvalidConcurrency is returned when Run is called with a
	// non-positive worker count.
	ErrInvalidConcurrency = errors.New("pool: concurrency must be positive")
)

// Options configures a Manager.
type Options struct {
	// LoginTimeout bounds how long a slot waits for a human to finish
	// logging in. Zero means the 300 second default.
	LoginTimeout time.Duration

	// LoginPollInterval is how often the login state is re-checked while
	// waiting. Zero means the 2 second default.
	LoginPollInterval time.Duration

	// EventBuffer sizes the event channel. Workers block when it fills, so
	// callers must drain Events() for the duration of the run.
	EventBuffer int

	// RunID overrides the generated run identity. Useful when log files and
	// bus subjects must share one ID chosen before the pool exists.
	RunID string

	// Logger receives structured run events. Optional.
	Logger *logging.Logger
}

// Manager coordinates a single run of tasks across a fixed set of worker
// slots. Each slot lazily opens one driver and keeps it for every task
// assigned to the slot. A Manager is single-use: construct, Run once,
// discard.
type Manager struct {
	factory DriverFactory
	opts    Options
	runID   string

	events  chan Event
	started atomic.Bool
	running atomic.Bool
	stopped chan struct{}
	stop    sync.Once

	mu      sync.Mutex
	results []TaskResult
}

// New creates a Manager for one run. The run identity is assigned here so
// observers can subscribe to its event subjects before Run is called.
func New(factory DriverFactory, opts Options) *Manager {
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = 300 * time.Second
	}
	if opts.LoginPollInterval <= 0 {
		opts.LoginPollInterval = 2 * time.Second
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 256
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	m := &Manager{
		factory: factory,
		opts:    opts,
		runID:   runID,
		events:  make(chan Event, opts.EventBuffer),
		stopped: make(chan struct{}),
	}
	m.running.Store(true)
	return m
}

// RunID returns the identity assigned to this run.
func (m *Manager) RunID() string { return m.runID }

// Events returns the ordered event stream for this run. The channel is
// closed after the PoolFinished event. Callers must drain it while Run is in
// flight.
func (m *Manager) Events() <-chan Event { return m.events }

// Running reports whether the pool is still accepting work. It flips to
// false exactly once, on Stop or when the run winds down.
func (m *Manager) Running() bool { return m.running.Load() }

// Stop requests an orderly shutdown. It is idempotent, safe from any
// goroutine, and returns immediately; in-flight tasks observe the
// cancellation at their next checkpoint. Calling Stop before Run yields a
// run with no attempted tasks and a single PoolFinished event.
func (m *Manager) Stop() {
	m.stop.Do(func() {
		m.running.Store(false)
		close(m.stopped)
	})
}

// Run executes tasks across concurrency worker slots and blocks until every
// worker has wound down. Task i is assigned to slot i mod concurrency, so
// assignment is deterministic and independent of task runtimes. The returned
// slice holds one result per attempted task, in completion order; tasks never
// attempted because of an early stop are absent. The event channel is
// finished and closed on every return except ErrAlreadyRan, which leaves the
// first call's stream alone.
func (m *Manager) Run(ctx context.Context, tasks []Task, concurrency int) ([]TaskResult, error) {
	if m.started.Swap(true) {
		return nil, ErrAlreadyRan
	}
	// Every exit of the owning Run call finishes the stream, so a consumer
	// draining Events never blocks on a run that errored out early.
	defer func() {
		m.Stop()
		m.emit(Event{Kind: EventPoolFinished})
		close(m.events)
	}()

	if concurrency <= 0 {
		return nil, ErrInvalidConcurrency
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-m.stopped:
			cancel()
		case <-runCtx.Done():
		}
	}()

	if len(tasks) < concurrency {
		concurrency = len(tasks)
	}

	m.logEvent(logging.LevelInfo, logging.CategoryPool, "run_started", "", map[string]any{
		"tasks":       len(tasks),
		"concurrency": concurrency,
	})

	var wg sync.WaitGroup
	for slot := 0; slot < concurrency; slot++ {
		assigned := make([]Task, 0, (len(tasks)+concurrency-1)/concurrency)
		for i := slot; i < len(tasks); i += concurrency {
			assigned = append(assigned, tasks[i])
		}

		w := &worker{slot: slot, tasks: assigned, m: m}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(runCtx)
		}()
	}
	wg.Wait()

	m.mu.Lock()
	results := make([]TaskResult, len(m.results))
	copy(results, m.results)
	m.mu.Unlock()

	m.logEvent(logging.LevelInfo, logging.CategoryPool, "run_finished", "", map[string]any{
		"results": len(results),
	})
	return results, nil
}

func (m *Manager) emit(ev Event) {
	ev.RunID = m.runID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	m.events <- ev
}

func (m *Manager) record(res TaskResult) {
	m.mu.Lock()
	m.results = append(m.results, res)
	m.mu.Unlock()
}

func (m *Manager) logEvent(level logging.Level, cat logging.Category, eventType, msg string, details map[string]any) {
	if m.opts.Logger == nil {
		return
	}
	_ = m.opts.Logger.Log(logging.Event{
		Level:     level,
		Category:  cat,
		EventType: eventType,
		RunID:     m.runID,
		Message:   msg,
		Details:   details,
	})
}
