package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/theanhybdz2k4/new-sora/pkg/logging"
)

// errStopped marks a worker exit caused by pool shutdown rather than a slot
// failure. Tasks not yet attempted get no terminal status in that case.
var errStopped = errors.New("pool stopped")

// authState tracks a slot's position in the login lifecycle. The state only
// moves forward; once a session is authenticated it stays authenticated for
// the remainder of the run.
type authState int

const (
	authUnknown authState = iota
	authAwaitingHuman
	authAuthenticated
)

// worker drains one slot's task list over a single driver. It is the only
// goroutine that ever touches that driver.
type worker struct {
	slot  int
	tasks []Task
	m     *Manager

	state authState
}

func (w *worker) run(ctx context.Context) {
	if len(w.tasks) == 0 {
		return
	}
	if w.halted(ctx) {
		return
	}

	drv, err := w.m.factory.Open(ctx, w.slot)
	if err != nil {
		if w.halted(ctx) {
			return
		}
		w.logSlot(logging.LevelError, "session_failed", err.Error())
		w.failAll(fmt.Sprintf("session creation failed: %v", err))
		return
	}
	defer drv.Close()

	if err := w.authenticate(ctx, drv); err != nil {
		if errors.Is(err, errStopped) {
			return
		}
		w.logSlot(logging.LevelError, "auth_failed", err.Error())
		w.failAll(err.Error())
		return
	}

	for i := range w.tasks {
		if w.halted(ctx) {
			return
		}
		task := w.tasks[i]

		w.m.emit(Event{Kind: EventTaskStarted, Slot: w.slot, TaskID: task.ID})
		res := w.execute(ctx, drv, task)
		w.m.record(*res)
		w.m.emit(Event{Kind: EventTaskCompleted, Slot: w.slot, TaskID: task.ID, Result: res, Message: res.Message})
	}
}

// authenticate drives the login lifecycle for the slot's session. If the
// page is not already logged in it announces LoginRequired once and then
// polls until a human completes the login, the timeout lapses, or the pool
// stops.
func (w *worker) authenticate(ctx context.Context, drv Driver) error {
	if err := drv.Navigate(ctx); err != nil {
		if w.halted(ctx) {
			return errStopped
		}
		return fmt.Errorf("navigation failed: %v", err)
	}

	ok, err := drv.Authenticated(ctx)
	if err != nil && w.halted(ctx) {
		return errStopped
	}
	if ok {
		w.state = authAuthenticated
		return nil
	}

	w.state = authAwaitingHuman
	w.m.emit(Event{Kind: EventLoginRequired, Slot: w.slot, Message: "waiting for login"})
	w.logSlot(logging.LevelInfo, "login_required", "waiting for human login")

	deadline := time.Now().Add(w.m.opts.LoginTimeout)
	ticker := time.NewTicker(w.m.opts.LoginPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return errStopped
		case <-ticker.C:
		}
		if w.halted(ctx) {
			return errStopped
		}

		ok, err := drv.Authenticated(ctx)
		if err == nil && ok {
			w.state = authAuthenticated
			w.logSlot(logging.LevelInfo, "login_completed", "")
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("authentication timed out")
		}
	}
}

// execute runs one task, converting any driver panic into a failed result so
// a misbehaving page can never take down the pool.
func (w *worker) execute(ctx context.Context, drv Driver, task Task) (res *TaskResult) {
	defer func() {
		if r := recover(); r != nil {
			w.logSlot(logging.LevelError, "task_panic", fmt.Sprint(r))
			res = &TaskResult{TaskID: task.ID, Succeeded: false, Message: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	res = drv.RunWorkflow(ctx, &task)
	if res == nil {
		res = &TaskResult{TaskID: task.ID, Succeeded: false, Message: "driver returned no result"}
	}
	res.TaskID = task.ID
	return res
}

// failAll records a terminal failure for every task assigned to the slot.
// Used when the slot itself is unusable; the rest of the pool keeps running.
func (w *worker) failAll(reason string) {
	for _, task := range w.tasks {
		res := TaskResult{TaskID: task.ID, Succeeded: false, Message: reason}
		w.m.record(res)
		w.m.emit(Event{Kind: EventTaskCompleted, Slot: w.slot, TaskID: task.ID, Result: &res, Message: reason})
	}
}

func (w *worker) halted(ctx context.Context) bool {
	return !w.m.running.Load() || ctx.Err() != nil
}

func (w *worker) logSlot(level logging.Level, eventType, msg string) {
	if w.m.opts.Logger == nil {
		return
	}
	_ = w.m.opts.Logger.Log(logging.Event{
		Level:     level,
		Category:  logging.CategoryWorker,
		EventType: eventType,
		RunID:     w.m.runID,
		Slot:      w.slot,
		Message:   msg,
	})
}
