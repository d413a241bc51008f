package pool

import "time"

// EventKind identifies the type of a pool event.
type EventKind string

const (
	// EventTaskStarted is emitted when a worker begins executing a task.
	EventTaskStarted EventKind = "task_started"

	// EventTaskCompleted is emitted exactly once per attempted task, success
	// or failure.
	EventTaskCompleted EventKind = "task_completed"

	// EventLoginRequired is emitted when a slot needs a human to complete
	// authentication in its browser window.
	EventLoginRequired EventKind = "login_required"

	// EventPoolFinished is the last event of a run. Emitted exactly once,
	// after which the event channel is closed.
	EventPoolFinished EventKind = "pool_finished"

	// EventLog carries informational progress messages.
	EventLog EventKind = "log"
)

// Event is one observation from a running pool. Events for a given slot are
// delivered in the order the worker produced them.
type Event struct {
	Kind      EventKind   `json:"kind"`
	RunID     string      `json:"run_id"`
	Slot      int         `json:"slot"`
	TaskID    int         `json:"task_id,omitempty"`
	Result    *TaskResult `json:"result,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
