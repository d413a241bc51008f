// Package pool runs generation tasks across a fixed set of browser workers.
// Each worker owns one persistent, lazily-created session; tasks stick to
// their slot for the whole run so the one-time login cost is paid once per
// profile, not once per task.
package pool

import "context"

// Task is one unit of requested content generation. It is read-only once the
// run starts; exactly one worker ever touches it.
type Task struct {
	// ID is the caller-assigned identity (the sheet row), used for
	// correlation in every event.
	ID int

	Prompt      string
	ImagePath   string // comma-separated reference image names, optional
	Kind        string // "image" or "video"
	AspectRatio string
	Duration    string // video only
	Resolution  string
	Variations  int

	// OutputPath is the caller-specified destination. When empty the driver
	// derives one from a timestamp and the media kind.
	OutputPath string
}

// TaskResult is the single terminal outcome of a task. Written exactly once
// by the worker that processed the task, immutable thereafter.
type TaskResult struct {
	TaskID       int    `json:"task_id"`
	Succeeded    bool   `json:"succeeded"`
	Message      string `json:"message"`
	ProducedPath string `json:"produced_path,omitempty"`
}

// Driver performs the page-interaction workflow for one browser session.
// Implementations own the selector strategy and retry tolerance; the pool
// only sequences calls and aggregates results.
type Driver interface {
	// Navigate loads the target application.
	Navigate(ctx context.Context) error

	// Authenticated reports whether the session shows the logged-in
	// indicator.
	Authenticated(ctx context.Context) (bool, error)

	// RunWorkflow executes the full generation workflow for one task.
	// Failures surface in the result, never as a panic or escaping error.
	RunWorkflow(ctx context.Context, task *Task) *TaskResult

	// Close releases the underlying session. Safe to call on every exit
	// path.
	Close() error
}

// DriverFactory creates one Driver per pool slot. The returned driver owns a
// session bound to the slot's persistent profile.
type DriverFactory interface {
	Open(ctx context.Context, slot int) (Driver, error)
}
