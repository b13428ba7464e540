// Package backend defines the automation backend contract: the external
// capability that actually executes a task entry against a device. The
// scheduler treats the backend as opaque; it starts a task, awaits a
// terminal outcome, and aborts on cancellation. Failures reported through
// the contract are translated into lane failures by the caller.
package backend

import (
	"context"
)

// Status is the terminal status a backend reports for one task.
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
)

// String returns a lowercase label for the status.
func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// TaskSpec describes one task invocation. Params carry the resolved option
// values referenced by the task; Overrides carry each referenced option's
// raw pipeline-override payload, forwarded verbatim.
type TaskSpec struct {
	RunID    string
	Device   string
	Address  string
	TaskName string
	Entry    string

	Params    map[string]any
	Overrides map[string]map[string]any

	// Agent invocation details, resolved from the resource descriptor by
	// the planner. Only process-backed implementations use them.
	AgentPath string
	AgentArgs []string
	WorkDir   string
}

// Outcome is the terminal result of one task.
type Outcome struct {
	Status Status
	Detail string
}

// Handle tracks one in-flight task.
type Handle interface {
	// Await blocks until the task reaches a terminal status. It returns an
	// error if the context is canceled first or the backend loses track of
	// the task; the task may still be running in that case and should be
	// aborted.
	Await(ctx context.Context) (Outcome, error)

	// Abort requests termination of the task and releases its resources.
	// It is safe to call after Await has returned and safe to call twice.
	Abort() error
}

// Backend starts task executions. Implementations must be safe for
// concurrent use: the scheduler calls StartTask from every device lane.
type Backend interface {
	StartTask(ctx context.Context, spec TaskSpec) (Handle, error)
}
