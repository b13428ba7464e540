package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "lane.state_changed").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Run Lifecycle Events
// -----------------------------------------------------------------------------

// RunStartedEvent is emitted once when the scheduler begins a run.
type RunStartedEvent struct {
	baseEvent
	RunID   string
	Devices []string // selected device names, in request order
}

// NewRunStartedEvent creates a RunStartedEvent.
func NewRunStartedEvent(runID string, devices []string) RunStartedEvent {
	return RunStartedEvent{
		baseEvent: newBaseEvent("run.started"),
		RunID:     runID,
		Devices:   devices,
	}
}

// RunCompletedEvent is emitted once when every lane has reached a terminal
// state (or was force-terminated).
type RunCompletedEvent struct {
	baseEvent
	RunID    string
	Duration time.Duration
}

// NewRunCompletedEvent creates a RunCompletedEvent.
func NewRunCompletedEvent(runID string, duration time.Duration) RunCompletedEvent {
	return RunCompletedEvent{
		baseEvent: newBaseEvent("run.completed"),
		RunID:     runID,
		Duration:  duration,
	}
}

// -----------------------------------------------------------------------------
// Lane Events
// -----------------------------------------------------------------------------

// LaneStateChangedEvent is emitted whenever a device lane transitions.
// States are the scheduler's lane-state labels ("pending", "running",
// "succeeded", "failed", "timed_out", "cancelled").
type LaneStateChangedEvent struct {
	baseEvent
	Device   string
	OldState string
	NewState string
	Detail   string // error detail for failure states, empty otherwise
}

// NewLaneStateChangedEvent creates a LaneStateChangedEvent.
func NewLaneStateChangedEvent(device, oldState, newState, detail string) LaneStateChangedEvent {
	return LaneStateChangedEvent{
		baseEvent: newBaseEvent("lane.state_changed"),
		Device:    device,
		OldState:  oldState,
		NewState:  newState,
		Detail:    detail,
	}
}

// -----------------------------------------------------------------------------
// Task Events
// -----------------------------------------------------------------------------

// TaskStartedEvent is emitted when a lane hands a task to the backend.
type TaskStartedEvent struct {
	baseEvent
	Device string
	Task   string
	Entry  string
	Index  int // 0-based position in the lane's plan
	Total  int
}

// NewTaskStartedEvent creates a TaskStartedEvent.
func NewTaskStartedEvent(device, task, entry string, index, total int) TaskStartedEvent {
	return TaskStartedEvent{
		baseEvent: newBaseEvent("task.started"),
		Device:    device,
		Task:      task,
		Entry:     entry,
		Index:     index,
		Total:     total,
	}
}

// TaskFinishedEvent is emitted when the backend reports a terminal task
// status (or the task was aborted).
type TaskFinishedEvent struct {
	baseEvent
	Device  string
	Task    string
	Index   int
	Total   int
	Success bool
	Detail  string
}

// NewTaskFinishedEvent creates a TaskFinishedEvent.
func NewTaskFinishedEvent(device, task string, index, total int, success bool, detail string) TaskFinishedEvent {
	return TaskFinishedEvent{
		baseEvent: newBaseEvent("task.finished"),
		Device:    device,
		Task:      task,
		Index:     index,
		Total:     total,
		Success:   success,
		Detail:    detail,
	}
}
