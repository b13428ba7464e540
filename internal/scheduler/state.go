package scheduler

// LaneState is the lifecycle state of one device lane.
type LaneState int

const (
	StatePending LaneState = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateTimedOut
	StateCancelled
)

// String returns the lowercase label used in logs and events.
func (s LaneState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// IsTerminal reports whether the state admits no further transitions.
func (s LaneState) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateTimedOut, StateCancelled:
		return true
	}
	return false
}

// canTransition reports whether a lane may move from one state to another.
// Terminal states are final; Pending may be cancelled without ever running.
func canTransition(from, to LaneState) bool {
	if from.IsTerminal() || from == to {
		return false
	}
	switch from {
	case StatePending:
		return to == StateRunning || to == StateCancelled || to == StateTimedOut
	case StateRunning:
		return to.IsTerminal()
	}
	return false
}
