// Package scheduler runs per-device execution plans concurrently. Each
// selected device gets one lane: a single goroutine that consumes the
// device's task list sequentially, delegating execution to the automation
// backend and awaiting a terminal status before advancing. Lanes are
// isolated; a failure in one never affects another. Cancellation is
// cooperative first (context), forced second (ForceAbort), and the
// cancellation cause decides whether interrupted lanes end TimedOut or
// Cancelled.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asagiri-dev/mfwrun/internal/backend"
	mfwerrors "github.com/asagiri-dev/mfwrun/internal/errors"
	"github.com/asagiri-dev/mfwrun/internal/event"
	"github.com/asagiri-dev/mfwrun/internal/logging"
	"github.com/asagiri-dev/mfwrun/internal/planner"
)

// TaskOutcome records one task invocation within a lane.
type TaskOutcome struct {
	Task     string
	Success  bool
	Detail   string
	Duration time.Duration
}

// DeviceResult is one device's slot in the run result. It is written only
// by the owning lane while the run is live and copied out on snapshot.
type DeviceResult struct {
	Device   string
	Resource string
	State    LaneState
	Tasks    []TaskOutcome

	// FailedTask and Detail describe the first failure for lanes that did
	// not succeed. Empty for successful lanes.
	FailedTask string
	Detail     string
}

// RunResult aggregates every lane's terminal result.
type RunResult struct {
	RunID    string
	Devices  []DeviceResult
	Duration time.Duration
}

// AllSucceeded reports whether every device lane ended Succeeded.
func (r *RunResult) AllSucceeded() bool {
	for _, d := range r.Devices {
		if d.State != StateSucceeded {
			return false
		}
	}
	return true
}

// lane is the mutable state for one device, guarded by its own mutex so
// lanes never contend with each other.
type lane struct {
	mu     sync.Mutex
	plan   *planner.Plan
	state  LaneState
	result DeviceResult

	// inflight is the handle for the currently executing task, if any.
	// ForceAbort reads it to terminate the task unconditionally.
	inflight backend.Handle
}

// transition moves the lane to a new state if the transition is legal and
// returns the old state. Callers publish events outside the lock.
func (l *lane) transition(to LaneState) (LaneState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	from := l.state
	if !canTransition(from, to) {
		return from, false
	}
	l.state = to
	l.result.State = to
	return from, true
}

func (l *lane) setInflight(h backend.Handle) {
	l.mu.Lock()
	l.inflight = h
	l.mu.Unlock()
}

func (l *lane) recordOutcome(o TaskOutcome) {
	l.mu.Lock()
	l.result.Tasks = append(l.result.Tasks, o)
	if !o.Success && l.result.FailedTask == "" {
		l.result.FailedTask = o.Task
		l.result.Detail = o.Detail
	}
	l.mu.Unlock()
}

func (l *lane) snapshot() DeviceResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.result
	out.Tasks = make([]TaskOutcome, len(l.result.Tasks))
	copy(out.Tasks, l.result.Tasks)
	return out
}

// Scheduler coordinates one run's device lanes. It is safe for concurrent
// use by the supervisor (ForceAbort, Snapshot) while Run is in flight.
type Scheduler struct {
	backend backend.Backend
	bus     *event.Bus
	logger  *logging.Logger

	mu    sync.Mutex
	lanes []*lane
	runID string
	start time.Time
}

// New creates a scheduler executing tasks through the given backend.
// Events are published to bus if it is non-nil.
func New(b backend.Backend, bus *event.Bus, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Scheduler{backend: b, bus: bus, logger: logger}
}

// Run executes every plan concurrently and blocks until all lanes reach a
// terminal state. The context carries cancellation: when it is canceled
// with cause ErrRunTimeout lanes end TimedOut, any other cause ends them
// Cancelled. Run returns the aggregated result; one result slot exists per
// device, written only by its owning lane.
func (s *Scheduler) Run(ctx context.Context, runID string, plans []*planner.Plan) *RunResult {
	s.mu.Lock()
	s.runID = runID
	s.start = time.Now()
	s.lanes = make([]*lane, len(plans))
	devices := make([]string, len(plans))
	for i, p := range plans {
		s.lanes[i] = &lane{
			plan:  p,
			state: StatePending,
			result: DeviceResult{
				Device:   p.Device,
				Resource: p.Resource,
				State:    StatePending,
			},
		}
		devices[i] = p.Device
	}
	lanes := s.lanes
	s.mu.Unlock()

	s.publish(event.NewRunStartedEvent(runID, devices))
	s.logger.Info("run started", "run_id", runID, "devices", len(plans))

	var wg sync.WaitGroup
	for _, l := range lanes {
		wg.Add(1)
		go func(l *lane) {
			defer wg.Done()
			s.runLane(ctx, l)
		}(l)
	}
	wg.Wait()

	result := s.Snapshot()
	s.publish(event.NewRunCompletedEvent(runID, result.Duration))
	s.logger.Info("run completed", "run_id", runID, "duration", result.Duration.String())
	return result
}

// runLane drives one device through its plan, sequentially and fail-fast.
func (s *Scheduler) runLane(ctx context.Context, l *lane) {
	log := s.logger.WithRun(l.plan.RunID).WithDevice(l.plan.Device)

	if ctx.Err() != nil {
		s.setState(l, s.interruptState(ctx), "")
		return
	}

	s.setState(l, StateRunning, "")

	total := len(l.plan.Tasks)
	for i := range l.plan.Tasks {
		task := &l.plan.Tasks[i]
		if ctx.Err() != nil {
			s.setState(l, s.interruptState(ctx), "")
			return
		}

		invocationID := uuid.NewString()
		log.Info("task started",
			"task", task.Name,
			"entry", task.Entry,
			"invocation_id", invocationID,
			"position", i+1,
			"total", total)
		s.publish(event.NewTaskStartedEvent(l.plan.Device, task.Name, task.Entry, i, total))

		started := time.Now()
		handle, err := s.backend.StartTask(ctx, l.plan.TaskSpec(i))
		if err != nil {
			if ctx.Err() != nil {
				s.setState(l, s.interruptState(ctx), "")
				return
			}
			execErr := mfwerrors.NewExecutionError(l.plan.Device, task.Name, err)
			outcome := TaskOutcome{Task: task.Name, Detail: execErr.Error(), Duration: time.Since(started)}
			l.recordOutcome(outcome)
			s.publish(event.NewTaskFinishedEvent(l.plan.Device, task.Name, i, total, false, outcome.Detail))
			log.Error("task start failed", "task", task.Name, "error", err)
			s.setState(l, StateFailed, outcome.Detail)
			return
		}

		l.setInflight(handle)
		res, err := handle.Await(ctx)
		l.setInflight(nil)

		if err != nil {
			// The context was canceled or the backend lost the task; abort
			// whatever is still in flight before settling the lane.
			_ = handle.Abort()
			if ctx.Err() != nil {
				interrupted := TaskOutcome{Task: task.Name, Detail: "interrupted", Duration: time.Since(started)}
				l.recordOutcome(interrupted)
				s.publish(event.NewTaskFinishedEvent(l.plan.Device, task.Name, i, total, false, interrupted.Detail))
				s.setState(l, s.interruptState(ctx), "")
				return
			}
			execErr := mfwerrors.NewExecutionError(l.plan.Device, task.Name, err)
			outcome := TaskOutcome{Task: task.Name, Detail: execErr.Error(), Duration: time.Since(started)}
			l.recordOutcome(outcome)
			s.publish(event.NewTaskFinishedEvent(l.plan.Device, task.Name, i, total, false, outcome.Detail))
			log.Error("task lost", "task", task.Name, "error", err)
			s.setState(l, StateFailed, outcome.Detail)
			return
		}

		outcome := TaskOutcome{
			Task:     task.Name,
			Success:  res.Status == backend.StatusSucceeded,
			Detail:   res.Detail,
			Duration: time.Since(started),
		}
		l.recordOutcome(outcome)
		s.publish(event.NewTaskFinishedEvent(l.plan.Device, task.Name, i, total, outcome.Success, outcome.Detail))

		if !outcome.Success {
			log.Warn("task failed", "task", task.Name, "detail", res.Detail)
			s.setState(l, StateFailed, res.Detail)
			return
		}
		log.Info("task finished", "task", task.Name, "duration", outcome.Duration.String())
	}

	s.setState(l, StateSucceeded, "")
}

// interruptState maps the cancellation cause to the matching terminal state.
func (s *Scheduler) interruptState(ctx context.Context) LaneState {
	if mfwerrors.Is(context.Cause(ctx), mfwerrors.ErrRunTimeout) {
		return StateTimedOut
	}
	return StateCancelled
}

// setState applies a lane transition and publishes the change outside the
// lane lock.
func (s *Scheduler) setState(l *lane, to LaneState, detail string) {
	from, ok := l.transition(to)
	if !ok {
		return
	}
	s.logger.Info("lane state changed",
		"device", l.plan.Device,
		"old_state", from.String(),
		"new_state", to.String())
	s.publish(event.NewLaneStateChangedEvent(l.plan.Device, from.String(), to.String(), detail))
}

// ForceAbort unconditionally aborts every in-flight task. It is safe to
// call at any time, including concurrently with Run, and is idempotent.
func (s *Scheduler) ForceAbort() {
	s.mu.Lock()
	lanes := s.lanes
	s.mu.Unlock()

	for _, l := range lanes {
		l.mu.Lock()
		h := l.inflight
		l.mu.Unlock()
		if h != nil {
			if err := h.Abort(); err != nil {
				s.logger.Warn("force abort failed", "device", l.plan.Device, "error", err)
			}
		}
	}
}

// Snapshot copies the current per-device results. During a run it reflects
// in-progress state; after Run returns it is the final result.
func (s *Scheduler) Snapshot() *RunResult {
	s.mu.Lock()
	lanes := s.lanes
	runID := s.runID
	start := s.start
	s.mu.Unlock()

	result := &RunResult{RunID: runID, Devices: make([]DeviceResult, len(lanes))}
	for i, l := range lanes {
		result.Devices[i] = l.snapshot()
	}
	if !start.IsZero() {
		result.Duration = time.Since(start)
	}
	return result
}

func (s *Scheduler) publish(e event.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}
