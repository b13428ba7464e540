// Package supervisor enforces the run deadline and drives shutdown. It
// races the scheduler against the configured timeout and the caller's
// context (interrupt), then tears down in two phases: broadcast
// cancellation and wait a bounded grace period for lanes to acknowledge,
// then force-abort whatever is still in flight. Deadline expiry and user
// interrupt share this one teardown path; only the cancellation cause
// differs, which is what decides TimedOut versus Cancelled terminal states.
package supervisor

import (
	"context"
	"time"

	mfwerrors "github.com/asagiri-dev/mfwrun/internal/errors"
	"github.com/asagiri-dev/mfwrun/internal/logging"
	"github.com/asagiri-dev/mfwrun/internal/planner"
	"github.com/asagiri-dev/mfwrun/internal/scheduler"
)

const (
	// DefaultTimeout bounds a run when the request does not set one.
	DefaultTimeout = 3600 * time.Second

	// DefaultGracePeriod is how long lanes get to acknowledge cancellation
	// before their tasks are force-aborted.
	DefaultGracePeriod = 10 * time.Second

	// DefaultForceWait bounds how long to wait for lanes after a forced
	// abort. A backend that still does not return by then is abandoned.
	DefaultForceWait = 5 * time.Second
)

// Options tune the teardown phases. Zero values take the defaults.
type Options struct {
	GracePeriod time.Duration
	ForceWait   time.Duration
}

// Supervisor wraps a scheduler with deadline and shutdown supervision.
type Supervisor struct {
	sched  *scheduler.Scheduler
	logger *logging.Logger
	grace  time.Duration
	force  time.Duration
}

// New creates a supervisor around the given scheduler.
func New(sched *scheduler.Scheduler, opts Options, logger *logging.Logger) *Supervisor {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.ForceWait <= 0 {
		opts.ForceWait = DefaultForceWait
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Supervisor{
		sched:  sched,
		logger: logger,
		grace:  opts.GracePeriod,
		force:  opts.ForceWait,
	}
}

// Run executes the plans under deadline supervision and always returns a
// result with one entry per device. A timeout of zero means unlimited: no
// deadline is armed and only the parent context can interrupt the run.
func (s *Supervisor) Run(parent context.Context, runID string, plans []*planner.Plan, timeout time.Duration) *scheduler.RunResult {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	done := make(chan *scheduler.RunResult, 1)
	go func() {
		done <- s.sched.Run(ctx, runID, plans)
	}()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var cause error
	select {
	case result := <-done:
		return result
	case <-deadline:
		cause = mfwerrors.ErrRunTimeout
	case <-parent.Done():
		cause = mfwerrors.ErrRunCanceled
	}
	cancel(cause)

	s.logger.Warn("run interrupted",
		"run_id", runID,
		"cause", cause.Error(),
		"grace_period", s.grace.String())

	grace := time.NewTimer(s.grace)
	defer grace.Stop()
	select {
	case result := <-done:
		return result
	case <-grace.C:
	}

	s.logger.Warn("grace period elapsed, force-aborting in-flight tasks", "run_id", runID)
	s.sched.ForceAbort()

	force := time.NewTimer(s.force)
	defer force.Stop()
	select {
	case result := <-done:
		return result
	case <-force.C:
	}

	// Lanes are stuck past the forced abort. Abandon them and settle their
	// result slots from the cancellation cause so the summary is complete.
	s.logger.Error("lanes unresponsive after forced abort, abandoning run", "run_id", runID)
	result := s.sched.Snapshot()
	settle(result, cause)
	return result
}

// settle rewrites non-terminal lane states to the terminal state implied by
// the cancellation cause.
func settle(r *scheduler.RunResult, cause error) {
	terminal := scheduler.StateCancelled
	if mfwerrors.Is(cause, mfwerrors.ErrRunTimeout) {
		terminal = scheduler.StateTimedOut
	}
	for i := range r.Devices {
		if !r.Devices[i].State.IsTerminal() {
			r.Devices[i].State = terminal
		}
	}
}
