package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/asagiri-dev/mfwrun/internal/backend"
	mfwerrors "github.com/asagiri-dev/mfwrun/internal/errors"
	"github.com/asagiri-dev/mfwrun/internal/event"
	"github.com/asagiri-dev/mfwrun/internal/planner"
)

// fakeBackend resolves each task through a per-task behavior function.
// Tasks without a behavior succeed immediately.
type fakeBackend struct {
	mu       sync.Mutex
	behavior map[string]func() backend.Outcome // task name -> result
	hang     map[string]bool                   // task name -> block until ctx

	started []string // "<device>/<task>" in observed start order
	aborts  atomic.Int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		behavior: make(map[string]func() backend.Outcome),
		hang:     make(map[string]bool),
	}
}

func (f *fakeBackend) StartTask(ctx context.Context, spec backend.TaskSpec) (backend.Handle, error) {
	f.mu.Lock()
	f.started = append(f.started, spec.Device+"/"+spec.TaskName)
	behave := f.behavior[spec.TaskName]
	hang := f.hang[spec.TaskName]
	f.mu.Unlock()

	return &fakeHandle{backend: f, behave: behave, hang: hang}, nil
}

func (f *fakeBackend) startedFor(device string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	prefix := device + "/"
	for _, s := range f.started {
		if len(s) > len(prefix) && s[:len(prefix)] == prefix {
			out = append(out, s[len(prefix):])
		}
	}
	return out
}

type fakeHandle struct {
	backend *fakeBackend
	behave  func() backend.Outcome
	hang    bool
}

func (h *fakeHandle) Await(ctx context.Context) (backend.Outcome, error) {
	if h.hang {
		<-ctx.Done()
		return backend.Outcome{}, context.Cause(ctx)
	}
	if h.behave != nil {
		return h.behave(), nil
	}
	return backend.Outcome{Status: backend.StatusSucceeded}, nil
}

func (h *fakeHandle) Abort() error {
	h.backend.aborts.Add(1)
	return nil
}

func testPlans(tasks ...string) []*planner.Plan {
	planned := make([]planner.PlannedTask, len(tasks))
	for i, name := range tasks {
		planned[i] = planner.PlannedTask{Name: name, Entry: name + ":run", Params: map[string]any{}}
	}
	return []*planner.Plan{
		{RunID: "run-1", Device: "emulator-1", Resource: "DailyQuest", Tasks: planned},
		{RunID: "run-1", Device: "emulator-2", Resource: "DailyQuest", Tasks: planned},
	}
}

func deviceResult(t *testing.T, result *RunResult, device string) DeviceResult {
	t.Helper()
	for _, d := range result.Devices {
		if d.Device == device {
			return d
		}
	}
	t.Fatalf("no result slot for device %q", device)
	return DeviceResult{}
}

func TestRun_AllDevicesSucceed(t *testing.T) {
	fb := newFakeBackend()
	s := New(fb, nil, nil)

	result := s.Run(context.Background(), "run-1", testPlans("Daily", "Weekly"))

	if len(result.Devices) != 2 {
		t.Fatalf("len(Devices) = %d, want 2", len(result.Devices))
	}
	if !result.AllSucceeded() {
		t.Fatalf("AllSucceeded() = false: %+v", result.Devices)
	}
	for _, device := range []string{"emulator-1", "emulator-2"} {
		d := deviceResult(t, result, device)
		if d.State != StateSucceeded {
			t.Errorf("%s state = %v, want Succeeded", device, d.State)
		}
		if len(d.Tasks) != 2 || !d.Tasks[0].Success || !d.Tasks[1].Success {
			t.Errorf("%s task outcomes = %+v", device, d.Tasks)
		}
	}
}

func TestRun_TasksSequentialWithinLane(t *testing.T) {
	fb := newFakeBackend()
	s := New(fb, nil, nil)

	s.Run(context.Background(), "run-1", testPlans("First", "Second", "Third"))

	for _, device := range []string{"emulator-1", "emulator-2"} {
		got := fb.startedFor(device)
		want := []string{"First", "Second", "Third"}
		if len(got) != len(want) {
			t.Fatalf("%s started %v, want %v", device, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%s start order = %v, want %v", device, got, want)
				break
			}
		}
	}
}

func TestRun_FailureIsolatedToOwningLane(t *testing.T) {
	fb := newFakeBackend()
	fb.behavior["Daily"] = func() backend.Outcome {
		return backend.Outcome{Status: backend.StatusFailed, Detail: "recognition timeout"}
	}

	plans := testPlans("Daily", "Weekly")
	// Only emulator-1 runs the failing task.
	plans[1].Tasks = []planner.PlannedTask{{Name: "Weekly", Entry: "weekly:run"}}

	s := New(fb, nil, nil)
	result := s.Run(context.Background(), "run-1", plans)

	failed := deviceResult(t, result, "emulator-1")
	if failed.State != StateFailed {
		t.Errorf("emulator-1 state = %v, want Failed", failed.State)
	}
	if failed.FailedTask != "Daily" || failed.Detail != "recognition timeout" {
		t.Errorf("failure record = %q/%q", failed.FailedTask, failed.Detail)
	}
	// Fail-fast: Weekly never starts on the failed lane.
	if got := fb.startedFor("emulator-1"); len(got) != 1 {
		t.Errorf("emulator-1 started %v, want only Daily", got)
	}

	ok := deviceResult(t, result, "emulator-2")
	if ok.State != StateSucceeded {
		t.Errorf("emulator-2 state = %v, want Succeeded", ok.State)
	}
	if result.AllSucceeded() {
		t.Error("AllSucceeded() should be false with a failed lane")
	}
}

func TestRun_CancellationCauseSelectsTerminalState(t *testing.T) {
	tests := []struct {
		name  string
		cause error
		want  LaneState
	}{
		{"timeout cause", mfwerrors.ErrRunTimeout, StateTimedOut},
		{"interrupt cause", mfwerrors.ErrRunCanceled, StateCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := newFakeBackend()
			fb.hang["Daily"] = true

			ctx, cancel := context.WithCancelCause(context.Background())
			s := New(fb, nil, nil)

			done := make(chan *RunResult, 1)
			go func() {
				done <- s.Run(ctx, "run-1", testPlans("Daily", "Weekly"))
			}()

			// Let both lanes reach the hanging task, then interrupt.
			waitFor(t, func() bool { return len(fb.startedFor("emulator-1")) == 1 && len(fb.startedFor("emulator-2")) == 1 })
			cancel(tt.cause)

			result := <-done
			for _, device := range []string{"emulator-1", "emulator-2"} {
				d := deviceResult(t, result, device)
				if d.State != tt.want {
					t.Errorf("%s state = %v, want %v", device, d.State, tt.want)
				}
			}
			// In-flight tasks get the abort hook; no further tasks start.
			if fb.aborts.Load() != 2 {
				t.Errorf("aborts = %d, want 2", fb.aborts.Load())
			}
			if got := fb.startedFor("emulator-1"); len(got) != 1 {
				t.Errorf("emulator-1 started %v after cancellation", got)
			}
		})
	}
}

func TestRun_PublishesLifecycleEvents(t *testing.T) {
	fb := newFakeBackend()
	bus := event.NewBus()

	var mu sync.Mutex
	var types []string
	bus.SubscribeAll(func(e event.Event) {
		mu.Lock()
		types = append(types, e.EventType())
		mu.Unlock()
	})

	s := New(fb, bus, nil)
	s.Run(context.Background(), "run-1", testPlans("Daily")[:1])

	mu.Lock()
	defer mu.Unlock()
	want := []string{"run.started", "lane.state_changed", "task.started", "task.finished", "lane.state_changed", "run.completed"}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("events = %v, want %v", types, want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to LaneState
		want     bool
	}{
		{StatePending, StateRunning, true},
		{StatePending, StateCancelled, true},
		{StatePending, StateTimedOut, true},
		{StatePending, StateSucceeded, false},
		{StateRunning, StateSucceeded, true},
		{StateRunning, StateFailed, true},
		{StateRunning, StateTimedOut, true},
		{StateRunning, StateCancelled, true},
		{StateSucceeded, StateRunning, false},
		{StateFailed, StateCancelled, false},
		{StateCancelled, StateRunning, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("canTransition(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

// waitFor polls a condition with a bounded deadline.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
