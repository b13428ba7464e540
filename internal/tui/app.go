// Package tui renders the windowed run mode: a live per-device lane status
// view fed by the run event bus, and the final summary shared with headless
// mode. The core packages never depend on this one; the view consumes
// events only.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/asagiri-dev/mfwrun/internal/event"
	"github.com/asagiri-dev/mfwrun/internal/scheduler"
)

// App wraps the Bubbletea program around one run.
type App struct {
	bus            *event.Bus
	devices        []string
	exitOnComplete bool
}

// NewApp creates the status view for the given lanes.
func NewApp(bus *event.Bus, devices []string, exitOnComplete bool) *App {
	return &App{
		bus:            bus,
		devices:        devices,
		exitOnComplete: exitOnComplete,
	}
}

// Run starts the view, launches the run, and blocks until both the run and
// the view have finished. Quitting the view while the run is live cancels
// the run's context and waits for lanes to settle; the run result is always
// returned.
func (a *App) Run(ctx context.Context, start func(context.Context) *scheduler.RunResult) (*scheduler.RunResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewModel(a.devices, a.exitOnComplete, cancel)
	program := tea.NewProgram(model)

	sub := a.bus.SubscribeAll(func(e event.Event) {
		program.Send(eventMsg{event: e})
	})
	defer a.bus.Unsubscribe(sub)

	resultCh := make(chan *scheduler.RunResult, 1)
	go func() {
		result := start(runCtx)
		resultCh <- result
		program.Send(runDoneMsg{result: result})
	}()

	_, err := program.Run()

	// The view may have quit before the run settled (forced program kill);
	// cancel and wait so the result slot discipline holds.
	cancel()
	result := <-resultCh
	return result, err
}
