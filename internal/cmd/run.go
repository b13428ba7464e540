package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/asagiri-dev/mfwrun/internal/backend"
	"github.com/asagiri-dev/mfwrun/internal/config"
	"github.com/asagiri-dev/mfwrun/internal/descriptor"
	mfwerrors "github.com/asagiri-dev/mfwrun/internal/errors"
	"github.com/asagiri-dev/mfwrun/internal/event"
	"github.com/asagiri-dev/mfwrun/internal/logging"
	"github.com/asagiri-dev/mfwrun/internal/planner"
	"github.com/asagiri-dev/mfwrun/internal/resolver"
	"github.com/asagiri-dev/mfwrun/internal/scheduler"
	"github.com/asagiri-dev/mfwrun/internal/supervisor"
	"github.com/asagiri-dev/mfwrun/internal/tui"
)

// RunRequest is the normalized form of one run invocation. Legacy and
// current flag spellings produce identical requests.
type RunRequest struct {
	// Devices are the requested device names or glob patterns. Empty
	// selects every configured device, as does the literal "all".
	Devices []string
	// ConfigName names the saved option overlay. Empty falls back to each
	// device's configured overlay, then to the default.
	ConfigName string
	// Timeout bounds the whole run. Zero means unlimited.
	Timeout time.Duration
	// ExitOnComplete closes the status view once the run finishes.
	ExitOnComplete bool
	// Headless disables the interactive status view.
	Headless bool
}

// runFlags captures the raw flag state the run command parsed.
type runFlags struct {
	Headless       bool
	Devices        []string
	ConfigName     string
	TimeoutSeconds int
	TimeoutSet     bool
	ExitOnComplete bool
	ExitSet        bool
}

// BuildRunRequest maps parsed flags to a run request. Headless implies
// exit-on-complete unless the flag was given explicitly; an absent
// --timeout takes the configured default.
func BuildRunRequest(f runFlags, defaults config.RunConfig) RunRequest {
	req := RunRequest{
		Devices:        f.Devices,
		ConfigName:     f.ConfigName,
		Headless:       f.Headless,
		ExitOnComplete: f.ExitOnComplete,
	}
	if f.Headless && !f.ExitSet {
		req.ExitOnComplete = true
	}
	seconds := f.TimeoutSeconds
	if !f.TimeoutSet {
		seconds = defaults.DefaultTimeoutSeconds
	}
	req.Timeout = time.Duration(seconds) * time.Second
	return req
}

// selectDevices expands device names and glob patterns against the roster,
// preserving roster order per pattern and dropping duplicates. A pattern
// that matches nothing is an error.
func selectDevices(roster []config.DeviceConfig, patterns []string) ([]config.DeviceConfig, error) {
	if len(patterns) == 0 {
		patterns = []string{"all"}
	}

	var selected []config.DeviceConfig
	seen := make(map[string]bool)
	add := func(d config.DeviceConfig) {
		if !seen[d.Name] {
			seen[d.Name] = true
			selected = append(selected, d)
		}
	}

	for _, pattern := range patterns {
		if pattern == "all" {
			for _, d := range roster {
				add(d)
			}
			continue
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid device pattern %q: %w", pattern, err)
		}
		matched := false
		for _, d := range roster {
			if d.Name == pattern || g.Match(d.Name) {
				add(d)
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("%q: %w", pattern, mfwerrors.ErrDeviceNotFound)
		}
	}
	return selected, nil
}

// overlayNames picks the saved overlay per resource: an explicit
// --config wins for every resource; otherwise the first selected device
// bound to the resource supplies its configured overlay name.
func overlayNames(selected []config.DeviceConfig, explicit string) map[string]string {
	names := make(map[string]string)
	for _, d := range selected {
		if _, ok := names[d.Resource]; ok {
			continue
		}
		switch {
		case explicit != "":
			names[d.Resource] = explicit
		case d.Config != "":
			names[d.Resource] = d.Config
		default:
			names[d.Resource] = config.DefaultOverlayName
		}
	}
	return names
}

var (
	runHeadless       bool
	runDeviceFlags    []string
	runConfigName     string
	runTimeoutSeconds int
	runExitOnComplete bool
)

var runCmd = &cobra.Command{
	Use:   "run [device...]",
	Short: "Run resource task lists across the selected devices",
	Long: `Run plans each selected device's resource task list, resolves option
values from the saved configuration, and executes the lanes concurrently
under timeout supervision. Positional arguments select devices the same
way --device does; names may be glob patterns, and "all" selects every
configured device.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "run without the interactive status view (implies --exit-on-complete)")
	runCmd.Flags().StringSliceVar(&runDeviceFlags, "device", nil, `device names or glob patterns, or "all"`)
	runCmd.Flags().StringVar(&runConfigName, "config", "", "saved option configuration name")
	runCmd.Flags().IntVar(&runTimeoutSeconds, "timeout", 3600, "run timeout in seconds (0 = unlimited)")
	runCmd.Flags().BoolVar(&runExitOnComplete, "exit-on-complete", false, "close the status view when the run finishes")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Paths.LogDir, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logger.Close()

	req := BuildRunRequest(runFlags{
		Headless:       runHeadless,
		Devices:        append(append([]string{}, runDeviceFlags...), args...),
		ConfigName:     runConfigName,
		TimeoutSeconds: runTimeoutSeconds,
		TimeoutSet:     cmd.Flags().Changed("timeout"),
		ExitOnComplete: runExitOnComplete,
		ExitSet:        cmd.Flags().Changed("exit-on-complete"),
	}, cfg.Run)

	selected, err := selectDevices(cfg.Devices, req.Devices)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return fmt.Errorf("no devices configured; add devices to %s", config.ConfigFile())
	}

	lib, err := descriptor.Load(cfg.Paths.ResourceDirs)
	if err != nil {
		return err
	}

	store, err := config.NewStore(cfg.Paths.ConfigDir, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	windowed := !req.Headless && term.IsTerminal(int(os.Stdout.Fd()))
	if windowed {
		// Long-lived windowed sessions pick up overlay edits between runs.
		if err := store.Watch(); err != nil {
			logger.Warn("overlay watching disabled", "error", err)
		}
	}

	runID := uuid.NewString()
	log := logger.WithRun(runID)

	overlayFor := overlayNames(selected, req.ConfigName)
	overlays := func(resource string) resolver.Overlay {
		return store.Overlay(overlayFor[resource], resource)
	}

	devices := make([]planner.Device, len(selected))
	for i, d := range selected {
		devices[i] = planner.Device{Name: d.Name, Resource: d.Resource, Address: d.Address}
	}

	planned, err := planner.Build(runID, lib, devices, overlays)
	if err != nil {
		return err
	}
	for _, warn := range planned.Warnings {
		log.Warn("override ignored", "warning", warn.Error())
	}
	for _, ex := range planned.Excluded {
		log.Error("device excluded from run",
			"device", ex.Device,
			"resource", ex.Resource,
			"error", ex.Err)
		fmt.Fprintf(cmd.ErrOrStderr(), "excluding %s: %v\n", ex.Device, ex.Err)
	}
	if len(planned.Plans) == 0 {
		return fmt.Errorf("no runnable devices")
	}

	bus := event.NewBus()
	sched := scheduler.New(backend.NewExecBackend(), bus, logger)
	sup := supervisor.New(sched, supervisor.Options{GracePeriod: cfg.Run.GracePeriod()}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var result *scheduler.RunResult
	if windowed {
		laneDevices := make([]string, len(planned.Plans))
		for i, p := range planned.Plans {
			laneDevices[i] = p.Device
		}
		app := tui.NewApp(bus, laneDevices, req.ExitOnComplete)
		result, err = app.Run(ctx, func(runCtx context.Context) *scheduler.RunResult {
			return sup.Run(runCtx, runID, planned.Plans, req.Timeout)
		})
		if err != nil {
			return fmt.Errorf("status view: %w", err)
		}
	} else {
		result = sup.Run(ctx, runID, planned.Plans, req.Timeout)
	}

	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	fmt.Fprintln(cmd.OutOrStdout(), tui.RenderSummary(result, planned.Excluded, windowed, width))

	if !result.AllSucceeded() || len(planned.Excluded) > 0 {
		return fmt.Errorf("one or more devices did not succeed")
	}
	return nil
}
