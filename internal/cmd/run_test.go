package cmd

import (
	"reflect"
	"testing"
	"time"

	"github.com/asagiri-dev/mfwrun/internal/config"
	mfwerrors "github.com/asagiri-dev/mfwrun/internal/errors"
)

func testRunDefaults() config.RunConfig {
	return config.RunConfig{GracePeriodSeconds: 10, DefaultTimeoutSeconds: 3600}
}

func TestBuildRunRequest_HeadlessImpliesExitOnComplete(t *testing.T) {
	tests := []struct {
		name  string
		flags runFlags
		want  bool
	}{
		{
			name:  "headless defaults exit-on-complete true",
			flags: runFlags{Headless: true},
			want:  true,
		},
		{
			name:  "headless with explicit override keeps false",
			flags: runFlags{Headless: true, ExitOnComplete: false, ExitSet: true},
			want:  false,
		},
		{
			name:  "windowed defaults exit-on-complete false",
			flags: runFlags{},
			want:  false,
		},
		{
			name:  "windowed explicit true",
			flags: runFlags{ExitOnComplete: true, ExitSet: true},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := BuildRunRequest(tt.flags, testRunDefaults())
			if req.ExitOnComplete != tt.want {
				t.Errorf("ExitOnComplete = %v, want %v", req.ExitOnComplete, tt.want)
			}
		})
	}
}

func TestBuildRunRequest_Timeout(t *testing.T) {
	// Absent flag takes the configured default.
	req := BuildRunRequest(runFlags{TimeoutSeconds: 3600}, config.RunConfig{DefaultTimeoutSeconds: 120})
	if req.Timeout != 2*time.Minute {
		t.Errorf("Timeout = %v, want configured default 2m", req.Timeout)
	}

	// Explicit flag wins, including zero for unlimited.
	req = BuildRunRequest(runFlags{TimeoutSeconds: 0, TimeoutSet: true}, testRunDefaults())
	if req.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0 (unlimited)", req.Timeout)
	}
}

func TestLegacyAndCurrentFlagsProduceIdenticalRequests(t *testing.T) {
	legacy := []string{"run", "-auto", "-s", "emulator-1", "-s", "emulator-2", "-exit_on_complete"}
	current := []string{"run", "--headless", "--device", "emulator-1", "--device", "emulator-2", "--exit-on-complete"}

	normalized := NormalizeArgs(legacy)
	if !reflect.DeepEqual(normalized, current) {
		t.Fatalf("NormalizeArgs(%v) = %v, want %v", legacy, normalized, current)
	}

	// Equal argument vectors necessarily build equal requests; check the
	// mapping end to end anyway for one representative case.
	flags := runFlags{
		Headless: true,
		Devices:  []string{"emulator-1", "emulator-2"},
	}
	a := BuildRunRequest(flags, testRunDefaults())
	b := BuildRunRequest(flags, testRunDefaults())
	if !reflect.DeepEqual(a, b) {
		t.Errorf("requests differ: %+v vs %+v", a, b)
	}
}

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "no legacy flags pass through",
			args: []string{"run", "--headless", "--device", "x"},
			want: []string{"run", "--headless", "--device", "x"},
		},
		{
			name: "equals form rewritten",
			args: []string{"run", "-s=emulator-1"},
			want: []string{"run", "--device=emulator-1"},
		},
		{
			name: "rewriting stops at terminator",
			args: []string{"run", "-auto", "--", "-s", "literal"},
			want: []string{"run", "--headless", "--", "-s", "literal"},
		},
		{
			name: "empty",
			args: []string{},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeArgs(tt.args); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeArgs(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func testRoster() []config.DeviceConfig {
	return []config.DeviceConfig{
		{Name: "emu-1", Resource: "DailyQuest"},
		{Name: "emu-2", Resource: "DailyQuest"},
		{Name: "tablet", Resource: "Arena", Config: "farming"},
	}
}

func selectedNames(devices []config.DeviceConfig) []string {
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}
	return names
}

func TestSelectDevices(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{"empty selects all", nil, []string{"emu-1", "emu-2", "tablet"}},
		{"all keyword", []string{"all"}, []string{"emu-1", "emu-2", "tablet"}},
		{"exact names preserve request order", []string{"tablet", "emu-1"}, []string{"tablet", "emu-1"}},
		{"glob pattern", []string{"emu-*"}, []string{"emu-1", "emu-2"}},
		{"duplicates collapse", []string{"emu-1", "emu-*"}, []string{"emu-1", "emu-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectDevices(testRoster(), tt.patterns)
			if err != nil {
				t.Fatalf("selectDevices() error = %v", err)
			}
			if !reflect.DeepEqual(selectedNames(got), tt.want) {
				t.Errorf("selectDevices(%v) = %v, want %v", tt.patterns, selectedNames(got), tt.want)
			}
		})
	}
}

func TestSelectDevices_UnmatchedPattern(t *testing.T) {
	if _, err := selectDevices(testRoster(), []string{"ghost-*"}); !mfwerrors.Is(err, mfwerrors.ErrDeviceNotFound) {
		t.Errorf("error = %v, want ErrDeviceNotFound", err)
	}
}

func TestOverlayNames(t *testing.T) {
	selected := testRoster()

	// Explicit --config wins for every resource.
	names := overlayNames(selected, "event-week")
	if names["DailyQuest"] != "event-week" || names["Arena"] != "event-week" {
		t.Errorf("explicit overlay names = %v", names)
	}

	// Otherwise the first device bound to the resource supplies its
	// configured overlay, falling back to the default.
	names = overlayNames(selected, "")
	if names["DailyQuest"] != config.DefaultOverlayName {
		t.Errorf("DailyQuest overlay = %q, want default", names["DailyQuest"])
	}
	if names["Arena"] != "farming" {
		t.Errorf("Arena overlay = %q, want farming", names["Arena"])
	}
}
