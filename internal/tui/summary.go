package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/asagiri-dev/mfwrun/internal/planner"
	"github.com/asagiri-dev/mfwrun/internal/scheduler"
)

// RenderSummary formats the end-of-run report: every selected device's
// terminal status and, for failures, the first failing task with its error
// detail. Devices excluded before scheduling are listed too. With styled
// false the output is plain text for headless runs and logs.
func RenderSummary(result *scheduler.RunResult, excluded []planner.Exclusion, styled bool, width int) string {
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	b.WriteString(render(styled, titleStyle, "run summary"))
	b.WriteString("\n")

	for _, d := range result.Devices {
		state := d.State.String()
		line := fmt.Sprintf("  %-16s %s", d.Device, render(styled, stateStyle(state), state))
		if d.FailedTask != "" {
			line += fmt.Sprintf("  %s: %s", d.FailedTask, d.Detail)
		}
		b.WriteString(fit(line, width, styled))
		b.WriteString("\n")
	}

	for _, ex := range excluded {
		line := fmt.Sprintf("  %-16s %s  %v", ex.Device, render(styled, stateStyle("failed"), "excluded"), ex.Err)
		b.WriteString(fit(line, width, styled))
		b.WriteString("\n")
	}

	b.WriteString(render(styled, mutedStyle, fmt.Sprintf("  %s in %s", counts(result, excluded), result.Duration.Round(time.Millisecond))))
	return b.String()
}

func render(styled bool, style lipgloss.Style, s string) string {
	if !styled {
		return s
	}
	return style.Render(s)
}

func counts(result *scheduler.RunResult, excluded []planner.Exclusion) string {
	succeeded := 0
	for _, d := range result.Devices {
		if d.State == scheduler.StateSucceeded {
			succeeded++
		}
	}
	total := len(result.Devices) + len(excluded)
	return fmt.Sprintf("%d/%d devices succeeded", succeeded, total)
}

// fit truncates plain lines to the terminal width. Styled lines are left
// alone: cutting inside an escape sequence garbles the output.
func fit(s string, width int, styled bool) string {
	if styled || len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}
