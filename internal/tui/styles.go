package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	deviceStyle = lipgloss.NewStyle().
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)
)

// stateColors keys the scheduler's lane-state labels.
var stateColors = map[string]lipgloss.Color{
	"pending":   lipgloss.Color("241"),
	"running":   lipgloss.Color("63"),
	"succeeded": lipgloss.Color("42"),
	"failed":    lipgloss.Color("196"),
	"timed_out": lipgloss.Color("208"),
	"cancelled": lipgloss.Color("245"),
}

func stateStyle(state string) lipgloss.Style {
	color, ok := stateColors[state]
	if !ok {
		color = lipgloss.Color("241")
	}
	return lipgloss.NewStyle().Foreground(color)
}
