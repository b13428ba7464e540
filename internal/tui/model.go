package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/asagiri-dev/mfwrun/internal/event"
	"github.com/asagiri-dev/mfwrun/internal/scheduler"
)

// eventMsg wraps a bus event for the update loop.
type eventMsg struct {
	event event.Event
}

// runDoneMsg carries the final run result into the model.
type runDoneMsg struct {
	result *scheduler.RunResult
}

// laneRow is the displayed state of one device lane.
type laneRow struct {
	device      string
	state       string
	currentTask string
	position    int
	total       int
	detail      string
}

// Model is the live status view for one run.
type Model struct {
	spinner        spinner.Model
	rows           []laneRow
	index          map[string]int // device -> row
	exitOnComplete bool
	cancel         func()

	result     *scheduler.RunResult
	cancelling bool
}

// NewModel builds the status view with one row per device, in lane order.
// cancel is invoked when the user requests shutdown.
func NewModel(devices []string, exitOnComplete bool, cancel func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	rows := make([]laneRow, len(devices))
	index := make(map[string]int, len(devices))
	for i, d := range devices {
		rows[i] = laneRow{device: d, state: "pending"}
		index[d] = i
	}

	return Model{
		spinner:        s,
		rows:           rows,
		index:          index,
		exitOnComplete: exitOnComplete,
		cancel:         cancel,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.result != nil {
				return m, tea.Quit
			}
			// The run is still live: request graceful shutdown and wait
			// for the result before leaving the screen.
			if !m.cancelling {
				m.cancelling = true
				if m.cancel != nil {
					m.cancel()
				}
			}
			return m, nil
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.applyEvent(msg.event)
		return m, nil

	case runDoneMsg:
		m.result = msg.result
		if m.exitOnComplete {
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) applyEvent(e event.Event) {
	switch e := e.(type) {
	case event.LaneStateChangedEvent:
		if i, ok := m.index[e.Device]; ok {
			m.rows[i].state = e.NewState
			if e.Detail != "" {
				m.rows[i].detail = e.Detail
			}
		}
	case event.TaskStartedEvent:
		if i, ok := m.index[e.Device]; ok {
			m.rows[i].currentTask = e.Task
			m.rows[i].position = e.Index + 1
			m.rows[i].total = e.Total
		}
	case event.TaskFinishedEvent:
		if i, ok := m.index[e.Device]; ok && e.Index+1 == e.Total {
			m.rows[i].currentTask = ""
		}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("mfwrun"))
	b.WriteString("\n\n")

	for _, row := range m.rows {
		b.WriteString(m.renderRow(row))
		b.WriteString("\n")
	}

	switch {
	case m.cancelling && m.result == nil:
		b.WriteString(helpStyle.Render("cancelling, waiting for devices..."))
	case m.result != nil:
		b.WriteString(helpStyle.Render("run finished, press q to exit"))
	default:
		b.WriteString(helpStyle.Render("q to cancel the run"))
	}

	return b.String()
}

func (m Model) renderRow(row laneRow) string {
	marker := "  "
	if row.state == "running" {
		marker = m.spinner.View()
	}

	line := fmt.Sprintf("%s %s %s",
		marker,
		deviceStyle.Render(fmt.Sprintf("%-16s", row.device)),
		stateStyle(row.state).Render(fmt.Sprintf("%-9s", row.state)))

	if row.state == "running" && row.currentTask != "" {
		line += mutedStyle.Render(fmt.Sprintf("  %s (%d/%d)", row.currentTask, row.position, row.total))
	}
	if row.state == "failed" && row.detail != "" {
		line += mutedStyle.Render("  " + row.detail)
	}
	return line
}
