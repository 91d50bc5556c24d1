// Package tui renders live run progress from the generation event stream.
package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"testforge-agent/src/broker"
	"testforge-agent/src/contracts"
)

// maxTaskLines bounds the scrollback of per-task lines.
const maxTaskLines = 10

// lineWidth is the display budget for one task line.
const lineWidth = 72

// EventMsg wraps one generation event for the update loop.
type EventMsg contracts.GenerationEvent

// StreamClosedMsg signals that the event channel closed.
type StreamClosedMsg struct{}

// taskLine is one rendered task outcome.
type taskLine struct {
	name    string
	success bool
	err     string
}

// Model is the bubbletea model for a single run's progress.
type Model struct {
	events  <-chan broker.Message
	styles  *StyleConfig
	spinner spinner.Model

	total     int
	completed int
	active    string
	lines     []taskLine
	done      bool
}

// NewModel creates a progress model reading from the given subscription.
func NewModel(events <-chan broker.Message) Model {
	styles := DefaultStyles()
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Spinner)

	return Model{
		events:  events,
		styles:  styles,
		spinner: sp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// waitForEvent blocks on the subscription and converts the next message.
func waitForEvent(events <-chan broker.Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return StreamClosedMsg{}
		}
		var event contracts.GenerationEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return StreamClosedMsg{}
		}
		return EventMsg(event)
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case EventMsg:
		m.apply(contracts.GenerationEvent(msg))
		if m.done {
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)

	case StreamClosedMsg:
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// apply folds one event into the display state.
func (m *Model) apply(event contracts.GenerationEvent) {
	switch event.Stage {
	case contracts.StageTasksPrepared:
		m.total = event.Total
	case contracts.StageTaskStarted:
		m.active = event.FunctionName
	case contracts.StageTaskFinished:
		m.completed = event.Completed
		if m.active == event.FunctionName {
			m.active = ""
		}
		m.lines = append(m.lines, taskLine{
			name:    event.FunctionName,
			success: event.Success,
			err:     event.Error,
		})
		if len(m.lines) > maxTaskLines {
			m.lines = m.lines[len(m.lines)-maxTaskLines:]
		}
	case contracts.StageRunCompleted:
		m.done = true
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.TitleStyle().Render("testforge"))
	b.WriteString("\n\n")

	for _, line := range m.lines {
		b.WriteString(m.renderLine(line))
		b.WriteByte('\n')
	}

	if m.done {
		b.WriteString(m.styles.SuccessStyle().Render(
			fmt.Sprintf("done: %d/%d task(s) finished", m.completed, m.total)))
		b.WriteByte('\n')
		return b.String()
	}

	status := fmt.Sprintf("%s %d/%d", m.spinner.View(), m.completed, m.total)
	if m.active != "" {
		status += m.styles.SecondaryStyle().Render(" generating " + m.active)
	}
	b.WriteString(status)
	b.WriteByte('\n')
	b.WriteString(m.styles.SecondaryStyle().Render("press q to quit"))
	b.WriteByte('\n')
	return b.String()
}

func (m Model) renderLine(line taskLine) string {
	if line.success {
		return m.styles.SuccessStyle().Render("  ok  ") + line.name
	}
	text := "  fail " + line.name
	if line.err != "" {
		text += ": " + line.err
	}
	return m.styles.FailureStyle().Render(truncate(text, lineWidth))
}

// truncate keeps display width under max, accounting for wide runes.
func truncate(s string, max int) string {
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max-3, "") + "..."
}

// Run subscribes to the run's event stream and drives the progress display
// until the run completes or the user quits.
func Run(events <-chan broker.Message) error {
	program := tea.NewProgram(NewModel(events))
	_, err := program.Run()
	return err
}
