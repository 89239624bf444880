// Package tui renders the live stage monitor console. The monitor is a
// read-only view over agent states plus two cancellation hooks; it never
// manipulates executor internals directly.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/conclave-ai/conclave/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	focusStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("28"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	stoppedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// tickMsg drives the periodic redraw of the status table.
type tickMsg time.Time

// stageDoneMsg is sent when every agent has reached a terminal status.
type stageDoneMsg struct{}

// monitorModel is the bubbletea model for one stage run.
type monitorModel struct {
	stageName string
	states    []*models.AgentState
	kill      func(int)
	killAll   func()
	refresh   time.Duration

	focus       int
	spinner     spinner.Model
	done        bool
	interrupted bool
}

func newMonitorModel(stageName string, states []*models.AgentState, kill func(int), killAll func(), refresh time.Duration) monitorModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = runningStyle
	return monitorModel{
		stageName: stageName,
		states:    states,
		kill:      kill,
		killAll:   killAll,
		refresh:   refresh,
		spinner:   sp,
	}
}

func (m monitorModel) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model.
func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick())
}

// Update implements tea.Model.
func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			// Operator interrupt: terminate everything and end the run.
			m.interrupted = true
			m.killAll()
			return m, tea.Quit
		case "up", "k":
			if m.focus > 0 {
				m.focus--
			}
		case "down", "j":
			if m.focus < len(m.states)-1 {
				m.focus++
			}
		case "x":
			// Kill only the focused agent; a no-op if already terminal.
			m.kill(m.focus)
		case "X":
			m.killAll()
		case "q":
			// Detach: leave agents running, fall back to batch wait.
			return m, tea.Quit
		}

	case tickMsg:
		if m.allTerminal() {
			m.done = true
			return m, tea.Quit
		}
		return m, m.tick()

	case stageDoneMsg:
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m monitorModel) allTerminal() bool {
	for _, s := range m.states {
		if !s.Status().Terminal() {
			return false
		}
	}
	return true
}

// View implements tea.Model.
func (m monitorModel) View() string {
	out := titleStyle.Render(fmt.Sprintf("Stage: %s", m.stageName)) + "\n\n"

	for i, s := range m.states {
		cursor := "  "
		nameStyle := lipgloss.NewStyle()
		if i == m.focus {
			cursor = focusStyle.Render("> ")
			nameStyle = focusStyle
		}

		status := s.Status()
		var badge string
		switch status {
		case models.AgentStatusRunning:
			badge = m.spinner.View() + runningStyle.Render(string(status))
		case models.AgentStatusCompleted:
			badge = completedStyle.Render(string(status))
		case models.AgentStatusError:
			badge = failedStyle.Render(string(status))
		case models.AgentStatusTimeout, models.AgentStatusKilled:
			badge = stoppedStyle.Render(string(status))
		default:
			badge = pendingStyle.Render(string(status))
		}

		out += fmt.Sprintf("%s%-16s %-12s %8s %8dB\n",
			cursor,
			nameStyle.Render(s.Config.Name),
			badge,
			s.Elapsed().Round(time.Second),
			s.StdoutBytes(),
		)
	}

	out += "\n" + helpStyle.Render("↑/↓ focus · x kill focused · X kill all · q detach · ctrl+c abort")
	return out
}

// RunStageMonitor runs the interactive console until every agent is
// terminal, the operator detaches, or the operator interrupts. It reports
// whether the operator interrupted the stage.
func RunStageMonitor(stageName string, states []*models.AgentState, kill func(int), killAll func(), refresh time.Duration, done <-chan struct{}) (bool, error) {
	model := newMonitorModel(stageName, states, kill, killAll, refresh)
	p := tea.NewProgram(model)

	go func() {
		<-done
		p.Send(stageDoneMsg{})
	}()

	final, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("stage monitor: %w", err)
	}
	if m, ok := final.(monitorModel); ok {
		return m.interrupted, nil
	}
	return false, nil
}
