// Package tui renders a voice note session in the terminal.
package tui

import (
	"context"
	"strings"

	"github.com/alkime/memnote/internal/tui/components/labeledspinner"
	"github.com/alkime/memnote/internal/tui/style"
	"github.com/alkime/memnote/internal/workflow"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	iconRecord = "🎤"
	iconStop   = "⏹"
)

// Config configures the screen.
type Config struct {
	// Cancel stops the session when the user quits.
	Cancel context.CancelFunc
	// ListenOnStart begins a capture as soon as the screen opens.
	ListenOnStart bool
	// Endpoint is shown in the footer.
	Endpoint string
}

// StateMsg carries a published workflow state into the program.
type StateMsg workflow.State

// statesClosedMsg means the store stopped and closed the states channel.
type statesClosedMsg struct{}

type model struct {
	config  Config
	keys    KeyMap
	emitter workflow.Emitter
	states  <-chan workflow.State
	state   workflow.State
	spinner labeledspinner.Model
}

// New creates the screen model. States are read from states, which should be
// subscribed to the same store emitter writes to. The program quits when the
// store stops and closes states.
func New(config Config, emitter workflow.Emitter, states <-chan workflow.State) tea.Model {
	return &model{
		config:  config,
		keys:    DefaultKeyMap(),
		emitter: emitter,
		states:  states,
		spinner: labeledspinner.New(spinner.Dot, "", "", ""),
	}
}

func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForState(m.states),
		m.spinner.Init(),
	}

	if m.config.ListenOnStart {
		cmds = append(cmds, m.emit(workflow.StartListening{}))
	}

	return tea.Batch(cmds...)
}

func (m *model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case StateMsg:
		m.state = workflow.State(msg)
		cmds := []tea.Cmd{waitForState(m.states)}

		if m.state.AutoRestart {
			cmds = append(cmds, m.emit(workflow.ConsumeAutoRestart{}))
		}

		return m, tea.Batch(cmds...)

	case statesClosedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.ForceQuit), key.Matches(msg, m.keys.Quit):
			if m.config.Cancel != nil {
				m.config.Cancel()
			}

			return m, tea.Quit

		case key.Matches(msg, m.keys.Record):
			// disabled while a capture or delivery is in flight
			if !m.state.CanStartListening() {
				return m, nil
			}

			return m, m.emit(workflow.StartListening{})
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m *model) View() string {
	var sb strings.Builder

	sb.WriteString(m.statusView())
	sb.WriteString("\n\n")

	if m.state.RecognizedText != "" {
		sb.WriteString(style.Label.Render(m.state.RecognizedText))
		sb.WriteString("\n\n")
	}

	icon := iconRecord
	if m.state.IsListening() {
		icon = iconStop
	}
	sb.WriteString(icon)
	sb.WriteString(" ")

	if m.state.CanStartListening() {
		sb.WriteString(renderKeyHelp(m.keys.Record, " "))
	}
	sb.WriteString(renderKeyHelp(m.keys.Quit, "\n"))

	if m.config.Endpoint != "" {
		sb.WriteString(style.Muted.Render("→ " + m.config.Endpoint))
		sb.WriteString("\n")
	}

	return sb.String()
}

// statusView shows activity first, then the outcome of the last cycle.
func (m *model) statusView() string {
	switch {
	case m.state.IsListening():
		m.spinner.Title = "Listening..."
		m.spinner.Subtitle = "Speak now"

		return m.spinner.ViewWithHelp("")
	case m.state.IsSending():
		m.spinner.Title = "Sending..."
		m.spinner.Subtitle = "Delivering your note"

		return m.spinner.ViewWithHelp("")
	case m.state.ErrorMessage != "":
		return style.Error.Render("Error: " + m.state.ErrorMessage)
	case m.state.LastSentText != "":
		return style.Success.Render("Sent: " + m.state.LastSentText)
	default:
		return style.Subtitle.Render("Press space to record a note")
	}
}

func (m *model) emit(ev workflow.Event) tea.Cmd {
	return func() tea.Msg {
		m.emitter.Emit(ev)
		return nil
	}
}

func waitForState(states <-chan workflow.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-states
		if !ok {
			return statesClosedMsg{}
		}

		return StateMsg(s)
	}
}

func renderKeyHelp(keyBinding key.Binding, suffix ...string) string {
	s := style.Help.Render("[") + style.Key.Render(keyBinding.Help().Key) +
		style.Help.Render("] ") +
		style.Help.Render(keyBinding.Help().Desc)

	return s + strings.Join(suffix, "")
}
