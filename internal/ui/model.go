package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/exepirit/lorachat/pkg/lorachat"
)

// maxLines bounds the history kept by the view.
const maxLines = 200

// Chat is the part of a chat node the view drives.
type Chat interface {
	NodeID() string
	ActiveChannel() string
	Submit(line string)
}

// envelopeMsg carries a notified envelope into the program.
type envelopeMsg lorachat.Envelope

// Model is the bubbletea model of the chat screen.
type Model struct {
	chat   Chat
	lines  []lorachat.Envelope
	input  []rune
	width  int
	height int
}

// NewModel creates a view over chat, seeded with history.
func NewModel(chat Chat, history []lorachat.Envelope) Model {
	m := Model{chat: chat}
	for _, env := range history {
		m = m.push(env)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) push(env lorachat.Envelope) Model {
	lines := append(m.lines, env)
	if len(lines) > maxLines {
		lines = append([]lorachat.Envelope(nil), lines[len(lines)-maxLines:]...)
	}
	m.lines = lines
	return m
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case envelopeMsg:
		return m.push(lorachat.Envelope(msg)), nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(string(m.input))
			m.input = nil
			if line != "" {
				m.chat.Submit(line)
			}
		case tea.KeyBackspace:
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
		case tea.KeySpace:
			m.input = append(m.input, ' ')
		case tea.KeyRunes:
			m.input = append(m.input, msg.Runes...)
		}
		return m, nil
	}
	return m, nil
}

// visible returns the lines of the active channel that fit the screen.
func (m Model) visible() []lorachat.Envelope {
	active := m.chat.ActiveChannel()
	var lines []lorachat.Envelope
	for _, env := range m.lines {
		if env.Channel == "" || env.Channel == active {
			lines = append(lines, env)
		}
	}

	room := m.height - 6
	if m.height == 0 {
		room = 20
	}
	if room < 1 {
		room = 1
	}
	if len(lines) > room {
		lines = lines[len(lines)-room:]
	}
	return lines
}

func renderLine(env lorachat.Envelope) string {
	prefix := timeStyle.Render("["+clock(env)+"]") + " "
	switch env.Type {
	case lorachat.TypeError:
		return prefix + errorStyle.Render(env.Node+": "+env.Content)
	case lorachat.TypeStatus:
		return prefix + statusStyle.Render(env.Node+": "+env.Content)
	default:
		return prefix + nodeStyle.Render(env.Node) + ": " + env.Content
	}
}

func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(Header(m.chat.NodeID())))
	sb.WriteString("\n")
	sb.WriteString(hintStyle.Render(CommandsHint))
	sb.WriteString("\n")
	sb.WriteString(hintStyle.Render("Channel: " + m.chat.ActiveChannel()))
	sb.WriteString("\n")
	width := m.width
	if width == 0 {
		width = 40
	}
	sb.WriteString(strings.Repeat("─", width))
	sb.WriteString("\n")

	for _, env := range m.visible() {
		sb.WriteString(renderLine(env))
		sb.WriteString("\n")
	}

	sb.WriteString(promptStyle.Render("> "))
	sb.WriteString(string(m.input))
	return sb.String()
}
