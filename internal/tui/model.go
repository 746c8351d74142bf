package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"librarian/internal/domain"
	"librarian/internal/recommend"
	"librarian/internal/service"
)

// ChatPort is the TUI-facing subset of the librarian service.
type ChatPort interface {
	Respond(ctx context.Context, input string) (service.Reply, error)
	Books() int
}

type replyMsg struct {
	reply service.Reply
	err   error
}

type listenMsg struct {
	text string
	err  error
}

type spokeMsg struct{ err error }

// Model is the Bubble Tea model for the chat window.
type Model struct {
	service    ChatPort
	speaker    domain.Speaker
	listener   domain.Listener
	ttsEnabled bool

	input      textinput.Model
	viewport   viewport.Model
	spinner    spinner.Model
	transcript []string
	status     string
	busy       bool
	ready      bool
}

// New creates a new TUI model instance.
func New(svc ChatPort, speaker domain.Speaker, listener domain.Listener, ttsEnabled bool) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask for a book, or for the summary of a title"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		service:    svc,
		speaker:    speaker,
		listener:   listener,
		ttsEnabled: ttsEnabled,
		input:      ti,
		viewport:   viewport.New(0, 0),
		spinner:    sp,
		status:     fmt.Sprintf("%d books loaded.", svc.Books()),
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + 1 + qh + 1 // header, status, key hints, input box, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			m.busy = true
			m.status = "Thinking..."
			m.append("You: " + q)
			return m, tea.Batch(m.spinner.Tick, respond(m.service, q))
		case "ctrl+t":
			m.ttsEnabled = !m.ttsEnabled
			m.status = "Speech output muted"
			if m.ttsEnabled {
				m.status = "Speech output on"
			}
			return m, nil
		case "ctrl+l":
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Listening..."
			m.append("🎤 Listening...")
			return m, tea.Batch(m.spinner.Tick, listen(m.listener))
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	case replyMsg:
		m.busy = false
		if msg.err != nil {
			m.append("Librarian: " + describeError(msg.err))
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.append(renderReply(msg.reply)...)
		m.status = "Ready."
		if m.ttsEnabled && m.speaker != nil {
			if parts := msg.reply.Spoken(); len(parts) > 0 {
				return m, speak(m.speaker, parts)
			}
		}
		return m, nil
	case listenMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Speech input failed: " + msg.err.Error()
			return m, nil
		}
		m.input.SetValue(msg.text)
		m.input.CursorEnd()
		m.status = "Heard you. Press Enter to send."
		return m, nil
	case spokeMsg:
		if msg.err != nil {
			m.status = "Speech output failed: " + msg.err.Error()
		}
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Smart Librarian")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + transcript + "\n" + input + "\n" + statusStyle.Render(status) + "\n" + hintStyle.Render(m.keyHints())
}

// Transcript returns the chat lines rendered so far.
func (m Model) Transcript() []string {
	return append([]string(nil), m.transcript...)
}

// TTSEnabled reports whether replies are read aloud.
func (m Model) TTSEnabled() bool { return m.ttsEnabled }

func (m *Model) append(lines ...string) {
	m.transcript = append(m.transcript, lines...)
	m.refresh()
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	content := lipgloss.NewStyle().Width(m.viewport.Width).Render(strings.Join(m.transcript, "\n"))
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func respond(svc ChatPort, q string) tea.Cmd {
	return func() tea.Msg {
		r, err := svc.Respond(context.Background(), q)
		return replyMsg{reply: r, err: err}
	}
}

func listen(l domain.Listener) tea.Cmd {
	return func() tea.Msg {
		if l == nil {
			return listenMsg{err: errors.New("speech input is not configured")}
		}
		text, err := l.Listen(context.Background())
		return listenMsg{text: text, err: err}
	}
}

func speak(s domain.Speaker, parts []string) tea.Cmd {
	return func() tea.Msg {
		for _, p := range parts {
			if err := s.Speak(context.Background(), p); err != nil {
				return spokeMsg{err: err}
			}
		}
		return spokeMsg{}
	}
}

func renderReply(r service.Reply) []string {
	switch r.Kind {
	case service.KindSummary:
		return []string{
			fmt.Sprintf("Librarian: Here's the summary for '%s':", highlightStyle.Render(r.Title)),
			r.Summary,
		}
	case service.KindRecommendation:
		text := strings.ReplaceAll(r.Text, r.Title, highlightStyle.Render(r.Title))
		return []string{"Librarian: " + text, "", summaryLabelStyle.Render("Summary:"), r.Summary}
	default:
		return []string{"Librarian: " + r.Text}
	}
}

func describeError(err error) string {
	switch {
	case errors.Is(err, recommend.ErrRetrievalUnavailable):
		return "I can't reach the book index right now. Please try again in a moment."
	case errors.Is(err, context.DeadlineExceeded):
		return "That took too long. Please try again."
	default:
		return "Sorry, something went wrong while preparing your recommendation."
	}
}

// keyHints follows the current speech state.
func (m Model) keyHints() string {
	return "enter send · ctrl+t " + muteLabel(m.ttsEnabled) + " · ctrl+l speak · ctrl+c quit"
}

func muteLabel(enabled bool) string {
	if enabled {
		return "mute"
	}
	return "unmute"
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	summaryLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	hintStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
