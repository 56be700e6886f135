// Package tui renders the interactive chat session in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/docchat/docchat/internal/chat"
	"github.com/docchat/docchat/pkg/models"
)

// Asker is the TUI-facing subset of the chat pipeline.
type Asker interface {
	Ask(ctx context.Context, sess *chat.Session, question string) (models.Answer, error)
}

const askTimeout = 90 * time.Second

// transcript entry roles
const (
	roleYou = "you"
	roleBot = "bot"
	roleErr = "err"
)

type entry struct {
	role      string
	text      string
	citations []models.Citation
}

// answerMsg carries the pipeline result back onto the update loop.
type answerMsg struct {
	answer models.Answer
	err    error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	service       Asker
	session       *chat.Session
	input         textinput.Model
	viewport      viewport.Model
	spinner       spinner.Model
	log           []entry
	lastRetrieval []models.RetrievedChunk
	status        string
	thinking      bool
	showRetrieval bool
	ready         bool
}

// New creates a new chat model with a fresh session.
func New(service Asker) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return Model{
		service:  service,
		session:  chat.NewSession(),
		input:    ti,
		viewport: vp,
		spinner:  sp,
		status:   "Ready. Type a question to start.",
	}
}

// Init initializes the model (cursor blink plus the spinner tick loop; the
// spinner is only drawn while a question is in flight).
func (m Model) Init() tea.Cmd { return tea.Batch(textinput.Blink, m.spinner.Tick) }

// Update handles key, window and answer events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around transcript and query boxes
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header + status + input frame + spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.viewport.SetContent(m.renderLog())
		m.viewport.GotoBottom()
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.thinking {
				return m, nil
			}
			m.log = append(m.log, entry{role: roleYou, text: q})
			m.input.SetValue("")
			m.thinking = true
			m.status = "Thinking..."
			m.viewport.SetContent(m.renderLog())
			m.viewport.GotoBottom()
			return m, m.ask(q)
		case "ctrl+r":
			m.showRetrieval = !m.showRetrieval
			m.viewport.SetContent(m.renderLog())
			m.viewport.GotoBottom()
			return m, nil
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case answerMsg:
		m.thinking = false
		if msg.err != nil {
			m.log = append(m.log, entry{role: roleErr, text: msg.err.Error()})
			m.status = "Error. Ask again or press Ctrl+C to quit."
		} else {
			m.log = append(m.log, entry{role: roleBot, text: msg.answer.Text, citations: msg.answer.Citations})
			m.lastRetrieval = msg.answer.Retrieved
			m.status = fmt.Sprintf("%d citations, %d chunks retrieved. Ctrl+R toggles sources.", len(msg.answer.Citations), len(msg.answer.Retrieved))
		}
		m.viewport.SetContent(m.renderLog())
		m.viewport.GotoBottom()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs the pipeline off the update loop and reports back as a message.
func (m Model) ask(question string) tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
		defer cancel()
		answer, err := m.service.Ask(ctx, sess, question)
		return answerMsg{answer: answer, err: err}
	}
}

// View renders the TUI layout and current transcript.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("DocChat")
	hint := hintStyle.Render("Enter to ask. Ctrl+R sources. Ctrl+C quit.")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.thinking {
		status = m.spinner.View() + " " + m.status
	}
	return header + "  " + hint + "\n" + transcript + "\n" + input + "\n" + statusStyle.Render(status)
}

func (m Model) renderLog() string {
	if len(m.log) == 0 {
		return "No messages yet. Ask a question about your documents."
	}
	w := m.viewport.Width - 2
	if w < 20 {
		w = 20
	}
	wrap := lipgloss.NewStyle().Width(w)
	var b strings.Builder
	for i, e := range m.log {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.role {
		case roleYou:
			b.WriteString(youStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(wrap.Render(e.text))
		case roleBot:
			b.WriteString(botStyle.Render("DocChat"))
			b.WriteString("\n")
			b.WriteString(wrap.Render(e.text))
			for _, c := range e.citations {
				b.WriteString("\n")
				b.WriteString(citeStyle.Render(fmt.Sprintf("  [%d] %s#%d", c.Marker, c.Filename, c.Seq)))
			}
		case roleErr:
			b.WriteString(errStyle.Render("Error: " + e.text))
		}
	}
	if m.showRetrieval && len(m.lastRetrieval) > 0 {
		b.WriteString("\n\n")
		b.WriteString(sourceHeaderStyle.Render("Retrieved context"))
		for _, rc := range m.lastRetrieval {
			b.WriteString("\n")
			if rc.Direct && rc.Score != nil {
				b.WriteString(fmt.Sprintf("  %.2f  %s#%d", *rc.Score, rc.Filename, rc.Chunk.Seq))
			} else {
				b.WriteString(citeStyle.Render(fmt.Sprintf("   --   %s#%d (adjacent)", rc.Filename, rc.Chunk.Seq)))
			}
		}
	}
	return b.String()
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	hintStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	youStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	citeStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	sourceHeaderStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	spinnerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)
