package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/flarexio/docblade"
)

// AskPort is the TUI-facing subset of the docblade service.
type AskPort interface {
	Ask(ctx context.Context, query string, k ...int) (*docblade.Answer, error)
}

type turn struct {
	question string
	answer   docblade.Answer
}

// Model is the Bubble Tea model for the interactive query loop.
type Model struct {
	ctx     context.Context
	service AskPort
	input   textinput.Model
	view    viewport.Model
	turns   []turn
	status  string
	ready   bool
}

// New creates a new TUI model instance.
func New(ctx context.Context, service AskPort, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or type 'exit' to quit"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{ctx: ctx, service: service, input: ti, view: vp, status: summary}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ah := answerBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + qh + 1 // header + status + input box + spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.view.Width = max(20, msg.Width)
		m.view.Height = max(3, vh-ah)
		m.view.SetContent(m.renderTurns())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}

			if strings.EqualFold(q, "exit") {
				return m, tea.Quit
			}

			answer, err := m.service.Ask(m.ctx, q)
			if err != nil {
				m.status = "Error: " + err.Error()
			} else {
				m.status = fmt.Sprintf("Answered %q", q)
				m.turns = append(m.turns, turn{question: q, answer: *answer})
			}

			m.input.Reset()
			m.view.SetContent(m.renderTurns())
			m.view.GotoBottom()
			return m, nil
		case "up":
			m.view.LineUp(1)
			return m, nil
		case "down":
			m.view.LineDown(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and conversation so far.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("DocBlade")
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	answers := answerBoxStyle.Render(m.view.View())
	return header + "\n" + answers + "\n" + input + "\n" + status
}

func (m Model) renderTurns() string {
	if len(m.turns) == 0 {
		return "No questions yet."
	}

	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}

		b.WriteString(questionStyle.Render("Q: " + t.question))
		b.WriteString("\n")
		b.WriteString(t.answer.Text)

		if len(t.answer.Sources) > 0 {
			b.WriteString("\n")
			b.WriteString(sourceStyle.Render("Sources: " + strings.Join(t.answer.Sources, ", ")))
		}
	}

	return b.String()
}

var (
	answerBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
