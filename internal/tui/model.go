package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"helpdesk/internal/domain"
	"helpdesk/internal/service"
)

// Asker is the TUI-facing subset of the help desk service.
type Asker interface {
	Answer(ctx context.Context, question string, opts ...service.AnswerOption) (*domain.AnswerResult, error)
}

type tokenMsg string

type doneMsg struct {
	result *domain.AnswerResult
	err    error
}

// chanObserver forwards streamed tokens to the UI loop until ctx ends.
type chanObserver struct {
	ctx    context.Context
	events chan<- tea.Msg
}

func (o chanObserver) OnToken(token string) {
	select {
	case o.events <- tokenMsg(token):
	case <-o.ctx.Done():
	}
}

func (o chanObserver) OnSources(string) {}

// Model is the Bubble Tea model for the interactive help desk.
type Model struct {
	desk     Asker
	k        int
	input    textinput.Model
	viewport viewport.Model
	question string
	answer   strings.Builder
	sources  string
	status   string
	ready    bool

	events <-chan tea.Msg
	cancel context.CancelFunc
}

// New creates a new TUI model instance. k is the citation count per answer.
func New(desk Asker, k int) *Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return &Model{desk: desk, k: k, input: ti, viewport: vp, status: "Ready."}
}

// Init initializes the model (text input cursor blink).
func (m *Model) Init() tea.Cmd { return textinput.Blink }

func (m *Model) busy() bool { return m.events != nil }

// Update handles key, window and streaming events.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := answerBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil
	case tokenMsg:
		m.answer.WriteString(string(msg))
		m.refresh()
		return m, waitForEvent(m.events)
	case doneMsg:
		m.finish(msg)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy() {
				return m, nil
			}
			m.input.SetValue("")
			return m, m.ask(q)
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) ask(question string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan tea.Msg, 64)
	m.events = events
	m.cancel = cancel
	m.question = question
	m.answer.Reset()
	m.sources = ""
	m.status = "Thinking..."
	m.refresh()

	desk, k := m.desk, m.k
	go func() {
		defer close(events)
		opts := []service.AnswerOption{
			service.WithVerbose(false),
			service.WithObserver(chanObserver{ctx: ctx, events: events}),
		}
		if k > 0 {
			opts = append(opts, service.WithK(k))
		}
		res, err := desk.Answer(ctx, question, opts...)
		select {
		case events <- doneMsg{result: res, err: err}:
		case <-ctx.Done():
		}
	}()
	return waitForEvent(events)
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return doneMsg{err: context.Canceled}
		}
		return msg
	}
}

func (m *Model) finish(msg doneMsg) {
	if m.cancel != nil {
		m.cancel()
	}
	m.events = nil
	m.cancel = nil
	if msg.err != nil {
		m.status = "Error: " + msg.err.Error()
	} else {
		// non-streaming models deliver everything at the end
		if m.answer.Len() == 0 {
			m.answer.WriteString(msg.result.AnswerText)
		}
		m.sources = msg.result.CitationBlock
		m.status = fmt.Sprintf("Answered %q", m.question)
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderAnswer())
	m.viewport.GotoBottom()
}

// View renders the TUI layout and current answer.
func (m *Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Help Desk")
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	body := answerBoxStyle.Render(m.viewport.View())
	return header + "\n" + body + "\n" + input + "\n" + status
}

func (m *Model) renderAnswer() string {
	if m.question == "" {
		return "No question yet."
	}
	var b strings.Builder
	b.WriteString(questionStyle.Render(m.question))
	b.WriteString("\n\n")
	b.WriteString(m.answer.String())
	if m.sources != "" {
		b.WriteString("\n\n")
		b.WriteString(renderSources(m.sources))
	}
	return b.String()
}

var (
	answerBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	linkStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Underline(true)
	citationRe     = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)
)

// renderSources styles each [title](source) citation of a block and drops
// the markdown line-break spaces.
func renderSources(block string) string {
	block = strings.ReplaceAll(block, "  \n", "\n")
	return citationRe.ReplaceAllStringFunc(block, func(c string) string {
		parts := citationRe.FindStringSubmatch(c)
		return titleStyle.Render(parts[1]) + " " + linkStyle.Render(parts[2])
	})
}
