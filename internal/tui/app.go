package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/oneshot/internal/events"
)

// EventSource yields agent events until it returns an error.
type EventSource interface {
	Next() (events.Event, error)
}

// EventMsg carries one event from the stream into the model.
type EventMsg struct {
	Event events.Event
}

// StreamClosedMsg signals that the event stream ended.
type StreamClosedMsg struct {
	Err error
}

// App is the bubbletea model for the agent status panel.
type App struct {
	source       EventSource
	conversation string
	board        *Board
	logs         *LogsPanel
	card         *AgentCard
	spinner      spinner.Model
	// width is the terminal width.
	width int
	// height is the terminal height.
	height int
	// closed holds the reason the stream ended, if it has.
	closed   error
	quitting bool

	titleStyle  lipgloss.Style
	mutedStyle  lipgloss.Style
	errorStyle  lipgloss.Style
	barStyle    lipgloss.Style
	footerStyle lipgloss.Style
}

// New creates an App reading from source.
func New(source EventSource, conversation string) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	return &App{
		source:       source,
		conversation: conversation,
		board:        NewBoard(),
		logs:         NewLogsPanel(),
		card:         NewAgentCard(),
		spinner:      sp,
		width:        100,
		height:       30,

		titleStyle:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")),
		mutedStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		errorStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		barStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		footerStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Board returns the status model.
func (a *App) Board() *Board { return a.board }

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.listen())
}

// listen waits for the next event.
func (a *App) listen() tea.Cmd {
	source := a.source
	return func() tea.Msg {
		ev, err := source.Next()
		if err != nil {
			return StreamClosedMsg{Err: err}
		}
		return EventMsg{Event: ev}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		}
		var cmd tea.Cmd
		a.logs, cmd = a.logs.Update(msg)
		return a, cmd

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout()
		return a, nil

	case EventMsg:
		entry, err := a.board.Apply(msg.Event)
		if err != nil {
			entry.Level = LogLevelWarn
			entry.Message = err.Error()
		}
		a.logs.AddLog(entry)
		return a, a.listen()

	case StreamClosedMsg:
		a.closed = msg.Err
		if a.closed == nil {
			a.closed = ErrStreamClosed
		}
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}
	return a, nil
}

// layout sizes the log panel to the space left below the cards.
func (a *App) layout() {
	used := 2 + a.cardRows()*a.card.Height() + 2
	a.logs.SetSize(a.width, max(5, a.height-used))
}

func (a *App) columns() int {
	return max(1, a.width/a.card.Width())
}

func (a *App) cardRows() int {
	n := len(a.board.Cards())
	cols := a.columns()
	return (n + cols - 1) / cols
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(a.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(a.renderCards())
	b.WriteString("\n")
	b.WriteString(a.logs.View())
	b.WriteString("\n")
	b.WriteString(a.renderFooter())
	return b.String()
}

func (a *App) renderHeader() string {
	title := a.titleStyle.Render("Agents") + " " + a.mutedStyle.Render(a.conversation)
	return title + "  " + a.renderProgress(30)
}

func (a *App) renderProgress(width int) string {
	p := min(max(a.board.Progress(), 0), 1)
	filled := int(p * float64(width))
	bar := a.barStyle.Render(strings.Repeat("█", filled)) +
		a.mutedStyle.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %3.0f%%", bar, p*100)
}

func (a *App) renderCards() string {
	cols := a.columns()
	cards := a.board.Cards()
	spin := a.spinner.View()

	var rows []string
	for start := 0; start < len(cards); start += cols {
		end := min(start+cols, len(cards))
		views := make([]string, 0, end-start)
		for _, c := range cards[start:end] {
			a.card.SetData(c)
			views = append(views, a.card.View(spin))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, views...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (a *App) renderFooter() string {
	var status string
	switch {
	case a.closed != nil && !errors.Is(a.closed, ErrStreamClosed):
		status = a.errorStyle.Render("disconnected: " + a.closed.Error())
	case a.closed != nil:
		status = a.mutedStyle.Render("stream closed")
	case a.board.Done():
		status = a.mutedStyle.Render(fmt.Sprintf("done, %d document(s)", len(a.board.Documents())))
	default:
		status = a.mutedStyle.Render(fmt.Sprintf("%d agent(s) active", a.board.ActiveCount()))
	}
	return status + "  " + a.footerStyle.Render("q: quit  ↑/↓: scroll")
}

// Run shows the panel until the user quits or ctx is cancelled.
func Run(ctx context.Context, source EventSource, conversation string) error {
	p := tea.NewProgram(New(source, conversation), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
