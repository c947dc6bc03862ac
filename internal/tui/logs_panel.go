package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// LogLevel represents the severity of a log message.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelDebug LogLevel = "DEBUG"
)

// PanelLogEntry represents a single log entry in the logs panel.
type PanelLogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Agent     string // Empty means global log
	Message   string
}

// LogsPanel is a scrollable event log that follows new entries until the
// user scrolls up.
type LogsPanel struct {
	logs     []PanelLogEntry
	maxLogs  int
	viewport viewport.Model

	// Styles
	titleStyle   lipgloss.Style
	borderStyle  lipgloss.Style
	infoStyle    lipgloss.Style
	warnStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	debugStyle   lipgloss.Style
	timeStyle    lipgloss.Style
	agentStyle   lipgloss.Style
	messageStyle lipgloss.Style
}

// NewLogsPanel creates a new LogsPanel instance.
func NewLogsPanel() *LogsPanel {
	return &LogsPanel{
		maxLogs:  1000,
		viewport: viewport.New(80, 10),

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),

		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")),

		infoStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green

		warnStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")), // Orange

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red

		debugStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray

		timeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		agentStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("63")), // Blue

		messageStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
	}
}

// AddLog adds a new log entry.
func (p *LogsPanel) AddLog(entry PanelLogEntry) {
	follow := p.viewport.AtBottom()

	p.logs = append(p.logs, entry)
	if len(p.logs) > p.maxLogs {
		p.logs = p.logs[len(p.logs)-p.maxLogs:]
	}

	p.viewport.SetContent(p.render())
	if follow {
		p.viewport.GotoBottom()
	}
}

// Len returns the number of retained entries.
func (p *LogsPanel) Len() int { return len(p.logs) }

// SetSize updates the panel dimensions, border included.
func (p *LogsPanel) SetSize(width, height int) {
	p.viewport.Width = max(10, width-2)
	p.viewport.Height = max(1, height-3)
	p.viewport.SetContent(p.render())
}

// Update handles scroll keys.
func (p *LogsPanel) Update(msg tea.Msg) (*LogsPanel, tea.Cmd) {
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

// View renders the panel.
func (p *LogsPanel) View() string {
	title := p.titleStyle.Render("Events")
	return p.borderStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, p.viewport.View()))
}

func (p *LogsPanel) render() string {
	lines := make([]string, len(p.logs))
	for i, e := range p.logs {
		lines[i] = p.renderEntry(e)
	}
	return strings.Join(lines, "\n")
}

func (p *LogsPanel) renderEntry(e PanelLogEntry) string {
	var level lipgloss.Style
	switch e.Level {
	case LogLevelWarn:
		level = p.warnStyle
	case LogLevelError:
		level = p.errorStyle
	case LogLevelDebug:
		level = p.debugStyle
	default:
		level = p.infoStyle
	}

	var b strings.Builder
	b.WriteString(p.timeStyle.Render(e.Timestamp.Local().Format("15:04:05")))
	b.WriteString(" ")
	b.WriteString(level.Render(string(e.Level)))
	if e.Agent != "" {
		b.WriteString(" ")
		b.WriteString(p.agentStyle.Render("[" + e.Agent + "]"))
	}
	b.WriteString(" ")
	b.WriteString(p.messageStyle.Render(truncate(oneLine(e.Message), max(10, p.viewport.Width-30))))
	return b.String()
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
