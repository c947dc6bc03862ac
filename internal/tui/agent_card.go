package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Status icons.
const (
	iconIdle      = "[○]"
	iconThinking  = "[◐]"
	iconExecuting = "[●]"
	iconWaiting   = "[◌]"
	iconDone      = "[✓]"
	iconFailed    = "[✗]"
)

// AgentCard renders a single agent as a card.
type AgentCard struct {
	data   *AgentCardData
	width  int
	height int

	// Styles
	borderStyle     lipgloss.Style
	activeBorder    lipgloss.Style
	nameStyle       lipgloss.Style
	statusExecuting lipgloss.Style
	statusThinking  lipgloss.Style
	statusWaiting   lipgloss.Style
	statusDone      lipgloss.Style
	statusFailed    lipgloss.Style
	statusIdle      lipgloss.Style
	labelStyle      lipgloss.Style
	valueStyle      lipgloss.Style
}

// NewAgentCard creates a new AgentCard instance.
func NewAgentCard() *AgentCard {
	return &AgentCard{
		width:  28,
		height: 7,

		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),

		activeBorder: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),

		nameStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")),

		statusExecuting: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")), // Blue

		statusThinking: lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")), // Yellow

		statusWaiting: lipgloss.NewStyle().
			Foreground(lipgloss.Color("141")), // Purple

		statusDone: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green

		statusFailed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red

		statusIdle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
	}
}

// SetData updates the card data.
func (c *AgentCard) SetData(data *AgentCardData) {
	c.data = data
}

// SetSize updates the card dimensions.
func (c *AgentCard) SetSize(width, height int) {
	c.width = width
	c.height = height
}

// View renders the agent card. spin replaces the status icon while the
// agent is busy.
func (c *AgentCard) View(spin string) string {
	border := c.borderStyle
	if c.data == nil {
		return border.Width(c.width - 4).Height(c.height - 2).Render("No agent")
	}
	if busy(c.data.Status) {
		border = c.activeBorder
	}
	inner := c.width - 4

	var b strings.Builder
	b.WriteString(c.nameStyle.Render(titleCase(c.data.Name)))
	b.WriteString("\n")
	b.WriteString(c.renderStatus(spin))
	b.WriteString("\n")

	detail := c.data.Detail
	if c.data.Summary != "" {
		detail = c.data.Summary
	}
	b.WriteString(c.valueStyle.Render(truncate(oneLine(detail), inner)))
	b.WriteString("\n")

	if len(c.data.Tools) > 0 {
		b.WriteString(c.labelStyle.Render("Tools: "))
		b.WriteString(c.valueStyle.Render(truncate(strings.Join(c.data.Tools, ", "), inner-7)))
	}
	b.WriteString("\n")

	if c.data.DurationMs > 0 {
		b.WriteString(c.labelStyle.Render("Time: "))
		b.WriteString(c.valueStyle.Render(formatDuration(msDuration(c.data.DurationMs))))
	}

	return border.
		Width(inner).
		Height(c.height - 2).
		Render(b.String())
}

// renderStatus renders the status line with icon.
func (c *AgentCard) renderStatus(spin string) string {
	var icon string
	var style lipgloss.Style

	switch c.data.Status {
	case StatusExecuting:
		icon, style = iconExecuting, c.statusExecuting
	case StatusThinking:
		icon, style = iconThinking, c.statusThinking
	case StatusWaiting:
		icon, style = iconWaiting, c.statusWaiting
	case StatusCompleted:
		icon, style = iconDone, c.statusDone
	case StatusError:
		icon, style = iconFailed, c.statusFailed
	default:
		icon, style = iconIdle, c.statusIdle
	}
	if spin != "" && busy(c.data.Status) {
		icon = spin
	}
	return style.Render(icon + " " + string(c.data.Status))
}

// Width returns the card width.
func (c *AgentCard) Width() int {
	return c.width
}

// Height returns the card height.
func (c *AgentCard) Height() int {
	return c.height
}

func busy(s AgentStatus) bool {
	return s == StatusExecuting || s == StatusThinking
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
