package tui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/oneshot/internal/events"
	"github.com/ShayCichocki/oneshot/pkg/models"
)

// AgentStatus is the display state of one agent.
type AgentStatus string

const (
	StatusIdle      AgentStatus = "idle"
	StatusThinking  AgentStatus = "thinking"
	StatusExecuting AgentStatus = "executing"
	StatusWaiting   AgentStatus = "waiting"
	StatusCompleted AgentStatus = "completed"
	StatusError     AgentStatus = "error"
)

const orchestratorName = "orchestrator"

// AgentCardData contains the data needed to render an agent card.
type AgentCardData struct {
	// Name is the agent's name.
	Name string
	// Status is the agent's current status.
	Status AgentStatus
	// Detail is the task, thought or handoff context last reported.
	Detail string
	// Tools lists tool calls announced for the agent, in order.
	Tools []string
	// Summary is the result summary once completed.
	Summary string
	// DurationMs is the reported execution time once completed.
	DurationMs int64
	// UpdatedAt is when the card last changed.
	UpdatedAt time.Time
}

// Board is the status model the panel renders. It is driven purely by
// Apply so it can be tested without a terminal.
type Board struct {
	order     []string
	agents    map[string]*AgentCardData
	progress  float64
	documents []events.DocumentGenerated
	done      bool
}

// NewBoard returns a board with the orchestrator and every known agent idle.
func NewBoard() *Board {
	b := &Board{agents: make(map[string]*AgentCardData)}
	b.card(orchestratorName)
	for _, name := range models.AllTaskNames() {
		b.card(string(name))
	}
	return b
}

// card returns the named card, adding it if unknown.
func (b *Board) card(name string) *AgentCardData {
	c, ok := b.agents[name]
	if !ok {
		c = &AgentCardData{Name: name, Status: StatusIdle}
		b.agents[name] = c
		b.order = append(b.order, name)
	}
	return c
}

// Cards returns every card in display order.
func (b *Board) Cards() []*AgentCardData {
	out := make([]*AgentCardData, len(b.order))
	for i, name := range b.order {
		out[i] = b.agents[name]
	}
	return out
}

// Card returns the named card, or nil.
func (b *Board) Card(name string) *AgentCardData { return b.agents[name] }

// Progress returns the last reported run progress in [0,1].
func (b *Board) Progress() float64 { return b.progress }

// Documents returns the documents generated so far.
func (b *Board) Documents() []events.DocumentGenerated { return b.documents }

// Done reports whether the orchestrator has completed.
func (b *Board) Done() bool { return b.done }

// ActiveCount returns how many agents are not idle.
func (b *Board) ActiveCount() int {
	n := 0
	for _, c := range b.agents {
		if c.Status != StatusIdle {
			n++
		}
	}
	return n
}

// Apply folds one event into the board and returns the log line for it.
func (b *Board) Apply(ev events.Event) (PanelLogEntry, error) {
	entry := PanelLogEntry{Timestamp: ev.Timestamp, Level: LogLevelInfo}

	switch ev.Type {
	case events.EventAgentStarted:
		var p events.Started
		if err := decode(ev, &p); err != nil {
			return entry, err
		}
		c := b.card(p.Agent)
		c.Status, c.Detail, c.Summary, c.Tools = StatusExecuting, p.Task, "", nil
		c.UpdatedAt = ev.Timestamp
		if p.Agent == orchestratorName {
			b.done = false
			b.progress = 0
			b.documents = nil
		}
		entry.Agent, entry.Message = p.Agent, "started: "+p.Task

	case events.EventAgentThinking:
		var p events.Thinking
		if err := decode(ev, &p); err != nil {
			return entry, err
		}
		c := b.card(p.Agent)
		c.Status, c.Detail, c.UpdatedAt = StatusThinking, p.Thought, ev.Timestamp
		if p.Progress >= b.progress {
			b.progress = p.Progress
		}
		entry.Agent = p.Agent
		entry.Message = fmt.Sprintf("%s (%.0f%%)", p.Thought, p.Progress*100)

	case events.EventAgentHandoff:
		var p events.Handoff
		if err := decode(ev, &p); err != nil {
			return entry, err
		}
		from := b.card(p.From)
		if p.From == orchestratorName {
			from.Status, from.Detail = StatusWaiting, "Coordinating agents..."
		} else {
			from.Status = StatusIdle
		}
		to := b.card(p.To)
		to.Status, to.Detail, to.UpdatedAt = StatusWaiting, p.Context, ev.Timestamp
		entry.Agent, entry.Message = p.From, "handoff to "+p.To

	case events.EventAgentToolCall:
		var p events.ToolCall
		if err := decode(ev, &p); err != nil {
			return entry, err
		}
		c := b.card(p.Agent)
		c.Tools = append(c.Tools, p.Tool)
		c.UpdatedAt = ev.Timestamp
		entry.Level = LogLevelDebug
		entry.Agent, entry.Message = p.Agent, fmt.Sprintf("%s %s", p.ToolType, p.Tool)

	case events.EventAgentCompleted:
		var p events.Completed
		if err := decode(ev, &p); err != nil {
			return entry, err
		}
		c := b.card(p.Agent)
		c.Status = StatusCompleted
		if strings.HasPrefix(p.ResultSummary, "Error") {
			c.Status = StatusError
			entry.Level = LogLevelError
		}
		c.Summary, c.DurationMs, c.UpdatedAt = p.ResultSummary, p.DurationMs, ev.Timestamp
		if p.Agent == orchestratorName {
			b.done = true
		}
		entry.Agent = p.Agent
		entry.Message = fmt.Sprintf("completed in %s: %s", formatDuration(time.Duration(p.DurationMs)*time.Millisecond), p.ResultSummary)

	case events.EventDocumentGenerated:
		var p events.DocumentGenerated
		if err := decode(ev, &p); err != nil {
			return entry, err
		}
		b.documents = append(b.documents, p)
		entry.Agent = orchestratorName
		entry.Message = fmt.Sprintf("document %s saved: %s", p.DocumentID, p.Title)

	default:
		entry.Level = LogLevelWarn
		entry.Message = "unknown event " + string(ev.Type)
	}
	return entry, nil
}

func decode(ev events.Event, v any) error {
	if err := json.Unmarshal(ev.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", ev.Type, err)
	}
	return nil
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

// truncate shortens s to maxLen runes, marking the cut with "...".
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
