// Package events fans out agent lifecycle notifications to live observers of
// a conversation session.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names one of the lifecycle notifications.
type EventType string

const (
	// EventAgentStarted is emitted when an agent begins a task.
	EventAgentStarted EventType = "agent.started"
	// EventAgentThinking reports coarse progress of a run.
	EventAgentThinking EventType = "agent.thinking"
	// EventAgentHandoff is emitted when work is routed to an agent.
	EventAgentHandoff EventType = "agent.handoff"
	// EventAgentToolCall is emitted before an agent invokes a tool.
	EventAgentToolCall EventType = "agent.tool_call"
	// EventAgentCompleted is emitted when an agent finishes, success or not.
	EventAgentCompleted EventType = "agent.completed"
	// EventDocumentGenerated is emitted after a generated document is stored.
	EventDocumentGenerated EventType = "document.generated"
)

// AllEventTypes lists every event type in declaration order.
func AllEventTypes() []EventType {
	return []EventType{
		EventAgentStarted,
		EventAgentThinking,
		EventAgentHandoff,
		EventAgentToolCall,
		EventAgentCompleted,
		EventDocumentGenerated,
	}
}

// Event is the wire envelope delivered to every transport.
type Event struct {
	Type      EventType       `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Started is the payload of agent.started.
type Started struct {
	Agent string `json:"agent"`
	Task  string `json:"task"`
}

// Thinking is the payload of agent.thinking. Progress is in [0,1].
type Thinking struct {
	Agent    string  `json:"agent"`
	Thought  string  `json:"thought"`
	Progress float64 `json:"progress"`
}

// Handoff is the payload of agent.handoff.
type Handoff struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Context string `json:"context"`
}

// ToolCall is the payload of agent.tool_call.
type ToolCall struct {
	Agent    string `json:"agent"`
	Tool     string `json:"tool"`
	ToolType string `json:"tool_type"`
}

// Completed is the payload of agent.completed.
type Completed struct {
	Agent         string `json:"agent"`
	ResultSummary string `json:"result_summary"`
	DurationMs    int64  `json:"duration_ms"`
}

// DocumentGenerated is the payload of document.generated.
type DocumentGenerated struct {
	DocumentID string `json:"document_id"`
	Type       string `json:"type"`
	Title      string `json:"title"`
}

// Encode serializes one event envelope.
func Encode(t EventType, ts time.Time, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t, err)
	}
	if string(data) == "null" {
		data = []byte("{}")
	}
	out, err := json.Marshal(Event{Type: t, Timestamp: ts.UTC(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", t, err)
	}
	return out, nil
}

// Decode parses an envelope produced by Encode.
func Decode(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

// Publisher accepts lifecycle events for a session. Implementations never
// block on slow observers and never report delivery failures.
type Publisher interface {
	Publish(sessionID string, t EventType, payload any)
}

// Discard is a Publisher that drops everything.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(string, EventType, any) {}
