package models

import "encoding/json"

// CitationType distinguishes URL references from named knowledge sources.
type CitationType string

const (
	CitationURL       CitationType = "url"
	CitationKnowledge CitationType = "knowledge"
)

// Citation is a structured source reference extracted from a task's output
// or from its tool-invocation history.
type Citation struct {
	Type       CitationType `json:"type"`
	URL        string       `json:"url,omitempty"`
	SourceTool string       `json:"source_tool"`
	Preview    string       `json:"preview,omitempty"`
}

// ToolCallRecord is one entry of a task's tool-call log.
type ToolCallRecord struct {
	ToolName      string   `json:"tool_name"`
	Arguments     string   `json:"arguments,omitempty"`
	ResultPreview string   `json:"result_preview,omitempty"`
	URLs          []string `json:"urls,omitempty"`
	IsSource      bool     `json:"is_source"`
}

// ExecutionTrace is attached to a TaskExecution.
type ExecutionTrace struct {
	ToolCalls  []ToolCallRecord `json:"tool_calls"`
	Citations  []Citation       `json:"citations"`
	DurationMs int64            `json:"duration_ms"`
	Tokens     int              `json:"tokens"`
}

// ToolInvocation is one tool call as seen by the tool-capable runtime.
type ToolInvocation struct {
	Tool    string          `json:"tool"`
	Input   json.RawMessage `json:"input,omitempty"`
	Output  string          `json:"output"`
	IsError bool            `json:"is_error,omitempty"`
}

// RawTrace is the provider-specific invocation history returned by the
// runtime. It may be empty when the provider reports none.
type RawTrace struct {
	Invocations []ToolInvocation `json:"invocations"`
}
