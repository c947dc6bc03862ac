package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/oneshot/pkg/models"
)

// TraceStatus is the lifecycle state of a recorded trace.
type TraceStatus string

const (
	TraceRunning   TraceStatus = "running"
	TraceCompleted TraceStatus = "completed"
	TraceFailed    TraceStatus = "failed"
)

// Trace is one row of agent_traces.
type Trace struct {
	ID             string                  `json:"id"`
	ConversationID string                  `json:"conversation_id,omitempty"`
	ParentTraceID  string                  `json:"parent_trace_id,omitempty"`
	AgentName      string                  `json:"agent_name"`
	TaskType       string                  `json:"task_type,omitempty"`
	InputData      map[string]any          `json:"input_data"`
	OutputData     map[string]any          `json:"output_data"`
	Status         TraceStatus             `json:"status"`
	Error          string                  `json:"error,omitempty"`
	TokensUsed     int                     `json:"tokens_used"`
	Citations      []models.Citation       `json:"citations"`
	ToolCalls      []models.ToolCallRecord `json:"tool_calls"`
	DurationMs     int64                   `json:"duration_ms"`
	StartedAt      time.Time               `json:"started_at"`
	CompletedAt    *time.Time              `json:"completed_at,omitempty"`
}

// TraceStart describes a trace being opened.
type TraceStart struct {
	ConversationID string
	ParentTraceID  string
	AgentName      string
	TaskType       string
	Input          map[string]any
	// StartedAt defaults to now.
	StartedAt time.Time
}

// TraceHandle identifies an open trace.
type TraceHandle struct {
	ID        string
	StartedAt time.Time
}

// TraceResult is written when a trace completes.
type TraceResult struct {
	Output     map[string]any
	TokensUsed int
	Citations  []models.Citation
	ToolCalls  []models.ToolCallRecord
	// DurationMs defaults to the time since StartedAt.
	DurationMs int64
}

// TraceFilter narrows ListTraces.
type TraceFilter struct {
	ConversationID string
	AgentName      string
	Status         TraceStatus
	// RootOnly limits results to traces without a parent.
	RootOnly bool
	// Limit defaults to 50.
	Limit int
}

const defaultTraceLimit = 50

// StartTrace inserts a running trace.
func (db *DB) StartTrace(ctx context.Context, start TraceStart) (*TraceHandle, error) {
	if start.AgentName == "" {
		return nil, fmt.Errorf("start trace: agent name is required")
	}
	startedAt := start.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	input, err := marshalJSON(start.Input, "{}")
	if err != nil {
		return nil, fmt.Errorf("start trace: encode input: %w", err)
	}

	h := &TraceHandle{ID: uuid.New().String(), StartedAt: startedAt}
	_, err = db.Exec(ctx, `
		INSERT INTO agent_traces (id, conversation_id, parent_trace_id, agent_name, task_type, input_data, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, h.ID, nullString(start.ConversationID), nullString(start.ParentTraceID), start.AgentName,
		nullString(start.TaskType), input, string(TraceRunning), formatTime(startedAt))
	if err != nil {
		return nil, fmt.Errorf("start trace: %w", err)
	}
	return h, nil
}

// CompleteTrace marks a trace completed with its output.
func (db *DB) CompleteTrace(ctx context.Context, h *TraceHandle, result TraceResult) error {
	if h == nil {
		return fmt.Errorf("complete trace: nil handle")
	}
	now := time.Now()
	duration := result.DurationMs
	if duration == 0 {
		duration = now.Sub(h.StartedAt).Milliseconds()
	}
	output, err := marshalJSON(result.Output, "{}")
	if err != nil {
		return fmt.Errorf("complete trace: encode output: %w", err)
	}
	citations, err := marshalJSON(result.Citations, "[]")
	if err != nil {
		return fmt.Errorf("complete trace: encode citations: %w", err)
	}
	toolCalls, err := marshalJSON(result.ToolCalls, "[]")
	if err != nil {
		return fmt.Errorf("complete trace: encode tool calls: %w", err)
	}

	res, err := db.Exec(ctx, `
		UPDATE agent_traces
		SET output_data = ?, status = ?, tokens_used = ?, citations = ?, tool_calls = ?, duration_ms = ?, completed_at = ?
		WHERE id = ?
	`, output, string(TraceCompleted), result.TokensUsed, citations, toolCalls, duration, formatTime(now), h.ID)
	if err != nil {
		return fmt.Errorf("complete trace: %w", err)
	}
	return requireRow(res, "complete trace", h.ID)
}

// FailTrace marks a trace failed.
func (db *DB) FailTrace(ctx context.Context, h *TraceHandle, errMsg string) error {
	if h == nil {
		return fmt.Errorf("fail trace: nil handle")
	}
	now := time.Now()
	res, err := db.Exec(ctx, `
		UPDATE agent_traces SET status = ?, error = ?, duration_ms = ?, completed_at = ? WHERE id = ?
	`, string(TraceFailed), errMsg, now.Sub(h.StartedAt).Milliseconds(), formatTime(now), h.ID)
	if err != nil {
		return fmt.Errorf("fail trace: %w", err)
	}
	return requireRow(res, "fail trace", h.ID)
}

const traceColumns = `id, conversation_id, parent_trace_id, agent_name, task_type, input_data, output_data,
	status, error, tokens_used, citations, tool_calls, duration_ms, started_at, completed_at`

// GetTrace retrieves a trace by ID. Returns nil if it does not exist.
func (db *DB) GetTrace(ctx context.Context, id string) (*Trace, error) {
	row := db.QueryRow(ctx, `SELECT `+traceColumns+` FROM agent_traces WHERE id = ?`, id)
	t, err := scanTrace(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trace: %w", err)
	}
	return t, nil
}

// ListTraces returns traces matching filter, newest first.
func (db *DB) ListTraces(ctx context.Context, filter TraceFilter) ([]Trace, error) {
	var where []string
	var args []any
	if filter.ConversationID != "" {
		where = append(where, "conversation_id = ?")
		args = append(args, filter.ConversationID)
	}
	if filter.AgentName != "" {
		where = append(where, "agent_name = ?")
		args = append(args, filter.AgentName)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.RootOnly {
		where = append(where, "parent_trace_id IS NULL")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultTraceLimit
	}

	query := `SELECT ` + traceColumns + ` FROM agent_traces`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	defer rows.Close()
	return collectTraces(rows, "list traces")
}

// ListChildTraces returns the traces whose parent is parentID, oldest first.
func (db *DB) ListChildTraces(ctx context.Context, parentID string) ([]Trace, error) {
	rows, err := db.Query(ctx, `
		SELECT `+traceColumns+` FROM agent_traces WHERE parent_trace_id = ? ORDER BY started_at ASC, agent_name ASC
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list child traces: %w", err)
	}
	defer rows.Close()
	return collectTraces(rows, "list child traces")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrace(s scanner) (*Trace, error) {
	var t Trace
	var conversationID, parentID, taskType, errMsg, completedAt sql.NullString
	var duration sql.NullInt64
	var input, output, citations, toolCalls, startedAt string

	err := s.Scan(&t.ID, &conversationID, &parentID, &t.AgentName, &taskType, &input, &output,
		&t.Status, &errMsg, &t.TokensUsed, &citations, &toolCalls, &duration, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	t.ConversationID = conversationID.String
	t.ParentTraceID = parentID.String
	t.TaskType = taskType.String
	t.Error = errMsg.String
	t.DurationMs = duration.Int64
	t.StartedAt, _ = parseTime(startedAt)
	t.CompletedAt = parseNullableTime(completedAt)

	if err := json.Unmarshal([]byte(input), &t.InputData); err != nil {
		return nil, fmt.Errorf("decode input_data: %w", err)
	}
	if err := json.Unmarshal([]byte(output), &t.OutputData); err != nil {
		return nil, fmt.Errorf("decode output_data: %w", err)
	}
	if err := json.Unmarshal([]byte(citations), &t.Citations); err != nil {
		return nil, fmt.Errorf("decode citations: %w", err)
	}
	if err := json.Unmarshal([]byte(toolCalls), &t.ToolCalls); err != nil {
		return nil, fmt.Errorf("decode tool_calls: %w", err)
	}
	if t.Citations == nil {
		t.Citations = []models.Citation{}
	}
	if t.ToolCalls == nil {
		t.ToolCalls = []models.ToolCallRecord{}
	}
	return &t, nil
}

func collectTraces(rows *sql.Rows, op string) ([]Trace, error) {
	var out []Trace
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func marshalJSON(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRow(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: get rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: no trace %s", op, id)
	}
	return nil
}
