package models

import (
	"errors"
	"fmt"
	"time"
)

// TaskName identifies one of the specialist agents the orchestrator can dispatch.
type TaskName string

const (
	// TaskStrategist plans audience, tone and posting cadence.
	TaskStrategist TaskName = "strategist"
	// TaskResearcher gathers trends, news and competitor activity.
	TaskResearcher TaskName = "researcher"
	// TaskAnalyst benchmarks engagement and timing.
	TaskAnalyst TaskName = "analyst"
	// TaskScribe writes platform-specific content.
	TaskScribe TaskName = "scribe"
	// TaskAdvisor reviews content for brand compliance.
	TaskAdvisor TaskName = "advisor"
	// TaskMemory retrieves brand guidelines and past performance.
	TaskMemory TaskName = "memory"
)

// AllTaskNames returns every known task name in a stable order.
func AllTaskNames() []TaskName {
	return []TaskName{TaskStrategist, TaskResearcher, TaskAnalyst, TaskScribe, TaskAdvisor, TaskMemory}
}

// Valid returns true if the task name is a known value.
func (n TaskName) Valid() bool {
	switch n {
	case TaskStrategist, TaskResearcher, TaskAnalyst, TaskScribe, TaskAdvisor, TaskMemory:
		return true
	default:
		return false
	}
}

// ParseTaskName converts a raw string into a TaskName.
func ParseTaskName(s string) (TaskName, bool) {
	n := TaskName(s)
	return n, n.Valid()
}

// TaskStatus represents the execution state of a single task within a run.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has been dispatched but not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunningPrimary indicates the tool-capable path is executing.
	TaskStatusRunningPrimary TaskStatus = "running_primary"
	// TaskStatusRunningFallback indicates the plain-completion path is executing.
	TaskStatusRunningFallback TaskStatus = "running_fallback"
	// TaskStatusCompleted indicates the task produced output.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates both paths failed.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunningPrimary, TaskStatusRunningFallback,
		TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true once no further transition is possible.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransition reports whether moving from s to next is legal.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusRunningPrimary
	case TaskStatusRunningPrimary:
		return next == TaskStatusCompleted || next == TaskStatusRunningFallback
	case TaskStatusRunningFallback:
		return next == TaskStatusCompleted || next == TaskStatusFailed
	default:
		return false
	}
}

// ErrInvalidTransition is returned when a status change skips or reverses
// a step of the task lifecycle.
var ErrInvalidTransition = errors.New("invalid task status transition")

// ExecutionPath records which route produced a task's output.
type ExecutionPath string

const (
	// PathPrimary is the tool-capable executor route.
	PathPrimary ExecutionPath = "primary"
	// PathFallback is the plain-completion degrade route.
	PathFallback ExecutionPath = "fallback"
)

// TaskContext is the read-only snapshot of run state handed to one task.
type TaskContext struct {
	// Message is the original user request.
	Message string `json:"message"`
	// Entities are the key entities the classifier extracted.
	Entities []string `json:"entities"`
	// Intent is the classified intent of the run.
	Intent Intent `json:"intent"`
	// Platforms is the resolved target scope.
	Platforms []Platform `json:"platforms"`
	// PreviousResults holds outputs of earlier waves, keyed by task.
	PreviousResults map[TaskName]string `json:"previous_results"`
}

// TaskExecution is the record of one task's run within an orchestration.
type TaskExecution struct {
	// Task is the task being executed.
	Task TaskName `json:"task"`
	// Description is the normalized task description from the classifier.
	Description string `json:"description"`
	// Wave is 1 or 2.
	Wave int `json:"wave"`
	// Context is the snapshot this task saw.
	Context TaskContext `json:"-"`
	// Output is the task's text result, or a diagnostic on failure.
	Output string `json:"output"`
	// Tokens is the token usage reported for this task.
	Tokens int `json:"tokens"`
	// Trace holds tool calls and citations.
	Trace ExecutionTrace `json:"trace"`
	// Status is the current state.
	Status TaskStatus `json:"status"`
	// History lists every status the task has held, oldest first.
	History []TaskStatus `json:"history,omitempty"`
	// Path is the route that produced Output, empty on failure.
	Path ExecutionPath `json:"path,omitempty"`
	// DurationMs is wall time spent in the adapter.
	DurationMs int64 `json:"duration_ms"`
	// StartedAt is when the adapter was entered.
	StartedAt time.Time `json:"started_at"`
	// Error is the failure message when Status is failed.
	Error string `json:"error,omitempty"`
}

// NewTaskExecution returns a pending execution of task.
func NewTaskExecution(task TaskName, description string, wave int, tc TaskContext, startedAt time.Time) TaskExecution {
	return TaskExecution{
		Task:        task,
		Description: description,
		Wave:        wave,
		Context:     tc,
		Status:      TaskStatusPending,
		History:     []TaskStatus{TaskStatusPending},
		StartedAt:   startedAt,
	}
}

// Advance moves the execution to next and records the step. The status is
// left unchanged when the move is not a legal transition.
func (e *TaskExecution) Advance(next TaskStatus) error {
	if !e.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, next)
	}
	e.Status = next
	e.History = append(e.History, next)
	return nil
}
