package models

import "time"

// RunStatus represents the lifecycle state of an orchestration run.
type RunStatus string

const (
	RunClassifying  RunStatus = "classifying"
	RunWave1Running RunStatus = "wave1_running"
	RunWave2Running RunStatus = "wave2_running"
	RunSynthesizing RunStatus = "synthesizing"
	RunCompleted    RunStatus = "completed"
	RunFailed       RunStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s RunStatus) Valid() bool {
	switch s {
	case RunClassifying, RunWave1Running, RunWave2Running, RunSynthesizing, RunCompleted, RunFailed:
		return true
	default:
		return false
	}
}

// OrchestrationRun is the state of one inbound request. It is owned by the
// engine for the duration of the request.
type OrchestrationRun struct {
	// ID is the unique run identifier.
	ID string `json:"id"`
	// ConversationID is the session used for event delivery.
	ConversationID string `json:"conversation_id"`
	// Message is the original request text.
	Message string `json:"message"`
	// Metadata is caller-supplied context.
	Metadata map[string]any `json:"metadata,omitempty"`
	// Intent is the classified intent.
	Intent Intent `json:"intent"`
	// Platforms is the target scope.
	Platforms []Platform `json:"platforms"`
	// Entities are the extracted key entities.
	Entities []string `json:"entities"`
	// TaskDescription is the classifier's normalized description.
	TaskDescription string `json:"task_description"`
	// Plan is the resolved wave plan.
	Plan WavePlan `json:"plan"`
	// Results maps each task to its output text.
	Results map[TaskName]string `json:"results"`
	// TaskTokens maps each task to its token usage.
	TaskTokens map[TaskName]int `json:"task_tokens"`
	// SynthesisTokens is the usage of the final synthesis call.
	SynthesisTokens int `json:"synthesis_tokens"`
	// TotalTokens is the sum of TaskTokens and SynthesisTokens.
	TotalTokens int `json:"total_tokens"`
	// Status is the current lifecycle state.
	Status RunStatus `json:"status"`
	// DocumentID is set when an artifact was persisted.
	DocumentID string `json:"document_id,omitempty"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// EndedAt is when the run reached a terminal status.
	EndedAt *time.Time `json:"ended_at,omitempty"`
}

// NewOrchestrationRun creates a run in the classifying state.
func NewOrchestrationRun(id, conversationID, message string, metadata map[string]any, now time.Time) *OrchestrationRun {
	return &OrchestrationRun{
		ID:             id,
		ConversationID: conversationID,
		Message:        message,
		Metadata:       metadata,
		Results:        make(map[TaskName]string),
		TaskTokens:     make(map[TaskName]int),
		Status:         RunClassifying,
		StartedAt:      now,
	}
}

// RecordTask stores one task's result and token count.
func (r *OrchestrationRun) RecordTask(name TaskName, output string, tokens int) {
	r.Results[name] = output
	r.TaskTokens[name] = tokens
	r.recomputeTotal()
}

// RecordSynthesis stores the synthesis call's token count.
func (r *OrchestrationRun) RecordSynthesis(tokens int) {
	r.SynthesisTokens = tokens
	r.recomputeTotal()
}

func (r *OrchestrationRun) recomputeTotal() {
	total := r.SynthesisTokens
	for _, n := range r.TaskTokens {
		total += n
	}
	r.TotalTokens = total
}

// Finish moves the run to a terminal status.
func (r *OrchestrationRun) Finish(status RunStatus, now time.Time) {
	r.Status = status
	r.EndedAt = &now
}

// Duration returns the elapsed run time, using now if the run is still open.
func (r *OrchestrationRun) Duration(now time.Time) time.Duration {
	if r.EndedAt != nil {
		return r.EndedAt.Sub(r.StartedAt)
	}
	return now.Sub(r.StartedAt)
}
