package orchestrator

import (
	"context"
	"log/slog"

	"github.com/ShayCichocki/oneshot/internal/citation"
	"github.com/ShayCichocki/oneshot/internal/metrics"
	"github.com/ShayCichocki/oneshot/internal/orchestrator/policy"
	"github.com/ShayCichocki/oneshot/internal/state"
	"github.com/ShayCichocki/oneshot/pkg/models"
)

const (
	runAgentName = "orchestrator"
	runTaskType  = "message_processing"
)

// recorder writes run and task traces. Every write failure is logged and
// counted; none of them reach the caller. A nil store records nothing.
type recorder struct {
	store   state.TraceStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	preview policy.PreviewPolicy
}

func (r recorder) failed(op string, err error, args ...any) {
	r.logger.Error("trace write failed", append([]any{"op", op, "error", err}, args...)...)
	r.metrics.RecorderError()
}

// startRun opens the run-level trace. It returns nil when nothing could be
// recorded, and every later call accepts that nil.
func (r recorder) startRun(ctx context.Context, run *models.OrchestrationRun) *state.TraceHandle {
	if r.store == nil {
		return nil
	}
	h, err := r.store.StartTrace(ctx, state.TraceStart{
		ConversationID: run.ConversationID,
		AgentName:      runAgentName,
		TaskType:       runTaskType,
		Input: map[string]any{
			"message":  run.Message,
			"metadata": run.Metadata,
			"run_id":   run.ID,
		},
		StartedAt: run.StartedAt,
	})
	if err != nil {
		r.failed("start_run", err, "run_id", run.ID)
		return nil
	}
	return h
}

// recordTask writes one child trace under parent.
func (r recorder) recordTask(ctx context.Context, parent *state.TraceHandle, run *models.OrchestrationRun, ex models.TaskExecution) {
	if r.store == nil {
		return
	}
	start := state.TraceStart{
		ConversationID: run.ConversationID,
		AgentName:      string(ex.Task),
		TaskType:       citation.Truncate(ex.Description, r.preview.TaskTypeChars),
		Input: map[string]any{
			"task": ex.Description,
			"wave": ex.Wave,
		},
		StartedAt: ex.StartedAt,
	}
	if parent != nil {
		start.ParentTraceID = parent.ID
	}

	h, err := r.store.StartTrace(ctx, start)
	if err != nil {
		r.failed("start_task", err, "task", ex.Task)
		return
	}

	if ex.Status == models.TaskStatusFailed {
		if err := r.store.FailTrace(ctx, h, ex.Error); err != nil {
			r.failed("fail_task", err, "task", ex.Task)
		}
		return
	}

	err = r.store.CompleteTrace(ctx, h, state.TraceResult{
		Output: map[string]any{
			"result_preview": citation.Truncate(ex.Output, r.preview.TaskResultChars),
			"path":           string(ex.Path),
		},
		TokensUsed: ex.Tokens,
		Citations:  ex.Trace.Citations,
		ToolCalls:  ex.Trace.ToolCalls,
		DurationMs: ex.DurationMs,
	})
	if err != nil {
		r.failed("complete_task", err, "task", ex.Task)
	}
}

// completeRun closes the run-level trace with the answer preview.
func (r recorder) completeRun(ctx context.Context, h *state.TraceHandle, run *models.OrchestrationRun, answer string, classificationTokens int) {
	if r.store == nil || h == nil {
		return
	}
	agents := make([]string, 0, len(run.Results))
	for _, name := range run.Plan.Tasks() {
		if _, ok := run.Results[name]; ok {
			agents = append(agents, string(name))
		}
	}
	output := map[string]any{
		"response":              citation.Truncate(answer, r.preview.ResponseChars),
		"agents_used":           agents,
		"intent":                string(run.Intent),
		"classification_tokens": classificationTokens,
	}
	if run.DocumentID != "" {
		output["document_id"] = run.DocumentID
	}
	err := r.store.CompleteTrace(ctx, h, state.TraceResult{
		Output:     output,
		TokensUsed: run.TotalTokens,
	})
	if err != nil {
		r.failed("complete_run", err, "run_id", run.ID)
	}
}

// failRun marks the run-level trace failed.
func (r recorder) failRun(ctx context.Context, h *state.TraceHandle, run *models.OrchestrationRun, cause error) {
	if r.store == nil || h == nil {
		return
	}
	if err := r.store.FailTrace(ctx, h, cause.Error()); err != nil {
		r.failed("fail_run", err, "run_id", run.ID)
	}
}
