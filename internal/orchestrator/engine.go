package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/oneshot/internal/citation"
	"github.com/ShayCichocki/oneshot/internal/events"
	"github.com/ShayCichocki/oneshot/internal/metrics"
	"github.com/ShayCichocki/oneshot/internal/orchestrator/policy"
	"github.com/ShayCichocki/oneshot/internal/state"
	"github.com/ShayCichocki/oneshot/pkg/models"
)

const (
	// DocTypeSocialPost is the document type of persisted artifacts.
	DocTypeSocialPost = "social_post"

	defaultTopic = "Social Media Content"
)

// Request is one inbound message.
type Request struct {
	// ConversationID scopes status events. A new id is generated when empty.
	ConversationID string
	Message        string
	Metadata       map[string]any
}

// Response is the result of a completed run.
type Response struct {
	RunID          string                     `json:"run_id"`
	ConversationID string                     `json:"conversation_id"`
	Answer         string                     `json:"content"`
	Intent         models.Intent              `json:"intent"`
	Platforms      []models.Platform          `json:"platforms"`
	Plan           models.WavePlan            `json:"plan"`
	Degraded       bool                       `json:"degraded"`
	Results        map[models.TaskName]string `json:"results"`
	Tokens         int                        `json:"tokens"`
	DocumentID     string                     `json:"document_id,omitempty"`
	Executions     []models.TaskExecution     `json:"executions"`
}

// Engine runs orchestration requests. It is safe for concurrent use; each
// Run owns its own state.
type Engine struct {
	completer Completer
	adapter   TaskExecutor
	publisher events.Publisher
	routing   *Routing
	documents state.DocumentStore
	recorder  recorder
	logger    *slog.Logger
	metrics   *metrics.Metrics
	policy    policy.Config
	tracer    trace.Tracer
	now       func() time.Time
}

// New creates an Engine with the required configuration and optional settings.
func New(req RequiredConfig, opts ...Option) *Engine {
	o := &orchestratorOptions{}
	for _, opt := range opts {
		opt(o)
	}

	pol := *policy.Default()
	if o.policy != nil {
		pol = *o.policy
	}
	if o.maxParallel > 0 {
		pol.Dispatch.MaxParallel = o.maxParallel
	}
	if err := pol.Validate(); err != nil {
		pol = *policy.Default()
	}

	if o.routing == nil {
		o.routing = DefaultRouting()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if req.Publisher == nil {
		req.Publisher = events.Discard
	}
	logger := o.logger.With("component", "orchestrator")

	return &Engine{
		completer: req.Completer,
		adapter:   req.Adapter,
		publisher: req.Publisher,
		routing:   o.routing,
		documents: o.documents,
		recorder: recorder{
			store:   o.recorder,
			logger:  logger,
			metrics: o.metrics,
			preview: pol.Preview,
		},
		logger:  logger,
		metrics: o.metrics,
		policy:  pol,
		tracer:  otel.Tracer("github.com/ShayCichocki/oneshot/internal/orchestrator"),
		now:     o.now,
	}
}

// Run answers one request: classify, dispatch both waves, synthesize, then
// persist. Only classification and synthesis failures return an error.
func (e *Engine) Run(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	run := models.NewOrchestrationRun(uuid.NewString(), req.ConversationID, req.Message, req.Metadata, e.now())
	em := events.NewEmitter(e.publisher, run.ConversationID)
	logger := e.logger.With("run_id", run.ID, "conversation_id", run.ConversationID)

	ctx, span := e.tracer.Start(ctx, "orchestrator.run", trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("conversation.id", run.ConversationID),
	))
	defer span.End()

	// Trace writes outlive request cancellation so a cancelled run is still
	// marked failed.
	recCtx := context.WithoutCancel(ctx)
	root := e.recorder.startRun(recCtx, run)
	p := e.policy.Progress

	em.Started(runAgentName, "Analyzing request")
	em.Thinking(runAgentName, "Understanding your request...", p.Classifying)

	analysis, classTokens, err := e.classify(ctx, run.Message)
	if err != nil {
		return nil, e.fail(recCtx, em, span, logger, run, root, fmt.Errorf("%w: %w", ErrClassification, err))
	}
	run.Intent = analysis.PrimaryIntent
	run.Platforms = analysis.TargetPlatforms
	run.Entities = analysis.KeyEntities
	run.TaskDescription = analysis.TaskDescription
	em.Thinking(runAgentName, intentSummary(analysis), p.Classified)

	plan, routed := e.routing.Resolve(analysis.PrimaryIntent)
	if !routed {
		plan = DegradedPlan(analysis.RequiredAgents, e.policy.Dispatch.DegradedPlanSize)
		logger.Info("intent has no routing entry, using requested agents",
			"intent", analysis.PrimaryIntent, "tasks", plan.Wave1)
	}
	run.Plan = plan
	span.SetAttributes(
		attribute.String("run.intent", string(run.Intent)),
		attribute.Bool("run.degraded", !routed),
	)

	base := models.TaskContext{
		Message:         run.Message,
		Entities:        run.Entities,
		Intent:          run.Intent,
		Platforms:       run.Platforms,
		PreviousResults: map[models.TaskName]string{},
	}

	var execs []models.TaskExecution
	if len(plan.Wave1) > 0 {
		run.Status = models.RunWave1Running
		em.Thinking(runAgentName, fmt.Sprintf("Gathering context from %d agents...", len(plan.Wave1)), p.Wave1)
		wave := e.runWave(ctx, em, 1, plan.Wave1, run.TaskDescription, base)
		e.merge(run, wave)
		e.recordWave(recCtx, root, run, wave)
		execs = append(execs, wave...)
	}

	if len(plan.Wave2) > 0 {
		run.Status = models.RunWave2Running
		tc := base
		tc.PreviousResults = maps.Clone(run.Results)
		em.Thinking(runAgentName, fmt.Sprintf("Creating and reviewing with %d agents...", len(plan.Wave2)), p.Wave2)
		wave := e.runWave(ctx, em, 2, plan.Wave2, run.TaskDescription, tc)
		e.merge(run, wave)
		e.recordWave(recCtx, root, run, wave)
		execs = append(execs, wave...)
	}

	run.Status = models.RunSynthesizing
	em.Thinking(runAgentName, "Synthesizing response...", p.Synthesizing)
	comp, err := e.synthesize(ctx, run)
	if err != nil {
		return nil, e.fail(recCtx, em, span, logger, run, root, fmt.Errorf("%w: %w", ErrSynthesis, err))
	}
	run.RecordSynthesis(comp.Tokens)

	if run.Intent.ProducesArtifact() && len(run.Results) > 0 {
		e.saveDocument(recCtx, em, logger, run, comp.Text)
	}

	e.recorder.completeRun(recCtx, root, run, comp.Text, classTokens)
	run.Finish(models.RunCompleted, e.now())
	elapsed := run.Duration(e.now())

	em.Thinking(runAgentName, "Done", p.Done)
	em.Completed(runAgentName, fmt.Sprintf("Completed with %d agents", len(run.Results)), elapsed.Milliseconds())
	e.metrics.RunFinished(string(run.Intent), string(run.Status), run.TotalTokens, elapsed)
	span.SetAttributes(attribute.Int("run.tokens", run.TotalTokens))
	logger.Info("run completed",
		"intent", run.Intent,
		"tasks", len(run.Results),
		"tokens", run.TotalTokens,
		"duration", elapsed)

	return &Response{
		RunID:          run.ID,
		ConversationID: run.ConversationID,
		Answer:         comp.Text,
		Intent:         run.Intent,
		Platforms:      run.Platforms,
		Plan:           run.Plan,
		Degraded:       !routed,
		Results:        run.Results,
		Tokens:         run.TotalTokens,
		DocumentID:     run.DocumentID,
		Executions:     execs,
	}, nil
}

// runWave dispatches every task in the wave concurrently and returns only
// after all of them have finished. Results are in task order.
func (e *Engine) runWave(ctx context.Context, em events.Emitter, wave int, tasks []models.TaskName, description string, tc models.TaskContext) []models.TaskExecution {
	ctx, span := e.tracer.Start(ctx, fmt.Sprintf("orchestrator.wave%d", wave), trace.WithAttributes(
		attribute.Int("wave.size", len(tasks)),
	))
	defer span.End()

	for _, name := range tasks {
		em.Handoff(runAgentName, string(name), description)
	}

	out := make([]models.TaskExecution, len(tasks))
	var g errgroup.Group
	if n := e.policy.Dispatch.MaxParallel; n > 0 {
		g.SetLimit(n)
	}
	for i, name := range tasks {
		g.Go(func() error {
			out[i] = e.execute(ctx, em, wave, name, description, tc)
			return nil
		})
	}
	_ = g.Wait()
	for _, ex := range out {
		if !ex.Status.Terminal() {
			e.logger.Error("task left wave without finishing", "task", ex.Task, "status", ex.Status, "wave", wave)
		}
	}
	return out
}

// execute runs one task. A failed task yields a diagnostic result with no
// tokens instead of an error.
func (e *Engine) execute(ctx context.Context, em events.Emitter, wave int, name models.TaskName, description string, tc models.TaskContext) (ex models.TaskExecution) {
	ex = models.NewTaskExecution(name, description, wave, tc, e.now())
	e.advance(&ex, models.TaskStatusRunningPrimary)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("task executor panicked", "task", name, "panic", r)
			ex = e.failedExecution(ex, fmt.Errorf("panic: %v", r), e.now().Sub(ex.StartedAt))
		}
	}()

	outcome, err := e.adapter.Execute(ctx, em, name, description, tc)
	if outcome.FellBack() {
		e.advance(&ex, models.TaskStatusRunningFallback)
	}
	if err != nil {
		e.logger.Warn("task failed", "task", name, "error", err)
		return e.failedExecution(ex, err, outcome.Duration)
	}

	e.advance(&ex, models.TaskStatusCompleted)
	ex.Path = outcome.Path
	ex.Output = outcome.Text
	ex.Tokens = outcome.Tokens
	ex.Trace = outcome.Trace
	ex.DurationMs = outcome.Duration.Milliseconds()
	return ex
}

// advance moves ex to next, logging rather than failing the run when the
// lifecycle is violated.
func (e *Engine) advance(ex *models.TaskExecution, next models.TaskStatus) {
	if err := ex.Advance(next); err != nil {
		e.logger.Error("task status not advanced", "task", ex.Task, "error", err)
	}
}

// failedExecution marks ex failed. Only the fallback path can fail a task,
// so a task still on its primary path is moved through running_fallback.
func (e *Engine) failedExecution(ex models.TaskExecution, err error, d time.Duration) models.TaskExecution {
	if ex.Status == models.TaskStatusRunningPrimary {
		e.advance(&ex, models.TaskStatusRunningFallback)
	}
	e.advance(&ex, models.TaskStatusFailed)
	ex.Path = ""
	ex.Output = fmt.Sprintf("Error from %s: %v", ex.Task, err)
	ex.Tokens = 0
	ex.Error = err.Error()
	ex.DurationMs = d.Milliseconds()
	ex.Trace = models.ExecutionTrace{
		ToolCalls:  []models.ToolCallRecord{},
		DurationMs: d.Milliseconds(),
	}
	return ex
}

// recordWave writes one child trace per task of a finished wave.
func (e *Engine) recordWave(ctx context.Context, root *state.TraceHandle, run *models.OrchestrationRun, wave []models.TaskExecution) {
	for _, ex := range wave {
		e.recorder.recordTask(ctx, root, run, ex)
	}
}

// merge folds a finished wave into the run. Only called between waves.
func (e *Engine) merge(run *models.OrchestrationRun, wave []models.TaskExecution) {
	for _, ex := range wave {
		run.RecordTask(ex.Task, ex.Output, ex.Tokens)
	}
}

// saveDocument persists the answer as a social post artifact. Failures are
// logged and leave the run without a document.
func (e *Engine) saveDocument(ctx context.Context, em events.Emitter, logger *slog.Logger, run *models.OrchestrationRun, answer string) {
	if e.documents == nil {
		return
	}
	topic := defaultTopic
	if len(run.Entities) > 0 {
		topic = run.Entities[0]
	}
	platforms := make([]string, len(run.Platforms))
	for i, p := range run.Platforms {
		platforms[i] = string(p)
	}

	title := "Social Post: " + citation.Truncate(run.TaskDescription, e.policy.Preview.TitleChars)
	id, err := e.documents.CreateDocument(ctx, title, DocTypeSocialPost, answer, map[string]any{
		"topic":           topic,
		"platforms":       platforms,
		"intent":          string(run.Intent),
		"conversation_id": run.ConversationID,
		"generated_via":   "chat",
		"run_id":          run.ID,
	})
	if err != nil {
		logger.Error("save document failed", "error", err)
		e.metrics.RecorderError()
		return
	}
	run.DocumentID = id
	em.DocumentGenerated(id, DocTypeSocialPost, title)
}

// fail marks the run failed everywhere it is observed and returns cause.
func (e *Engine) fail(ctx context.Context, em events.Emitter, span trace.Span, logger *slog.Logger, run *models.OrchestrationRun, root *state.TraceHandle, cause error) error {
	run.Finish(models.RunFailed, e.now())
	elapsed := run.Duration(e.now())

	e.recorder.failRun(ctx, root, run, cause)
	em.Completed(runAgentName, citation.Truncate("Error: "+cause.Error(), e.policy.Preview.TaskResultChars), elapsed.Milliseconds())
	e.metrics.RunFinished(string(run.Intent), string(run.Status), run.TotalTokens, elapsed)

	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())
	logger.Error("run failed", "error", cause, "duration", elapsed)
	return cause
}
