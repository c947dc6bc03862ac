package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/ShayCichocki/oneshot/internal/agent"
	"github.com/ShayCichocki/oneshot/internal/api"
	"github.com/ShayCichocki/oneshot/internal/events"
	"github.com/ShayCichocki/oneshot/internal/metrics"
	"github.com/ShayCichocki/oneshot/internal/orchestrator/policy"
	"github.com/ShayCichocki/oneshot/internal/state"
	"github.com/ShayCichocki/oneshot/pkg/models"
)

// Completer is the completion provider used for classification and
// synthesis.
type Completer interface {
	Complete(ctx context.Context, prompt, systemPrompt string, temperature float64) (api.Completion, error)
	CompleteStructured(ctx context.Context, prompt string, schema api.StructuredSchema, systemPrompt string) (api.Structured, error)
}

// TaskExecutor runs one task and reports its outcome. agent.Adapter is the
// production implementation.
type TaskExecutor interface {
	Execute(ctx context.Context, em events.Emitter, task models.TaskName, description string, tc models.TaskContext) (agent.Outcome, error)
}

// RequiredConfig contains the minimal required configuration for an Engine.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// Completer classifies and synthesizes.
	Completer Completer
	// Adapter executes individual tasks.
	Adapter TaskExecutor
	// Publisher receives status events. Nil discards them.
	Publisher events.Publisher
}

// Option configures an Engine. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	routing     *Routing
	recorder    state.TraceStore
	documents   state.DocumentStore
	logger      *slog.Logger
	metrics     *metrics.Metrics
	policy      *policy.Config
	maxParallel int
	now         func() time.Time
}

// WithRouting replaces the default intent routing table.
func WithRouting(r *Routing) Option {
	return func(o *orchestratorOptions) { o.routing = r }
}

// WithRecorder sets the trace store runs are recorded to.
func WithRecorder(s state.TraceStore) Option {
	return func(o *orchestratorOptions) { o.recorder = s }
}

// WithDocuments sets the store generated artifacts are saved to.
func WithDocuments(s state.DocumentStore) Option {
	return func(o *orchestratorOptions) { o.documents = s }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *orchestratorOptions) { o.metrics = m }
}

// WithPolicy sets the policy configuration.
func WithPolicy(p *policy.Config) Option {
	return func(o *orchestratorOptions) { o.policy = p }
}

// WithMaxParallel bounds concurrent tasks per wave, overriding the policy.
// Zero or less leaves the policy value in place.
func WithMaxParallel(n int) Option {
	return func(o *orchestratorOptions) { o.maxParallel = n }
}

// WithClock sets the time source (mainly for testing).
func WithClock(now func() time.Time) Option {
	return func(o *orchestratorOptions) { o.now = now }
}
