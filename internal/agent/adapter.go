// Package agent runs one specialist task through the tool-capable runtime,
// degrading to a single plain completion when that path fails.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShayCichocki/oneshot/internal/api"
	"github.com/ShayCichocki/oneshot/internal/citation"
	"github.com/ShayCichocki/oneshot/internal/events"
	"github.com/ShayCichocki/oneshot/internal/metrics"
	"github.com/ShayCichocki/oneshot/internal/tools"
	"github.com/ShayCichocki/oneshot/pkg/models"
)

// Event summaries are cut to this many characters.
const summaryLen = 100

var (
	// ErrNoRuntime indicates no tool-capable runtime was configured.
	ErrNoRuntime = errors.New("no agent runtime configured")
	// ErrNoCompleter indicates no completion provider was configured.
	ErrNoCompleter = errors.New("no completer configured")
)

// Completer makes one plain completion call.
type Completer interface {
	Complete(ctx context.Context, prompt, systemPrompt string, temperature float64) (api.Completion, error)
}

// Runner runs one prompt with a fixed tool set.
type Runner interface {
	Run(ctx context.Context, prompt string) (api.RunResult, error)
}

// ToolObserver is implemented by runners that report each tool invocation
// as it completes.
type ToolObserver interface {
	OnToolResult(fn func(models.ToolInvocation))
}

// Runtime builds tool-capable runners.
type Runtime interface {
	NewRunner(name, systemPrompt string, ts []tools.Tool) Runner
}

// Outcome is the result of one task execution. Path says which route
// produced Text; PrimaryErr holds the reason a fallback was taken.
type Outcome struct {
	Task       models.TaskName
	Path       models.ExecutionPath
	Text       string
	Tokens     int
	Trace      models.ExecutionTrace
	PrimaryErr error
	Duration   time.Duration
}

// FellBack reports whether the fallback path was attempted, whether or not
// it succeeded.
func (o Outcome) FellBack() bool {
	return o.PrimaryErr != nil
}

// Degraded reports whether the fallback path produced the outcome.
func (o Outcome) Degraded() bool {
	return o.Path == models.PathFallback
}

// Adapter executes tasks. It is safe for concurrent use.
type Adapter struct {
	runtime   Runtime
	completer Completer
	table     tools.Table
	registry  *tools.Registry
	gatherers map[models.TaskName]Gatherer
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTable sets the tool entitlements.
func WithTable(t tools.Table) Option {
	return func(a *Adapter) { a.table = t }
}

// WithRegistry sets the tool implementations.
func WithRegistry(r *tools.Registry) Option {
	return func(a *Adapter) { a.registry = r }
}

// WithGatherer replaces the fallback gatherer for task. A nil gatherer
// disables gathering for that task.
func WithGatherer(task models.TaskName, g Gatherer) Option {
	return func(a *Adapter) { a.gatherers[task] = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// NewAdapter creates an Adapter. Either collaborator may be nil; a task
// then fails on the corresponding path.
func NewAdapter(runtime Runtime, completer Completer, opts ...Option) *Adapter {
	a := &Adapter{
		runtime:   runtime,
		completer: completer,
		table:     tools.DefaultTable(),
		gatherers: make(map[models.TaskName]Gatherer),
		tracer:    otel.Tracer("github.com/ShayCichocki/oneshot/internal/agent"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.registry == nil {
		a.registry = tools.DefaultRegistry(tools.Deps{})
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("component", "agent")
	if _, ok := a.gatherers[models.TaskResearcher]; !ok {
		a.gatherers[models.TaskResearcher] = ResearchGatherer{Registry: a.registry}
	}
	for task, g := range a.gatherers {
		if g == nil {
			delete(a.gatherers, task)
		}
	}
	return a
}

// Table returns the adapter's tool entitlements.
func (a *Adapter) Table() tools.Table { return a.table }

// Execute runs task. The primary runtime is tried first; on any primary
// error exactly one fallback attempt is made. An error is returned only
// when the fallback fails too.
func (a *Adapter) Execute(ctx context.Context, em events.Emitter, task models.TaskName, description string, tc models.TaskContext) (Outcome, error) {
	start := a.now()
	ctx, span := a.tracer.Start(ctx, "task."+string(task), trace.WithAttributes(
		attribute.String("task.name", string(task)),
		attribute.String("task.intent", string(tc.Intent)),
	))
	defer span.End()

	name := string(task)
	em.Started(name, citation.Truncate(description, summaryLen))
	for _, b := range a.table.Bindings(task) {
		em.ToolCall(name, b.Name, string(b.Type))
	}

	system := SystemPrompt(task)
	prompt := BuildPrompt(task, description, tc)

	out, primaryErr := a.primary(ctx, task, system, prompt)
	if primaryErr != nil {
		a.logger.Warn("primary path failed, falling back to direct completion",
			"task", name, "error", primaryErr)
		span.AddEvent("fallback", trace.WithAttributes(attribute.String("reason", primaryErr.Error())))

		var err error
		out, err = a.fallback(ctx, task, description, tc, system, prompt)
		if err != nil {
			elapsed := a.now().Sub(start)
			em.Completed(name, citation.Truncate("Error: "+err.Error(), summaryLen), elapsed.Milliseconds())
			a.metrics.TaskFailed(name, elapsed)
			span.RecordError(err)
			span.SetStatus(codes.Error, "task failed")
			return Outcome{Task: task, PrimaryErr: primaryErr, Duration: elapsed},
				fmt.Errorf("fallback failed: %w", err)
		}
		out.PrimaryErr = primaryErr
	}

	elapsed := a.now().Sub(start)
	out.Task = task
	out.Duration = elapsed
	out.Trace.DurationMs = elapsed.Milliseconds()
	out.Trace.Tokens = out.Tokens

	em.Completed(name, citation.Truncate(out.Text, summaryLen), elapsed.Milliseconds())
	a.metrics.TaskFinished(name, string(out.Path), out.Tokens, elapsed)
	span.SetAttributes(
		attribute.String("task.path", string(out.Path)),
		attribute.Int("task.tokens", out.Tokens),
		attribute.Int("task.citations", len(out.Trace.Citations)),
	)
	return out, nil
}

func (a *Adapter) primary(ctx context.Context, task models.TaskName, system, prompt string) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("primary path panicked: %v", r)
		}
	}()
	if a.runtime == nil {
		return Outcome{}, ErrNoRuntime
	}
	ts, err := a.table.Resolve(task, a.registry)
	if err != nil {
		return Outcome{}, err
	}

	start := a.now()
	runner := a.runtime.NewRunner(string(task), system, ts)
	if obs, ok := runner.(ToolObserver); ok {
		obs.OnToolResult(func(inv models.ToolInvocation) {
			a.metrics.ToolCalled(string(task), inv.Tool, inv.IsError)
			a.logger.Debug("tool call", "task", task, "tool", inv.Tool, "error", inv.IsError)
		})
	}
	res, err := runner.Run(ctx, prompt)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Path:   models.PathPrimary,
		Text:   res.Text,
		Tokens: res.Tokens,
		Trace:  citation.BuildTrace(res.Text, res.Raw, res.Tokens, a.now().Sub(start)),
	}, nil
}

func (a *Adapter) fallback(ctx context.Context, task models.TaskName, description string, tc models.TaskContext, system, prompt string) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fallback path panicked: %v", r)
		}
	}()
	if a.completer == nil {
		return Outcome{}, ErrNoCompleter
	}

	var gathered *Gathered
	if g, ok := a.gatherers[task]; ok {
		res := g.Gather(ctx, description, tc)
		gathered = &res
		prompt = res.Prompt
	}

	start := a.now()
	comp, err := a.completer.Complete(ctx, prompt, system, FallbackTemperature(task))
	if err != nil {
		return Outcome{}, err
	}

	out = Outcome{Path: models.PathFallback, Text: comp.Text, Tokens: comp.Tokens}
	if gathered != nil {
		calls := gathered.Calls
		if calls == nil {
			calls = []models.ToolCallRecord{}
		}
		out.Trace = models.ExecutionTrace{
			ToolCalls: calls,
			Citations: citation.Extract(gathered.Text),
			Tokens:    comp.Tokens,
		}
	} else {
		out.Trace = citation.BuildTrace(comp.Text, models.RawTrace{}, comp.Tokens, a.now().Sub(start))
	}
	return out, nil
}

// clientRuntime adapts *api.Client to Runtime.
type clientRuntime struct {
	client *api.Client
}

// ClientRuntime returns a Runtime backed by c's tool loop.
func ClientRuntime(c *api.Client) Runtime {
	return clientRuntime{client: c}
}

func (r clientRuntime) NewRunner(name, systemPrompt string, ts []tools.Tool) Runner {
	return r.client.CreateExecutor(name, systemPrompt, ts)
}
