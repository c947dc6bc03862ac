package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/ShayCichocki/oneshot/internal/api"
	"github.com/ShayCichocki/oneshot/internal/events"
	"github.com/ShayCichocki/oneshot/internal/tools"
	"github.com/ShayCichocki/oneshot/pkg/models"
)

type runFunc func(ctx context.Context, prompt string) (api.RunResult, error)

func (f runFunc) Run(ctx context.Context, prompt string) (api.RunResult, error) {
	return f(ctx, prompt)
}

// observingRunner replays each invocation of its result to the registered
// tool callback, as the real executor does.
type observingRunner struct {
	run     runFunc
	observe func(models.ToolInvocation)
}

func (o *observingRunner) OnToolResult(fn func(models.ToolInvocation)) { o.observe = fn }

func (o *observingRunner) Run(ctx context.Context, prompt string) (api.RunResult, error) {
	res, err := o.run(ctx, prompt)
	if o.observe != nil {
		for _, inv := range res.Raw.Invocations {
			o.observe(inv)
		}
	}
	return res, err
}

// fakeRuntime hands out runners backed by run and remembers what it built.
type fakeRuntime struct {
	mu      sync.Mutex
	run     runFunc
	observe bool
	names   []string
	tools   map[string][]string
}

func (r *fakeRuntime) NewRunner(name, _ string, ts []tools.Tool) Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	if r.tools == nil {
		r.tools = make(map[string][]string)
	}
	for _, t := range ts {
		r.tools[name] = append(r.tools[name], t.Name())
	}
	if r.observe {
		return &observingRunner{run: r.run}
	}
	return r.run
}

func failingRuntime(msg string) *fakeRuntime {
	return &fakeRuntime{run: func(context.Context, string) (api.RunResult, error) {
		return api.RunResult{}, errors.New(msg)
	}}
}

type completeCall struct {
	prompt, system string
	temperature    float64
}

// fakeCompleter returns text or err and records every call.
type fakeCompleter struct {
	mu     sync.Mutex
	text   string
	tokens int
	err    error
	calls  []completeCall
}

func (c *fakeCompleter) Complete(_ context.Context, prompt, system string, temperature float64) (api.Completion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, completeCall{prompt, system, temperature})
	if c.err != nil {
		return api.Completion{}, c.err
	}
	return api.Completion{Text: c.text, Tokens: c.tokens}, nil
}

type published struct {
	session string
	typ     events.EventType
	payload any
}

// recorder captures published events in order.
type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(session string, t events.EventType, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{session, t, payload})
}

func (r *recorder) ofType(t events.EventType) []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []published
	for _, e := range r.events {
		if e.typ == t {
			out = append(out, e)
		}
	}
	return out
}
