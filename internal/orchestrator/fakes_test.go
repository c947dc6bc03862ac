package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/oneshot/internal/agent"
	"github.com/ShayCichocki/oneshot/internal/api"
	"github.com/ShayCichocki/oneshot/internal/events"
	"github.com/ShayCichocki/oneshot/internal/state"
	"github.com/ShayCichocki/oneshot/pkg/models"
)

// fakeCompleter answers classification with analysis and synthesis with answer.
type fakeCompleter struct {
	mu          sync.Mutex
	analysis    json.RawMessage
	classTokens int
	classErr    error
	answer      string
	synthTokens int
	synthErr    error
	prompts     []string
	temps       []float64
}

func (c *fakeCompleter) CompleteStructured(_ context.Context, _ string, schema api.StructuredSchema, _ string) (api.Structured, error) {
	if schema.Name != "intent_analysis" {
		return api.Structured{}, fmt.Errorf("unexpected schema %q", schema.Name)
	}
	if c.classErr != nil {
		return api.Structured{}, c.classErr
	}
	return api.Structured{JSON: c.analysis, Tokens: c.classTokens}, nil
}

func (c *fakeCompleter) Complete(_ context.Context, prompt, _ string, temperature float64) (api.Completion, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.temps = append(c.temps, temperature)
	c.mu.Unlock()
	if c.synthErr != nil {
		return api.Completion{}, c.synthErr
	}
	return api.Completion{Text: c.answer, Tokens: c.synthTokens}, nil
}

func (c *fakeCompleter) lastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	return c.prompts[len(c.prompts)-1]
}

func analysisJSON(a models.IntentAnalysis) json.RawMessage {
	b, err := json.Marshal(a)
	if err != nil {
		panic(err)
	}
	return b
}

// fakeExecutor runs fn for each task and logs start/end order.
type fakeExecutor struct {
	mu       sync.Mutex
	fn       func(task models.TaskName, tc models.TaskContext) (agent.Outcome, error)
	log      []string
	contexts map[models.TaskName]models.TaskContext
	running  int
	peak     int
}

func (f *fakeExecutor) Execute(_ context.Context, em events.Emitter, task models.TaskName, description string, tc models.TaskContext) (agent.Outcome, error) {
	f.mu.Lock()
	f.log = append(f.log, "start:"+string(task))
	if f.contexts == nil {
		f.contexts = make(map[models.TaskName]models.TaskContext)
	}
	f.contexts[task] = tc
	f.running++
	if f.running > f.peak {
		f.peak = f.running
	}
	f.mu.Unlock()

	em.Started(string(task), description)

	var out agent.Outcome
	var err error
	if f.fn != nil {
		out, err = f.fn(task, tc)
	} else {
		out, err = okOutcome(task, 10), nil
	}

	f.mu.Lock()
	f.running--
	f.log = append(f.log, "end:"+string(task))
	f.mu.Unlock()

	if err != nil {
		em.Completed(string(task), "Error: "+err.Error(), 0)
	} else {
		em.Completed(string(task), out.Text, out.Duration.Milliseconds())
	}
	return out, err
}

func (f *fakeExecutor) entries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.log...)
}

func okOutcome(task models.TaskName, tokens int) agent.Outcome {
	return agent.Outcome{
		Task:     task,
		Path:     models.PathPrimary,
		Text:     "out-" + string(task),
		Tokens:   tokens,
		Duration: 5 * time.Millisecond,
		Trace: models.ExecutionTrace{
			ToolCalls: []models.ToolCallRecord{{ToolName: "search_web", IsSource: true}},
			Citations: []models.Citation{{Type: models.CitationURL, URL: "https://example.com/" + string(task), SourceTool: "search_web"}},
			Tokens:    tokens,
		},
	}
}

type published struct {
	session string
	typ     events.EventType
	payload any
}

// recorder collects every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (r *recordingPublisher) Publish(sessionID string, t events.EventType, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{session: sessionID, typ: t, payload: payload})
}

func (r *recordingPublisher) ofType(t events.EventType) []published {
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

type memTrace struct {
	start  state.TraceStart
	status state.TraceStatus
	result state.TraceResult
	errMsg string
}

// memTraces is an in-memory TraceStore.
type memTraces struct {
	mu       sync.Mutex
	next     int
	traces   map[string]*memTrace
	order    []string
	startErr error
}

func (m *memTraces) StartTrace(_ context.Context, start state.TraceStart) (*state.TraceHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return nil, m.startErr
	}
	if m.traces == nil {
		m.traces = make(map[string]*memTrace)
	}
	m.next++
	id := fmt.Sprintf("trace-%d", m.next)
	m.traces[id] = &memTrace{start: start, status: state.TraceRunning}
	m.order = append(m.order, id)
	return &state.TraceHandle{ID: id, StartedAt: start.StartedAt}, nil
}

func (m *memTraces) CompleteTrace(_ context.Context, h *state.TraceHandle, result state.TraceResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.traces[h.ID]
	if !ok {
		return errors.New("unknown trace")
	}
	t.status = state.TraceCompleted
	t.result = result
	return nil
}

func (m *memTraces) FailTrace(_ context.Context, h *state.TraceHandle, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.traces[h.ID]
	if !ok {
		return errors.New("unknown trace")
	}
	t.status = state.TraceFailed
	t.errMsg = errMsg
	return nil
}

func (m *memTraces) root() *memTrace {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		if t := m.traces[id]; t.start.ParentTraceID == "" {
			return t
		}
	}
	return nil
}

func (m *memTraces) children() map[string]*memTrace {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*memTrace)
	for _, id := range m.order {
		if t := m.traces[id]; t.start.ParentTraceID != "" {
			out[t.start.AgentName] = t
		}
	}
	return out
}

type savedDoc struct {
	title, docType, content string
	metadata                map[string]any
}

// memDocs is an in-memory DocumentStore.
type memDocs struct {
	mu   sync.Mutex
	docs []savedDoc
	err  error
}

func (m *memDocs) CreateDocument(_ context.Context, title, docType, content string, metadata map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.docs = append(m.docs, savedDoc{title: title, docType: docType, content: content, metadata: metadata})
	return fmt.Sprintf("doc-%d", len(m.docs)), nil
}
