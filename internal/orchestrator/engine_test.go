package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/oneshot/internal/agent"
	"github.com/ShayCichocki/oneshot/internal/events"
	"github.com/ShayCichocki/oneshot/internal/state"
	"github.com/ShayCichocki/oneshot/pkg/models"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

const testDescription = "Write a LinkedIn post announcing the Q3 product launch to enterprise customers"

func creationAnalysis() models.IntentAnalysis {
	return models.IntentAnalysis{
		PrimaryIntent:   models.IntentContentCreation,
		TargetPlatforms: []models.Platform{models.PlatformLinkedIn},
		RequiredAgents:  []models.TaskName{models.TaskResearcher, models.TaskScribe},
		KeyEntities:     []string{"Q3 launch"},
		TaskDescription: testDescription,
	}
}

type harness struct {
	completer *fakeCompleter
	executor  *fakeExecutor
	pub       *recordingPublisher
	traces    *memTraces
	docs      *memDocs
	engine    *Engine
}

func newHarness(a models.IntentAnalysis, opts ...Option) *harness {
	h := &harness{
		completer: &fakeCompleter{analysis: analysisJSON(a), classTokens: 7, answer: "final answer", synthTokens: 25},
		executor:  &fakeExecutor{},
		pub:       &recordingPublisher{},
		traces:    &memTraces{},
		docs:      &memDocs{},
	}
	h.build(opts...)
	return h
}

func (h *harness) build(opts ...Option) {
	all := append([]Option{WithRecorder(h.traces), WithDocuments(h.docs)}, opts...)
	h.engine = New(RequiredConfig{Completer: h.completer, Adapter: h.executor, Publisher: h.pub}, all...)
}

func (h *harness) run(t *testing.T) *Response {
	t.Helper()
	resp, err := h.engine.Run(context.Background(), Request{ConversationID: "conv-1", Message: "Write a post about our Q3 launch"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return resp
}

func TestRun_ContentCreation(t *testing.T) {
	h := newHarness(creationAnalysis())
	resp := h.run(t)

	wantPlan := []models.TaskName{
		models.TaskResearcher, models.TaskStrategist, models.TaskMemory, models.TaskAnalyst,
		models.TaskScribe, models.TaskAdvisor,
	}
	if got := resp.Plan.Tasks(); len(got) != len(wantPlan) {
		t.Fatalf("plan = %v, want %v", got, wantPlan)
	}
	if resp.Degraded {
		t.Error("routed intent reported as degraded")
	}
	if resp.Answer != "final answer" {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if len(resp.Results) != 6 {
		t.Errorf("len(Results) = %d, want 6", len(resp.Results))
	}
	if want := 6*10 + 25; resp.Tokens != want {
		t.Errorf("Tokens = %d, want %d", resp.Tokens, want)
	}
	if resp.DocumentID != "doc-1" {
		t.Errorf("DocumentID = %q, want doc-1", resp.DocumentID)
	}

	// Wave 2 sees every wave 1 output; wave 1 sees nothing.
	for _, name := range resp.Plan.Wave1 {
		if n := len(h.executor.contexts[name].PreviousResults); n != 0 {
			t.Errorf("%s saw %d previous results, want 0", name, n)
		}
	}
	for _, name := range resp.Plan.Wave2 {
		prev := h.executor.contexts[name].PreviousResults
		if len(prev) != 4 {
			t.Errorf("%s saw %d previous results, want 4", name, len(prev))
		}
		if prev[models.TaskResearcher] != "out-researcher" {
			t.Errorf("%s researcher result = %q", name, prev[models.TaskResearcher])
		}
	}

	prompt := h.completer.lastPrompt()
	r := strings.Index(prompt, "=== RESEARCHER ===\nout-researcher")
	s := strings.Index(prompt, "=== SCRIBE ===\nout-scribe")
	if r < 0 || s < 0 || r > s {
		t.Errorf("synthesis prompt sections missing or out of order:\n%s", prompt)
	}
	if temp := h.completer.temps[len(h.completer.temps)-1]; temp != 0.7 {
		t.Errorf("synthesis temperature = %v, want 0.7", temp)
	}

	if len(h.docs.docs) != 1 {
		t.Fatalf("saved %d documents, want 1", len(h.docs.docs))
	}
	doc := h.docs.docs[0]
	if doc.title != "Social Post: "+testDescription[:60] {
		t.Errorf("title = %q", doc.title)
	}
	if doc.docType != DocTypeSocialPost || doc.content != "final answer" {
		t.Errorf("doc = %+v", doc)
	}
	if doc.metadata["topic"] != "Q3 launch" || doc.metadata["conversation_id"] != "conv-1" {
		t.Errorf("metadata = %v", doc.metadata)
	}
	gen := h.pub.ofType(events.EventDocumentGenerated)
	if len(gen) != 1 || gen[0].payload.(events.DocumentGenerated).DocumentID != "doc-1" {
		t.Errorf("document.generated events = %+v", gen)
	}

	root := h.traces.root()
	if root == nil || root.status != state.TraceCompleted {
		t.Fatalf("root trace = %+v", root)
	}
	if root.start.AgentName != "orchestrator" || root.start.TaskType != "message_processing" {
		t.Errorf("root trace start = %+v", root.start)
	}
	if root.result.TokensUsed != resp.Tokens {
		t.Errorf("root tokens = %d, want %d", root.result.TokensUsed, resp.Tokens)
	}
	children := h.traces.children()
	if len(children) != 6 {
		t.Fatalf("recorded %d task traces, want 6", len(children))
	}
	scribe := children[string(models.TaskScribe)]
	if scribe.status != state.TraceCompleted || scribe.result.TokensUsed != 10 || len(scribe.result.Citations) != 1 {
		t.Errorf("scribe trace = %+v", scribe)
	}
	if scribe.start.TaskType != testDescription[:50] {
		t.Errorf("task type = %q", scribe.start.TaskType)
	}
}

func TestRun_WaveBarrier(t *testing.T) {
	h := newHarness(creationAnalysis())
	h.executor.fn = func(task models.TaskName, _ models.TaskContext) (agent.Outcome, error) {
		if task == models.TaskResearcher {
			time.Sleep(30 * time.Millisecond)
		}
		return okOutcome(task, 1), nil
	}
	h.run(t)

	log := h.executor.entries()
	lastWave1End, firstWave2Start := -1, len(log)
	for i, entry := range log {
		switch entry {
		case "end:researcher", "end:strategist", "end:memory", "end:analyst":
			lastWave1End = max(lastWave1End, i)
		case "start:scribe", "start:advisor":
			firstWave2Start = min(firstWave2Start, i)
		}
	}
	if lastWave1End < 0 || firstWave2Start == len(log) {
		t.Fatalf("log missing entries: %v", log)
	}
	if lastWave1End > firstWave2Start {
		t.Errorf("wave 2 started before wave 1 finished: %v", log)
	}

	// No wave 2 agent.started event precedes the last wave 1 agent.completed.
	var lastCompleted, firstStarted = -1, -1
	h.pub.mu.Lock()
	for i, e := range h.pub.events {
		switch p := e.payload.(type) {
		case events.Completed:
			if p.Agent == "researcher" {
				lastCompleted = i
			}
		case events.Started:
			if p.Agent == "scribe" && firstStarted < 0 {
				firstStarted = i
			}
		}
	}
	h.pub.mu.Unlock()
	if firstStarted < lastCompleted {
		t.Errorf("scribe started at event %d before researcher completed at %d", firstStarted, lastCompleted)
	}
}

func TestRun_TaskFailureDoesNotAbort(t *testing.T) {
	h := newHarness(creationAnalysis())
	h.executor.fn = func(task models.TaskName, _ models.TaskContext) (agent.Outcome, error) {
		if task == models.TaskAnalyst {
			return agent.Outcome{Task: task, Duration: time.Millisecond}, errors.New("fallback failed: boom")
		}
		return okOutcome(task, 10), nil
	}
	resp := h.run(t)

	want := "Error from analyst: fallback failed: boom"
	if got := resp.Results[models.TaskAnalyst]; got != want {
		t.Errorf("analyst result = %q, want %q", got, want)
	}
	if want := 5*10 + 25; resp.Tokens != want {
		t.Errorf("Tokens = %d, want %d", resp.Tokens, want)
	}
	if got := h.executor.contexts[models.TaskAdvisor].PreviousResults[models.TaskAnalyst]; got != want {
		t.Errorf("advisor saw analyst result %q", got)
	}

	var failed *models.TaskExecution
	for i := range resp.Executions {
		if resp.Executions[i].Task == models.TaskAnalyst {
			failed = &resp.Executions[i]
		}
	}
	if failed == nil || failed.Status != models.TaskStatusFailed || failed.Path != "" || failed.Tokens != 0 {
		t.Errorf("analyst execution = %+v", failed)
	}

	analyst := h.traces.children()[string(models.TaskAnalyst)]
	if analyst == nil || analyst.status != state.TraceFailed || analyst.errMsg != "fallback failed: boom" {
		t.Errorf("analyst trace = %+v", analyst)
	}
	if root := h.traces.root(); root.status != state.TraceCompleted {
		t.Errorf("root status = %s, want completed", root.status)
	}
}

func TestRun_StatusHistory(t *testing.T) {
	unauthorized := errors.New("401 unauthorized")
	tests := []struct {
		name string
		fn   func(task models.TaskName) (agent.Outcome, error)
		want []models.TaskStatus
	}{
		{
			name: "primary",
			fn: func(task models.TaskName) (agent.Outcome, error) {
				return okOutcome(task, 1), nil
			},
			want: []models.TaskStatus{models.TaskStatusPending, models.TaskStatusRunningPrimary, models.TaskStatusCompleted},
		},
		{
			name: "fallback completed",
			fn: func(task models.TaskName) (agent.Outcome, error) {
				out := okOutcome(task, 1)
				out.Path = models.PathFallback
				out.PrimaryErr = unauthorized
				return out, nil
			},
			want: []models.TaskStatus{models.TaskStatusPending, models.TaskStatusRunningPrimary, models.TaskStatusRunningFallback, models.TaskStatusCompleted},
		},
		{
			name: "fallback failed",
			fn: func(task models.TaskName) (agent.Outcome, error) {
				return agent.Outcome{Task: task, PrimaryErr: unauthorized}, errors.New("fallback failed: 401 unauthorized")
			},
			want: []models.TaskStatus{models.TaskStatusPending, models.TaskStatusRunningPrimary, models.TaskStatusRunningFallback, models.TaskStatusFailed},
		},
		{
			name: "panic",
			fn: func(models.TaskName) (agent.Outcome, error) {
				panic("nil map")
			},
			want: []models.TaskStatus{models.TaskStatusPending, models.TaskStatusRunningPrimary, models.TaskStatusRunningFallback, models.TaskStatusFailed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(creationAnalysis())
			h.executor.fn = func(task models.TaskName, _ models.TaskContext) (agent.Outcome, error) {
				if task == models.TaskAnalyst {
					return tt.fn(task)
				}
				return okOutcome(task, 1), nil
			}
			resp := h.run(t)

			for _, ex := range resp.Executions {
				if ex.Task != models.TaskAnalyst {
					continue
				}
				if !slices.Equal(ex.History, tt.want) {
					t.Errorf("History = %v, want %v", ex.History, tt.want)
				}
				if ex.Status != tt.want[len(tt.want)-1] {
					t.Errorf("Status = %s, want %s", ex.Status, tt.want[len(tt.want)-1])
				}
				return
			}
			t.Fatal("no analyst execution")
		})
	}
}

func TestRun_WaveTracesRecordedBeforeNextWave(t *testing.T) {
	h := newHarness(creationAnalysis())
	var seen map[string]*memTrace
	h.executor.fn = func(task models.TaskName, _ models.TaskContext) (agent.Outcome, error) {
		if task == models.TaskScribe {
			seen = h.traces.children()
		}
		return okOutcome(task, 1), nil
	}
	h.run(t)

	plan, _ := DefaultRouting().Resolve(models.IntentContentCreation)
	for _, name := range plan.Wave1 {
		tr, ok := seen[string(name)]
		if !ok {
			t.Errorf("%s trace not written before wave 2", name)
			continue
		}
		if tr.status != state.TraceCompleted {
			t.Errorf("%s trace status = %s, want completed", name, tr.status)
		}
	}
	if _, ok := seen[string(models.TaskScribe)]; ok {
		t.Error("wave 2 trace written before wave 2 finished")
	}
}

func TestRun_TokenConservation(t *testing.T) {
	tokens := map[models.TaskName]int{
		models.TaskResearcher: 100, models.TaskStrategist: 50, models.TaskMemory: 3,
		models.TaskAnalyst: 0, models.TaskAdvisor: 41,
	}
	a := creationAnalysis()
	a.PrimaryIntent = models.IntentContentStrategy
	h := newHarness(a)
	h.executor.fn = func(task models.TaskName, _ models.TaskContext) (agent.Outcome, error) {
		return okOutcome(task, tokens[task]), nil
	}
	resp := h.run(t)

	sum := 25
	for _, ex := range resp.Executions {
		sum += ex.Tokens
	}
	if resp.Tokens != sum || sum != 100+50+3+0+41+25 {
		t.Errorf("Tokens = %d, sum of parts = %d", resp.Tokens, sum)
	}
}

func TestRun_ProgressMonotonic(t *testing.T) {
	h := newHarness(creationAnalysis())
	h.run(t)

	thinking := h.pub.ofType(events.EventAgentThinking)
	if len(thinking) < 2 {
		t.Fatalf("got %d thinking events", len(thinking))
	}
	prev := 0.0
	for _, e := range thinking {
		p := e.payload.(events.Thinking).Progress
		if p < prev || p < 0 || p > 1 {
			t.Fatalf("progress went from %v to %v", prev, p)
		}
		prev = p
	}
	if first := thinking[0].payload.(events.Thinking).Progress; first != 0.1 {
		t.Errorf("first progress = %v, want 0.1", first)
	}
	if prev != 1.0 {
		t.Errorf("last progress = %v, want 1.0", prev)
	}
	for _, e := range h.pub.events {
		if e.session != "conv-1" {
			t.Errorf("event published to session %q", e.session)
		}
	}
}

func TestRun_HandoffsPerTask(t *testing.T) {
	h := newHarness(creationAnalysis())
	h.run(t)

	handoffs := h.pub.ofType(events.EventAgentHandoff)
	if len(handoffs) != 6 {
		t.Fatalf("got %d handoffs, want 6", len(handoffs))
	}
	for _, e := range handoffs {
		p := e.payload.(events.Handoff)
		if p.From != "orchestrator" || p.Context != testDescription {
			t.Errorf("handoff = %+v", p)
		}
	}
	completed := h.pub.ofType(events.EventAgentCompleted)
	last := completed[len(completed)-1].payload.(events.Completed)
	if last.Agent != "orchestrator" || last.ResultSummary != "Completed with 6 agents" {
		t.Errorf("final completed = %+v", last)
	}
}

func TestRun_ClassificationFailure(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*fakeCompleter)
		wantSub string
	}{
		{"provider error", func(c *fakeCompleter) { c.classErr = errors.New("rate limited") }, "rate limited"},
		{"undecodable output", func(c *fakeCompleter) { c.analysis = []byte(`{"primary_intent":`) }, "decode intent analysis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(creationAnalysis())
			tt.mutate(h.completer)

			_, err := h.engine.Run(context.Background(), Request{ConversationID: "conv-1", Message: "hi"})
			if !errors.Is(err, ErrClassification) {
				t.Fatalf("Run() error = %v, want ErrClassification", err)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
			if len(h.executor.entries()) != 0 {
				t.Error("tasks ran after classification failed")
			}
			if root := h.traces.root(); root.status != state.TraceFailed {
				t.Errorf("root status = %s, want failed", root.status)
			}
			completed := h.pub.ofType(events.EventAgentCompleted)
			if len(completed) != 1 || !strings.HasPrefix(completed[0].payload.(events.Completed).ResultSummary, "Error: ") {
				t.Errorf("completed events = %+v", completed)
			}
		})
	}
}

func TestRun_SynthesisFailure(t *testing.T) {
	h := newHarness(creationAnalysis())
	h.completer.synthErr = errors.New("overloaded")

	_, err := h.engine.Run(context.Background(), Request{ConversationID: "conv-1", Message: "hi"})
	if !errors.Is(err, ErrSynthesis) {
		t.Fatalf("Run() error = %v, want ErrSynthesis", err)
	}
	if root := h.traces.root(); root.status != state.TraceFailed || !strings.Contains(root.errMsg, "overloaded") {
		t.Errorf("root trace = %+v", root)
	}
	if n := len(h.traces.children()); n != 6 {
		t.Errorf("recorded %d task traces before synthesis, want 6", n)
	}
	if len(h.docs.docs) != 0 {
		t.Error("document saved for failed run")
	}
}

func TestRun_DegradedPlan(t *testing.T) {
	a := models.IntentAnalysis{
		PrimaryIntent: models.IntentQuestion,
		RequiredAgents: []models.TaskName{
			models.TaskMemory, models.TaskMemory, "ghost", models.TaskAnalyst,
			models.TaskScribe, models.TaskAdvisor,
		},
		TaskDescription: "Explain hashtags",
	}
	h := newHarness(a)
	resp := h.run(t)

	if !resp.Degraded {
		t.Error("Degraded = false")
	}
	want := []models.TaskName{models.TaskMemory, models.TaskAnalyst, models.TaskScribe}
	if len(resp.Plan.Wave1) != len(want) || len(resp.Plan.Wave2) != 0 {
		t.Fatalf("plan = %+v, want wave1 %v", resp.Plan, want)
	}
	for i := range want {
		if resp.Plan.Wave1[i] != want[i] {
			t.Errorf("wave1[%d] = %s, want %s", i, resp.Plan.Wave1[i], want[i])
		}
	}
	if len(h.docs.docs) != 0 {
		t.Error("question intent produced a document")
	}
	if got := resp.Platforms; len(got) != len(models.AllPlatforms()) {
		t.Errorf("empty scope resolved to %v", got)
	}
}

func TestRun_NoTasksSendsRawMessage(t *testing.T) {
	h := newHarness(models.IntentAnalysis{PrimaryIntent: models.IntentOther})
	resp, err := h.engine.Run(context.Background(), Request{ConversationID: "conv-1", Message: "hello there"})
	if err != nil {
		t.Fatal(err)
	}
	if got := h.completer.lastPrompt(); got != "hello there" {
		t.Errorf("synthesis prompt = %q, want raw message", got)
	}
	if len(resp.Results) != 0 || resp.Tokens != 25 {
		t.Errorf("resp = %+v", resp)
	}
	if len(h.traces.children()) != 0 {
		t.Error("task traces recorded for a run without tasks")
	}
}

func TestRun_EmptyMessage(t *testing.T) {
	h := newHarness(creationAnalysis())
	if _, err := h.engine.Run(context.Background(), Request{Message: "  "}); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("Run() error = %v, want ErrEmptyMessage", err)
	}
}

func TestRun_GeneratesConversationID(t *testing.T) {
	h := newHarness(creationAnalysis())
	resp, err := h.engine.Run(context.Background(), Request{Message: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.ConversationID == "" || resp.RunID == "" || resp.ConversationID == resp.RunID {
		t.Errorf("ids = %q / %q", resp.ConversationID, resp.RunID)
	}
}

func TestRun_MaxParallel(t *testing.T) {
	h := newHarness(creationAnalysis(), WithMaxParallel(1))
	h.executor.fn = func(task models.TaskName, _ models.TaskContext) (agent.Outcome, error) {
		time.Sleep(2 * time.Millisecond)
		return okOutcome(task, 1), nil
	}
	h.run(t)
	if h.executor.peak != 1 {
		t.Errorf("peak concurrency = %d, want 1", h.executor.peak)
	}
}

func TestRun_ExecutorPanic(t *testing.T) {
	h := newHarness(creationAnalysis())
	h.executor.fn = func(task models.TaskName, _ models.TaskContext) (agent.Outcome, error) {
		if task == models.TaskMemory {
			panic("nil map")
		}
		return okOutcome(task, 1), nil
	}
	resp := h.run(t)
	if got := resp.Results[models.TaskMemory]; got != "Error from memory: panic: nil map" {
		t.Errorf("memory result = %q", got)
	}
}

func TestRun_StoreFailuresDoNotAbort(t *testing.T) {
	h := newHarness(creationAnalysis())
	h.traces.startErr = errors.New("disk full")
	h.docs.err = errors.New("disk full")

	resp := h.run(t)
	if resp.Answer != "final answer" || resp.DocumentID != "" {
		t.Errorf("resp = %+v", resp)
	}
	if n := len(h.pub.ofType(events.EventDocumentGenerated)); n != 0 {
		t.Errorf("got %d document.generated events after a failed save", n)
	}
}

func TestRun_CustomRouting(t *testing.T) {
	routing, err := NewRouting(map[models.Intent]models.WavePlan{
		models.IntentContentCreation: {Wave1: []models.TaskName{models.TaskScribe}},
	})
	if err != nil {
		t.Fatal(err)
	}
	h := newHarness(creationAnalysis(), WithRouting(routing))
	resp := h.run(t)
	if len(resp.Results) != 1 || resp.Results[models.TaskScribe] != "out-scribe" {
		t.Errorf("Results = %v", resp.Results)
	}
}

func TestRun_SQLiteStore(t *testing.T) {
	db, err := state.Open(filepath.Join(t.TempDir(), "oneshot.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatal(err)
	}

	h := newHarness(creationAnalysis())
	h.engine = New(RequiredConfig{Completer: h.completer, Adapter: h.executor, Publisher: h.pub},
		WithRecorder(db), WithDocuments(db))
	resp := h.run(t)

	ctx := context.Background()
	roots, err := db.ListTraces(ctx, state.TraceFilter{ConversationID: "conv-1", RootOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 1 || roots[0].Status != state.TraceCompleted || roots[0].TokensUsed != resp.Tokens {
		t.Fatalf("roots = %+v", roots)
	}
	children, err := db.ListChildTraces(ctx, roots[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 6 {
		t.Errorf("got %d child traces, want 6", len(children))
	}

	doc, err := db.GetDocument(ctx, resp.DocumentID)
	if err != nil || doc == nil {
		t.Fatalf("GetDocument() = %v, %v", doc, err)
	}
	if doc.Content != "final answer" || doc.ConversationID != "conv-1" {
		t.Errorf("doc = %+v", doc)
	}
}
