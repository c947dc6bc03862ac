package events

// Emitter publishes typed events for one session.
type Emitter struct {
	pub     Publisher
	session string
}

// NewEmitter binds pub to sessionID. A nil pub discards events.
func NewEmitter(pub Publisher, sessionID string) Emitter {
	if pub == nil {
		pub = Discard
	}
	return Emitter{pub: pub, session: sessionID}
}

// Session returns the bound session id.
func (e Emitter) Session() string { return e.session }

func (e Emitter) publish(t EventType, payload any) {
	if e.pub == nil {
		return
	}
	e.pub.Publish(e.session, t, payload)
}

// Started emits agent.started.
func (e Emitter) Started(agent, task string) {
	e.publish(EventAgentStarted, Started{Agent: agent, Task: task})
}

// Thinking emits agent.thinking. Progress is clamped to [0,1].
func (e Emitter) Thinking(agent, thought string, progress float64) {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	e.publish(EventAgentThinking, Thinking{Agent: agent, Thought: thought, Progress: progress})
}

// Handoff emits agent.handoff.
func (e Emitter) Handoff(from, to, context string) {
	e.publish(EventAgentHandoff, Handoff{From: from, To: to, Context: context})
}

// ToolCall emits agent.tool_call.
func (e Emitter) ToolCall(agent, tool, toolType string) {
	e.publish(EventAgentToolCall, ToolCall{Agent: agent, Tool: tool, ToolType: toolType})
}

// Completed emits agent.completed.
func (e Emitter) Completed(agent, summary string, durationMs int64) {
	e.publish(EventAgentCompleted, Completed{Agent: agent, ResultSummary: summary, DurationMs: durationMs})
}

// DocumentGenerated emits document.generated.
func (e Emitter) DocumentGenerated(id, docType, title string) {
	e.publish(EventDocumentGenerated, DocumentGenerated{DocumentID: id, Type: docType, Title: title})
}
