// Package orchestrator coordinates the specialist agents that answer one
// inbound request.
//
// A run moves through a fixed sequence:
//   - Classification: one structured completion extracts intent, platforms,
//     requested agents, key entities and a task description
//   - Routing: the intent selects a two-wave plan, or a degraded plan built
//     from the requested agents when the intent has no routing entry
//   - Wave 1: every wave-1 task runs concurrently; the wave joins before
//     anything else happens
//   - Wave 2: every wave-2 task runs concurrently with a snapshot of the
//     wave-1 results
//   - Synthesis: one completion merges every task output into the answer
//
// Task failures never abort a run; they surface as diagnostic text in the
// task's result. Classification and synthesis failures are fatal and are
// reported as ErrClassification and ErrSynthesis.
//
// Example usage:
//
//	engine := orchestrator.New(orchestrator.RequiredConfig{
//		Completer: client,
//		Adapter:   agent.NewAdapter(agent.ClientRuntime(client), client),
//		Publisher: broadcaster,
//	}, orchestrator.WithRecorder(db), orchestrator.WithDocuments(db))
//	resp, err := engine.Run(ctx, orchestrator.Request{ConversationID: "c1", Message: "Write a LinkedIn post"})
package orchestrator
