// Package engine is the entry point for running chat turns.
//
// The Engine bridges callers and the orchestrator:
//
//   - Validation: participant tokens are parsed and resolved before anything
//     starts, so malformed or unknown participants fail Invoke immediately.
//   - Persistence: the user prompt and every participant reply are appended
//     to the session store; assistants receive the stored message id.
//   - Concurrency: at most Config.MaxConcurrentTurns turns run at once and
//     every turn can be stopped by id.
//   - Streaming: canonical event payloads are delivered on a channel in
//     emission order, with the terminal error on a second channel.
//
// # Usage
//
//	registry := agent.NewRegistry()
//	_ = registry.RegisterModel(agent.ModelEntry{ID: "gpt-4o", Model: openai.NewModel()})
//
//	eng := engine.New(registry)
//	turnID, events, errs, err := eng.Invoke(ctx, engine.Request{
//	    SessionID:    "sess-1",
//	    Mode:         orchestrator.ModeCompare,
//	    Participants: []string{"model::gpt-4o", "model::claude"},
//	    Prompt:       "Summarise the RFC",
//	})
//	if err != nil {
//	    return err
//	}
//	_ = turnID
//
//	for p := range events {
//	    handle(p)
//	}
//	if err := <-errs; err != nil {
//	    return err
//	}
//
// # Callbacks
//
// Callbacks hook into the turn lifecycle (before_turn, on_event, after_turn,
// on_error). A before_turn callback returning an error rejects the request.
package engine
