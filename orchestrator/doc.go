// Package orchestrator runs chat turns and multiplexes participant streams
// into one ordered channel of canonical event payloads.
//
// Three modes are supported:
//
//   - ModeSingle: one participant answers, followed by single_turn_complete.
//   - ModeGroup: a supervisor picks the speaker of each sequential round until
//     it stops or the round limit is reached; group_done reports why.
//   - ModeCompare: every participant runs concurrently with model events and
//     compare_complete carries each one's terminal result.
//
// Each participant task owns a thinkfilter.Filter, so reasoning wrapped in
// think tags never reaches the stream. Within one participant, _start precedes
// every _chunk, which precede _done or model_error. Events of different
// participants in compare mode interleave arbitrarily.
//
// Cancelling the context passed to Run stops every task; nothing is emitted
// after cancellation has been observed.
//
// Example:
//
//	orch := orchestrator.New(func(o *orchestrator.Options) {
//	    o.TaskTimeout = time.Minute
//	})
//
//	out := make(chan event.Payload, 64)
//	go func() {
//	    defer close(out)
//	    state, err := orch.Run(ctx, &orchestrator.Turn{
//	        Mode:         orchestrator.ModeCompare,
//	        Participants: participants,
//	        Prompt:       "Explain CRDTs",
//	    }, out)
//	    _, _ = state, err
//	}()
//	for p := range out {
//	    fmt.Println(p.Type())
//	}
package orchestrator
