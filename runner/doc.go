// Package runner holds a conversation on top of the engine.
//
// A Runner is bound to one session and a roster of participant tokens, so
// every prompt continues the same stored history:
//
//	r := runner.New(eng, "sess-1", []string{"writer", "critic"}, func(o *runner.Options) {
//		o.Mode = orchestrator.ModeGroup
//	})
//	res, err := r.RunSync(ctx, "Draft a release note")
//	for _, reply := range res.Replies {
//		fmt.Printf("%s: %s\n", reply.Name, reply.Content)
//	}
//
// RunSync folds the event stream into one Reply per finished participant
// message; Run exposes the raw payloads.
package runner
