package orchestrator

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/chatmesh/event"
)

// compare runs every participant concurrently with model-family events and
// reports all terminal results once every task has finished. A failing task
// never stops its siblings.
func (r *run) compare(ctx context.Context) (State, error) {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		results = make(map[string]event.ModelResult, len(r.turn.Participants))
	)
	if r.opts.MaxParallel > 0 {
		g.SetLimit(r.opts.MaxParallel)
	}

	for _, p := range r.turn.Participants {
		g.Go(func() error {
			res, err := r.runTask(ctx, p, modelFamily, 0)

			result := event.ModelResult{ModelName: event.Ptr(p.DisplayName())}
			var taskErr *TaskError
			switch {
			case err == nil:
				result.Status = event.StatusDone
				result.Content = event.Ptr(res.content)
			case isCancelled(err):
				return nil
			case errors.As(err, &taskErr):
				result.Status = event.StatusError
				result.Error = event.Ptr(taskErr.Cause())
			default:
				result.Status = event.StatusError
				result.Error = event.Ptr(err.Error())
			}

			mu.Lock()
			results[p.Token()] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return StateCancelled, turnCancelled(err)
	}

	if err := r.emit(ctx, event.CompareComplete{ModelResults: results}); err != nil {
		return stateOf(err), err
	}
	return StateCompleted, nil
}
