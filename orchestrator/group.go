package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/chatmesh/agent"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/event"
	"github.com/hupe1980/chatmesh/participant"
	"github.com/hupe1980/chatmesh/supervisor"
)

// Reasons reported by group_done.
const (
	ReasonSupervisorStop = "supervisor_stop"
	ReasonMaxRounds      = "max_rounds"
	ReasonError          = "error"
)

// maxRounds resolves the round bound of the turn. Zero means unbounded.
func (r *run) maxRounds() int {
	n := r.turn.MaxRounds
	if n == 0 {
		n = r.opts.MaxRounds
	}
	if n < 0 {
		return 0
	}
	return n
}

func (r *run) pickSupervisor() supervisor.Supervisor {
	if r.turn.Supervisor != nil {
		return r.turn.Supervisor
	}
	return r.opts.Supervisor
}

// group runs supervisor-directed rounds until the supervisor stops, the
// round limit is reached or a round fails.
func (r *run) group(ctx context.Context) (State, error) {
	sup := r.pickSupervisor()
	if sup == nil {
		return StateFailed, fmt.Errorf("%w: group turn without supervisor", ErrInvalidTurn)
	}
	info := sup.Info()
	limiter := core.NewRoundLimiter(r.maxRounds())

	byRef := make(map[participant.Ref]*agent.Participant, len(r.turn.Participants))
	st := supervisor.State{
		Prompt:    r.turn.Prompt,
		Names:     make(map[participant.Ref]string, len(r.turn.Participants)),
		MaxRounds: limiter.Max(),
	}
	for _, p := range r.turn.Participants {
		byRef[p.Ref] = p
		st.Participants = append(st.Participants, p.Ref)
		st.Names[p.Ref] = p.DisplayName()
	}

	decision, err := r.decide(ctx, sup, st)
	if err != nil {
		return r.groupFailed(ctx, 0, err)
	}
	if err := r.emit(ctx, groupAction(0, decision, info)); err != nil {
		return stateOf(err), err
	}

	for decision.Action == supervisor.ActionContinue {
		round, err := limiter.Increment()
		if err != nil {
			return r.groupFailed(ctx, limiter.Count(), err)
		}

		if err := r.emit(ctx, event.GroupRoundStart{
			Round:          round,
			MaxRounds:      limiter.Max(),
			SupervisorID:   optional(info.ID),
			SupervisorName: optional(info.Name),
		}); err != nil {
			return stateOf(err), err
		}

		p := byRef[decision.Next]
		res, err := r.runTask(ctx, p, familyOf(p), round)
		if err != nil {
			if isCancelled(err) {
				return StateCancelled, err
			}
			return r.groupFailed(ctx, round, err)
		}

		r.history = append(r.history, r.message(p, res))
		st.Round = round
		st.History = append(st.History, supervisor.Record{
			Round:       round,
			Participant: p.Ref,
			Name:        p.DisplayName(),
			Content:     res.content,
		})

		r.logger.Debug("group round finished", "round", round, "participant", p.Token(), "remaining", limiter.Remaining())

		if limiter.Exhausted() {
			return r.groupDone(ctx, ReasonMaxRounds, round)
		}

		decision, err = r.decide(ctx, sup, st)
		if err != nil {
			return r.groupFailed(ctx, round, err)
		}
		if err := r.emit(ctx, groupAction(round, decision, info)); err != nil {
			return stateOf(err), err
		}
	}

	return r.groupDone(ctx, ReasonSupervisorStop, limiter.Count())
}

func (r *run) decide(ctx context.Context, sup supervisor.Supervisor, st supervisor.State) (supervisor.Decision, error) {
	d, err := sup.Next(ctx, st)
	if err != nil {
		if ctx.Err() != nil {
			return supervisor.Decision{}, turnCancelled(ctx.Err())
		}
		return supervisor.Decision{}, fmt.Errorf("supervisor %s: %w", sup.Info().ID, err)
	}
	if err := supervisor.Validate(d, st); err != nil {
		return supervisor.Decision{}, fmt.Errorf("supervisor %s: %w", sup.Info().ID, err)
	}
	return d, nil
}

func groupAction(round int, d supervisor.Decision, info supervisor.Info) event.GroupAction {
	ev := event.GroupAction{
		Round:          round,
		Action:         string(d.Action),
		SupervisorID:   optional(info.ID),
		SupervisorName: optional(info.Name),
	}
	if d.Action == supervisor.ActionContinue {
		ev.Target = event.Ptr(d.Next.Token())
	}
	if d.Reason != "" {
		ev.Extra = map[string]any{"reason": d.Reason}
	}
	return ev
}

func (r *run) groupDone(ctx context.Context, reason string, rounds int) (State, error) {
	if err := r.emit(ctx, event.GroupDone{Mode: string(ModeGroup), Reason: reason, Rounds: rounds}); err != nil {
		return stateOf(err), err
	}
	return StateCompleted, nil
}

// groupFailed reports cause in group_done and fails the turn.
func (r *run) groupFailed(ctx context.Context, rounds int, cause error) (State, error) {
	if isCancelled(cause) {
		return StateCancelled, cause
	}

	msg := cause.Error()
	var taskErr *TaskError
	if errors.As(cause, &taskErr) {
		msg = taskErr.Cause()
	}

	ev := event.GroupDone{Mode: string(ModeGroup), Reason: ReasonError, Rounds: rounds}
	ev.Extra = map[string]any{"error": msg}
	if err := r.emit(ctx, ev); err != nil {
		return stateOf(err), err
	}
	return StateFailed, cause
}
