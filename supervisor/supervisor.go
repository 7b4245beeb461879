// Package supervisor decides who speaks next in a group turn.
//
// A Supervisor is consulted before the first round and after every round.
// It either names the next participant or asks the group to stop. The
// orchestrator bounds the loop with its own round limit, so supervisors do
// not need to count rounds themselves.
package supervisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/chatmesh/participant"
)

// ErrInvalidDecision is returned for decisions naming no turn participant.
var ErrInvalidDecision = errors.New("invalid supervisor decision")

// Action is the supervisor's verdict.
type Action string

const (
	// ActionContinue lets Decision.Next speak in the next round.
	ActionContinue Action = "continue"
	// ActionStop ends the group turn.
	ActionStop Action = "stop"
)

// Decision is the outcome of one supervisor consultation.
type Decision struct {
	Action Action
	Next   participant.Ref // Set when Action is ActionContinue
	Reason string
}

// Continue returns a decision handing the floor to next.
func Continue(next participant.Ref) Decision { return Decision{Action: ActionContinue, Next: next} }

// Stop returns a decision ending the turn.
func Stop(reason string) Decision { return Decision{Action: ActionStop, Reason: reason} }

// Record is one completed group round.
type Record struct {
	Round       int
	Participant participant.Ref
	Name        string
	Content     string
}

// State is what a supervisor sees when deciding.
type State struct {
	Prompt       string
	Participants []participant.Ref
	Names        map[participant.Ref]string
	Round        int // Rounds completed so far
	MaxRounds    int // 0 when unlimited
	History      []Record
}

// Info identifies a supervisor in group events.
type Info struct {
	ID   string
	Name string
}

// Supervisor picks the next speaker of a group turn.
type Supervisor interface {
	Next(ctx context.Context, s State) (Decision, error)
	Info() Info
}

// Validate checks that d is well formed for s.
func Validate(d Decision, s State) error {
	switch d.Action {
	case ActionStop:
		return nil
	case ActionContinue:
		for _, p := range s.Participants {
			if p == d.Next {
				return nil
			}
		}
		return fmt.Errorf("%w: %q is not a participant", ErrInvalidDecision, d.Next.Token())
	default:
		return fmt.Errorf("%w: action %q", ErrInvalidDecision, d.Action)
	}
}

// Func adapts a function to the Supervisor interface.
type Func struct {
	info Info
	fn   func(ctx context.Context, s State) (Decision, error)
}

// NewFunc returns a Supervisor backed by fn.
func NewFunc(id, name string, fn func(ctx context.Context, s State) (Decision, error)) *Func {
	return &Func{info: Info{ID: id, Name: name}, fn: fn}
}

// Next implements Supervisor.
func (f *Func) Next(ctx context.Context, s State) (Decision, error) { return f.fn(ctx, s) }

// Info implements Supervisor.
func (f *Func) Info() Info { return f.info }
