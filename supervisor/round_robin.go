package supervisor

import "context"

// RoundRobinOptions configures a RoundRobin supervisor.
type RoundRobinOptions struct {
	ID   string
	Name string
	// Cycles stops the group after every participant spoke this many times.
	// Zero leaves termination to the round limit.
	Cycles int
}

// RoundRobin hands the floor to each participant in order.
type RoundRobin struct {
	opts RoundRobinOptions
}

// NewRoundRobin creates a RoundRobin supervisor.
func NewRoundRobin(optFns ...func(o *RoundRobinOptions)) *RoundRobin {
	opts := RoundRobinOptions{ID: "round_robin", Name: "Round Robin"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RoundRobin{opts: opts}
}

// Next implements Supervisor.
func (r *RoundRobin) Next(_ context.Context, s State) (Decision, error) {
	n := len(s.Participants)
	if n == 0 {
		return Stop("no participants"), nil
	}
	if r.opts.Cycles > 0 && s.Round >= r.opts.Cycles*n {
		return Stop("every participant has spoken"), nil
	}
	return Continue(s.Participants[s.Round%n]), nil
}

// Info implements Supervisor.
func (r *RoundRobin) Info() Info { return Info{ID: r.opts.ID, Name: r.opts.Name} }
