package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/chatmesh/agent"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/event"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/metrics"
	"github.com/hupe1980/chatmesh/supervisor"
)

// Mode selects how the participants of a turn respond.
type Mode string

const (
	// ModeSingle lets exactly one participant answer.
	ModeSingle Mode = "single"
	// ModeGroup runs supervisor-directed sequential rounds.
	ModeGroup Mode = "group"
	// ModeCompare runs every participant concurrently.
	ModeCompare Mode = "compare"
)

// ParseMode converts s into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeSingle, ModeGroup, ModeCompare:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidTurn, s)
	}
}

// State is the lifecycle state of a turn.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Turn is one request/response cycle.
type Turn struct {
	ID           string
	SessionID    string
	Mode         Mode
	Participants []*agent.Participant
	Prompt       string
	History      []core.Message // Prior conversation, without Prompt
	MaxRounds    int            // Overrides Options.MaxRounds when non-zero; UnlimitedRounds lifts the bound
	Supervisor   supervisor.Supervisor
}

// Recorder persists completed participant messages.
type Recorder interface {
	RecordMessage(ctx context.Context, turn *Turn, p *agent.Participant, content string) (string, error)
}

// Options configures an Orchestrator.
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Collector

	// TaskTimeout bounds every participant task. Zero selects
	// DefaultTaskTimeout; a negative value disables the bound.
	TaskTimeout time.Duration

	// MaxParallel limits concurrently running compare tasks. Zero means no limit.
	MaxParallel int

	// MaxRounds bounds group turns. Zero selects DefaultMaxRounds;
	// UnlimitedRounds disables the bound.
	MaxRounds int

	// Supervisor is used for group turns that do not bring their own.
	Supervisor supervisor.Supervisor

	// Recorder, when set, persists every completed message. Assistants
	// additionally receive an assistant_message_id event.
	Recorder Recorder
}

const (
	DefaultTaskTimeout = 2 * time.Minute
	DefaultMaxRounds   = 10

	// UnlimitedRounds lets a group turn run until its supervisor stops it.
	UnlimitedRounds = -1
)

// Orchestrator drives participant tasks and multiplexes their events into one
// ordered stream. It is safe for concurrent use; every Run is independent.
type Orchestrator struct {
	opts Options
}

// New creates an Orchestrator.
func New(optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Logger:      logging.NoOpLogger{},
		TaskTimeout: DefaultTaskTimeout,
		MaxRounds:   DefaultMaxRounds,
		Supervisor:  supervisor.NewRoundRobin(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.TaskTimeout == 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}
	if opts.MaxRounds == 0 {
		opts.MaxRounds = DefaultMaxRounds
	}

	return &Orchestrator{opts: opts}
}

// Run executes turn and sends canonical event payloads to out in emission
// order. It blocks until the turn reaches a terminal state and returns it.
// Run never closes out.
//
// Participant failures are reported as events; the returned error is set for
// cancelled and failed turns only.
func (o *Orchestrator) Run(ctx context.Context, turn *Turn, out chan<- event.Payload) (State, error) {
	if err := validateTurn(turn); err != nil {
		return StateIdle, err
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}

	ctx, span := tracer.Start(ctx, "chatmesh.turn", trace.WithAttributes(turnAttributes(turn)...))
	defer span.End()

	start := time.Now()
	o.opts.Metrics.TurnStarted()

	logger := logging.ForTurn(o.opts.Logger, turn.SessionID, turn.ID)
	r := newRun(o, turn, out, logger)

	var (
		state State
		err   error
	)
	switch turn.Mode {
	case ModeGroup:
		state, err = r.group(ctx)
	case ModeCompare:
		state, err = r.compare(ctx)
	default:
		state, err = r.single(ctx)
	}

	dur := time.Since(start)
	o.opts.Metrics.TurnFinished(string(turn.Mode), state.String(), dur)
	span.SetAttributes(attribute.String("chatmesh.turn.state", state.String()))
	recordSpanError(span, err)

	var logErr error
	if err != nil && !isCancelled(err) {
		logErr = err
	}
	logging.LogTurn(logger, string(turn.Mode), state.String(), dur, logErr)

	return state, err
}

func validateTurn(t *Turn) error {
	if t == nil {
		return fmt.Errorf("%w: nil turn", ErrInvalidTurn)
	}
	if len(t.Participants) == 0 {
		return fmt.Errorf("%w: no participants", ErrInvalidTurn)
	}
	switch t.Mode {
	case ModeSingle:
		if len(t.Participants) != 1 {
			return fmt.Errorf("%w: single mode takes exactly one participant, got %d", ErrInvalidTurn, len(t.Participants))
		}
	case ModeGroup, ModeCompare:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidTurn, t.Mode)
	}

	seen := make(map[string]struct{}, len(t.Participants))
	for _, p := range t.Participants {
		if p == nil || p.Model == nil {
			return fmt.Errorf("%w: participant without model", ErrInvalidTurn)
		}
		if _, dup := seen[p.Token()]; dup {
			return fmt.Errorf("%w: duplicate participant %q", ErrInvalidTurn, p.Token())
		}
		seen[p.Token()] = struct{}{}
	}
	return nil
}

// run is the mutable state of one Run call.
type run struct {
	opts    Options
	logger  logging.Logger // Scoped to the turn
	turn    *Turn
	out     chan<- event.Payload
	history []core.Message // Guarded by single-writer use in group and single mode
}

func newRun(o *Orchestrator, t *Turn, out chan<- event.Payload, logger logging.Logger) *run {
	history := make([]core.Message, len(t.History), len(t.History)+1)
	copy(history, t.History)
	if t.Prompt != "" {
		history = append(history, core.Message{
			TurnID:  t.ID,
			Role:    core.RoleUser,
			Content: t.Prompt,
			Created: time.Now(),
		})
	}
	return &run{opts: o.opts, logger: logger, turn: t, out: out, history: history}
}

// emit normalizes ev and sends it unless the turn has been cancelled. Nothing
// is sent once ctx is done.
func (r *run) emit(ctx context.Context, ev event.Event) error {
	if err := ctx.Err(); err != nil {
		return turnCancelled(err)
	}

	p, err := event.Normalize(ev)
	if err != nil {
		r.opts.Metrics.EventRejected(string(ev.Type()))
		r.logger.Error("event rejected", "type", ev.Type(), "error", err)
		return err
	}

	select {
	case <-ctx.Done():
		return turnCancelled(ctx.Err())
	case r.out <- p:
		return nil
	}
}

func (r *run) templateData(p *agent.Participant, round int) agent.TemplateData {
	others := make([]string, 0, len(r.turn.Participants)-1)
	for _, o := range r.turn.Participants {
		if o.Token() != p.Token() {
			others = append(others, o.DisplayName())
		}
	}
	return agent.TemplateData{
		Others:    others,
		Mode:      string(r.turn.Mode),
		Round:     round,
		SessionID: r.turn.SessionID,
	}
}

func (r *run) single(ctx context.Context) (State, error) {
	p := r.turn.Participants[0]

	res, err := r.runTask(ctx, p, familyOf(p), 0)
	if err != nil {
		return stateOf(err), err
	}

	if err := r.emit(ctx, event.SingleTurnComplete{Content: res.content}); err != nil {
		return stateOf(err), err
	}
	return StateCompleted, nil
}

func stateOf(err error) State {
	switch {
	case err == nil:
		return StateCompleted
	case isCancelled(err):
		return StateCancelled
	default:
		return StateFailed
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
