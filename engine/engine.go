package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/chatmesh/agent"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/event"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/metrics"
	"github.com/hupe1980/chatmesh/orchestrator"
	"github.com/hupe1980/chatmesh/participant"
	"github.com/hupe1980/chatmesh/session"
	"github.com/hupe1980/chatmesh/supervisor"
)

var (
	// ErrInvalidRequest is returned for requests that cannot start a turn.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrTooManyTurns is returned when MaxConcurrentTurns turns are running.
	ErrTooManyTurns = errors.New("too many concurrent turns")

	// ErrTurnNotFound is returned by StopInvocation for unknown turn ids.
	ErrTurnNotFound = errors.New("turn not found")
)

// Config defines tuning parameters for the Engine's operational behavior.
type Config struct {
	// MaxConcurrentTurns limits the number of turns that can run
	// simultaneously. Invoke fails fast with ErrTooManyTurns beyond it.
	// Set to 0 for unlimited.
	MaxConcurrentTurns int

	// EventBufferSize sets the channel buffer size for streamed payloads.
	EventBufferSize int

	// MaxHistoryMessages bounds the session history handed to a turn.
	// Zero passes the whole history.
	MaxHistoryMessages int
}

// DefaultConfig provides the default configuration values.
var DefaultConfig = Config{
	MaxConcurrentTurns: 10,
	EventBufferSize:    100,
	MaxHistoryMessages: 50,
}

// Options configures an Engine instance using the functional options pattern.
//
// Example:
//
//	eng := engine.New(registry, func(o *engine.Options) {
//	    o.SessionStore = session.NewRedisStore(client)
//	    o.Logger = logger
//	})
type Options struct {
	// Config contains operational parameters for the engine behavior.
	Config Config

	// SessionStore persists user prompts and participant replies.
	// Defaults to an in-memory store.
	SessionStore core.SessionStore

	// Supervisor drives group turns that do not bring their own.
	// Defaults to round robin.
	Supervisor supervisor.Supervisor

	// TaskTimeout, MaxParallel and MaxRounds are passed to the orchestrator.
	// A negative TaskTimeout disables the task bound and
	// orchestrator.UnlimitedRounds lifts the round bound.
	TaskTimeout time.Duration
	MaxParallel int
	MaxRounds   int

	// Callbacks are registered with the engine's CallbackManager.
	Callbacks []Callback

	Logger  logging.Logger
	Metrics *metrics.Collector
}

// Request describes one turn.
type Request struct {
	SessionID    string
	Mode         orchestrator.Mode
	Participants []string // Participant tokens, e.g. "model::gpt-4o" or "writer"
	Prompt       string
	MaxRounds    int                   // Group turns only; 0 uses the engine default, orchestrator.UnlimitedRounds lifts the bound
	Supervisor   supervisor.Supervisor // Group turns only; nil uses the engine default
}

// Engine validates turn requests, persists the conversation and streams the
// events of running turns. It is safe for concurrent use.
type Engine struct {
	resolver     agent.Resolver
	sessionStore core.SessionStore
	orch         *orchestrator.Orchestrator
	callbacks    *CallbackManager
	logger       logging.Logger
	config       Config
	turns        *semaphore.Weighted // nil when unlimited

	activeTurns map[string]context.CancelFunc
	turnsMu     sync.RWMutex
}

// New creates an Engine resolving participant tokens with resolver.
func New(resolver agent.Resolver, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:       DefaultConfig,
		SessionStore: session.NewInMemoryStore(),
		TaskTimeout:  orchestrator.DefaultTaskTimeout,
		MaxRounds:    orchestrator.DefaultMaxRounds,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	e := &Engine{
		resolver:     resolver,
		sessionStore: opts.SessionStore,
		callbacks:    NewCallbackManager(),
		logger:       opts.Logger,
		config:       opts.Config,
		activeTurns:  make(map[string]context.CancelFunc),
	}
	if opts.Config.MaxConcurrentTurns > 0 {
		e.turns = semaphore.NewWeighted(int64(opts.Config.MaxConcurrentTurns))
	}
	for _, cb := range opts.Callbacks {
		e.callbacks.RegisterCallback(cb)
	}

	e.orch = orchestrator.New(func(o *orchestrator.Options) {
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
		o.TaskTimeout = opts.TaskTimeout
		o.MaxParallel = opts.MaxParallel
		o.MaxRounds = opts.MaxRounds
		o.Recorder = e
		if opts.Supervisor != nil {
			o.Supervisor = opts.Supervisor
		}
	})

	return e
}

// Callbacks returns the engine's callback manager.
func (e *Engine) Callbacks() *CallbackManager { return e.callbacks }

// Invoke starts a turn and returns channels streaming its canonical event
// payloads and terminal error. Both channels are closed when the turn ends.
//
// Malformed participant tokens fail with participant.ErrInvalidParticipant
// and unknown ones with agent.ErrUnknownParticipant before anything is
// persisted or started.
func (e *Engine) Invoke(ctx context.Context, req Request) (string, <-chan event.Payload, <-chan error, error) {
	turn, err := e.prepare(req)
	if err != nil {
		return "", nil, nil, err
	}

	cbCtx := &CallbackContext{SessionID: turn.SessionID, TurnID: turn.ID, Mode: turn.Mode, Participants: tokens(turn)}
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeTurn, cbCtx); err != nil {
		return "", nil, nil, fmt.Errorf("before turn callback: %w", err)
	}

	if e.turns != nil && !e.turns.TryAcquire(1) {
		return "", nil, nil, fmt.Errorf("%w: limit %d", ErrTooManyTurns, e.config.MaxConcurrentTurns)
	}
	release := func() {
		if e.turns != nil {
			e.turns.Release(1)
		}
	}

	if err := e.startTurn(ctx, turn); err != nil {
		release()
		return "", nil, nil, err
	}

	eventsCh := make(chan event.Payload, e.config.EventBufferSize)
	errorsCh := make(chan error, 1)
	emit := make(chan event.Payload, e.config.EventBufferSize)

	turnCtx, cancel := context.WithCancel(ctx)

	e.turnsMu.Lock()
	e.activeTurns[turn.ID] = cancel
	e.turnsMu.Unlock()

	go func() {
		defer func() {
			close(emit)
			release()
			e.turnsMu.Lock()
			delete(e.activeTurns, turn.ID)
			e.turnsMu.Unlock()
		}()

		state, err := e.orch.Run(turnCtx, turn, emit)

		done := &CallbackContext{SessionID: turn.SessionID, TurnID: turn.ID, Mode: turn.Mode, Participants: cbCtx.Participants, State: state, Err: err}
		if err != nil {
			if cbErr := e.callbacks.ExecuteCallbacks(context.WithoutCancel(ctx), CallbackOnError, done); cbErr != nil {
				e.logger.Warn("error callback failed", "turn_id", turn.ID, "error", cbErr)
			}
			errorsCh <- fmt.Errorf("turn %s %s: %w", turn.ID, state, err)
		}
		if cbErr := e.callbacks.ExecuteCallbacks(context.WithoutCancel(ctx), CallbackAfterTurn, done); cbErr != nil {
			e.logger.Warn("after turn callback failed", "turn_id", turn.ID, "error", cbErr)
		}
	}()

	go func() {
		defer func() {
			cancel()
			close(eventsCh)
			close(errorsCh)
		}()
		e.processEvents(turnCtx, turn, emit, eventsCh)
	}()

	return turn.ID, eventsCh, errorsCh, nil
}

// prepare validates req and resolves its participants.
func (e *Engine) prepare(req Request) (*orchestrator.Turn, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session id", ErrInvalidRequest)
	}
	if req.Mode == "" {
		req.Mode = orchestrator.ModeSingle
	}
	if _, err := orchestrator.ParseMode(string(req.Mode)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	refs, err := participant.ParseAll(req.Participants)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: no participants", ErrInvalidRequest)
	}
	if e.resolver == nil {
		return nil, fmt.Errorf("%w: no participant resolver configured", ErrInvalidRequest)
	}
	participants, err := agent.ResolveAll(e.resolver, refs)
	if err != nil {
		return nil, err
	}

	return &orchestrator.Turn{
		ID:           uuid.NewString(),
		SessionID:    req.SessionID,
		Mode:         req.Mode,
		Participants: participants,
		Prompt:       req.Prompt,
		MaxRounds:    req.MaxRounds,
		Supervisor:   req.Supervisor,
	}, nil
}

// startTurn loads the history and persists the user prompt.
func (e *Engine) startTurn(ctx context.Context, turn *orchestrator.Turn) error {
	sess, err := e.sessionStore.Get(ctx, turn.SessionID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	turn.History = sess.History(e.config.MaxHistoryMessages)

	if turn.Prompt == "" {
		return nil
	}
	msg := core.Message{
		ID:      uuid.NewString(),
		TurnID:  turn.ID,
		Role:    core.RoleUser,
		Content: turn.Prompt,
		Created: time.Now(),
	}
	if err := e.sessionStore.AppendMessage(ctx, turn.SessionID, msg); err != nil {
		return fmt.Errorf("failed to append user message: %w", err)
	}
	return nil
}

// processEvents forwards payloads to the consumer. After cancellation the
// remaining payloads are drained so the turn goroutine never blocks.
func (e *Engine) processEvents(ctx context.Context, turn *orchestrator.Turn, emit <-chan event.Payload, eventsCh chan<- event.Payload) {
	for p := range emit {
		cbCtx := &CallbackContext{SessionID: turn.SessionID, TurnID: turn.ID, Mode: turn.Mode, Event: p}
		if err := e.callbacks.ExecuteCallbacks(ctx, CallbackOnEvent, cbCtx); err != nil {
			e.logger.Warn("event callback failed", "turn_id", turn.ID, "type", p.Type(), "error", err)
		}

		select {
		case <-ctx.Done():
			for range emit {
			}
			return
		case eventsCh <- p:
			e.logger.Debug("engine delivered event", "turn_id", turn.ID, "type", p.Type())
		}
	}
}

// RecordMessage persists a participant reply. It implements
// orchestrator.Recorder.
func (e *Engine) RecordMessage(ctx context.Context, turn *orchestrator.Turn, p *agent.Participant, content string) (string, error) {
	msg := core.Message{
		ID:          uuid.NewString(),
		TurnID:      turn.ID,
		Participant: p.Token(),
		Name:        p.DisplayName(),
		Role:        core.RoleAssistant,
		Content:     content,
		Created:     time.Now(),
	}
	if err := e.sessionStore.AppendMessage(ctx, turn.SessionID, msg); err != nil {
		return "", fmt.Errorf("failed to append message: %w", err)
	}
	return msg.ID, nil
}

// InvokeSync runs a turn to completion and returns every payload it produced.
// Payloads collected before a failure or cancellation are returned with the
// error.
func (e *Engine) InvokeSync(ctx context.Context, req Request) (string, []event.Payload, error) {
	turnID, eventsCh, errorsCh, err := e.Invoke(ctx, req)
	if err != nil {
		return "", nil, err
	}

	var payloads []event.Payload
	for p := range eventsCh {
		payloads = append(payloads, p)
	}
	if err := <-errorsCh; err != nil {
		return turnID, payloads, err
	}
	return turnID, payloads, nil
}

// StopInvocation cancels a running turn.
func (e *Engine) StopInvocation(turnID string) error {
	e.turnsMu.RLock()
	cancel, exists := e.activeTurns[turnID]
	e.turnsMu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrTurnNotFound, turnID)
	}

	cancel()
	return nil
}

// ActiveTurns returns the ids of running turns in lexical order.
func (e *Engine) ActiveTurns() []string {
	e.turnsMu.RLock()
	defer e.turnsMu.RUnlock()

	ids := make([]string, 0, len(e.activeTurns))
	for id := range e.activeTurns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetSession retrieves the current session by ID.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*core.Session, error) {
	return e.sessionStore.Get(ctx, sessionID)
}

func tokens(t *orchestrator.Turn) []string {
	out := make([]string, len(t.Participants))
	for i, p := range t.Participants {
		out[i] = p.Token()
	}
	return out
}
