package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/chatmesh/engine"
	"github.com/hupe1980/chatmesh/event"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/orchestrator"
	"github.com/hupe1980/chatmesh/supervisor"
)

// Invoker starts and stops turns. *engine.Engine satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, req engine.Request) (string, <-chan event.Payload, <-chan error, error)
	StopInvocation(turnID string) error
}

// Options holds configuration overrides passed to New().
type Options struct {
	// Mode of every turn. Defaults to single.
	Mode orchestrator.Mode
	// MaxRounds overrides the engine's group round limit when non-zero.
	// orchestrator.UnlimitedRounds lifts the bound.
	MaxRounds int
	// Supervisor overrides the engine's group supervisor.
	Supervisor supervisor.Supervisor
	// Logger (defaults to NoOp logger)
	Logger logging.Logger
}

// Reply is one participant's finished message within a turn.
type Reply struct {
	Participant string // Participant token
	Name        string
	Content     string
	Err         string // Set when a model failed
}

// Result is the outcome of RunSync.
type Result struct {
	TurnID   string
	Payloads []event.Payload
	Replies  []Reply
}

// Runner binds a session and a participant roster so callers can hold a
// conversation by sending prompts only. Public methods are safe for
// concurrent use.
type Runner struct {
	invoker   Invoker
	sessionID string
	opts      Options

	mu           sync.RWMutex
	participants []string
	activeRuns   map[string]struct{}
}

// New constructs a Runner for sessionID talking to participants.
func New(invoker Invoker, sessionID string, participants []string, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Mode:   orchestrator.ModeSingle,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		invoker:      invoker,
		sessionID:    sessionID,
		opts:         opts,
		participants: append([]string(nil), participants...),
		activeRuns:   make(map[string]struct{}),
	}
}

// SessionID returns the bound session.
func (r *Runner) SessionID() string { return r.sessionID }

// SetParticipants replaces the roster used by following runs.
func (r *Runner) SetParticipants(tokens ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants = append([]string(nil), tokens...)
}

// Run starts an asynchronous turn for prompt. The channels behave like the
// engine's.
func (r *Runner) Run(ctx context.Context, prompt string) (string, <-chan event.Payload, <-chan error, error) {
	r.mu.RLock()
	req := engine.Request{
		SessionID:    r.sessionID,
		Mode:         r.opts.Mode,
		Participants: append([]string(nil), r.participants...),
		Prompt:       prompt,
		MaxRounds:    r.opts.MaxRounds,
		Supervisor:   r.opts.Supervisor,
	}
	r.mu.RUnlock()

	runID, eventsCh, errorsCh, err := r.invoker.Invoke(ctx, req)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to start turn: %w", err)
	}

	r.mu.Lock()
	r.activeRuns[runID] = struct{}{}
	r.mu.Unlock()

	out := make(chan event.Payload, cap(eventsCh))
	go func() {
		defer func() {
			close(out)
			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()
		}()
		for p := range eventsCh {
			out <- p
		}
	}()

	r.opts.Logger.Debug("runner started turn", "session_id", r.sessionID, "turn_id", runID, "mode", string(req.Mode))
	return runID, out, errorsCh, nil
}

// RunSync runs a turn to completion and assembles the participants' replies
// in the order they finished.
func (r *Runner) RunSync(ctx context.Context, prompt string) (*Result, error) {
	runID, eventsCh, errorsCh, err := r.Run(ctx, prompt)
	if err != nil {
		return nil, err
	}

	res := &Result{TurnID: runID}
	var t transcript
	for p := range eventsCh {
		res.Payloads = append(res.Payloads, p)
		t.observe(p)
	}
	res.Replies = t.replies

	if err := <-errorsCh; err != nil {
		return res, err
	}
	return res, nil
}

// Cancel cancels a running turn by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.RLock()
	_, exists := r.activeRuns[runID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	return r.invoker.StopInvocation(runID)
}

// transcript folds a payload stream into replies. Assistant text arrives as
// chunks between assistant_start and assistant_done; models report their full
// content in model_done.
type transcript struct {
	replies []Reply

	assistant *Reply
	text      strings.Builder
}

func (t *transcript) observe(p event.Payload) {
	switch p.Type() {
	case event.TypeAssistantStart:
		id, _ := p["assistant_id"].(string)
		name, _ := p["name"].(string)
		t.assistant = &Reply{Participant: id, Name: name}
		t.text.Reset()
	case event.TypeAssistantChunk:
		if t.assistant != nil {
			chunk, _ := p["chunk"].(string)
			t.text.WriteString(chunk)
		}
	case event.TypeAssistantDone:
		if t.assistant != nil {
			t.assistant.Content = t.text.String()
			t.replies = append(t.replies, *t.assistant)
			t.assistant = nil
		}
	case event.TypeModelDone:
		id, _ := p["model_id"].(string)
		name, _ := p["model_name"].(string)
		content, _ := p["content"].(string)
		t.replies = append(t.replies, Reply{Participant: id, Name: name, Content: content})
	case event.TypeModelError:
		id, _ := p["model_id"].(string)
		name, _ := p["model_name"].(string)
		msg, _ := p["error"].(string)
		t.replies = append(t.replies, Reply{Participant: id, Name: name, Err: msg})
	}
}
