package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/chatmesh/agent"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/event"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/participant"
	"github.com/hupe1980/chatmesh/thinkfilter"
)

// family selects which event variants a participant task emits.
type family int

const (
	modelFamily family = iota
	assistantFamily
)

func (f family) String() string {
	if f == assistantFamily {
		return "assistant"
	}
	return "model"
}

func familyOf(p *agent.Participant) family {
	if p.Ref.Kind == participant.Assistant {
		return assistantFamily
	}
	return modelFamily
}

type taskResult struct {
	content   string
	messageID string
}

// runTask drives one participant through the single-participant protocol.
// Failures are returned as *TaskError after being reported with model_error
// or, for assistants, an assistant_done carrying the error. Cancellation is
// returned silently.
func (r *run) runTask(ctx context.Context, p *agent.Participant, fam family, round int) (taskResult, error) {
	ctx, span := tracer.Start(ctx, "chatmesh.participant", trace.WithAttributes(
		attribute.String("chatmesh.participant", p.Token()),
		attribute.String("chatmesh.participant.family", fam.String()),
		attribute.Int("chatmesh.round", round),
	))
	defer span.End()

	start := time.Now()
	t := &task{run: r, p: p, fam: fam, token: p.Token(), name: p.DisplayName(), clock: newThinkClock()}
	res, err := t.stream(ctx, round)
	dur := time.Since(start)

	status := "done"
	var taskErr *TaskError
	switch {
	case err == nil:
	case isCancelled(err):
		status = "cancelled"
	case errors.As(err, &taskErr):
		status = "error"
		if errors.Is(err, ErrTaskTimeout) {
			status = "timeout"
		}
		var terminal event.Event = event.ModelError{ModelID: t.token, Error: taskErr.Cause(), ModelName: &t.name}
		if fam == assistantFamily {
			terminal = event.AssistantDone{Extensions: event.Extensions{Extra: map[string]any{"error": taskErr.Cause()}}}
		}
		if emitErr := r.emit(ctx, terminal); isCancelled(emitErr) {
			err = emitErr
		}
	default:
		status = "error"
	}

	r.opts.Metrics.TaskFinished(fam.String(), status, dur)
	recordSpanError(span, err)
	if status == "cancelled" {
		r.logger.Debug("participant task cancelled", "participant", t.token, "chunks", t.chunks, "duration", dur)
	} else {
		logging.LogParticipantTask(r.logger, t.token, t.chunks, dur, err)
	}

	return res, err
}

// task holds the per-participant state. Its filter is never shared.
type task struct {
	*run
	p      *agent.Participant
	fam    family
	token  string
	name   string
	filter thinkfilter.Filter
	clock  *thinkClock
	text   strings.Builder
	chunks int
}

func (t *task) stream(ctx context.Context, round int) (taskResult, error) {
	if err := t.emitStart(ctx); err != nil {
		return taskResult{}, err
	}
	if t.p.ContextBudget > 0 {
		if err := t.emit(ctx, event.ContextInfo{ContextBudget: t.p.ContextBudget, Participant: &t.token}); err != nil {
			return taskResult{}, err
		}
	}

	req, err := t.p.BuildRequest(t.history, t.templateData(t.p, round))
	if err != nil {
		return taskResult{}, &TaskError{Participant: t.token, Err: err}
	}

	final, err := t.generate(ctx, req)
	if err != nil {
		return taskResult{}, err
	}

	if tail := t.filter.Flush(); tail != "" {
		if err := t.emitChunk(ctx, tail); err != nil {
			return taskResult{}, err
		}
	}
	if d, ok := t.clock.stop(); ok {
		if err := t.emitThinking(ctx, d); err != nil {
			return taskResult{}, err
		}
	}

	if final != nil {
		if err := t.emitMetadata(ctx, final); err != nil {
			return taskResult{}, err
		}
	}

	content := t.text.String()
	if err := t.emitDone(ctx, content); err != nil {
		return taskResult{}, err
	}

	res := taskResult{content: content}
	if t.opts.Recorder != nil {
		id, err := t.opts.Recorder.RecordMessage(ctx, t.turn, t.p, content)
		if err != nil {
			t.logger.Warn("record message failed", "participant", t.token, "error", err)
		} else {
			res.messageID = id
			if t.fam == assistantFamily && id != "" {
				if err := t.emit(ctx, event.AssistantMessageID{MessageID: id}); err != nil {
					return res, err
				}
			}
		}
	}
	return res, nil
}

// generate consumes the model stream under the task timeout. Partial text is
// filtered and emitted as it arrives; the final response is returned for its
// metadata. Its text is used only when nothing was streamed.
func (t *task) generate(ctx context.Context, req model.Request) (*model.Response, error) {
	taskCtx, cancel := t.taskContext(ctx)
	defer cancel()

	respCh, errCh := t.p.Model.Generate(taskCtx, req)

	var (
		final    *model.Response
		streamed bool
		genErr   error
	)
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return nil, turnCancelled(ctx.Err())
		case <-taskCtx.Done():
			if ctx.Err() != nil {
				return nil, turnCancelled(ctx.Err())
			}
			return nil, t.timeout()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !resp.Partial {
				final = &resp
				continue
			}
			streamed = true
			if err := t.feed(ctx, resp.Content.Text()); err != nil {
				return nil, err
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil && genErr == nil {
				genErr = err
			}
		}
	}

	if genErr != nil {
		if ctx.Err() != nil {
			return nil, turnCancelled(ctx.Err())
		}
		if errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			return nil, t.timeout()
		}
		return nil, &TaskError{Participant: t.token, Err: genErr}
	}

	if final != nil && !streamed {
		if err := t.feed(ctx, final.Content.Text()); err != nil {
			return nil, err
		}
	}
	return final, nil
}

func (t *task) taskContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.opts.TaskTimeout > 0 {
		return context.WithTimeout(ctx, t.opts.TaskTimeout)
	}
	return context.WithCancel(ctx)
}

func (t *task) timeout() error {
	return &TaskError{Participant: t.token, Err: fmt.Errorf("%w after %s", ErrTaskTimeout, t.opts.TaskTimeout)}
}

func (t *task) feed(ctx context.Context, raw string) error {
	out := t.filter.Feed(raw)
	if d, ok := t.clock.observe(&t.filter); ok {
		if err := t.emitThinking(ctx, d); err != nil {
			return err
		}
	}
	if out == "" {
		return nil
	}
	return t.emitChunk(ctx, out)
}

func (t *task) emitStart(ctx context.Context) error {
	if t.fam == assistantFamily {
		return t.emit(ctx, event.AssistantStart{
			AssistantID:     t.p.Ref.Value,
			AssistantTurnID: event.Ptr(uuid.NewString()),
			Name:            optional(t.p.Name),
		})
	}
	return t.emit(ctx, event.ModelStart{ModelID: t.token, ModelName: t.name})
}

func (t *task) emitChunk(ctx context.Context, chunk string) error {
	t.text.WriteString(chunk)
	t.chunks++
	t.opts.Metrics.ChunkEmitted(t.fam.String())
	if t.fam == assistantFamily {
		return t.emit(ctx, event.AssistantChunk{Chunk: chunk})
	}
	return t.emit(ctx, event.ModelChunk{ModelID: t.token, Chunk: chunk})
}

func (t *task) emitDone(ctx context.Context, content string) error {
	if t.fam == assistantFamily {
		return t.emit(ctx, event.AssistantDone{})
	}
	return t.emit(ctx, event.ModelDone{ModelID: t.token, Content: content, ModelName: &t.name})
}

func (t *task) emitThinking(ctx context.Context, d time.Duration) error {
	t.opts.Metrics.Thinking(d)
	return t.emit(ctx, event.ThinkingDuration{DurationMS: d.Milliseconds(), Participant: &t.token})
}

func (t *task) emitMetadata(ctx context.Context, final *model.Response) error {
	var events []event.Event
	if u := final.Usage; u != nil {
		t.opts.Metrics.Tokens(t.p.Model.Info().Provider, u.PromptTokens, u.CompletionTokens)
		events = append(events, event.Usage{Payload: u, Participant: &t.token})
	}
	if calls := final.Content.FunctionCalls(); len(calls) > 0 {
		events = append(events, event.ToolCalls{Payload: calls, Participant: &t.token})
	}
	if results := final.Content.FunctionResponses(); len(results) > 0 {
		events = append(events, event.ToolResults{Payload: results, Participant: &t.token})
	}
	if sources := final.Content.Data(); len(sources) > 0 {
		events = append(events, event.Sources{Payload: sources, Participant: &t.token})
	}

	for _, ev := range events {
		if err := t.emit(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// message converts a finished task into a history entry.
func (r *run) message(p *agent.Participant, res taskResult) core.Message {
	id := res.messageID
	if id == "" {
		id = uuid.NewString()
	}
	return core.Message{
		ID:          id,
		TurnID:      r.turn.ID,
		Participant: p.Token(),
		Name:        p.DisplayName(),
		Role:        core.RoleAssistant,
		Content:     res.content,
		Created:     time.Now(),
	}
}

// thinkClock measures think spans from filter state transitions.
type thinkClock struct {
	now     func() time.Time
	started time.Time
	active  bool
	blocks  int
}

func newThinkClock() *thinkClock { return &thinkClock{now: time.Now} }

// observe is called after every Feed. It reports the duration of a think span
// that closed during the call.
func (c *thinkClock) observe(f *thinkfilter.Filter) (time.Duration, bool) {
	now := c.now()

	var (
		d     time.Duration
		ended bool
	)
	if f.Blocks() > c.blocks {
		c.blocks = f.Blocks()
		ended = true
		if c.active {
			d = now.Sub(c.started)
		}
		c.active = false
	}
	if f.Thinking() && !c.active {
		c.active = true
		c.started = now
	}
	return d, ended
}

// stop ends an unterminated span at stream end.
func (c *thinkClock) stop() (time.Duration, bool) {
	if !c.active {
		return 0, false
	}
	c.active = false
	return c.now().Sub(c.started), true
}
