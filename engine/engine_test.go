package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatmesh/agent"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/event"
	"github.com/hupe1980/chatmesh/internal/testutil"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/orchestrator"
	"github.com/hupe1980/chatmesh/participant"
	"github.com/hupe1980/chatmesh/session"
)

func newRegistry(t *testing.T) (*agent.Registry, map[string]*model.MockModel) {
	t.Helper()
	models := map[string]*model.MockModel{
		"alpha": model.NewMockModel("Alpha", "mock"),
		"beta":  model.NewMockModel("Beta", "mock"),
		"slow":  model.NewScriptedModel("Slow", model.Script{Hang: true}),
	}
	r := agent.NewRegistry()
	for id, m := range models {
		require.NoError(t, r.RegisterModel(agent.ModelEntry{ID: id, Model: m}))
	}
	require.NoError(t, r.RegisterAssistant(agent.Assistant{
		ID:          "writer",
		Name:        "Writer",
		Model:       "alpha",
		Instruction: agent.NewInstructionFromText("You are {{.Name}}."),
	}))
	return r, models
}

func TestEngine_InvokeSyncCompare(t *testing.T) {
	reg, _ := newRegistry(t)
	eng := New(reg)

	_, payloads, err := eng.InvokeSync(context.Background(), Request{
		SessionID:    "s1",
		Mode:         orchestrator.ModeCompare,
		Participants: []string{"model::alpha", "model::beta"},
		Prompt:       "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, event.TypeCompareComplete, payloads[len(payloads)-1].Type())
	assert.Len(t, testutil.OfType(payloads, event.TypeModelDone), 2)

	sess, err := eng.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	msgs := sess.GetMessages()
	require.Len(t, msgs, 3)
	assert.Equal(t, core.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.ElementsMatch(t, []string{"model::alpha", "model::beta"}, []string{msgs[1].Participant, msgs[2].Participant})
	assert.Equal(t, "Mock response to: hello", msgs[1].Content)
}

func TestEngine_InvalidParticipantFailsBeforeStart(t *testing.T) {
	reg, models := newRegistry(t)
	store := session.NewInMemoryStore()
	eng := New(reg, func(o *Options) { o.SessionStore = store })

	_, _, _, err := eng.Invoke(context.Background(), Request{
		SessionID:    "s1",
		Mode:         orchestrator.ModeCompare,
		Participants: []string{"model::alpha", "model::  "},
		Prompt:       "hello",
	})
	assert.ErrorIs(t, err, participant.ErrInvalidParticipant)

	_, _, _, err = eng.Invoke(context.Background(), Request{
		SessionID:    "s1",
		Participants: []string{"model::gamma"},
		Prompt:       "hello",
	})
	assert.ErrorIs(t, err, agent.ErrUnknownParticipant)

	sess, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, sess.GetMessages())
	assert.Empty(t, models["alpha"].Requests())
}

func TestEngine_InvalidRequest(t *testing.T) {
	reg, _ := newRegistry(t)
	eng := New(reg)

	for name, req := range map[string]Request{
		"no session":      {Participants: []string{"writer"}},
		"no participants": {SessionID: "s"},
		"bad mode":        {SessionID: "s", Mode: "debate", Participants: []string{"writer"}},
	} {
		_, _, _, err := eng.Invoke(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidRequest, name)
	}
}

func TestEngine_AssistantMessageID(t *testing.T) {
	reg, _ := newRegistry(t)
	eng := New(reg)

	_, payloads, err := eng.InvokeSync(context.Background(), Request{
		SessionID:    "s1",
		Participants: []string{"writer"},
		Prompt:       "hi",
	})
	require.NoError(t, err)

	ids := testutil.Field(payloads, event.TypeAssistantMessageID, "message_id")
	require.Len(t, ids, 1)

	sess, err := eng.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	msgs := sess.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, ids[0], msgs[1].ID)
	assert.Equal(t, "writer", msgs[1].Participant)
	assert.Equal(t, "Writer", msgs[1].Name)
	assert.Equal(t, event.TypeSingleTurnComplete, payloads[len(payloads)-1].Type())
}

func TestEngine_HistoryAcrossTurns(t *testing.T) {
	reg, models := newRegistry(t)
	eng := New(reg)
	ctx := context.Background()

	_, _, err := eng.InvokeSync(ctx, Request{SessionID: "s1", Participants: []string{"model::alpha"}, Prompt: "first"})
	require.NoError(t, err)
	_, _, err = eng.InvokeSync(ctx, Request{SessionID: "s1", Participants: []string{"model::alpha"}, Prompt: "second"})
	require.NoError(t, err)

	reqs := models["alpha"].Requests()
	require.Len(t, reqs, 2)
	texts := make([]string, 0, len(reqs[1].Contents))
	for _, c := range reqs[1].Contents {
		texts = append(texts, c.Text())
	}
	assert.Equal(t, []string{"first", "Mock response to: first", "second"}, texts)
}

func TestEngine_TurnLimitAndStop(t *testing.T) {
	reg, _ := newRegistry(t)
	eng := New(reg, func(o *Options) { o.Config.MaxConcurrentTurns = 1 })
	ctx := context.Background()

	turnID, events, errs, err := eng.Invoke(ctx, Request{SessionID: "s1", Participants: []string{"model::slow"}, Prompt: "wait"})
	require.NoError(t, err)

	first := <-events
	assert.Equal(t, event.TypeModelStart, first.Type())
	assert.Equal(t, []string{turnID}, eng.ActiveTurns())

	_, _, _, err = eng.Invoke(ctx, Request{SessionID: "s2", Participants: []string{"model::alpha"}, Prompt: "hi"})
	assert.ErrorIs(t, err, ErrTooManyTurns)

	require.NoError(t, eng.StopInvocation(turnID))
	for range events {
	}
	err = <-errs
	assert.ErrorIs(t, err, orchestrator.ErrTurnCancelled)

	require.Eventually(t, func() bool { return len(eng.ActiveTurns()) == 0 }, time.Second, 10*time.Millisecond)
	_, _, err = eng.InvokeSync(ctx, Request{SessionID: "s2", Participants: []string{"model::alpha"}, Prompt: "hi"})
	assert.NoError(t, err)

	assert.ErrorIs(t, eng.StopInvocation("nope"), ErrTurnNotFound)
}

func TestEngine_Callbacks(t *testing.T) {
	reg, _ := newRegistry(t)

	allow, err := NewAllowListCallback("assistant::writer", "model::alpha")
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		seen   []event.Type
		states []orchestrator.State
	)
	onEvent := NewFunctionCallback(CallbackOnEvent, func(_ context.Context, c *CallbackContext) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, c.Event.Type())
		return nil
	})
	after := NewFunctionCallback(CallbackAfterTurn, func(_ context.Context, c *CallbackContext) error {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, c.State)
		return nil
	})

	eng := New(reg, func(o *Options) { o.Callbacks = []Callback{allow, onEvent, after} })
	eng.Callbacks().RegisterCallback(NewLoggingCallback(CallbackAfterTurn, nil))

	_, payloads, err := eng.InvokeSync(context.Background(), Request{SessionID: "s", Participants: []string{"writer"}, Prompt: "hi"})
	require.NoError(t, err)

	_, _, _, err = eng.Invoke(context.Background(), Request{SessionID: "s", Participants: []string{"model::beta"}, Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model::beta is not allowed")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, testutil.Types(payloads), seen)
	assert.Equal(t, []orchestrator.State{orchestrator.StateCompleted}, states)
}

func TestEngine_FailedTurnReportsError(t *testing.T) {
	r := agent.NewRegistry()
	require.NoError(t, r.RegisterModel(agent.ModelEntry{ID: "broken", Model: model.NewScriptedModel("Broken", model.Script{Err: errors.New("down")})}))
	eng := New(r)

	_, payloads, err := eng.InvokeSync(context.Background(), Request{SessionID: "s", Mode: orchestrator.ModeGroup, Participants: []string{"model::broken"}, Prompt: "hi"})
	require.Error(t, err)

	var taskErr *orchestrator.TaskError
	assert.True(t, errors.As(err, &taskErr))
	assert.Equal(t, event.TypeGroupDone, payloads[len(payloads)-1].Type())
}

func TestEngine_RedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reg, _ := newRegistry(t)
	store := session.NewRedisStore(client)
	eng := New(reg, func(o *Options) { o.SessionStore = store })

	_, _, err := eng.InvokeSync(context.Background(), Request{SessionID: "r1", Participants: []string{"writer"}, Prompt: "persist me"})
	require.NoError(t, err)

	sess, err := store.Get(context.Background(), "r1")
	require.NoError(t, err)
	msgs := sess.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "persist me", msgs[0].Content)
	assert.Equal(t, "writer", msgs[1].Participant)
}

func TestEngine_SeededHistoryReachesModel(t *testing.T) {
	reg, models := newRegistry(t)
	store := session.NewInMemoryStore()
	for _, m := range testutil.NewSessionBuilder("s1").
		User("What is a tide pool?").
		Reply("model::beta", "Beta", "A rocky pool left by the tide.").
		User("And who lives there?").
		Reply("model::alpha", "Alpha", "Crabs and anemones.").
		Messages() {
		require.NoError(t, store.AppendMessage(context.Background(), "s1", m))
	}

	eng := New(reg, func(o *Options) { o.SessionStore = store })
	_, _, err := eng.InvokeSync(context.Background(), Request{
		SessionID:    "s1",
		Participants: []string{"model::alpha"},
		Prompt:       "Anything else?",
	})
	require.NoError(t, err)

	reqs := models["alpha"].Requests()
	require.Len(t, reqs, 1)

	var texts []string
	var roles []string
	for _, c := range reqs[0].Contents {
		texts = append(texts, c.Text())
		roles = append(roles, c.Role)
	}
	assert.Equal(t, []string{
		"What is a tide pool?",
		"[Beta]: A rocky pool left by the tide.",
		"And who lives there?",
		"Crabs and anemones.",
		"Anything else?",
	}, texts)
	assert.Equal(t, core.RoleAssistant, roles[3])
}
