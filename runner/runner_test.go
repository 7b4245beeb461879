package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatmesh/agent"
	"github.com/hupe1980/chatmesh/engine"
	"github.com/hupe1980/chatmesh/event"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/orchestrator"
)

func newEngine(t *testing.T, models map[string]model.Script) *engine.Engine {
	t.Helper()
	reg := agent.NewRegistry()
	for id, s := range models {
		require.NoError(t, reg.RegisterModel(agent.ModelEntry{ID: id, Model: model.NewScriptedModel(id, s)}))
	}
	return engine.New(reg)
}

func TestRunner_GroupReplies(t *testing.T) {
	reg := agent.NewRegistry()
	require.NoError(t, reg.RegisterModel(agent.ModelEntry{ID: "base", Model: model.NewScriptedModel("base", model.Script{Chunks: []string{"A solid ", "first draft"}})}))
	require.NoError(t, reg.RegisterModel(agent.ModelEntry{ID: "judge", Model: model.NewScriptedModel("judge", model.Script{Chunks: []string{"Looks good"}})}))
	require.NoError(t, reg.RegisterAssistant(agent.Assistant{ID: "writer", Name: "Writer", Model: "base"}))
	eng := engine.New(reg)

	r := New(eng, "s1", []string{"writer", "model::judge"}, func(o *Options) {
		o.Mode = orchestrator.ModeGroup
		o.MaxRounds = 2
	})

	res, err := r.RunSync(context.Background(), "write something")
	require.NoError(t, err)
	require.Len(t, res.Replies, 2)

	assert.Equal(t, Reply{Participant: "writer", Name: "Writer", Content: "A solid first draft"}, res.Replies[0])
	assert.Equal(t, "model::judge", res.Replies[1].Participant)
	assert.Equal(t, "Looks good", res.Replies[1].Content)
	assert.Equal(t, event.TypeGroupDone, res.Payloads[len(res.Payloads)-1].Type())
	assert.NotEmpty(t, res.TurnID)
}

func TestRunner_CompareReportsFailures(t *testing.T) {
	eng := newEngine(t, map[string]model.Script{
		"ok":  {Chunks: []string{"fine"}},
		"bad": {Err: errors.New("quota exceeded")},
	})

	r := New(eng, "s1", []string{"model::ok", "model::bad"}, func(o *Options) { o.Mode = orchestrator.ModeCompare })
	res, err := r.RunSync(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, res.Replies, 2)

	byID := map[string]Reply{}
	for _, rep := range res.Replies {
		byID[rep.Participant] = rep
	}
	assert.Equal(t, "fine", byID["model::ok"].Content)
	assert.Equal(t, "quota exceeded", byID["model::bad"].Err)
}

func TestRunner_SessionContinues(t *testing.T) {
	eng := newEngine(t, map[string]model.Script{"a": {Chunks: []string{"ok"}}})
	r := New(eng, "s1", []string{"model::a"})

	_, err := r.RunSync(context.Background(), "one")
	require.NoError(t, err)
	_, err = r.RunSync(context.Background(), "two")
	require.NoError(t, err)

	sess, err := eng.GetSession(context.Background(), r.SessionID())
	require.NoError(t, err)
	assert.Len(t, sess.GetMessages(), 4)
}

func TestRunner_SetParticipants(t *testing.T) {
	eng := newEngine(t, map[string]model.Script{
		"a": {Chunks: []string{"from a"}},
		"b": {Chunks: []string{"from b"}},
	})
	r := New(eng, "s1", []string{"model::a"})
	r.SetParticipants("model::b")

	res, err := r.RunSync(context.Background(), "hi")
	require.NoError(t, err)
	require.Len(t, res.Replies, 1)
	assert.Equal(t, "model::b", res.Replies[0].Participant)
}

func TestRunner_InvalidRoster(t *testing.T) {
	r := New(newEngine(t, nil), "s1", []string{"model::"})
	_, err := r.RunSync(context.Background(), "hi")
	assert.ErrorContains(t, err, "failed to start turn")
}

func TestRunner_Cancel(t *testing.T) {
	eng := newEngine(t, map[string]model.Script{"slow": {Chunks: []string{"x"}, Hang: true}})
	r := New(eng, "s1", []string{"model::slow"})

	runID, events, errs, err := r.Run(context.Background(), "hi")
	require.NoError(t, err)
	require.NoError(t, r.Cancel(runID))

	done := make(chan struct{})
	go func() {
		for range events {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("turn did not stop")
	}
	assert.Error(t, <-errs)

	assert.Error(t, r.Cancel("unknown"))
}
