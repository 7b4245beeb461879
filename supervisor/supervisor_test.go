package supervisor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/participant"
)

var (
	writer = participant.NewAssistant("writer")
	critic = participant.NewModel("critic")
)

func TestRoundRobin(t *testing.T) {
	rr := NewRoundRobin()
	s := State{Participants: []participant.Ref{writer, critic}}

	for round, want := range []participant.Ref{writer, critic, writer} {
		s.Round = round
		d, err := rr.Next(context.Background(), s)
		require.NoError(t, err)
		assert.Equal(t, ActionContinue, d.Action)
		assert.Equal(t, want, d.Next)
	}
	assert.Equal(t, "round_robin", rr.Info().ID)
}

func TestRoundRobin_Cycles(t *testing.T) {
	rr := NewRoundRobin(func(o *RoundRobinOptions) { o.Cycles = 1 })
	d, err := rr.Next(context.Background(), State{Participants: []participant.Ref{writer, critic}, Round: 2})
	require.NoError(t, err)
	assert.Equal(t, ActionStop, d.Action)

	d, err = rr.Next(context.Background(), State{})
	require.NoError(t, err)
	assert.Equal(t, ActionStop, d.Action)
}

func TestValidate(t *testing.T) {
	s := State{Participants: []participant.Ref{writer}}
	assert.NoError(t, Validate(Continue(writer), s))
	assert.NoError(t, Validate(Stop("done"), s))
	assert.ErrorIs(t, Validate(Continue(critic), s), ErrInvalidDecision)
	assert.ErrorIs(t, Validate(Decision{Action: "dance"}, s), ErrInvalidDecision)
}

func TestFunc(t *testing.T) {
	boom := errors.New("boom")
	f := NewFunc("f", "Func", func(context.Context, State) (Decision, error) { return Decision{}, boom })
	_, err := f.Next(context.Background(), State{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Info{ID: "f", Name: "Func"}, f.Info())
}

func TestParseReply(t *testing.T) {
	d, err := parseReply(`<think>critic should go</think>Sure: {"action":"continue","next":"model::critic","reason":"review"}`)
	require.NoError(t, err)
	assert.Equal(t, Continue(critic).Next, d.Next)
	assert.Equal(t, "review", d.Reason)

	d, err = parseReply(`{"action":"STOP","reason":"answered"}`)
	require.NoError(t, err)
	assert.Equal(t, ActionStop, d.Action)

	for _, bad := range []string{"no json here", `{"action":"maybe"}`, `{"action":"continue","next":""}`, `{"action":`} {
		_, err := parseReply(bad)
		assert.ErrorIs(t, err, ErrInvalidDecision, bad)
	}
}

func TestModelSupervisor(t *testing.T) {
	llm := model.NewScriptedModel("judge", model.Script{Chunks: []string{`{"action":"continue",`, `"next":"writer"}`}})
	sup := NewModelSupervisor(llm)

	d, err := sup.Next(context.Background(), State{
		Prompt:       "Write a poem",
		Participants: []participant.Ref{writer, critic},
		Names:        map[participant.Ref]string{writer: "Writer"},
		History:      []Record{{Round: 1, Participant: critic, Name: "Critic", Content: "go on"}},
		Round:        1,
	})
	require.NoError(t, err)
	assert.Equal(t, writer, d.Next)
	assert.Equal(t, "judge", sup.Info().Name)

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Instructions, "- writer (Writer)")
	assert.Contains(t, reqs[0].Instructions, "- model::critic (critic)")
	assert.Contains(t, model.LastUserText(reqs[0]), "Round 1, model::critic (Critic)")
}

func TestModelSupervisor_ModelError(t *testing.T) {
	boom := errors.New("boom")
	sup := NewModelSupervisor(model.NewScriptedModel("judge", model.Script{Err: boom}))
	_, err := sup.Next(context.Background(), State{Participants: []participant.Ref{writer}})
	assert.ErrorIs(t, err, boom)
}
