package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatmesh/participant"
)

func TestCallbackManager_StopsAtFirstError(t *testing.T) {
	cm := NewCallbackManager()
	var calls []string

	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeTurn, func(context.Context, *CallbackContext) error {
		calls = append(calls, "first")
		return errors.New("rejected")
	}))
	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeTurn, func(context.Context, *CallbackContext) error {
		calls = append(calls, "second")
		return nil
	}))

	err := cm.ExecuteCallbacks(context.Background(), CallbackBeforeTurn, &CallbackContext{})
	assert.EqualError(t, err, "rejected")
	assert.Equal(t, []string{"first"}, calls)

	assert.NoError(t, cm.ExecuteCallbacks(context.Background(), CallbackAfterTurn, &CallbackContext{}))
}

func TestAllowListCallback(t *testing.T) {
	cb, err := NewAllowListCallback("writer", "model::gpt")
	require.NoError(t, err)
	assert.Equal(t, CallbackBeforeTurn, cb.Type())

	assert.NoError(t, cb.Execute(context.Background(), &CallbackContext{Participants: []string{"writer", "model::gpt"}}))
	assert.Error(t, cb.Execute(context.Background(), &CallbackContext{Participants: []string{"model::other"}}))

	_, err = NewAllowListCallback("model::")
	assert.ErrorIs(t, err, participant.ErrInvalidParticipant)
}
