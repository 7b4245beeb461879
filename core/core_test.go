package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_Accessors(t *testing.T) {
	c := Content{Role: RoleAssistant, Parts: []Part{
		TextPart{Text: "hel"},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "lookup"}},
		TextPart{Text: "lo"},
		DataPart{Data: map[string]any{"url": "https://example.com"}},
		FunctionResponsePart{FunctionResponse: FunctionResponse{ID: "c1", Name: "lookup", Response: 42}},
	}}

	assert.Equal(t, "hello", c.Text())
	require.Len(t, c.FunctionCalls(), 1)
	assert.Equal(t, "lookup", c.FunctionCalls()[0].Name)
	require.Len(t, c.FunctionResponses(), 1)
	assert.Equal(t, 42, c.FunctionResponses()[0].Response)
	require.Len(t, c.Data(), 1)

	assert.Equal(t, "x", NewTextContent(RoleUser, "x").Text())
}

func TestRoundLimiter(t *testing.T) {
	rl := NewRoundLimiter(2)

	n, err := rl.Increment()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, rl.Exhausted())

	n, err = rl.Increment()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, rl.Exhausted())
	assert.Equal(t, 0, rl.Remaining())

	_, err = rl.Increment()
	assert.True(t, errors.Is(err, ErrRoundLimit))
	assert.Equal(t, 2, rl.Count())
}

func TestRoundLimiter_Unlimited(t *testing.T) {
	rl := NewRoundLimiter(0)
	for i := 0; i < 100; i++ {
		_, err := rl.Increment()
		require.NoError(t, err)
	}
	assert.False(t, rl.Exhausted())
	assert.Equal(t, -1, rl.Remaining())
	assert.Equal(t, 0, rl.Max())
}
