package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(TemplateData) (string, error) { return m.text, m.err }

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("You are {{.Name}} in {{.Mode}} mode.")
	assert.True(t, inst.IsStatic())

	got, err := inst.Resolve(TemplateData{Name: "Critic", Mode: "group"})
	require.NoError(t, err)
	assert.Equal(t, "You are Critic in group mode.", got)
}

func TestInstruction_Func(t *testing.T) {
	inst := NewInstructionFromFunc(func(d TemplateData) (string, error) { return "round " + d.Name, nil })
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(TemplateData{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, "round x", got)
}

func TestInstruction_ProviderError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewInstructionFromProvider(mockProvider{err: boom}).Resolve(TemplateData{})
	assert.ErrorIs(t, err, boom)
}

func TestInstruction_IsZero(t *testing.T) {
	assert.True(t, Instruction{}.IsZero())
	assert.False(t, NewInstructionFromText("x").IsZero())
}
