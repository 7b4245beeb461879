package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_AddMessageAndCopies(t *testing.T) {
	s := NewSession("s1")
	s.AddMessage(Message{ID: "1", Role: RoleUser, Content: "hi"})
	s.AddMessage(Message{ID: "2", Role: RoleAssistant, Participant: "model::a", Content: "hello"})

	all := s.GetMessages()
	require.Len(t, all, 2)
	all[0].Content = "changed"
	assert.Equal(t, "hi", s.GetMessages()[0].Content)
}

func TestSession_History(t *testing.T) {
	s := NewSession("s1")
	for _, id := range []string{"1", "2", "3"} {
		s.AddMessage(Message{ID: id, Role: RoleUser})
	}

	last := s.History(2)
	require.Len(t, last, 2)
	assert.Equal(t, "2", last[0].ID)
	assert.Equal(t, "3", last[1].ID)
	assert.Len(t, s.History(0), 3)
	assert.Len(t, s.History(10), 3)
}

func TestSession_Clone(t *testing.T) {
	s := NewSession("s1")
	s.Metadata["k"] = "v"
	s.AddMessage(Message{ID: "1"})

	clone := s.Clone()
	clone.AddMessage(Message{ID: "2"})
	clone.Metadata["k"] = "changed"

	assert.Len(t, s.GetMessages(), 1)
	assert.Equal(t, "v", s.Metadata["k"])
}
