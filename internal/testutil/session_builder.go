package testutil

import (
	"fmt"
	"time"

	"github.com/hupe1980/chatmesh/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").User("hi").Reply("model::a", "A", "hello").Build()
type SessionBuilder struct {
	id       string
	metadata map[string]string
	messages []core.Message
}

// NewSessionBuilder creates a new builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, metadata: map[string]string{}}
}

// Metadata sets a metadata key on the resulting session (chainable).
func (b *SessionBuilder) Metadata(key, val string) *SessionBuilder {
	b.metadata[key] = val
	return b
}

// User appends a user message (chainable).
func (b *SessionBuilder) User(text string) *SessionBuilder {
	return b.add(core.Message{Role: core.RoleUser, Content: text})
}

// Reply appends a participant message (chainable).
func (b *SessionBuilder) Reply(token, name, text string) *SessionBuilder {
	return b.add(core.Message{Role: core.RoleAssistant, Participant: token, Name: name, Content: text})
}

func (b *SessionBuilder) add(m core.Message) *SessionBuilder {
	m.ID = fmt.Sprintf("msg-%d", len(b.messages)+1)
	m.Created = time.Unix(int64(len(b.messages)), 0).UTC()
	b.messages = append(b.messages, m)
	return b
}

// Messages returns the messages added so far.
func (b *SessionBuilder) Messages() []core.Message {
	out := make([]core.Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Build returns a *core.Session with pre-populated metadata and messages.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)
	for k, v := range b.metadata {
		s.Metadata[k] = v
	}
	for _, m := range b.messages {
		s.AddMessage(m)
	}
	return s
}
