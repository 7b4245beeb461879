package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSessionNotFound is returned by stores that do not create sessions lazily.
var ErrSessionNotFound = errors.New("session not found")

// Message is one persisted conversation entry. Participant holds the
// participant token of the speaker and is empty for user messages.
type Message struct {
	ID          string    `json:"id"`
	TurnID      string    `json:"turn_id,omitempty"`
	Participant string    `json:"participant,omitempty"`
	Name        string    `json:"name,omitempty"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	Created     time.Time `json:"created"`
}

// Session is a conversational container with an ordered message history.
// It is safe for concurrent access.
//
// Contract:
//   - AddMessage updates the Updated timestamp
//   - Messages and History return copies
//   - Clone performs deep copies of maps/slices for safe divergence.
type Session struct {
	ID       string            `json:"id"`
	Messages []Message         `json:"messages"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata"`
	mu       sync.RWMutex
}

// NewSession creates a new session with the given ID.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{ID: id, Messages: []Message{}, Created: now, Updated: now, Metadata: map[string]string{}}
}

// AddMessage appends a message to the history.
func (s *Session) AddMessage(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, m)
	s.Updated = time.Now()
}

// GetMessages returns a copy of the full history.
func (s *Session) GetMessages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// History returns at most the last limit messages. A limit <= 0 returns all.
func (s *Session) History(limit int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if limit > 0 && len(s.Messages) > limit {
		start = len(s.Messages) - limit
	}
	out := make([]Message, len(s.Messages)-start)
	copy(out, s.Messages[start:])
	return out
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{ID: s.ID, Messages: make([]Message, len(s.Messages)), Created: s.Created, Updated: s.Updated, Metadata: make(map[string]string, len(s.Metadata))}
	copy(clone.Messages, s.Messages)
	for k, v := range s.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}

// SessionStore persists sessions and their message history.
type SessionStore interface {
	// Get returns the session, creating an empty one if it does not exist.
	Get(ctx context.Context, id string) (*Session, error)
	AppendMessage(ctx context.Context, sessionID string, m Message) error
	Delete(ctx context.Context, id string) error
}
