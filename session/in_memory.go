package session

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/chatmesh/core"
)

// ErrInvalidID is returned for an empty session id.
var ErrInvalidID = errors.New("invalid session id")

// InMemoryStore is a volatile SessionStore implementation storing
// sessions in a process local map. It is safe for concurrent access. Each
// returned session is cloned to prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Get returns a clone of an existing session or an empty one.
func (s *InMemoryStore) Get(_ context.Context, sessionID string) (*core.Session, error) {
	if sessionID == "" {
		return nil, ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess.Clone(), nil
	}
	return core.NewSession(sessionID), nil
}

// AppendMessage adds a message to an existing or newly created session.
func (s *InMemoryStore) AppendMessage(_ context.Context, sessionID string, m core.Message) error {
	if sessionID == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = core.NewSession(sessionID)
		s.sessions[sessionID] = sess
	}
	sess.AddMessage(m)
	return nil
}

// Delete removes a session. Deleting an unknown session is not an error.
func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
