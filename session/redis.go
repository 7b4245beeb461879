package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/chatmesh/core"
)

const (
	defaultTTL    = 24 * time.Hour
	defaultPrefix = "chatmesh"
	createdField  = "created"
)

// RedisStore persists sessions in Redis. Messages are JSON documents appended
// to a list; the session's creation time lives in a companion hash. Both keys
// share the configured TTL, refreshed on every append.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets how long an idle session is kept. Zero disables expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// WithPrefix sets the key prefix. Default is "chatmesh".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// NewRedisStore creates a Redis-backed session store.
//
//	store := session.NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    session.WithTTL(time.Hour),
//	)
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	store := &RedisStore{client: client, ttl: defaultTTL, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Get loads the session history. A session without stored messages is
// returned empty.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*core.Session, error) {
	if sessionID == "" {
		return nil, ErrInvalidID
	}

	pipe := s.client.Pipeline()
	listCmd := pipe.LRange(ctx, s.messagesKey(sessionID), 0, -1)
	createdCmd := pipe.HGet(ctx, s.metaKey(sessionID), createdField)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis pipeline failed: %w", err)
	}

	sess := core.NewSession(sessionID)
	if created, err := createdCmd.Result(); err == nil {
		if ts, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
			sess.Created = ts
		}
	}

	for i, raw := range listCmd.Val() {
		var m core.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message %d: %w", i, err)
		}
		sess.Messages = append(sess.Messages, m)
		if m.Created.After(sess.Updated) {
			sess.Updated = m.Created
		}
	}

	return sess, nil
}

// AppendMessage pushes m onto the session's list and refreshes the TTL.
func (s *RedisStore) AppendMessage(ctx context.Context, sessionID string, m core.Message) error {
	if sessionID == "" {
		return ErrInvalidID
	}
	if m.Created.IsZero() {
		m.Created = time.Now()
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	msgKey, metaKey := s.messagesKey(sessionID), s.metaKey(sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, msgKey, data)
	pipe.HSetNX(ctx, metaKey, createdField, m.Created.UTC().Format(time.RFC3339Nano))
	if s.ttl > 0 {
		pipe.Expire(ctx, msgKey, s.ttl)
		pipe.Expire(ctx, metaKey, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// Delete removes every key belonging to the session.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidID
	}
	if err := s.client.Del(ctx, s.messagesKey(sessionID), s.metaKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func (s *RedisStore) metaKey(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}

func (s *RedisStore) messagesKey(id string) string {
	return fmt.Sprintf("%s:session:%s:messages", s.prefix, id)
}
