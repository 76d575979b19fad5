package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sevasetu/pkg/platform/sentinel"
)

const sessionKeyPrefix = "sevasetu:session:"

// RedisSessionStore persists conversation state as JSON under a per-session
// key with a retention TTL, so abandoned sessions age out even if the
// retention sweep never runs.
type RedisSessionStore struct {
	client    redis.UniversalClient
	retention time.Duration
}

func NewRedisSessionStore(client redis.UniversalClient, retention time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, retention: retention}
}

func (s *RedisSessionStore) Save(ctx context.Context, state State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", state.SessionID, err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+state.SessionID, raw, s.retention).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", state.SessionID, errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}

func (s *RedisSessionStore) Load(ctx context.Context, sessionID string) (State, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	if err != nil {
		return State{}, fmt.Errorf("load session %s: %w", sessionID, errors.Join(sentinel.ErrUnavailable, err))
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, fmt.Errorf("unmarshal session %s: %w", sessionID, err)
	}
	return state, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}
