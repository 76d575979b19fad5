package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"sevasetu/pkg/platform/sentinel"
)

// InMemorySessionStore round-trips states through JSON so it behaves exactly
// like the redis store (including what does and does not survive
// serialization), which keeps tests honest.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string][]byte)}
}

func (s *InMemorySessionStore) Save(_ context.Context, state State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", state.SessionID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.SessionID] = raw
	return nil
}

func (s *InMemorySessionStore) Load(_ context.Context, sessionID string) (State, error) {
	s.mu.RLock()
	raw, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return State{}, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, fmt.Errorf("unmarshal session %s: %w", sessionID, err)
	}
	return state, nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
