package conversation

import "context"

// SessionStore is the persistence collaborator. Implementations may be
// unavailable; the service treats failures as retryable and never loses the
// in-memory state.
type SessionStore interface {
	Save(ctx context.Context, state State) error
	// Load returns sentinel.ErrNotFound for unknown sessions.
	Load(ctx context.Context, sessionID string) (State, error)
	// Delete is idempotent: deleting an already-deleted session is a no-op.
	Delete(ctx context.Context, sessionID string) error
}
