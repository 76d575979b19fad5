package review

import "context"

// Store persists review cases and their decisions. DequeueNext must be atomic:
// no two reviewers may ever receive the same case.
type Store interface {
	// Enqueue inserts a pending case into the priority queue.
	Enqueue(ctx context.Context, c Case) error

	// DequeueNext atomically pops the highest-priority pending case (FIFO on
	// ties by QueuedAt), marks it in_review for the reviewer, and returns it.
	// Returns sentinel.ErrNotFound when the queue is empty.
	DequeueNext(ctx context.Context, reviewerID string) (Case, error)

	// Get returns a case by id.
	Get(ctx context.Context, caseID string) (Case, error)

	// MarkDecided transitions the case to decided and stores the decision.
	MarkDecided(ctx context.Context, caseID string, d Decision) error

	// DecisionFor returns the recorded decision for a case, or
	// sentinel.ErrNotFound while the case is still open.
	DecisionFor(ctx context.Context, caseID string) (Decision, error)

	// ListPending returns pending and in-review cases ordered by priority,
	// exposing queue depth and case age to operational tooling.
	ListPending(ctx context.Context) ([]Case, error)
}
