package audit

import (
	"context"
	"fmt"
	"time"

	"sevasetu/pkg/platform/sentinel"
)

// Store is an append-only sink. Implementations must never reorder or drop
// events silently.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySession(ctx context.Context, sessionID string) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and uses the
// store for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}

func (p *Publisher) List(ctx context.Context, sessionID string) ([]Event, error) {
	return p.store.ListBySession(ctx, sessionID)
}

// Worker consumes audit events from a channel and persists them. It keeps
// background processing off the session's critical path.
type Worker struct {
	store Store
	inbox <-chan Event
}

func NewWorker(store Store, inbox <-chan Event) *Worker {
	return &Worker{store: store, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
		}
	}
}

// ChannelStore adapts a worker inbox to the Store interface so emitting never
// blocks the session's critical path. A full inbox is reported as unavailable
// rather than dropped silently.
type ChannelStore struct {
	inbox chan<- Event
}

func NewChannelStore(inbox chan<- Event) *ChannelStore {
	return &ChannelStore{inbox: inbox}
}

func (s *ChannelStore) Append(_ context.Context, event Event) error {
	select {
	case s.inbox <- event:
		return nil
	default:
		return fmt.Errorf("audit inbox full: %w", sentinel.ErrUnavailable)
	}
}

func (s *ChannelStore) ListBySession(context.Context, string) ([]Event, error) {
	return nil, fmt.Errorf("channel audit store is write-only: %w", sentinel.ErrUnavailable)
}
