package review

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sevasetu/pkg/platform/sentinel"
)

type ReviewStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func (s *ReviewStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func TestReviewStoreSuite(t *testing.T) {
	suite.Run(t, new(ReviewStoreSuite))
}

func (s *ReviewStoreSuite) newCase(id string, priority int, queuedAt time.Time) Case {
	return Case{
		ID:        id,
		SessionID: "session-" + id,
		Priority:  priority,
		Status:    StatusPending,
		QueuedAt:  queuedAt,
	}
}

// TestQueueOrdering verifies the priority queue contract: higher priority
// first, FIFO within equal priority.
func (s *ReviewStoreSuite) TestQueueOrdering() {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.Enqueue(s.ctx, s.newCase("low", 10, base)))
	s.Require().NoError(s.store.Enqueue(s.ctx, s.newCase("high-late", 30, base.Add(time.Minute))))
	s.Require().NoError(s.store.Enqueue(s.ctx, s.newCase("high-early", 30, base.Add(time.Second))))

	first, err := s.store.DequeueNext(s.ctx, "reviewer-1")
	s.Require().NoError(err)
	s.Equal("high-early", first.ID)

	second, err := s.store.DequeueNext(s.ctx, "reviewer-1")
	s.Require().NoError(err)
	s.Equal("high-late", second.ID)

	third, err := s.store.DequeueNext(s.ctx, "reviewer-1")
	s.Require().NoError(err)
	s.Equal("low", third.ID)

	_, err = s.store.DequeueNext(s.ctx, "reviewer-1")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

// TestDequeueAtomicity verifies no case is handed to two reviewers under
// concurrent dequeues.
func (s *ReviewStoreSuite) TestDequeueAtomicity() {
	base := time.Now()
	const total = 50
	for i := 0; i < total; i++ {
		c := s.newCase(fmt.Sprintf("case-%d", i), i, base.Add(time.Duration(i)*time.Second))
		s.Require().NoError(s.store.Enqueue(s.ctx, c))
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for r := 0; r < 10; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				c, err := s.store.DequeueNext(s.ctx, "reviewer")
				if err != nil {
					return
				}
				mu.Lock()
				seen[c.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Len(seen, total)
	for id, count := range seen {
		s.Equal(1, count, "case %s dequeued more than once", id)
	}
}

func (s *ReviewStoreSuite) TestLifecycle() {
	base := time.Now()

	s.Run("enqueue rejects duplicate ids", func() {
		s.Require().NoError(s.store.Enqueue(s.ctx, s.newCase("dup", 5, base)))
		s.Require().ErrorIs(s.store.Enqueue(s.ctx, s.newCase("dup", 5, base)), sentinel.ErrConflict)
	})

	s.Run("dequeue flips status and records reviewer", func() {
		c, err := s.store.DequeueNext(s.ctx, "reviewer-7")
		s.Require().NoError(err)
		s.Equal(StatusInReview, c.Status)
		s.Equal("reviewer-7", c.ReviewerID)
	})

	s.Run("decided cases are skipped by later dequeues", func() {
		s.Require().NoError(s.store.Enqueue(s.ctx, s.newCase("decided", 99, base)))
		s.Require().NoError(s.store.MarkDecided(s.ctx, "decided", Decision{Kind: DecisionApprove}))

		_, err := s.store.DequeueNext(s.ctx, "reviewer-7")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("get on unknown case returns ErrNotFound", func() {
		_, err := s.store.Get(s.ctx, "missing")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("mark decided on unknown case returns ErrNotFound", func() {
		s.Require().ErrorIs(s.store.MarkDecided(s.ctx, "missing", Decision{}), sentinel.ErrNotFound)
	})
}

func (s *ReviewStoreSuite) TestListPending() {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.Enqueue(s.ctx, s.newCase("low", 5, base)))
	s.Require().NoError(s.store.Enqueue(s.ctx, s.newCase("high", 40, base.Add(time.Second))))
	s.Require().NoError(s.store.Enqueue(s.ctx, s.newCase("gone", 99, base)))
	s.Require().NoError(s.store.MarkDecided(s.ctx, "gone", Decision{Kind: DecisionApprove}))

	pending, err := s.store.ListPending(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal("high", pending[0].ID)
	s.Equal("low", pending[1].ID)
}
