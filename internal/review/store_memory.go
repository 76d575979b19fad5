package review

import (
	"container/heap"
	"context"
	"fmt"
	"sync"

	"sevasetu/pkg/platform/sentinel"
)

// InMemoryStore keeps the queue as a binary heap under one mutex. The mutex is
// what makes DequeueNext atomic: pop and status flip happen in one critical
// section.
type InMemoryStore struct {
	mu        sync.Mutex
	queue     caseHeap
	cases     map[string]*Case
	decisions map[string]Decision
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		cases:     make(map[string]*Case),
		decisions: make(map[string]Decision),
	}
}

func (s *InMemoryStore) Enqueue(_ context.Context, c Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cases[c.ID]; exists {
		return fmt.Errorf("case %s already queued: %w", c.ID, sentinel.ErrConflict)
	}
	stored := c
	s.cases[c.ID] = &stored
	heap.Push(&s.queue, &stored)
	return nil
}

func (s *InMemoryStore) DequeueNext(_ context.Context, reviewerID string) (Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.queue.Len() > 0 {
		c := heap.Pop(&s.queue).(*Case)
		// Entries may have been decided (or re-escalated) since they were
		// pushed; skip anything no longer pending.
		if c.Status != StatusPending {
			continue
		}
		c.Status = StatusInReview
		c.ReviewerID = reviewerID
		return *c, nil
	}
	return Case{}, fmt.Errorf("review queue empty: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) Get(_ context.Context, caseID string) (Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[caseID]
	if !ok {
		return Case{}, fmt.Errorf("case %s: %w", caseID, sentinel.ErrNotFound)
	}
	return *c, nil
}

func (s *InMemoryStore) MarkDecided(_ context.Context, caseID string, d Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[caseID]
	if !ok {
		return fmt.Errorf("case %s: %w", caseID, sentinel.ErrNotFound)
	}
	c.Status = StatusDecided
	s.decisions[caseID] = d
	return nil
}

func (s *InMemoryStore) DecisionFor(_ context.Context, caseID string) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decisions[caseID]
	if !ok {
		return Decision{}, fmt.Errorf("no decision for case %s: %w", caseID, sentinel.ErrNotFound)
	}
	return d, nil
}

func (s *InMemoryStore) ListPending(_ context.Context) ([]Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Case
	for _, c := range s.cases {
		if c.Status != StatusDecided {
			out = append(out, *c)
		}
	}
	sortCases(out)
	return out, nil
}

func sortCases(cases []Case) {
	// Same ordering the heap uses, for a stable operational view.
	for i := 1; i < len(cases); i++ {
		for j := i; j > 0 && caseLess(cases[j], cases[j-1]); j-- {
			cases[j], cases[j-1] = cases[j-1], cases[j]
		}
	}
}

func caseLess(a, b Case) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.QueuedAt.Before(b.QueuedAt)
}

// caseHeap orders by priority descending, then QueuedAt ascending (FIFO).
type caseHeap []*Case

func (h caseHeap) Len() int           { return len(h) }
func (h caseHeap) Less(i, j int) bool { return caseLess(*h[i], *h[j]) }
func (h caseHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *caseHeap) Push(x any)        { *h = append(*h, x.(*Case)) }
func (h *caseHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}
