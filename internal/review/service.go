package review

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sevasetu/internal/audit"
	"sevasetu/internal/eligibility"
	"sevasetu/internal/profile"
	"sevasetu/pkg/platform/sentinel"
)

// NeedsReview is the stateless gate decision.
func NeedsReview(r eligibility.Result) bool {
	return r.Confidence < ConfidenceThreshold || r.RequiresReview
}

// ResumeFunc is invoked after a decision is recorded so a suspended session
// can continue. Delivery is a message to a session-keyed handler, never a
// blocked thread.
type ResumeFunc func(ctx context.Context, d Decision) error

// Service routes low-confidence or escalated determinations to reviewers and
// folds their decisions back into waiting sessions.
type Service struct {
	store   Store
	auditor *audit.Publisher
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	waiters map[string]ResumeFunc // caseID -> resume handler
}

func NewService(store Store, auditor *audit.Publisher, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("review store is required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		auditor: auditor,
		logger:  logger,
		now:     time.Now,
		waiters: make(map[string]ResumeFunc),
	}, nil
}

// Case returns a queued case by id.
func (s *Service) Case(ctx context.Context, caseID string) (Case, error) {
	return s.store.Get(ctx, caseID)
}

// DecisionFor returns the recorded decision for a case, or ErrNotFound while
// the case is still open. Sessions poll this when resume delivery was missed.
func (s *Service) DecisionFor(ctx context.Context, caseID string) (Decision, error) {
	return s.store.DecisionFor(ctx, caseID)
}

// EnqueueForResults creates exactly one case covering every flagged result of
// an evaluation pass. Results below the threshold are marked RequiresReview on
// the stored copies so the case is self-describing.
//
// When resume is non-nil it is registered against the new case BEFORE the case
// becomes visible in the store, so no decision can land in the gap between
// enqueue and registration.
func (s *Service) EnqueueForResults(ctx context.Context, sessionID string, snap profile.Snapshot, results []eligibility.Result, resume ResumeFunc) (Case, error) {
	flagged := false
	copied := append([]eligibility.Result{}, results...)
	var reasoning []string
	for i := range copied {
		if NeedsReview(copied[i]) {
			copied[i].RequiresReview = true
			if copied[i].ReviewReason == "" {
				copied[i].ReviewReason = "low_confidence"
			}
			flagged = true
		}
		reasoning = append(reasoning, copied[i].Reasoning...)
	}
	if !flagged {
		return Case{}, fmt.Errorf("%w: no result requires review", sentinel.ErrInvalidState)
	}

	c := Case{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Profile:   snap,
		Results:   copied,
		Reasoning: reasoning,
		Priority:  priorityFor(copied),
		Status:    StatusPending,
		QueuedAt:  s.now(),
	}
	if resume != nil {
		s.RegisterWaiter(c.ID, resume)
	}
	if err := s.store.Enqueue(ctx, c); err != nil {
		s.UnregisterWaiter(c.ID)
		return Case{}, fmt.Errorf("enqueue review case: %w", err)
	}
	s.logger.Info("review case queued",
		zap.String("case_id", c.ID),
		zap.String("session_id", sessionID),
		zap.Int("priority", c.Priority))
	return c, nil
}

// Escalate creates a case unconditionally, regardless of confidence.
func (s *Service) Escalate(ctx context.Context, sessionID, reason string, snap profile.Snapshot, results []eligibility.Result) (Case, error) {
	if reason == "" {
		return Case{}, fmt.Errorf("%w: escalation reason is required", sentinel.ErrValidation)
	}
	c := Case{
		ID:                uuid.NewString(),
		SessionID:         sessionID,
		Profile:           snap,
		Results:           append([]eligibility.Result{}, results...),
		Priority:          priorityFor(results) + ManualEscalationBonus,
		Status:            StatusPending,
		ManuallyEscalated: true,
		EscalationReason:  reason,
		QueuedAt:          s.now(),
	}
	for _, r := range results {
		c.Reasoning = append(c.Reasoning, r.Reasoning...)
	}
	if err := s.store.Enqueue(ctx, c); err != nil {
		return Case{}, fmt.Errorf("enqueue escalated case: %w", err)
	}
	s.logger.Info("case escalated manually",
		zap.String("case_id", c.ID),
		zap.String("session_id", sessionID),
		zap.String("reason", reason))
	return c, nil
}

// DequeueNext hands the next case to a reviewer; the store guarantees no two
// reviewers receive the same case.
func (s *Service) DequeueNext(ctx context.Context, reviewerID string) (Case, error) {
	if reviewerID == "" {
		return Case{}, fmt.Errorf("%w: reviewer id is required", sentinel.ErrValidation)
	}
	return s.store.DequeueNext(ctx, reviewerID)
}

// SubmitDecision validates and records a reviewer's verdict, then signals the
// waiting session (if any) to resume.
func (s *Service) SubmitDecision(ctx context.Context, caseID string, d Decision) error {
	c, err := s.store.Get(ctx, caseID)
	if err != nil {
		return err
	}
	if c.Status != StatusPending && c.Status != StatusInReview {
		return fmt.Errorf("case %s is %s: %w", caseID, c.Status, sentinel.ErrInvalidState)
	}
	switch d.Kind {
	case DecisionApprove, DecisionReject, DecisionModify:
	default:
		return fmt.Errorf("%w: unknown decision kind %q", sentinel.ErrValidation, d.Kind)
	}
	if d.overrides() && d.Reasoning == "" {
		return fmt.Errorf("%w: overriding decision requires reasoning", sentinel.ErrValidation)
	}
	if d.Kind == DecisionModify && len(d.ModifiedResults) == 0 {
		return fmt.Errorf("%w: modify decision requires modified results", sentinel.ErrValidation)
	}

	d.CaseID = caseID
	if d.DecidedAt.IsZero() {
		d.DecidedAt = s.now()
	}
	if err := s.store.MarkDecided(ctx, caseID, d); err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	s.logger.Info("review decision recorded",
		zap.String("case_id", caseID),
		zap.String("reviewer_id", d.ReviewerID),
		zap.String("kind", string(d.Kind)))
	if err := s.auditor.Emit(ctx, audit.Event{
		Type:      audit.EventReviewDecided,
		SessionID: c.SessionID,
		Payload: map[string]string{
			"case_id":  caseID,
			"kind":     string(d.Kind),
			"reviewer": d.ReviewerID,
		},
	}); err != nil {
		s.logger.Error("audit emit failed", zap.String("case_id", caseID), zap.Error(err))
	}

	s.notify(ctx, d)
	return nil
}

// RegisterWaiter subscribes a suspended session for resume delivery on one
// specific case. Keying by case id keeps decisions on unrelated cases for the
// same session (a later manual escalation, say) from consuming the waiter.
// A previous waiter for the case, if any, is replaced.
func (s *Service) RegisterWaiter(caseID string, fn ResumeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiters[caseID] = fn
}

// UnregisterWaiter drops a case's resume handler, e.g. on abandon.
func (s *Service) UnregisterWaiter(caseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waiters, caseID)
}

func (s *Service) notify(ctx context.Context, d Decision) {
	s.mu.Lock()
	fn, ok := s.waiters[d.CaseID]
	if ok {
		delete(s.waiters, d.CaseID)
	}
	s.mu.Unlock()
	if !ok {
		// No session is suspended on this case; the decision stays durable on
		// the case record either way.
		return
	}
	if err := fn(ctx, d); err != nil {
		// Put the waiter back so the session is not stranded: a later
		// registration (session restore) or retry can still deliver.
		s.RegisterWaiter(d.CaseID, fn)
		s.logger.Error("session resume failed",
			zap.String("case_id", d.CaseID),
			zap.Error(err))
	}
}

// PendingCases exposes the queue (with ages derivable from QueuedAt) for
// operational reprioritization.
func (s *Service) PendingCases(ctx context.Context) ([]Case, error) {
	return s.store.ListPending(ctx)
}
