package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sevasetu/internal/audit"
	"sevasetu/internal/eligibility"
	"sevasetu/internal/platform/metrics"
	"sevasetu/internal/profile"
	"sevasetu/internal/review"
	"sevasetu/internal/scheme"
	"sevasetu/pkg/platform/sentinel"
)

const persistMaxRetries = 3

// Service orchestrates conversation sessions: it owns each session's state
// for the session lifetime, serializes concurrent utterances per session, and
// drives the eligibility engine and review gate.
type Service struct {
	schemes scheme.Store
	engine  *eligibility.Engine
	reviews *review.Service
	store   SessionStore
	auditor *audit.Publisher
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// sessionEntry pairs live state with its per-session lock. The lock gives the
// single-writer guarantee; it is only held inside one Advance call and never
// across the human-review suspension.
type sessionEntry struct {
	lock  sync.Mutex
	state *State
}

func NewService(
	schemes scheme.Store,
	engine *eligibility.Engine,
	reviews *review.Service,
	store SessionStore,
	auditor *audit.Publisher,
	logger *zap.Logger,
	m *metrics.Metrics,
) (*Service, error) {
	if schemes == nil {
		return nil, fmt.Errorf("scheme store is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("eligibility engine is required")
	}
	if reviews == nil {
		return nil, fmt.Errorf("review service is required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		schemes:  schemes,
		engine:   engine,
		reviews:  reviews,
		store:    store,
		auditor:  auditor,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		sessions: make(map[string]*sessionEntry),
	}, nil
}

// Start creates a session in the greeting phase. The question plan is derived
// from the active schemes so collection asks exactly what evaluation needs.
func (s *Service) Start(ctx context.Context, userID, language string) (State, error) {
	versions, err := s.schemes.ListActive(ctx)
	if err != nil {
		return State{}, fmt.Errorf("load active schemes: %w", err)
	}
	now := s.now()
	plan := buildPlan(profile.ExpectedFields, versions)
	state := &State{
		SessionID:          uuid.NewString(),
		UserID:             userID,
		Language:           language,
		Phase:              PhaseGreeting,
		Profile:            profile.NewWithExpected(plan),
		Plan:               plan,
		ComprehensionLevel: 3,
		Confirmed:          make(map[string]bool),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	s.mu.Lock()
	s.sessions[state.SessionID] = &sessionEntry{state: state}
	s.mu.Unlock()

	s.persist(ctx, state)
	s.audit(ctx, audit.Event{
		Type:      audit.EventSessionStarted,
		SessionID: state.SessionID,
		Payload:   map[string]string{"user_id": userID, "language": language},
	})
	if s.metrics != nil {
		s.metrics.SessionsStarted.Inc()
	}
	return state.Clone(), nil
}

// Advance feeds one inbound event through the state machine. Concurrent calls
// for the same session serialize on the per-session lock.
func (s *Service) Advance(ctx context.Context, sessionID string, input Input) (Outcome, error) {
	entry, err := s.entry(ctx, sessionID)
	if err != nil {
		return Outcome{}, err
	}
	entry.lock.Lock()
	defer entry.lock.Unlock()

	state := entry.state
	if state.Phase.Terminal() {
		return Outcome{}, fmt.Errorf("session %s is %s: %w", sessionID, state.Phase, sentinel.ErrInvalidState)
	}

	var outcome Outcome
	now := s.now()
	switch state.Phase {
	case PhaseGreeting:
		outcome = state.advanceGreeting(now)
	case PhaseInfoCollection:
		before := len(state.Profile.Fields)
		outcome = state.advanceInfoCollection(input, now)
		if len(state.Profile.Fields) > before {
			s.audit(ctx, audit.Event{
				Type:      audit.EventFieldRecorded,
				SessionID: sessionID,
				Payload:   map[string]string{"fields": strconv.Itoa(len(state.Profile.Fields))},
			})
		}
	case PhaseConfirmation:
		var confirmed bool
		outcome, confirmed = state.advanceConfirmation(input, now)
		if confirmed {
			outcome, err = s.runEligibility(ctx, state)
			if err != nil {
				return Outcome{}, err
			}
		}
	case PhaseHumanReviewWait:
		// Suspension point: the review service normally resumes the session
		// itself. The decision is durable on the case, so if that delivery was
		// missed the session picks it up here instead of stranding the citizen.
		if d, derr := s.reviews.DecisionFor(ctx, state.CaseID); derr == nil {
			s.foldDecision(state, d)
			outcome = Outcome{Phase: state.Phase, Results: state.Results}
		} else {
			outcome = Outcome{Phase: state.Phase, CaseID: state.CaseID, Prompt: "awaiting human review"}
		}
	case PhaseExplanation:
		state.Phase = PhaseOutput
		state.UpdatedAt = now
		outcome = Outcome{Phase: state.Phase, Results: state.Results}
	case PhaseOutput:
		state.Phase = PhaseComplete
		state.UpdatedAt = now
		outcome = Outcome{Phase: state.Phase, Results: state.Results, Done: true}
		if s.metrics != nil {
			s.metrics.SessionsCompleted.Inc()
		}
		s.audit(ctx, audit.Event{Type: audit.EventSessionCompleted, SessionID: sessionID})
	}

	outcome.Saved = s.persist(ctx, state)
	return outcome, nil
}

// runEligibility executes the full evaluation pass while the per-session lock
// is held. Evaluation itself is in-memory and non-blocking; only the scheme
// reads and review enqueue touch I/O.
func (s *Service) runEligibility(ctx context.Context, state *State) (Outcome, error) {
	started := s.now()
	versions, err := s.schemes.ListActive(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("load active schemes: %w", err)
	}
	for _, v := range versions {
		s.audit(ctx, audit.Event{
			Type:      audit.EventSchemeVersionRead,
			SessionID: state.SessionID,
			SchemeID:  v.SchemeID,
			Version:   v.Version,
		})
	}

	snap := state.Profile.Snapshot()
	results := s.engine.DetermineEligibility(snap, versions)
	for _, r := range results {
		s.audit(ctx, audit.Event{
			Type:      audit.EventEvaluationDone,
			SessionID: state.SessionID,
			SchemeID:  r.SchemeID,
			Version:   r.Version,
			Payload: map[string]string{
				"eligible":   strconv.FormatBool(r.Eligible),
				"confidence": strconv.Itoa(r.Confidence),
			},
		})
		if s.metrics != nil {
			s.metrics.Evaluations.Inc()
		}
	}
	if s.metrics != nil {
		s.metrics.EvaluationDuration.Observe(s.now().Sub(started).Seconds())
	}
	state.Results = results

	needsReview := false
	for _, r := range results {
		if review.NeedsReview(r) {
			needsReview = true
			break
		}
	}
	if !needsReview {
		state.Phase = PhaseExplanation
		state.UpdatedAt = s.now()
		return Outcome{Phase: state.Phase, Results: results}, nil
	}

	// The resume handler rides along so it is registered against the case
	// before any reviewer can see it.
	c, err := s.reviews.EnqueueForResults(ctx, state.SessionID, snap, results, s.resumeAfterReview)
	if err != nil {
		return Outcome{}, fmt.Errorf("queue review case: %w", err)
	}
	state.Phase = PhaseHumanReviewWait
	state.CaseID = c.ID
	state.UpdatedAt = s.now()
	s.audit(ctx, audit.Event{
		Type:      audit.EventReviewCaseCreated,
		SessionID: state.SessionID,
		Payload:   map[string]string{"case_id": c.ID, "priority": strconv.Itoa(c.Priority)},
	})
	if s.metrics != nil {
		s.metrics.ReviewCasesQueued.Inc()
	}
	return Outcome{Phase: state.Phase, CaseID: c.ID, Results: results}, nil
}

// resumeAfterReview is the session-keyed resume handler the review service
// invokes once a decision is recorded. It re-acquires the session lock, folds
// the decision in, and moves the machine to explanation.
func (s *Service) resumeAfterReview(ctx context.Context, d Decision) error {
	return s.applyDecision(ctx, d)
}

// Decision aliases review.Decision for the resume path.
type Decision = review.Decision

func (s *Service) applyDecision(ctx context.Context, d Decision) error {
	c, err := s.reviews.Case(ctx, d.CaseID)
	if err != nil {
		return err
	}
	entry, err := s.entry(ctx, c.SessionID)
	if err != nil {
		return err
	}
	entry.lock.Lock()
	defer entry.lock.Unlock()

	state := entry.state
	if state.Phase != PhaseHumanReviewWait || state.CaseID != d.CaseID {
		return fmt.Errorf("session %s not waiting on case %s: %w", c.SessionID, d.CaseID, sentinel.ErrInvalidState)
	}

	s.foldDecision(state, d)
	s.persist(ctx, state)
	return nil
}

// foldDecision applies a recorded verdict to a suspended session and moves it
// to explanation. The caller holds the session lock.
func (s *Service) foldDecision(state *State, d Decision) {
	switch d.Kind {
	case review.DecisionModify:
		state.Results = cloneResults(d.ModifiedResults)
	case review.DecisionReject:
		// Reviewer rejected the AI determination outright: flip every flagged
		// result to ineligible and carry the reviewer's reasoning in the trace.
		for i := range state.Results {
			if state.Results[i].RequiresReview || review.NeedsReview(state.Results[i]) {
				state.Results[i].Eligible = false
				state.Results[i].Confidence = 100
				state.Results[i].Reasoning = append(state.Results[i].Reasoning,
					fmt.Sprintf("reviewer override: %s", d.Reasoning))
			}
		}
	}

	state.Phase = PhaseExplanation
	state.UpdatedAt = s.now()
	s.reviews.UnregisterWaiter(d.CaseID)
	if s.metrics != nil {
		s.metrics.ReviewDecisions.Inc()
	}
}

// Get returns a deep copy of the current session state, safe to read while
// the session keeps advancing.
func (s *Service) Get(ctx context.Context, sessionID string) (State, error) {
	entry, err := s.entry(ctx, sessionID)
	if err != nil {
		return State{}, err
	}
	entry.lock.Lock()
	defer entry.lock.Unlock()
	return entry.state.Clone(), nil
}

// EscalateSession queues a manual review case for a session. The profile
// snapshot and result copies are taken under the session lock so a concurrent
// Advance cannot race them.
func (s *Service) EscalateSession(ctx context.Context, sessionID, reason string) (review.Case, error) {
	entry, err := s.entry(ctx, sessionID)
	if err != nil {
		return review.Case{}, err
	}
	entry.lock.Lock()
	defer entry.lock.Unlock()

	state := entry.state
	return s.reviews.Escalate(ctx, sessionID, reason, state.Profile.Snapshot(), cloneResults(state.Results))
}

// Abandon finalizes a disconnected session. It must never leave the session
// locked, and it drops any registered review waiter.
func (s *Service) Abandon(ctx context.Context, sessionID string) error {
	entry, err := s.entry(ctx, sessionID)
	if err != nil {
		return err
	}
	entry.lock.Lock()
	defer entry.lock.Unlock()

	state := entry.state
	if state.Phase == PhaseAbandoned {
		return nil
	}
	state.Phase = PhaseAbandoned
	state.UpdatedAt = s.now()
	if state.CaseID != "" {
		s.reviews.UnregisterWaiter(state.CaseID)
	}
	s.persist(ctx, state)
	s.audit(ctx, audit.Event{Type: audit.EventSessionAbandoned, SessionID: sessionID})
	if s.metrics != nil {
		s.metrics.SessionsAbandoned.Inc()
	}
	return nil
}

// DeleteSessionData removes all session state. Idempotent: repeated calls on
// an already-deleted session are a no-op.
func (s *Service) DeleteSessionData(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	entry, known := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	err := s.store.Delete(ctx, sessionID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return fmt.Errorf("delete session data: %w", err)
	}
	if known {
		entry.lock.Lock()
		if entry.state.CaseID != "" {
			s.reviews.UnregisterWaiter(entry.state.CaseID)
		}
		entry.lock.Unlock()
	}
	if known || err == nil {
		s.audit(ctx, audit.Event{Type: audit.EventSessionDeleted, SessionID: sessionID})
	}
	return nil
}

// entry returns the live session, restoring it from the store when this
// process has no copy (offline continuity after a disconnect or restart).
func (s *Service) entry(ctx context.Context, sessionID string) (*sessionEntry, error) {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if ok {
		return entry, nil
	}

	state, err := s.restore(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another goroutine may have restored it while we loaded.
	if existing, ok := s.sessions[sessionID]; ok {
		return existing, nil
	}
	entry = &sessionEntry{state: &state}
	s.sessions[sessionID] = entry
	if state.Phase == PhaseHumanReviewWait && state.CaseID != "" {
		s.reviews.RegisterWaiter(state.CaseID, s.resumeAfterReview)
	}
	return entry, nil
}

func (s *Service) restore(ctx context.Context, sessionID string) (State, error) {
	var state State
	op := func() error {
		var err error
		state, err = s.store.Load(ctx, sessionID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), persistMaxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return State{}, err
	}
	s.audit(ctx, audit.Event{Type: audit.EventSessionRestored, SessionID: sessionID})
	return state, nil
}

// persist saves with bounded exponential backoff. On exhaustion the state is
// kept in memory and flagged pending-recovery instead of being lost; the next
// successful persist clears the flag.
func (s *Service) persist(ctx context.Context, state *State) bool {
	op := func() error {
		return s.store.Save(ctx, *state)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), persistMaxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		state.PendingRecovery = true
		if s.metrics != nil {
			s.metrics.PersistFailures.Inc()
		}
		s.logger.Warn("session persistence exhausted retries; state kept in memory",
			zap.String("session_id", state.SessionID),
			zap.Error(err))
		return false
	}
	state.PendingRecovery = false
	return true
}

func (s *Service) audit(ctx context.Context, event audit.Event) {
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.Error("audit emit failed",
			zap.String("session_id", event.SessionID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
}
