package review

import (
	"time"

	"sevasetu/internal/eligibility"
	"sevasetu/internal/profile"
)

// Status tracks a case through its lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInReview Status = "in_review"
	StatusDecided  Status = "decided"
)

// DecisionKind is what the reviewer did with the AI determination.
type DecisionKind string

const (
	DecisionApprove DecisionKind = "approve"
	DecisionReject  DecisionKind = "reject"
	DecisionModify  DecisionKind = "modify"
)

// Threshold below which a result is routed to a human reviewer.
const ConfidenceThreshold = 70

// ManualEscalationBonus keeps explicitly escalated cases ahead of any
// confidence-gap case in the queue.
const ManualEscalationBonus = 50

// Case is a queued determination awaiting human adjudication. Profile and
// results are copies, not live references, so later session mutation cannot
// retroactively alter a queued case.
type Case struct {
	ID                string               `json:"id"`
	SessionID         string               `json:"session_id"`
	Profile           profile.Snapshot     `json:"profile"`
	Results           []eligibility.Result `json:"results"`
	Reasoning         []string             `json:"reasoning"`
	Priority          int                  `json:"priority"`
	Status            Status               `json:"status"`
	ManuallyEscalated bool                 `json:"manually_escalated"`
	EscalationReason  string               `json:"escalation_reason,omitempty"`
	ReviewerID        string               `json:"reviewer_id,omitempty"`
	QueuedAt          time.Time            `json:"queued_at"`
}

// Age exposes how long the case has waited so operational tooling can
// reprioritize; the core applies no review SLA itself.
func (c Case) Age(now time.Time) time.Duration {
	return now.Sub(c.QueuedAt)
}

// priorityFor derives queue priority from the confidence gap across results.
func priorityFor(results []eligibility.Result) int {
	minConfidence := 100
	for _, r := range results {
		if r.RequiresReview && r.Confidence < minConfidence {
			minConfidence = r.Confidence
		}
	}
	p := ConfidenceThreshold - minConfidence
	if p < 0 {
		return 0
	}
	return p
}

// Decision is a reviewer's verdict on a case. A modify decision, or any
// decision that contradicts the AI's eligible flag, must carry reasoning.
type Decision struct {
	CaseID          string               `json:"case_id"`
	ReviewerID      string               `json:"reviewer_id"`
	Kind            DecisionKind         `json:"kind"`
	ModifiedResults []eligibility.Result `json:"modified_results,omitempty"`
	Reasoning       string               `json:"reasoning"`
	DecidedAt       time.Time            `json:"decided_at"`
}

// overrides reports whether the decision changes the AI determination and
// therefore requires non-empty reasoning.
func (d Decision) overrides() bool {
	return d.Kind == DecisionModify || d.Kind == DecisionReject
}
