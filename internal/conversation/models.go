package conversation

import (
	"time"

	"sevasetu/internal/eligibility"
	"sevasetu/internal/profile"
	"sevasetu/internal/scheme"
)

// Phase is the conversation state machine's current position.
type Phase string

const (
	PhaseGreeting        Phase = "greeting"
	PhaseInfoCollection  Phase = "info_collection"
	PhaseConfirmation    Phase = "confirmation"
	PhaseEligibility     Phase = "eligibility_check"
	PhaseHumanReviewWait Phase = "human_review_wait"
	PhaseExplanation     Phase = "explanation"
	PhaseOutput          Phase = "output_generation"
	PhaseComplete        Phase = "complete"
	PhaseAbandoned       Phase = "abandoned"
)

// Terminal reports whether the machine permits further mutation.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseAbandoned
}

// DefaultMaxAttempts bounds how often one field is re-asked before it is
// skipped, which bounds the maximum number of turns per field.
const DefaultMaxAttempts = 3

// ExtractionConfidenceFloor is the minimum confidence at which an NLU field
// guess is accepted into the profile; below it the machine re-prompts.
const ExtractionConfidenceFloor = 80

// PendingQuestion is the single open question during info collection.
type PendingQuestion struct {
	Field       string `json:"field"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
}

// Turn is one utterance in the session history.
type Turn struct {
	Role string    `json:"role"` // "citizen" or "assistant"
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// FieldExtraction is a structured entity guess from the speech/NLU layer,
// with confidence 0-100. The core makes no assumption about audio.
type FieldExtraction struct {
	Field      string       `json:"field"`
	Value      scheme.Value `json:"value"`
	Confidence int          `json:"confidence"`
}

// Signal is an explicit non-utterance control event.
type Signal string

const (
	SignalNone    Signal = ""
	SignalConfirm Signal = "confirm"
	SignalDeny    Signal = "deny"
	SignalNext    Signal = "next"
)

// Input is one inbound event from the speech/text layer: free text plus
// optional structured extractions, or a control signal.
type Input struct {
	Text        string            `json:"text"`
	Extractions []FieldExtraction `json:"extractions,omitempty"`
	Signal      Signal            `json:"signal,omitempty"`
}

// Outcome is what Advance hands back to the explanation/output layer.
type Outcome struct {
	Phase        Phase                `json:"phase"`
	Prompt       string               `json:"prompt,omitempty"`
	PendingField string               `json:"pending_field,omitempty"`
	Clarify      bool                 `json:"clarify,omitempty"`
	Summary      string               `json:"summary,omitempty"`
	Results      []eligibility.Result `json:"results,omitempty"`
	CaseID       string               `json:"case_id,omitempty"`
	Saved        bool                 `json:"saved"`
	Done         bool                 `json:"done,omitempty"`
}

// State is the full persisted conversation state. It is mutated exclusively by
// the state machine, persisted on every phase transition, and never touched
// again once a terminal phase is reached (except secure deletion).
type State struct {
	SessionID          string               `json:"session_id"`
	UserID             string               `json:"user_id"`
	Language           string               `json:"language"`
	Phase              Phase                `json:"phase"`
	Profile            *profile.Profile     `json:"profile"`
	Pending            *PendingQuestion     `json:"pending,omitempty"`
	Plan               []string             `json:"plan"`
	Turns              []Turn               `json:"turns"`
	ComprehensionLevel int                  `json:"comprehension_level"`
	Confirmed          map[string]bool      `json:"confirmed"`
	SkippedFields      []string             `json:"skipped_fields,omitempty"`
	Results            []eligibility.Result `json:"results,omitempty"`
	CaseID             string               `json:"case_id,omitempty"`
	PendingRecovery    bool                 `json:"pending_recovery,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// Clone deep-copies the state so callers can read it without holding the
// session lock.
func (s *State) Clone() State {
	out := *s
	if s.Profile != nil {
		out.Profile = s.Profile.Clone()
	}
	if s.Pending != nil {
		pending := *s.Pending
		out.Pending = &pending
	}
	out.Plan = append([]string{}, s.Plan...)
	out.Turns = append([]Turn{}, s.Turns...)
	out.Confirmed = make(map[string]bool, len(s.Confirmed))
	for field, ok := range s.Confirmed {
		out.Confirmed[field] = ok
	}
	if s.SkippedFields != nil {
		out.SkippedFields = append([]string{}, s.SkippedFields...)
	}
	out.Results = cloneResults(s.Results)
	return out
}

func cloneResults(results []eligibility.Result) []eligibility.Result {
	if results == nil {
		return nil
	}
	out := append([]eligibility.Result{}, results...)
	for i := range out {
		out[i].Matched = append([]eligibility.CriterionMatch{}, results[i].Matched...)
		out[i].Unmatched = append([]eligibility.CriterionMatch{}, results[i].Unmatched...)
		out[i].Reasoning = append([]string{}, results[i].Reasoning...)
	}
	return out
}

func (s *State) skipped(field string) bool {
	for _, f := range s.SkippedFields {
		if f == field {
			return true
		}
	}
	return false
}

// nextUnanswered returns the first planned field that is neither populated nor
// skipped, or "" when collection is complete.
func (s *State) nextUnanswered() string {
	for _, field := range s.Plan {
		if !s.Profile.Has(field) && !s.skipped(field) {
			return field
		}
	}
	return ""
}
