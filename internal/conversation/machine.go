package conversation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"sevasetu/internal/scheme"
)

// machine.go holds the pure transition logic: no I/O, no locking. The service
// wraps these with persistence, auditing, and the eligibility/review calls.

// buildPlan derives the ordered question plan from what the engine will need:
// the canonical expected fields first, then any extra fields the active scheme
// versions' criteria reference.
func buildPlan(base []string, versions []scheme.SchemeVersion) []string {
	plan := append([]string{}, base...)
	seen := make(map[string]struct{}, len(plan))
	for _, f := range plan {
		seen[f] = struct{}{}
	}
	for _, v := range versions {
		for _, f := range v.FieldNames() {
			if _, ok := seen[f]; !ok {
				seen[f] = struct{}{}
				plan = append(plan, f)
			}
		}
	}
	return plan
}

// advanceGreeting moves to info collection and opens the first question.
func (s *State) advanceGreeting(now time.Time) Outcome {
	s.Phase = PhaseInfoCollection
	field := s.nextUnanswered()
	s.Pending = &PendingQuestion{Field: field, MaxAttempts: DefaultMaxAttempts}
	s.UpdatedAt = now
	return Outcome{
		Phase:        s.Phase,
		PendingField: field,
		Prompt:       promptFor(field),
	}
}

// advanceInfoCollection consumes one utterance. Extractions at or above the
// confidence floor fill the profile; anything else re-prompts the same field
// until max attempts, after which the field is skipped so one stubborn field
// can never block the session.
func (s *State) advanceInfoCollection(input Input, now time.Time) Outcome {
	s.UpdatedAt = now
	if input.Text != "" {
		s.Turns = append(s.Turns, Turn{Role: "citizen", Text: input.Text, At: now})
	}

	accepted := false
	for _, ex := range input.Extractions {
		if ex.Confidence < ExtractionConfidenceFloor {
			continue
		}
		if !s.planned(ex.Field) {
			continue
		}
		s.Profile.Set(ex.Field, ex.Value, ex.Confidence)
		if s.Pending != nil && ex.Field == s.Pending.Field {
			accepted = true
		}
	}

	if accepted {
		s.raiseComprehension()
	} else if s.Pending != nil && s.Pending.Field != "" {
		s.Pending.Attempts++
		s.lowerComprehension()
		if s.Pending.Attempts < s.Pending.MaxAttempts {
			return Outcome{
				Phase:        s.Phase,
				PendingField: s.Pending.Field,
				Clarify:      true,
				Prompt:       clarifyPromptFor(s.Pending.Field, s.ComprehensionLevel),
			}
		}
		// Max attempts exhausted: record as uncertain-missing and move on.
		// The field stays absent so its certainty is 0 by the profile
		// invariant, and the engine will report it unmatched.
		s.SkippedFields = append(s.SkippedFields, s.Pending.Field)
	}

	next := s.nextUnanswered()
	if next == "" {
		s.Pending = nil
		s.Phase = PhaseConfirmation
		return Outcome{
			Phase:   s.Phase,
			Summary: s.SummarizeForConfirmation(),
			Prompt:  "please confirm the collected details",
		}
	}
	s.Pending = &PendingQuestion{Field: next, MaxAttempts: DefaultMaxAttempts}
	return Outcome{
		Phase:        s.Phase,
		PendingField: next,
		Prompt:       promptFor(next),
	}
}

// advanceConfirmation handles the citizen's confirm/deny of the summary.
// Confirm marks every populated field confirmed and hands over to the
// eligibility check; deny reopens collection with attempt counters reset.
func (s *State) advanceConfirmation(input Input, now time.Time) (Outcome, bool) {
	s.UpdatedAt = now
	if input.Signal == SignalDeny {
		s.Phase = PhaseInfoCollection
		s.Confirmed = make(map[string]bool)
		s.SkippedFields = nil
		field := s.nextUnanswered()
		if field == "" {
			// Everything is populated; reopen from the first planned field so
			// the citizen can restate whichever value was wrong.
			field = s.Plan[0]
			s.Profile.Delete(field)
		}
		s.Pending = &PendingQuestion{Field: field, MaxAttempts: DefaultMaxAttempts}
		return Outcome{Phase: s.Phase, PendingField: field, Prompt: promptFor(field)}, false
	}
	if input.Signal != SignalConfirm {
		return Outcome{
			Phase:   s.Phase,
			Summary: s.SummarizeForConfirmation(),
			Clarify: true,
			Prompt:  "please confirm or deny the collected details",
		}, false
	}
	for _, field := range s.Profile.FieldNames() {
		s.Confirmed[field] = true
	}
	s.Phase = PhaseEligibility
	return Outcome{Phase: s.Phase}, true
}

// SummarizeForConfirmation renders collected fields deterministically (sorted
// by field name) so the same state always yields the same summary text.
func (s *State) SummarizeForConfirmation() string {
	var b strings.Builder
	for _, field := range s.Profile.FieldNames() {
		value, certainty, _ := s.Profile.Get(field)
		fmt.Fprintf(&b, "%s: %s (certainty %d)\n", field, value.String(), certainty)
	}
	if len(s.SkippedFields) > 0 {
		skipped := append([]string{}, s.SkippedFields...)
		sort.Strings(skipped)
		fmt.Fprintf(&b, "unanswered: %s\n", strings.Join(skipped, ", "))
	}
	return b.String()
}

func (s *State) planned(field string) bool {
	for _, f := range s.Plan {
		if f == field {
			return true
		}
	}
	return false
}

// Comprehension level 1-5 adapts prompt complexity: clean extractions raise
// it, re-asks lower it.
func (s *State) raiseComprehension() {
	if s.ComprehensionLevel < 5 {
		s.ComprehensionLevel++
	}
}

func (s *State) lowerComprehension() {
	if s.ComprehensionLevel > 1 {
		s.ComprehensionLevel--
	}
}

// promptFor returns a language-neutral prompt key; actual wording is the
// explanation layer's job.
func promptFor(field string) string {
	return "ask:" + field
}

func clarifyPromptFor(field string, level int) string {
	return fmt.Sprintf("clarify:%s:level%d", field, level)
}
