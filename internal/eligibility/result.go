package eligibility

import "sevasetu/internal/scheme"

// CriterionMatch records how one criterion evaluated against the profile:
// the criterion itself, the profile value used (zero Value when the field was
// absent), whether it matched, and the certainty of the value at evaluation
// time. Absent fields always carry certainty 0.
type CriterionMatch struct {
	Criterion    scheme.Criterion `json:"criterion"`
	ProfileValue scheme.Value     `json:"profile_value"`
	FieldPresent bool             `json:"field_present"`
	Matched      bool             `json:"matched"`
	Certainty    int              `json:"certainty"`
}

// Result is produced once per (profile snapshot, scheme version) pair and is
// immutable thereafter. It may be superseded by an explicit review decision,
// never mutated in place.
type Result struct {
	SchemeID   string           `json:"scheme_id"`
	Version    int              `json:"version"`
	Eligible   bool             `json:"eligible"`
	Confidence int              `json:"confidence"`
	Matched    []CriterionMatch `json:"matched"`
	Unmatched  []CriterionMatch `json:"unmatched"`

	// RequiresReview is set by the gate threshold or by rule-evaluation
	// anomalies (malformed versions tagged ambiguous_rules).
	RequiresReview bool   `json:"requires_review"`
	ReviewReason   string `json:"review_reason,omitempty"`

	// Reasoning holds one line per evaluated rule, sufficient to reconstruct
	// the decision without re-running the engine.
	Reasoning []string `json:"reasoning"`
}

// MissingFields lists unmatched criteria whose profile field was absent.
func (r Result) MissingFields() []string {
	var fields []string
	for _, m := range r.Unmatched {
		if !m.FieldPresent {
			fields = append(fields, m.Criterion.Field)
		}
	}
	return fields
}
