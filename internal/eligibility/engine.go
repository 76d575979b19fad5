// Package eligibility is the pure evaluation core. Evaluate carries no hidden
// state: identical (snapshot, version) inputs always produce field-for-field
// identical results, with a fixed round-half-up rule so confidence never
// drifts between runs.
package eligibility

import (
	"fmt"
	"math"
	"sort"

	"sevasetu/internal/profile"
	"sevasetu/internal/scheme"
)

// Confidence blend weights for the eligible branch: per-criterion certainty
// dominates, profile data quality tempers it.
const (
	weightCertainty    = 0.7
	weightCompleteness = 0.2
	weightOverall      = 0.1

	// missingFieldPenalty applies per absent field when ineligibility is due
	// purely to missing data; see confidence policy note on Evaluate.
	missingFieldPenalty = 10
)

// Engine evaluates profile snapshots against scheme versions. The goal is to
// keep the rules centralized and testable.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate runs exclusions first, then criteria.
//
// Confidence policy for ineligible results: a mismatch on a field the citizen
// actually provided is a definite negative (confidence 100). When every
// unmatched criterion is missing data, the determination is genuinely
// uncertain, so confidence falls back to the eligible-branch blend computed
// over matched criteria minus a per-missing-field penalty. Low-quality
// negatives therefore stay below the review threshold and reach a human.
func (e *Engine) Evaluate(snap profile.Snapshot, version scheme.SchemeVersion) Result {
	result := Result{
		SchemeID:  version.SchemeID,
		Version:   version.Version,
		Reasoning: []string{},
		Matched:   []CriterionMatch{},
		Unmatched: []CriterionMatch{},
	}

	if len(version.Criteria) == 0 {
		// A version with no criteria cannot have passed ingest validation, so
		// an evaluation against one means version tracking was bypassed or the
		// store is corrupt. Route to a human instead of guessing.
		result.RequiresReview = true
		result.ReviewReason = "ambiguous_rules"
		result.Reasoning = append(result.Reasoning,
			fmt.Sprintf("scheme %s v%d has no criteria; flagged for review", version.SchemeID, version.Version))
		return result
	}

	// Exclusions override everything: first satisfied rule wins and is the
	// only rule reported.
	for _, excl := range version.Exclusions {
		value, _, present := snap.Get(excl.Field)
		if present && excl.Operator.Apply(value, excl.Value) {
			result.Eligible = false
			result.Confidence = 100
			result.Reasoning = append(result.Reasoning, fmt.Sprintf("excluded: %s", excl.Reason))
			return result
		}
	}

	for _, criterion := range version.Criteria {
		value, certainty, present := snap.Get(criterion.Field)
		match := CriterionMatch{
			Criterion:    criterion,
			ProfileValue: value,
			FieldPresent: present,
			Certainty:    certainty,
		}
		switch {
		case !present:
			match.Certainty = 0
			result.Unmatched = append(result.Unmatched, match)
			result.Reasoning = append(result.Reasoning,
				fmt.Sprintf("%s: field missing, cannot verify %q", criterion.Field, criterion.Description))
		case criterion.Operator.Apply(value, criterion.Value):
			match.Matched = true
			result.Matched = append(result.Matched, match)
			result.Reasoning = append(result.Reasoning,
				fmt.Sprintf("%s: %s %s %s satisfied (certainty %d)",
					criterion.Field, value.String(), criterion.Operator, criterion.Value.String(), certainty))
		default:
			result.Unmatched = append(result.Unmatched, match)
			result.Reasoning = append(result.Reasoning,
				fmt.Sprintf("%s: %s %s %s not satisfied (certainty %d)",
					criterion.Field, value.String(), criterion.Operator, criterion.Value.String(), certainty))
		}
	}

	result.Eligible = len(result.Unmatched) == 0
	result.Confidence = confidence(result, snap)
	return result
}

func confidence(r Result, snap profile.Snapshot) int {
	if !r.Eligible {
		missing := 0
		for _, m := range r.Unmatched {
			if m.FieldPresent {
				// Definite mismatch on provided data: certain negative.
				return 100
			}
			missing++
		}
		c := blend(r.Matched, snap) - missing*missingFieldPenalty
		return clamp(c)
	}
	return clamp(blend(r.Matched, snap))
}

// blend is the weighted-certainty formula shared by both branches:
// 0.7 * weighted per-criterion certainty + 0.2 * completeness + 0.1 * overall
// certainty, rounded half-up.
func blend(matched []CriterionMatch, snap profile.Snapshot) int {
	var certaintySum, weightSum float64
	for _, m := range matched {
		certaintySum += float64(m.Certainty) * m.Criterion.Weight
		weightSum += m.Criterion.Weight
	}
	weighted := 0.0
	if weightSum > 0 {
		weighted = certaintySum / weightSum
	}
	score := weightCertainty*weighted +
		weightCompleteness*float64(snap.Completeness) +
		weightOverall*float64(snap.CertaintyOverall)
	return roundHalfUp(score)
}

func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

func clamp(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// DetermineEligibility evaluates the snapshot against each supplied version
// independently and returns results in the same relative order as the input.
func (e *Engine) DetermineEligibility(snap profile.Snapshot, versions []scheme.SchemeVersion) []Result {
	results := make([]Result, 0, len(versions))
	for _, v := range versions {
		results = append(results, e.Evaluate(snap, v))
	}
	return results
}

// Rank is the pluggable ordering hook for callers that want ranked output:
// eligible schemes first, then confidence descending, with scheme id ascending
// as the stable deterministic tie-break. The input slice is not modified.
func Rank(results []Result) []Result {
	ranked := append([]Result{}, results...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Eligible != ranked[j].Eligible {
			return ranked[i].Eligible
		}
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].SchemeID < ranked[j].SchemeID
	})
	return ranked
}
