package eligibility

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"sevasetu/internal/profile"
	"sevasetu/internal/scheme"
)

type EngineSuite struct {
	suite.Suite
	engine *Engine
}

func (s *EngineSuite) SetupTest() {
	s.engine = NewEngine()
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

// pensionVersion: age >= 60 (weight 2), annual income <= 100000 (weight 1).
func (s *EngineSuite) pensionVersion() scheme.SchemeVersion {
	return scheme.SchemeVersion{
		SchemeID: "pension",
		Version:  1,
		Criteria: []scheme.Criterion{
			{Field: "personal.age", Operator: scheme.OpGreaterOrEq, Value: scheme.NumberValue(60), Weight: 2, Description: "age 60 or above"},
			{Field: "economic.annual_income", Operator: scheme.OpLessOrEq, Value: scheme.NumberValue(100000), Weight: 1, Description: "income at most 1 lakh"},
		},
	}
}

func (s *EngineSuite) snapshot(fields map[string]profile.Field) profile.Snapshot {
	expected := []string{"personal.age", "economic.annual_income"}
	p := profile.NewWithExpected(expected)
	for name, f := range fields {
		p.Set(name, f.Value, f.Certainty)
	}
	return p.Snapshot()
}

func (s *EngineSuite) TestEligibleWithBlendedConfidence() {
	snap := s.snapshot(map[string]profile.Field{
		"personal.age":           {Value: scheme.NumberValue(64), Certainty: 90},
		"economic.annual_income": {Value: scheme.NumberValue(50000), Certainty: 80},
	})

	r := s.engine.Evaluate(snap, s.pensionVersion())
	s.True(r.Eligible)
	// weighted certainty (90*2+80*1)/3 = 86.67; completeness 100; overall 85;
	// 0.7*86.67 + 0.2*100 + 0.1*85 = 89.17 rounds half-up to 89.
	s.Equal(89, r.Confidence)
	s.Len(r.Matched, 2)
	s.Empty(r.Unmatched)
	s.False(r.RequiresReview)
	s.Len(r.Reasoning, 2)
}

func (s *EngineSuite) TestIneligibleOnProvidedMismatchIsDefinite() {
	snap := s.snapshot(map[string]profile.Field{
		"personal.age":           {Value: scheme.NumberValue(45), Certainty: 95},
		"economic.annual_income": {Value: scheme.NumberValue(50000), Certainty: 80},
	})

	r := s.engine.Evaluate(snap, s.pensionVersion())
	s.False(r.Eligible)
	s.Equal(100, r.Confidence)
	s.Require().Len(r.Unmatched, 1)
	s.True(r.Unmatched[0].FieldPresent)
	s.Equal("personal.age", r.Unmatched[0].Criterion.Field)
}

func (s *EngineSuite) TestIneligibleOnMissingDataStaysUncertain() {
	snap := s.snapshot(map[string]profile.Field{
		"personal.age": {Value: scheme.NumberValue(64), Certainty: 90},
	})

	r := s.engine.Evaluate(snap, s.pensionVersion())
	s.False(r.Eligible)
	// blend over matched: 0.7*90 + 0.2*50 + 0.1*90 = 82, minus one missing
	// field penalty of 10.
	s.Equal(72, r.Confidence)
	s.Equal([]string{"economic.annual_income"}, r.MissingFields())
	s.Require().Len(r.Unmatched, 1)
	s.Zero(r.Unmatched[0].Certainty)
}

func (s *EngineSuite) TestExclusionOverridesEverything() {
	version := s.pensionVersion()
	version.Exclusions = []scheme.ExclusionRule{
		{Field: "personal.occupation", Operator: scheme.OpEquals, Value: scheme.StringValue("government_employee"), Reason: "serving government employees are excluded"},
	}
	snap := s.snapshot(map[string]profile.Field{
		"personal.age":           {Value: scheme.NumberValue(64), Certainty: 90},
		"economic.annual_income": {Value: scheme.NumberValue(50000), Certainty: 80},
		"personal.occupation":    {Value: scheme.StringValue("government_employee"), Certainty: 100},
	})

	r := s.engine.Evaluate(snap, version)
	s.False(r.Eligible)
	s.Equal(100, r.Confidence)
	s.Equal([]string{"excluded: serving government employees are excluded"}, r.Reasoning)
	s.Empty(r.Matched)
}

func (s *EngineSuite) TestExclusionOnAbsentFieldDoesNotFire() {
	version := s.pensionVersion()
	version.Exclusions = []scheme.ExclusionRule{
		{Field: "personal.occupation", Operator: scheme.OpEquals, Value: scheme.StringValue("government_employee"), Reason: "serving government employees are excluded"},
	}
	snap := s.snapshot(map[string]profile.Field{
		"personal.age":           {Value: scheme.NumberValue(64), Certainty: 90},
		"economic.annual_income": {Value: scheme.NumberValue(50000), Certainty: 80},
	})

	r := s.engine.Evaluate(snap, version)
	s.True(r.Eligible)
}

func (s *EngineSuite) TestFirstSatisfiedExclusionWins() {
	version := s.pensionVersion()
	version.Exclusions = []scheme.ExclusionRule{
		{Field: "personal.occupation", Operator: scheme.OpEquals, Value: scheme.StringValue("government_employee"), Reason: "first"},
		{Field: "economic.annual_income", Operator: scheme.OpGreaterThan, Value: scheme.NumberValue(0), Reason: "second"},
	}
	snap := s.snapshot(map[string]profile.Field{
		"personal.occupation":    {Value: scheme.StringValue("government_employee"), Certainty: 100},
		"economic.annual_income": {Value: scheme.NumberValue(50000), Certainty: 80},
	})

	r := s.engine.Evaluate(snap, version)
	s.Equal([]string{"excluded: first"}, r.Reasoning)
}

func (s *EngineSuite) TestEmptyCriteriaFlaggedAmbiguous() {
	r := s.engine.Evaluate(s.snapshot(nil), scheme.SchemeVersion{SchemeID: "broken", Version: 7})
	s.True(r.RequiresReview)
	s.Equal("ambiguous_rules", r.ReviewReason)
	s.False(r.Eligible)
}

func (s *EngineSuite) TestDeterminism() {
	snap := s.snapshot(map[string]profile.Field{
		"personal.age":           {Value: scheme.NumberValue(64), Certainty: 90},
		"economic.annual_income": {Value: scheme.NumberValue(50000), Certainty: 80},
	})
	version := s.pensionVersion()

	first := s.engine.Evaluate(snap, version)
	for i := 0; i < 10; i++ {
		s.Equal(first, s.engine.Evaluate(snap, version))
	}
}

func (s *EngineSuite) TestLowerCertaintyNeverRaisesConfidence() {
	high := s.snapshot(map[string]profile.Field{
		"personal.age":           {Value: scheme.NumberValue(64), Certainty: 90},
		"economic.annual_income": {Value: scheme.NumberValue(50000), Certainty: 80},
	})
	low := s.snapshot(map[string]profile.Field{
		"personal.age":           {Value: scheme.NumberValue(64), Certainty: 50},
		"economic.annual_income": {Value: scheme.NumberValue(50000), Certainty: 50},
	})

	s.Less(s.engine.Evaluate(low, s.pensionVersion()).Confidence,
		s.engine.Evaluate(high, s.pensionVersion()).Confidence)
}

func (s *EngineSuite) TestDetermineEligibilityPreservesInputOrder() {
	snap := s.snapshot(map[string]profile.Field{
		"personal.age":           {Value: scheme.NumberValue(64), Certainty: 90},
		"economic.annual_income": {Value: scheme.NumberValue(50000), Certainty: 80},
	})
	versions := []scheme.SchemeVersion{
		{SchemeID: "z-scheme", Version: 1, Criteria: s.pensionVersion().Criteria},
		{SchemeID: "a-scheme", Version: 2, Criteria: s.pensionVersion().Criteria},
	}

	results := s.engine.DetermineEligibility(snap, versions)
	s.Require().Len(results, 2)
	s.Equal("z-scheme", results[0].SchemeID)
	s.Equal("a-scheme", results[1].SchemeID)
}

func (s *EngineSuite) TestRank() {
	results := []Result{
		{SchemeID: "c", Eligible: false, Confidence: 100},
		{SchemeID: "b", Eligible: true, Confidence: 85},
		{SchemeID: "a", Eligible: true, Confidence: 85},
		{SchemeID: "d", Eligible: true, Confidence: 92},
	}

	ranked := Rank(results)
	s.Equal("d", ranked[0].SchemeID)
	s.Equal("a", ranked[1].SchemeID) // confidence tie broken by scheme id
	s.Equal("b", ranked[2].SchemeID)
	s.Equal("c", ranked[3].SchemeID)

	// Input untouched.
	s.Equal("c", results[0].SchemeID)
}

func TestRoundHalfUp(t *testing.T) {
	cases := map[float64]int{
		89.49: 89,
		89.5:  90,
		89.51: 90,
		0.0:   0,
	}
	for in, want := range cases {
		if got := roundHalfUp(in); got != want {
			t.Errorf("roundHalfUp(%v) = %d, want %d", in, got, want)
		}
	}
}
