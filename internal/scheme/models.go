package scheme

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"sevasetu/pkg/platform/sentinel"
)

// ValueKind discriminates the closed set of criterion value types. Keeping the
// set closed lets rule ingestion reject malformed rules before they can reach a
// citizen's session.
type ValueKind string

const (
	KindNumber    ValueKind = "number"
	KindString    ValueKind = "string"
	KindBool      ValueKind = "bool"
	KindStringSet ValueKind = "string_set"
)

// Value is a tagged variant holding one criterion comparison value or one
// profile field value. Exactly one payload is meaningful, selected by Kind.
type Value struct {
	Kind   ValueKind `json:"kind"`
	Number float64   `json:"number,omitempty"`
	Str    string    `json:"str,omitempty"`
	Bool   bool      `json:"bool,omitempty"`
	Set    []string  `json:"set,omitempty"`
}

func NumberValue(n float64) Value { return Value{Kind: KindNumber, Number: n} }
func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func SetValue(ss ...string) Value { return Value{Kind: KindStringSet, Set: ss} }

// String renders the value for reasoning traces. Sets are sorted so traces stay
// byte-identical across evaluations of the same inputs.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v.Number), "0"), ".")
	case KindString:
		return v.Str
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindStringSet:
		sorted := append([]string{}, v.Set...)
		sort.Strings(sorted)
		return "{" + strings.Join(sorted, ",") + "}"
	}
	return ""
}

// Operator is the closed comparison operator set for criteria and exclusions.
type Operator string

const (
	OpEquals      Operator = "eq"
	OpNotEquals   Operator = "neq"
	OpGreaterThan Operator = "gt"
	OpGreaterOrEq Operator = "gte"
	OpLessThan    Operator = "lt"
	OpLessOrEq    Operator = "lte"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpContains    Operator = "contains"
)

// operatorKinds maps each operator to the value kinds it accepts. Applicability
// is checked when a version is ingested, not during evaluation.
var operatorKinds = map[Operator][]ValueKind{
	OpEquals:      {KindNumber, KindString, KindBool},
	OpNotEquals:   {KindNumber, KindString, KindBool},
	OpGreaterThan: {KindNumber},
	OpGreaterOrEq: {KindNumber},
	OpLessThan:    {KindNumber},
	OpLessOrEq:    {KindNumber},
	OpIn:          {KindStringSet},
	OpNotIn:       {KindStringSet},
	OpContains:    {KindString},
}

func (op Operator) accepts(kind ValueKind) bool {
	for _, k := range operatorKinds[op] {
		if k == kind {
			return true
		}
	}
	return false
}

// Apply evaluates the operator against a profile value. Kind mismatches return
// false rather than an error: rules are validated at load time, so a mismatch
// here means the profile holds a different type than the rule expects, which is
// simply not a match.
func (op Operator) Apply(profileValue, ruleValue Value) bool {
	switch op {
	case OpEquals:
		return valuesEqual(profileValue, ruleValue)
	case OpNotEquals:
		return !valuesEqual(profileValue, ruleValue)
	case OpGreaterThan:
		return bothNumbers(profileValue, ruleValue) && profileValue.Number > ruleValue.Number
	case OpGreaterOrEq:
		return bothNumbers(profileValue, ruleValue) && profileValue.Number >= ruleValue.Number
	case OpLessThan:
		return bothNumbers(profileValue, ruleValue) && profileValue.Number < ruleValue.Number
	case OpLessOrEq:
		return bothNumbers(profileValue, ruleValue) && profileValue.Number <= ruleValue.Number
	case OpIn:
		return setContains(ruleValue.Set, profileValue)
	case OpNotIn:
		return ruleValue.Kind == KindStringSet && !setContains(ruleValue.Set, profileValue)
	case OpContains:
		return profileValue.Kind == KindString && ruleValue.Kind == KindString &&
			strings.Contains(profileValue.Str, ruleValue.Str)
	}
	return false
}

func valuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNumber:
		return a.Number == b.Number
	case KindString:
		return a.Str == b.Str
	case KindBool:
		return a.Bool == b.Bool
	}
	return false
}

func bothNumbers(a, b Value) bool {
	return a.Kind == KindNumber && b.Kind == KindNumber
}

func setContains(set []string, v Value) bool {
	if v.Kind != KindString {
		return false
	}
	for _, s := range set {
		if s == v.Str {
			return true
		}
	}
	return false
}

// Criterion is one eligibility condition on a profile field. Weight feeds the
// confidence average and must be positive.
type Criterion struct {
	Field       string   `json:"field"`
	Operator    Operator `json:"operator"`
	Value       Value    `json:"value"`
	Weight      float64  `json:"weight"`
	Description string   `json:"description"`
}

// Validate rejects malformed criteria at ingest time.
func (c Criterion) Validate() error {
	if c.Field == "" {
		return fmt.Errorf("%w: criterion field is required", sentinel.ErrValidation)
	}
	if _, ok := operatorKinds[c.Operator]; !ok {
		return fmt.Errorf("%w: unknown operator %q on field %q", sentinel.ErrValidation, c.Operator, c.Field)
	}
	if !c.Operator.accepts(c.Value.Kind) {
		return fmt.Errorf("%w: operator %q does not accept %s values (field %q)",
			sentinel.ErrValidation, c.Operator, c.Value.Kind, c.Field)
	}
	if c.Weight <= 0 {
		return fmt.Errorf("%w: criterion weight must be positive (field %q)", sentinel.ErrValidation, c.Field)
	}
	return nil
}

// ExclusionRule forces ineligibility when its predicate holds, regardless of
// how the criteria evaluate.
type ExclusionRule struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    Value    `json:"value"`
	Reason   string   `json:"reason"`
}

func (e ExclusionRule) Validate() error {
	if e.Field == "" {
		return fmt.Errorf("%w: exclusion field is required", sentinel.ErrValidation)
	}
	if _, ok := operatorKinds[e.Operator]; !ok {
		return fmt.Errorf("%w: unknown operator %q on exclusion field %q", sentinel.ErrValidation, e.Operator, e.Field)
	}
	if !e.Operator.accepts(e.Value.Kind) {
		return fmt.Errorf("%w: operator %q does not accept %s values (exclusion field %q)",
			sentinel.ErrValidation, e.Operator, e.Value.Kind, e.Field)
	}
	if e.Reason == "" {
		return fmt.Errorf("%w: exclusion reason is required (field %q)", sentinel.ErrValidation, e.Field)
	}
	return nil
}

// RuleSet is the mutable draft submitted to PutNewVersion. The store turns it
// into an immutable SchemeVersion.
type RuleSet struct {
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Criteria          []Criterion     `json:"criteria"`
	Exclusions        []ExclusionRule `json:"exclusions"`
	RequiredDocuments []string        `json:"required_documents"`
}

// Validate fails fast on malformed rules so they never reach evaluation.
func (r RuleSet) Validate() error {
	if len(r.Criteria) == 0 {
		return fmt.Errorf("%w: a scheme version needs at least one criterion", sentinel.ErrValidation)
	}
	for _, c := range r.Criteria {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for _, e := range r.Exclusions {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SchemeVersion is an immutable snapshot of one scheme's rules. Updates always
// create a new version; exactly one version per scheme is active at a time, and
// historical versions remain queryable for audit.
type SchemeVersion struct {
	SchemeID          string          `json:"scheme_id"`
	Version           int             `json:"version"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Criteria          []Criterion     `json:"criteria"`
	Exclusions        []ExclusionRule `json:"exclusions"`
	RequiredDocuments []string        `json:"required_documents"`
	Active            bool            `json:"active"`
	CreatedAt         time.Time       `json:"created_at"`
}

// FieldNames returns the distinct profile fields this version's criteria read,
// in first-appearance order. The conversation layer uses this to drive
// collection.
func (v SchemeVersion) FieldNames() []string {
	seen := make(map[string]struct{}, len(v.Criteria))
	var fields []string
	for _, c := range v.Criteria {
		if _, ok := seen[c.Field]; !ok {
			seen[c.Field] = struct{}{}
			fields = append(fields, c.Field)
		}
	}
	return fields
}

// Clone deep-copies the version so callers can never mutate stored rules.
func (v SchemeVersion) Clone() SchemeVersion {
	out := v
	out.Criteria = append([]Criterion{}, v.Criteria...)
	for i := range out.Criteria {
		out.Criteria[i].Value.Set = append([]string{}, v.Criteria[i].Value.Set...)
	}
	out.Exclusions = append([]ExclusionRule{}, v.Exclusions...)
	for i := range out.Exclusions {
		out.Exclusions[i].Value.Set = append([]string{}, v.Exclusions[i].Value.Set...)
	}
	out.RequiredDocuments = append([]string{}, v.RequiredDocuments...)
	return out
}
