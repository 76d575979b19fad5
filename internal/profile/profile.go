// Package profile holds the partial citizen profile a conversation session
// accumulates, together with per-field certainty metadata. The eligibility
// engine only ever reads immutable snapshots of it.
package profile

import (
	"sort"
	"strings"

	"sevasetu/internal/scheme"
)

// Group prefixes for the canonical dotted field names.
const (
	GroupPersonal  = "personal"
	GroupEconomic  = "economic"
	GroupLocation  = "location"
	GroupFamily    = "family"
	GroupDocuments = "documents"
)

// ExpectedFields is the canonical field set completeness is measured against.
// Scheme criteria may reference additional fields; those still count toward
// completeness once a session's question plan includes them.
var ExpectedFields = []string{
	"personal.age",
	"personal.gender",
	"personal.occupation",
	"economic.annual_income",
	"economic.bpl_card",
	"location.state",
	"location.district",
	"location.area_type",
	"family.members",
	"family.dependents",
	"documents.aadhaar",
	"documents.income_certificate",
}

// Field pairs a value with the certainty (0-100) that the value is correct.
type Field struct {
	Value     scheme.Value `json:"value"`
	Certainty int          `json:"certainty"`
}

// Profile is the accumulator for one session. Fields are keyed by their
// canonical dotted name (group.field). A field that is absent has, by
// definition, certainty 0.
type Profile struct {
	Fields   map[string]Field `json:"fields"`
	Expected []string         `json:"expected,omitempty"`
}

func New() *Profile {
	return &Profile{
		Fields:   make(map[string]Field),
		Expected: ExpectedFields,
	}
}

// NewWithExpected overrides the expected-field set, used when a session's
// question plan adds scheme-specific fields.
func NewWithExpected(expected []string) *Profile {
	p := New()
	if len(expected) > 0 {
		p.Expected = expected
	}
	return p
}

// Set records a field value with its certainty, clamped to [0,100].
func (p *Profile) Set(field string, value scheme.Value, certainty int) {
	if certainty < 0 {
		certainty = 0
	}
	if certainty > 100 {
		certainty = 100
	}
	p.Fields[field] = Field{Value: value, Certainty: certainty}
}

// Get returns the value and certainty for a field. Absent fields report
// certainty 0.
func (p *Profile) Get(field string) (scheme.Value, int, bool) {
	f, ok := p.Fields[field]
	if !ok {
		return scheme.Value{}, 0, false
	}
	return f.Value, f.Certainty, true
}

// Has reports whether a field is populated.
func (p *Profile) Has(field string) bool {
	_, ok := p.Fields[field]
	return ok
}

// Delete removes a field; used when the user retracts a confirmed value.
func (p *Profile) Delete(field string) {
	delete(p.Fields, field)
}

// Clone deep-copies the profile, including set values.
func (p *Profile) Clone() *Profile {
	out := &Profile{
		Fields:   make(map[string]Field, len(p.Fields)),
		Expected: append([]string{}, p.Expected...),
	}
	for name, f := range p.Fields {
		f.Value.Set = append([]string{}, f.Value.Set...)
		out.Fields[name] = f
	}
	return out
}

// Completeness is the percentage of expected fields populated, 0-100.
// It is derived, so setting a field implicitly updates it.
func (p *Profile) Completeness() int {
	if len(p.Expected) == 0 {
		return 0
	}
	populated := 0
	for _, f := range p.Expected {
		if p.Has(f) {
			populated++
		}
	}
	return (populated * 100) / len(p.Expected)
}

// CertaintyOverall averages certainty across populated fields; 0 when empty.
func (p *Profile) CertaintyOverall() int {
	if len(p.Fields) == 0 {
		return 0
	}
	sum := 0
	for _, f := range p.Fields {
		sum += f.Certainty
	}
	return sum / len(p.Fields)
}

// FieldNames returns populated field names sorted for deterministic output.
func (p *Profile) FieldNames() []string {
	names := make([]string, 0, len(p.Fields))
	for name := range p.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Group returns the group prefix of a dotted field name.
func Group(field string) string {
	if i := strings.IndexByte(field, '.'); i > 0 {
		return field[:i]
	}
	return field
}

// Snapshot is the immutable view handed to the eligibility engine and copied
// into review cases. Later profile mutation cannot alter a snapshot.
type Snapshot struct {
	Fields           map[string]Field `json:"fields"`
	Completeness     int              `json:"completeness"`
	CertaintyOverall int              `json:"certainty_overall"`
}

// Snapshot deep-copies the current profile state.
func (p *Profile) Snapshot() Snapshot {
	fields := make(map[string]Field, len(p.Fields))
	for k, v := range p.Fields {
		v.Value.Set = append([]string{}, v.Value.Set...)
		fields[k] = v
	}
	return Snapshot{
		Fields:           fields,
		Completeness:     p.Completeness(),
		CertaintyOverall: p.CertaintyOverall(),
	}
}

// Get mirrors Profile.Get for snapshot consumers.
func (s Snapshot) Get(field string) (scheme.Value, int, bool) {
	f, ok := s.Fields[field]
	if !ok {
		return scheme.Value{}, 0, false
	}
	return f.Value, f.Certainty, true
}
