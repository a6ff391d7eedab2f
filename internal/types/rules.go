// internal/types/rules.go
package types

import "encoding/json"

/*
 * Domain types for rule compilation and matching.
 *
 * Key types:
 *   - Mask: field name -> expected value for one step of a rule
 *   - Rule: canonical compiled rule with its sequence cursor
 *   - PathSegment: one component of a template placeholder path
 *
 * Rules are owned by the engine's table. SequenceIndex and Mask are mutated
 * in place while events arrive; everything else is fixed at compile time.
 */

// Mask maps event field names to expected values.
type Mask map[string]any

// Clone returns a shallow copy of the mask.
func (m Mask) Clone() Mask {
	out := make(Mask, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Rule is one compiled entry of the rule table.
type Rule struct {
	Name              string
	Context           []string // nearest grouping first
	Sequence          []Mask   // never empty after compilation
	Mask              Mask     // always Sequence[SequenceIndex]
	SequenceIndex     int
	SequenceLastIndex int
	Extra             map[string]any // caller-supplied fields, passed through

	// Inert marks a rule compiled from an entry without usable mask
	// material. Its mask is empty and it never matches.
	Inert bool
}

// Canonical field names of a rule, shared by the compiler and JSON encoding.
const (
	FieldName              = "name"
	FieldMask              = "mask"
	FieldContext           = "context"
	FieldSequence          = "sequence"
	FieldSequenceIndex     = "sequenceIndex"
	FieldSequenceLastIndex = "sequenceLastIndex"
	FieldInert             = "inert"
)

// IsSequence reports whether the rule needs more than one event to complete.
func (r *Rule) IsSequence() bool {
	return r.SequenceLastIndex > 0
}

// Reset moves the cursor back to the first step.
func (r *Rule) Reset() {
	r.SequenceIndex = 0
	r.Mask = r.Sequence[0]
}

// Fields returns the rule as a flat mapping: extras first, canonical fields on top.
func (r *Rule) Fields() map[string]any {
	m := make(map[string]any, len(r.Extra)+6)
	for k, v := range r.Extra {
		m[k] = v
	}
	m[FieldName] = r.Name
	m[FieldContext] = r.Context
	m[FieldSequence] = r.Sequence
	m[FieldMask] = r.Mask
	m[FieldSequenceIndex] = r.SequenceIndex
	m[FieldSequenceLastIndex] = r.SequenceLastIndex
	if r.Inert {
		m[FieldInert] = true
	}
	return m
}

// MarshalJSON implements json.Marshaler using the flat Fields view.
func (r *Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields())
}

// PathSegment represents one component of a placeholder path.
// Numeric segments carry both forms: Key for mapping lookup, Index for lists.
type PathSegment struct {
	Key     string
	Index   int
	IsIndex bool // disambiguates Index=0 from unset
}
