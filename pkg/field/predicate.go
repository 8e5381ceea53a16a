package field

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Condition is a single equality test against another field's current value.
type Condition struct {
	Field  string `yaml:"field" json:"field"`
	Equals any    `yaml:"equals" json:"equals"`
}

// ConditionSet is a conjunction: every condition must hold.
type ConditionSet []Condition

// Predicate is a disjunction of conjunctions: the field is visible when any
// one set of conditions fully matches the current values. An explicit
// expression tree rather than a free-form object so well-formedness can be
// checked at form construction time.
type Predicate struct {
	AnyOf []ConditionSet `yaml:"any_of" json:"anyOf"`
}

// When is a convenience constructor for the common single-condition case.
func When(field string, equals any) *Predicate {
	return &Predicate{AnyOf: []ConditionSet{{{Field: field, Equals: equals}}}}
}

// And appends a condition to the last condition set.
func (p *Predicate) And(field string, equals any) *Predicate {
	if len(p.AnyOf) == 0 {
		return When(field, equals)
	}
	last := len(p.AnyOf) - 1
	p.AnyOf[last] = append(p.AnyOf[last], Condition{Field: field, Equals: equals})
	return p
}

// Or starts a new condition set.
func (p *Predicate) Or(field string, equals any) *Predicate {
	p.AnyOf = append(p.AnyOf, ConditionSet{{Field: field, Equals: equals}})
	return p
}

var (
	errPredicateEmpty      = errors.New("visibility predicate has no condition sets")
	errConditionSetEmpty   = errors.New("visibility predicate has an empty condition set")
	errConditionFieldEmpty = errors.New("visibility condition references an empty field name")
)

// Validate rejects structurally meaningless predicates. A nil predicate means
// "always visible" and is handled by callers before reaching here.
func (p *Predicate) Validate() error {
	if p == nil {
		return nil
	}
	if len(p.AnyOf) == 0 {
		return errPredicateEmpty
	}
	for _, set := range p.AnyOf {
		if len(set) == 0 {
			return errConditionSetEmpty
		}
		for _, cond := range set {
			if strings.TrimSpace(cond.Field) == "" {
				return errConditionFieldEmpty
			}
		}
	}
	return nil
}

// Eval reports whether the predicate holds for the given values. Pure: no
// side effects, safe to re-run on every edit.
func (p *Predicate) Eval(values map[string]any) bool {
	if p == nil {
		return true
	}
	for _, set := range p.AnyOf {
		if set.eval(values) {
			return true
		}
	}
	return false
}

func (s ConditionSet) eval(values map[string]any) bool {
	if len(s) == 0 {
		return false
	}
	for _, cond := range s {
		if !looseEqual(values[cond.Field], cond.Equals) {
			return false
		}
	}
	return true
}

// looseEqual compares a current value against an expected literal, coercing
// across the representations that reach working snapshots from YAML catalogs,
// JSON payloads, and user input.
func looseEqual(got, want any) bool {
	if got == nil || want == nil {
		return got == nil && want == nil
	}
	if gb, ok := asBool(got); ok {
		if wb, ok := asBool(want); ok {
			return gb == wb
		}
	}
	if gn, ok := asNumber(got); ok {
		if wn, ok := asNumber(want); ok {
			return gn == wn
		}
	}
	return asString(got) == asString(want)
}

func asBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	default:
		return false, false
	}
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(value)
	}
}
