package field

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed enumeration of editable value kinds the engine
// understands. Renderers and the save controller switch exhaustively on it.
type Kind string

const (
	KindText        Kind = "text"
	KindNumber      Kind = "number"
	KindDate        Kind = "date"
	KindTimePair    Kind = "time-pair"
	KindPricePair   Kind = "price-pair"
	KindSelect      Kind = "select"
	KindMultiSelect Kind = "multi-select"
	KindToggle      Kind = "toggle"
	KindTextBlock   Kind = "text-block"
	KindImage       Kind = "image"
	KindVideo       Kind = "video"
	KindDivider     Kind = "divider"
)

// Asset reports whether the kind stores a remote asset locator rather than an
// inline value. Asset fields get replace semantics during save.
func (k Kind) Asset() bool {
	return k == KindImage || k == KindVideo
}

// Pair reports whether the kind is a compound two-part control (for example a
// door-time/show-time pair). Pair kinds declare their member names via
// Spec.Group.
func (k Kind) Pair() bool {
	return k == KindTimePair || k == KindPricePair
}

func (k Kind) valid() bool {
	switch k {
	case KindText, KindNumber, KindDate, KindTimePair, KindPricePair,
		KindSelect, KindMultiSelect, KindToggle, KindTextBlock,
		KindImage, KindVideo, KindDivider:
		return true
	default:
		return false
	}
}

// Choice is one selectable option for select and multi-select fields.
type Choice struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
}

// Validator checks a single field value. A nil return means the value is
// acceptable; otherwise the error message is surfaced inline next to the
// field. Validators must be pure.
type Validator func(value any) error

// Spec is the declarative description of one editable value. It is pure data:
// construction happens once per form instantiation and the engine never
// mutates a Spec afterwards.
type Spec struct {
	// Name identifies the field inside working snapshots and payloads. Pair
	// kinds additionally list their member names in Group; Name then acts as
	// the group identifier.
	Name string

	Kind Kind

	// Group holds the member identifiers of a compound control (door/show
	// time, price min/max). Empty for scalar kinds.
	Group []string

	Label string

	// Required is the declared intent. Effective requiredness also depends on
	// visibility; see Evaluate.
	Required bool

	// Choices populate select and multi-select kinds.
	Choices []Choice

	// Initial seeds the working snapshot, possibly derived from an existing
	// entity when editing.
	Initial any

	// Visibility gates the field on other field values. Nil means always
	// visible.
	Visibility *Predicate

	// Validate runs during submit for visible, non-empty values.
	Validate Validator
}

var errSpecNameMissing = errors.New("field: spec name is required")

// Check verifies structural well-formedness of the spec: a usable name, a
// known kind, group members for pair kinds, and a well-formed visibility
// predicate. Called at form construction so malformed declarations fail fast
// instead of misbehaving at submit time.
func (s Spec) Check() error {
	name := strings.TrimSpace(s.Name)
	if name == "" && s.Kind != KindDivider {
		return errSpecNameMissing
	}
	if !s.Kind.valid() {
		return fmt.Errorf("field %q: unknown kind %q", name, s.Kind)
	}
	if s.Kind.Pair() && len(s.Group) != 2 {
		return fmt.Errorf("field %q: %s kind requires exactly two group members", name, s.Kind)
	}
	if !s.Kind.Pair() && len(s.Group) > 0 {
		return fmt.Errorf("field %q: group members are only valid on pair kinds", name)
	}
	if s.Visibility != nil {
		if err := s.Visibility.Validate(); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
	}
	return nil
}

// CheckAll checks every spec in the list and rejects duplicate names.
func CheckAll(specs []Spec) error {
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		if err := spec.Check(); err != nil {
			return err
		}
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("field %q: duplicate spec name", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
