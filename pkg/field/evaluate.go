package field

// Effect is the evaluated visibility and requiredness of one field for a
// particular snapshot of values.
type Effect struct {
	Visible  bool
	Required bool
}

// Evaluate computes the effect of every spec against the current values.
// Effective requiredness is declared requiredness gated by visibility: a
// hidden field is never enforced, regardless of its declared flag.
//
// Evaluate is a pure function over its inputs and is intended to run on every
// edit.
func Evaluate(specs []Spec, values map[string]any) map[string]Effect {
	effects := make(map[string]Effect, len(specs))
	for _, spec := range specs {
		if spec.Name == "" {
			continue
		}
		visible := spec.Visibility.Eval(values)
		effects[spec.Name] = Effect{
			Visible:  visible,
			Required: spec.Required && visible,
		}
	}
	return effects
}

// IsEmpty reports whether a value counts as absent for requiredness checks.
// The empty string, nil, empty slices and zero-length maps are absent; the
// boolean false is a real value (a toggle deliberately off), as is the number
// zero.
func IsEmpty(kind Kind, value any) bool {
	if value == nil {
		return true
	}
	switch v := value.(type) {
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	case map[string]any:
		if kind.Pair() {
			return pairEmpty(v)
		}
		return len(v) == 0
	case bool:
		return false
	default:
		return false
	}
}

// pairEmpty treats a compound value as absent only when every member is
// absent; a half-filled pair is present (and will fail validation instead).
func pairEmpty(members map[string]any) bool {
	for _, member := range members {
		if member == nil {
			continue
		}
		if s, ok := member.(string); ok && s == "" {
			continue
		}
		return false
	}
	return true
}
