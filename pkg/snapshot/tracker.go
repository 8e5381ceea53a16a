// Package snapshot tracks the last-confirmed-saved baseline of a form and
// computes whether meaningful change exists against the current working
// values.
package snapshot

import (
	"reflect"
	"sort"
	"sync"
)

// State is the outcome of one baseline-vs-working comparison.
type State struct {
	HasChanges  bool
	ChangedKeys []string
}

// Option customises a Tracker.
type Option func(*Tracker)

// WithIgnoreKeys excludes UI-only working keys (variant selectors and the
// like) from dirtiness comparison.
func WithIgnoreKeys(keys ...string) Option {
	return func(t *Tracker) {
		for _, key := range keys {
			t.ignore[key] = struct{}{}
		}
	}
}

// Tracker owns the baseline snapshot. The baseline is replaced wholesale,
// by Seed when fresh external data arrives or by MarkSaved after a strictly
// successful save, and never partially mutated.
type Tracker struct {
	mu       sync.RWMutex
	baseline map[string]any
	ignore   map[string]struct{}
}

// NewTracker constructs a tracker with an empty baseline.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		baseline: map[string]any{},
		ignore:   map[string]struct{}{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Seed replaces the baseline with externally supplied initial values, as when
// an entity fetch completes before editing starts.
func (t *Tracker) Seed(values map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.baseline = cloneValues(values)
}

// MarkSaved replaces the baseline after a confirmed-successful save. A failed
// save must never reach this method.
func (t *Tracker) MarkSaved(values map[string]any) {
	t.Seed(values)
}

// Baseline returns a copy of the current baseline.
func (t *Tracker) Baseline() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneValues(t.baseline)
}

// Compute compares working values against the baseline. Keys in the ignore
// list never count; a key present on only one side is compared against the
// empty value.
func (t *Tracker) Compute(working map[string]any) State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Diff(t.baseline, working, t.ignore)
}

// Diff is the pure comparison underlying Compute. nil, the empty string and
// a missing key are all treated as the same empty value.
func Diff(baseline, working map[string]any, ignore map[string]struct{}) State {
	keys := make(map[string]struct{}, len(baseline)+len(working))
	for key := range baseline {
		keys[key] = struct{}{}
	}
	for key := range working {
		keys[key] = struct{}{}
	}

	var changed []string
	for key := range keys {
		if _, skip := ignore[key]; skip {
			continue
		}
		if !equal(baseline[key], working[key]) {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	return State{HasChanges: len(changed) > 0, ChangedKeys: changed}
}

func equal(a, b any) bool {
	a = normalize(a)
	b = normalize(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a, b)
}

// normalize collapses the representations of "no value" so that a field the
// user cleared compares equal to one that was never set.
func normalize(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case string:
		if v == "" {
			return nil
		}
		return v
	case []string:
		if len(v) == 0 {
			return nil
		}
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	case []any:
		if len(v) == 0 {
			return nil
		}
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	case map[string]any:
		if len(v) == 0 {
			return nil
		}
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = normalize(item)
		}
		return out
	default:
		return v
	}
}

func cloneValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for key, value := range values {
		out[key] = value
	}
	return out
}
