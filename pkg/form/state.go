package form

// State is the save controller's lifecycle position. Transitions:
// Idle → Validating → (Uploading →) Persisting → Succeeded | Failed. A
// successful submit settles back on Idle; Failed persists until the next
// submit attempt so callers can render the failure.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateUploading
	StatePersisting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateUploading:
		return "uploading"
	case StatePersisting:
		return "persisting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ResetMode selects what the working snapshot becomes after a successful
// submit. Creation forms reset to their static initial values so the next
// item starts clean; edit forms keep the just-submitted values.
type ResetMode int

const (
	// ResetToValues keeps the submitted values as the new working snapshot.
	ResetToValues ResetMode = iota

	// ResetToInitial restores the specs' declared initial values, for modal
	// and create forms that are immediately reused.
	ResetToInitial
)
