package form

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrSubmitInFlight is returned when Submit is called while a previous
// submit is still uploading or persisting. The second call has no effect.
var ErrSubmitInFlight = errors.New("form: submit already in flight")

// ErrNoAssetStore is returned when asset files are pending but no asset
// orchestrator was configured.
var ErrNoAssetStore = errors.New("form: asset files pending but no asset orchestrator configured")

// ValidationErrors maps field names to their inline error messages. It never
// reaches the network: a non-empty set aborts the submit before any upload or
// persistence call.
type ValidationErrors map[string]string

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "form: validation failed"
	}
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("form: validation failed for %s", strings.Join(names, ", "))
}

// PersistError is the structured failure shape the external persistence
// collaborator may return. FieldErrors, when present, map payload keys to
// messages the caller can render inline.
type PersistError struct {
	Message     string
	FieldErrors map[string]string
}

func (e *PersistError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "form: persistence failed"
}
