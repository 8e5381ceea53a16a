package form

import (
	"context"
	"fmt"
	"time"

	"github.com/bandfolio/formkit/pkg/asset"
	"github.com/bandfolio/formkit/pkg/event"
	"github.com/bandfolio/formkit/pkg/field"
)

// Submit runs the full save pipeline: validate visible fields, replace dirty
// assets, transform, persist, and on success replace the baseline and reset
// the working snapshot per the configured mode.
//
// Submit is single-flight per form: a call arriving while another submit is
// uploading or persisting returns ErrSubmitInFlight without side effects. On
// any failure the baseline and working snapshot are left exactly as before
// the attempt so the user can retry without re-entering data.
func (f *Form) Submit(ctx context.Context) error {
	if !f.inFlight.CompareAndSwap(false, true) {
		return ErrSubmitInFlight
	}
	defer f.inFlight.Store(false)

	f.setState(StateValidating)

	f.mu.RLock()
	values := cloneValues(f.working)
	pending := make(map[string]asset.File, len(f.pending))
	for name, file := range f.pending {
		pending[name] = file
	}
	f.mu.RUnlock()

	effects := field.Evaluate(f.specs, values)

	if errs := f.validate(values, pending, effects); len(errs) > 0 {
		f.setState(StateFailed)
		f.fail(errs)
		return errs
	}

	if f.blockIfClean && len(pending) == 0 && !f.tracker.Compute(values).HasChanges {
		f.setState(StateIdle)
		return nil
	}

	if err := f.uploadPending(ctx, values, pending, effects); err != nil {
		f.setState(StateFailed)
		f.fail(err)
		return err
	}

	payload := f.buildPayload(values, effects)
	if f.transform != nil {
		payload = f.transform(payload)
	}

	f.setState(StatePersisting)
	entity, err := f.persister.Persist(ctx, payload)
	if err != nil {
		f.setState(StateFailed)
		wrapped := fmt.Errorf("form: persist: %w", err)
		f.fail(wrapped)
		return wrapped
	}

	f.succeed(ctx, payload)
	if f.onSuccess != nil {
		f.onSuccess(entity)
	}
	return nil
}

// validate collects field-scoped errors for visible fields: effective
// requiredness first, then the spec's validator for filled values. Hidden
// fields are never enforced.
func (f *Form) validate(values map[string]any, pending map[string]asset.File, effects map[string]field.Effect) ValidationErrors {
	errs := ValidationErrors{}
	for _, spec := range f.specs {
		if spec.Name == "" || spec.Kind == field.KindDivider {
			continue
		}
		effect := effects[spec.Name]
		if !effect.Visible {
			continue
		}

		value := values[spec.Name]
		filled := !field.IsEmpty(spec.Kind, value)
		if spec.Kind.Asset() {
			if _, staged := pending[spec.Name]; staged {
				filled = true
			}
		}

		if effect.Required && !filled {
			errs[spec.Name] = requiredMessage(spec)
			continue
		}
		if filled && spec.Validate != nil {
			if _, staged := pending[spec.Name]; staged && spec.Kind.Asset() {
				// Validators act on locator values; a staged local file has
				// none yet.
				continue
			}
			if err := spec.Validate(value); err != nil {
				errs[spec.Name] = err.Error()
			}
		}
	}
	return errs
}

// uploadPending replaces each visible dirty asset field through the
// orchestrator. A single failure aborts the whole submit: unlike bulk gallery
// additions, a form's asset fields are save-blocking. Successful locators are
// committed to the working snapshot immediately so a later persistence
// failure does not force a re-upload on retry.
func (f *Form) uploadPending(ctx context.Context, values map[string]any, pending map[string]asset.File, effects map[string]field.Effect) error {
	if len(pending) == 0 {
		return nil
	}
	if f.assets == nil {
		return ErrNoAssetStore
	}

	f.setState(StateUploading)
	baseline := f.tracker.Baseline()

	for _, spec := range f.specs {
		file, staged := pending[spec.Name]
		if !staged || !spec.Kind.Asset() {
			continue
		}
		if !effects[spec.Name].Visible {
			continue
		}

		prior, _ := baseline[spec.Name].(string)
		locator, err := f.assets.Replace(ctx, file, prior)
		if err != nil {
			return fmt.Errorf("form: field %q: %w", spec.Name, err)
		}

		values[spec.Name] = locator
		f.mu.Lock()
		f.working[spec.Name] = locator
		delete(f.pending, spec.Name)
		f.mu.Unlock()
	}
	return nil
}

// buildPayload assembles the persistence payload. Visible fields contribute
// their working value (text blocks sanitised first). Hidden asset fields
// preserve their previously saved locator so the remote entity keeps its
// media; hidden plain fields are omitted entirely. Working keys with no spec
// (UI-only selectors) never reach the payload.
func (f *Form) buildPayload(values map[string]any, effects map[string]field.Effect) map[string]any {
	baseline := f.tracker.Baseline()
	payload := make(map[string]any, len(f.specs))

	for _, spec := range f.specs {
		if spec.Name == "" || spec.Kind == field.KindDivider {
			continue
		}
		if !effects[spec.Name].Visible {
			if spec.Kind.Asset() {
				if prior, ok := baseline[spec.Name].(string); ok && prior != "" {
					payload[spec.Name] = prior
				}
			}
			continue
		}

		value := values[spec.Name]
		if spec.Kind == field.KindTextBlock {
			if raw, ok := value.(string); ok && raw != "" {
				value = f.sanitizer.Sanitize(raw)
			}
		}
		payload[spec.Name] = value
	}
	return payload
}

// succeed replaces the baseline with the persisted payload, resets the
// working snapshot per the configured mode, and emits the success signals.
func (f *Form) succeed(ctx context.Context, payload map[string]any) {
	f.setState(StateSucceeded)
	f.tracker.MarkSaved(payload)

	f.mu.Lock()
	switch f.resetMode {
	case ResetToInitial:
		f.working = field.InitialValues(f.specs)
	default:
		f.working = cloneValues(payload)
	}
	f.pending = map[string]asset.File{}
	f.saved = true
	f.state = StateIdle
	f.mu.Unlock()

	if f.resetMode == ResetToInitial {
		// Creation forms also reseed the baseline so the next item starts
		// clean rather than diffing against the previous submission.
		f.tracker.Seed(field.InitialValues(f.specs))
		for _, controller := range f.resettables {
			controller.Reset()
		}
	}

	if f.bus != nil {
		f.bus.Publish(event.Save{
			Entity:  f.entity,
			Tenant:  f.tenant,
			Created: f.resetMode == ResetToInitial,
			Values:  payload,
			At:      time.Now(),
		})
	}

	if f.refresh != nil {
		if err := f.refresh(ctx); err != nil {
			f.log.Warn("post-save list refresh failed", "entity", f.entity, "error", err)
		}
	}
}

func (f *Form) fail(err error) {
	if f.onError != nil {
		f.onError(err)
	}
}

func requiredMessage(spec field.Spec) string {
	label := spec.Label
	if label == "" {
		label = spec.Name
	}
	return fmt.Sprintf("%s is required", label)
}
