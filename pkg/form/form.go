// Package form is the save controller of the editable-entity engine: it
// gates fields through visibility/required evaluation, runs validators,
// replaces dirty assets, persists the payload through an external
// collaborator, and keeps the baseline tracker consistent with what was
// actually saved.
package form

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/microcosm-cc/bluemonday"

	"github.com/bandfolio/formkit/pkg/asset"
	"github.com/bandfolio/formkit/pkg/event"
	"github.com/bandfolio/formkit/pkg/field"
	"github.com/bandfolio/formkit/pkg/snapshot"
)

// Persister is the external persistence collaborator. Errors may be plain or
// *PersistError for field-scoped server messages.
type Persister interface {
	Persist(ctx context.Context, payload map[string]any) (map[string]any, error)
}

// PersisterFunc adapts a function into a Persister.
type PersisterFunc func(ctx context.Context, payload map[string]any) (map[string]any, error)

func (fn PersisterFunc) Persist(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return fn(ctx, payload)
}

// Resettable is implemented by asset-field controllers that hold client-side
// selection state (a chosen file, a picker position). The controller invokes
// Reset after a successful create-mode submit instead of reaching into UI
// nodes imperatively.
type Resettable interface {
	Reset()
}

// Transform converts working values into the external persistence payload
// shape. Nil means identity.
type Transform func(values map[string]any) map[string]any

// Option customises a Form.
type Option func(*Form)

// WithAssets wires the asset orchestrator used for dirty image/video fields.
func WithAssets(orchestrator *asset.Orchestrator) Option {
	return func(f *Form) { f.assets = orchestrator }
}

// WithIgnoreKeys excludes UI-only working keys from dirtiness comparison.
func WithIgnoreKeys(keys ...string) Option {
	return func(f *Form) { f.ignoreKeys = append(f.ignoreKeys, keys...) }
}

// WithBlockIfClean makes a submit with no changes a silent no-op.
func WithBlockIfClean() Option {
	return func(f *Form) { f.blockIfClean = true }
}

// WithResetMode selects the post-success working snapshot policy.
func WithResetMode(mode ResetMode) Option {
	return func(f *Form) { f.resetMode = mode }
}

// WithTransform sets the payload transform hook.
func WithTransform(transform Transform) Option {
	return func(f *Form) { f.transform = transform }
}

// WithOnSuccess registers a callback invoked with the persisted entity after
// a fully successful submit.
func WithOnSuccess(fn func(entity map[string]any)) Option {
	return func(f *Form) { f.onSuccess = fn }
}

// WithOnError registers a callback invoked when a submit fails at any stage.
func WithOnError(fn func(err error)) Option {
	return func(f *Form) { f.onError = fn }
}

// WithRefresh registers a caller-supplied refresh of externally-held list
// data, run after a successful save. Refresh errors are logged, not
// surfaced: the save itself already succeeded.
func WithRefresh(fn func(ctx context.Context) error) Option {
	return func(f *Form) { f.refresh = fn }
}

// WithEventBus publishes an event.Save on the bus after each successful
// submit, tagged with the entity kind and tenant.
func WithEventBus(bus *event.Bus[event.Save], entity, tenant string) Option {
	return func(f *Form) {
		f.bus = bus
		f.entity = entity
		f.tenant = tenant
	}
}

// WithSanitizer overrides the HTML policy applied to text-block values before
// they enter the payload. The default is bluemonday's UGC policy.
func WithSanitizer(policy *bluemonday.Policy) Option {
	return func(f *Form) {
		if policy != nil {
			f.sanitizer = policy
		}
	}
}

// WithLogger injects the logger for refresh failures and other non-fatal
// conditions.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Form) {
		if logger != nil {
			f.log = logger
		}
	}
}

// WithResettables registers controllers cleared after a successful
// create-mode submit.
func WithResettables(controllers ...Resettable) Option {
	return func(f *Form) { f.resettables = append(f.resettables, controllers...) }
}

// Form is one editing session over a declared field list. It owns the
// working snapshot and the baseline tracker; the external persistence and
// asset collaborators are injected.
type Form struct {
	specs     []field.Spec
	byName    map[string]field.Spec
	persister Persister
	assets    *asset.Orchestrator
	tracker   *snapshot.Tracker

	ignoreKeys   []string
	blockIfClean bool
	resetMode    ResetMode
	transform    Transform
	onSuccess    func(map[string]any)
	onError      func(error)
	refresh      func(context.Context) error
	bus          *event.Bus[event.Save]
	entity       string
	tenant       string
	sanitizer    *bluemonday.Policy
	resettables  []Resettable
	log          *slog.Logger

	inFlight atomic.Bool

	mu      sync.RWMutex
	working map[string]any
	pending map[string]asset.File
	state   State
	saved   bool
}

// New validates the field list and constructs a form whose working snapshot
// and baseline are seeded from the specs' initial values.
func New(specs []field.Spec, persister Persister, opts ...Option) (*Form, error) {
	if err := field.CheckAll(specs); err != nil {
		return nil, err
	}

	f := &Form{
		specs:     specs,
		byName:    field.ByName(specs),
		persister: persister,
		sanitizer: bluemonday.UGCPolicy(),
		log:       slog.Default(),
		pending:   map[string]asset.File{},
		state:     StateIdle,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	f.tracker = snapshot.NewTracker(snapshot.WithIgnoreKeys(f.ignoreKeys...))
	initial := field.InitialValues(specs)
	f.tracker.Seed(initial)
	f.working = initial
	return f, nil
}

// Seed replaces both working snapshot and baseline with externally fetched
// entity values, as when the edit form's data load completes.
func (f *Form) Seed(values map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.working = cloneValues(values)
	f.pending = map[string]asset.File{}
	f.saved = false
	f.tracker.Seed(values)
}

// Set records one user edit and clears the transient saved flag.
func (f *Form) Set(name string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.working[name] = value
	f.saved = false
}

// SetAssetFile stages a local file for an image/video field. The upload
// happens during Submit; until then the field counts as dirty and, for
// requiredness, as filled.
func (f *Form) SetAssetFile(name string, file asset.File) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[name] = file
	f.saved = false
}

// ClearAssetFile drops a staged file without uploading it.
func (f *Form) ClearAssetFile(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, name)
}

// Value returns the current working value for a field.
func (f *Form) Value(name string) any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.working[name]
}

// Values returns a copy of the working snapshot.
func (f *Form) Values() map[string]any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return cloneValues(f.working)
}

// HasChanges reports whether meaningful change exists against the baseline,
// including staged asset files.
func (f *Form) HasChanges() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.pending) > 0 {
		return true
	}
	return f.tracker.Compute(f.working).HasChanges
}

// State returns the controller's current lifecycle state.
func (f *Form) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Saved reports the transient saved flag, set on success and cleared by the
// next edit.
func (f *Form) Saved() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.saved
}

// Baseline returns a copy of the last-confirmed-saved values.
func (f *Form) Baseline() map[string]any {
	return f.tracker.Baseline()
}

// View is the render-time injection point: everything a caller needs to draw
// custom controls alongside the declared fields.
type View struct {
	Values     map[string]any
	Effects    map[string]field.Effect
	IsSaving   bool
	IsSaved    bool
	HasChanges bool
}

// View captures a consistent snapshot for rendering.
func (f *Form) View() View {
	f.mu.RLock()
	values := cloneValues(f.working)
	state := f.state
	saved := f.saved
	dirty := len(f.pending) > 0 || f.tracker.Compute(f.working).HasChanges
	f.mu.RUnlock()

	return View{
		Values:     values,
		Effects:    field.Evaluate(f.specs, values),
		IsSaving:   state == StateUploading || state == StatePersisting,
		IsSaved:    saved,
		HasChanges: dirty,
	}
}

func (f *Form) setState(state State) {
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
}

func cloneValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for key, value := range values {
		out[key] = value
	}
	return out
}
