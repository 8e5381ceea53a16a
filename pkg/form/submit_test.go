package form

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bandfolio/formkit/pkg/asset"
	"github.com/bandfolio/formkit/pkg/event"
	"github.com/bandfolio/formkit/pkg/field"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingPersister records every payload it receives and can be made to
// block or fail.
type countingPersister struct {
	mu       sync.Mutex
	payloads []map[string]any
	err      error
	started  chan struct{}
	block    chan struct{}
}

func (p *countingPersister) Persist(_ context.Context, payload map[string]any) (map[string]any, error) {
	if p.started != nil {
		p.started <- struct{}{}
	}
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	p.payloads = append(p.payloads, payload)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	entity := map[string]any{"id": "e1"}
	for key, value := range payload {
		entity[key] = value
	}
	return entity, nil
}

func (p *countingPersister) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func (p *countingPersister) lastPayload() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.payloads) == 0 {
		return nil
	}
	return p.payloads[len(p.payloads)-1]
}

func showSpecs() []field.Spec {
	return []field.Spec{
		{Name: "title", Kind: field.KindText, Required: true},
		{Name: "poster", Kind: field.KindImage, Required: true},
	}
}

func fixedStore(locator string) asset.Store {
	return asset.StoreFuncs{
		UploadFunc: func(context.Context, asset.UploadRequest) (string, error) {
			return locator, nil
		},
	}
}

func TestSubmitBlocksOnValidationBeforeAnyNetworkEffect(t *testing.T) {
	t.Parallel()

	persister := &countingPersister{}
	f, err := New(showSpecs(), persister, WithLogger(discardLogger()))
	require.NoError(t, err)

	err = f.Submit(context.Background())

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2, "both title and poster should fail: %v", verrs)
	assert.Contains(t, verrs, "title")
	assert.Contains(t, verrs, "poster")
	assert.Equal(t, 0, persister.calls(), "validation failures must never reach the network")
	assert.Equal(t, StateFailed, f.State())
}

func TestSubmitEndToEnd(t *testing.T) {
	t.Parallel()

	persister := &countingPersister{}
	successes := 0

	f, err := New(showSpecs(), persister,
		WithLogger(discardLogger()),
		WithAssets(asset.New(fixedStore("https://x/poster1.png"), asset.WithLogger(discardLogger()))),
		WithOnSuccess(func(map[string]any) { successes++ }),
	)
	require.NoError(t, err)

	f.Set("title", "Show A")
	f.SetAssetFile("poster", asset.File{Name: "poster.png"})

	require.NoError(t, f.Submit(context.Background()))

	assert.Equal(t, 1, persister.calls())
	assert.Equal(t, 1, successes, "onSuccess fires exactly once")
	assert.Equal(t,
		map[string]any{"title": "Show A", "poster": "https://x/poster1.png"},
		f.Baseline())
	assert.False(t, f.HasChanges(), "baseline replacement leaves the form clean")
	assert.True(t, f.Saved())
	assert.Equal(t, StateIdle, f.State())
}

func TestSubmitSingleFlight(t *testing.T) {
	t.Parallel()

	persister := &countingPersister{
		started: make(chan struct{}, 1),
		block:   make(chan struct{}),
	}
	f, err := New([]field.Spec{{Name: "title", Kind: field.KindText}}, persister,
		WithLogger(discardLogger()))
	require.NoError(t, err)
	f.Set("title", "Show A")

	firstDone := make(chan error, 1)
	go func() { firstDone <- f.Submit(context.Background()) }()

	// Wait for the first submit to reach the persister.
	<-persister.started

	err = f.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	close(persister.block)
	require.NoError(t, <-firstDone)
	assert.Equal(t, 1, persister.calls(), "second submit must not start another persistence call")
}

func TestSubmitPersistFailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	persister := &countingPersister{err: errors.New("api unavailable")}
	var surfaced error

	f, err := New([]field.Spec{{Name: "title", Kind: field.KindText}}, persister,
		WithLogger(discardLogger()),
		WithOnError(func(err error) { surfaced = err }),
	)
	require.NoError(t, err)
	f.Seed(map[string]any{"title": "old"})
	f.Set("title", "new")

	err = f.Submit(context.Background())

	require.Error(t, err)
	require.Error(t, surfaced)
	assert.Equal(t, StateFailed, f.State())
	assert.Equal(t, map[string]any{"title": "old"}, f.Baseline(), "baseline untouched on failure")
	assert.Equal(t, "new", f.Value("title"), "working values kept for retry")
	assert.True(t, f.HasChanges(), "form stays dirty and resubmittable")
	assert.False(t, f.Saved())

	// Retry succeeds once the API recovers.
	persister.err = nil
	require.NoError(t, f.Submit(context.Background()))
	assert.Equal(t, map[string]any{"title": "new"}, f.Baseline())
}

// A persist failure after a successful upload keeps the uploaded locator in
// the working snapshot, so the retry re-persists without re-uploading. The
// baseline still only moves on strict success.
func TestSubmitRetryAfterPersistFailureSkipsReupload(t *testing.T) {
	t.Parallel()

	persister := &countingPersister{err: errors.New("api unavailable")}
	uploads := 0
	store := asset.StoreFuncs{
		UploadFunc: func(context.Context, asset.UploadRequest) (string, error) {
			uploads++
			return "https://cdn.example.com/poster-1.png", nil
		},
	}

	f, err := New(showSpecs(), persister,
		WithLogger(discardLogger()),
		WithAssets(asset.New(store, asset.WithLogger(discardLogger()))),
	)
	require.NoError(t, err)
	f.Set("title", "Show A")
	f.SetAssetFile("poster", asset.File{Name: "poster.png"})

	require.Error(t, f.Submit(context.Background()))
	assert.Equal(t, 1, uploads)
	assert.Equal(t, "https://cdn.example.com/poster-1.png", f.Value("poster"))
	assert.Nil(t, f.Baseline()["poster"], "baseline untouched until persist succeeds")

	persister.err = nil
	require.NoError(t, f.Submit(context.Background()))
	assert.Equal(t, 1, uploads, "retry must not upload the asset again")
	assert.Equal(t, "https://cdn.example.com/poster-1.png", persister.lastPayload()["poster"])
}

func TestSubmitAssetFailureAbortsWholeSubmit(t *testing.T) {
	t.Parallel()

	persister := &countingPersister{}
	failing := asset.StoreFuncs{
		UploadFunc: func(context.Context, asset.UploadRequest) (string, error) {
			return "", errors.New("bucket gone")
		},
	}

	f, err := New(showSpecs(), persister,
		WithLogger(discardLogger()),
		WithAssets(asset.New(failing, asset.WithLogger(discardLogger()))),
	)
	require.NoError(t, err)
	f.Set("title", "Show A")
	f.SetAssetFile("poster", asset.File{Name: "poster.png"})

	err = f.Submit(context.Background())

	require.Error(t, err)
	assert.Equal(t, 0, persister.calls(), "asset failures are save-blocking")
	assert.Equal(t, StateFailed, f.State())
}

func TestSubmitHiddenFieldPayloadPolicy(t *testing.T) {
	t.Parallel()

	specs := []field.Spec{
		{Name: "venue_kind", Kind: field.KindSelect},
		{
			Name:       "festival_name",
			Kind:       field.KindText,
			Required:   true,
			Visibility: field.When("venue_kind", "festival"),
		},
		{
			Name:       "festival_banner",
			Kind:       field.KindImage,
			Visibility: field.When("venue_kind", "festival"),
		},
	}

	persister := &countingPersister{}
	f, err := New(specs, persister, WithLogger(discardLogger()))
	require.NoError(t, err)

	// A previous save stored a banner while the venue was a festival.
	f.Seed(map[string]any{
		"venue_kind":      "festival",
		"festival_name":   "Loudfest",
		"festival_banner": "https://x/banner.png",
	})
	f.Set("venue_kind", "club")

	require.NoError(t, f.Submit(context.Background()))

	payload := persister.lastPayload()
	assert.NotContains(t, payload, "festival_name", "hidden plain fields are omitted")
	assert.Equal(t, "https://x/banner.png", payload["festival_banner"],
		"hidden asset fields preserve the prior locator")
	// The hidden required field did not block the submit.
	assert.Equal(t, 1, persister.calls())
}

func TestSubmitBlockIfCleanIsSilentNoop(t *testing.T) {
	t.Parallel()

	persister := &countingPersister{}
	f, err := New([]field.Spec{{Name: "title", Kind: field.KindText}}, persister,
		WithLogger(discardLogger()),
		WithBlockIfClean(),
	)
	require.NoError(t, err)
	f.Seed(map[string]any{"title": "same"})

	require.NoError(t, f.Submit(context.Background()), "no-op submit is not an error")
	assert.Equal(t, 0, persister.calls())

	f.Set("title", "different")
	require.NoError(t, f.Submit(context.Background()))
	assert.Equal(t, 1, persister.calls())
}

type fakeController struct{ resets int }

func (c *fakeController) Reset() { c.resets++ }

func TestSubmitResetModes(t *testing.T) {
	t.Parallel()

	t.Run("create form resets to initial values", func(t *testing.T) {
		t.Parallel()

		specs := []field.Spec{{Name: "title", Kind: field.KindText, Initial: ""}}
		persister := &countingPersister{}
		controller := &fakeController{}

		f, err := New(specs, persister,
			WithLogger(discardLogger()),
			WithResetMode(ResetToInitial),
			WithResettables(controller),
		)
		require.NoError(t, err)

		f.Set("title", "First Item")
		require.NoError(t, f.Submit(context.Background()))

		assert.Empty(t, f.Value("title"), "creation form is reused clean for the next item")
		assert.False(t, f.HasChanges())
		assert.Equal(t, 1, controller.resets, "asset controllers reset after create-mode success")
	})

	t.Run("edit form keeps submitted values", func(t *testing.T) {
		t.Parallel()

		specs := []field.Spec{{Name: "title", Kind: field.KindText}}
		persister := &countingPersister{}

		f, err := New(specs, persister,
			WithLogger(discardLogger()),
			WithResetMode(ResetToValues),
		)
		require.NoError(t, err)

		f.Set("title", "Edited")
		require.NoError(t, f.Submit(context.Background()))

		assert.Equal(t, "Edited", f.Value("title"))
		assert.False(t, f.HasChanges())
	})
}

func TestSubmitPublishesSaveEvent(t *testing.T) {
	t.Parallel()

	bus := event.NewBus[event.Save]()
	var received []event.Save
	cancel := bus.Subscribe(func(ev event.Save) { received = append(received, ev) })
	defer cancel()

	persister := &countingPersister{}
	f, err := New([]field.Spec{{Name: "title", Kind: field.KindText}}, persister,
		WithLogger(discardLogger()),
		WithEventBus(bus, "show", "band-42"),
	)
	require.NoError(t, err)

	f.Set("title", "Show A")
	require.NoError(t, f.Submit(context.Background()))

	require.Len(t, received, 1)
	assert.Equal(t, "show", received[0].Entity)
	assert.Equal(t, "band-42", received[0].Tenant)
	assert.Equal(t, "Show A", received[0].Values["title"])
}

func TestSubmitRefreshFailureDoesNotFailSave(t *testing.T) {
	t.Parallel()

	persister := &countingPersister{}
	f, err := New([]field.Spec{{Name: "title", Kind: field.KindText}}, persister,
		WithLogger(discardLogger()),
		WithRefresh(func(context.Context) error { return errors.New("list endpoint down") }),
	)
	require.NoError(t, err)

	f.Set("title", "Show A")
	require.NoError(t, f.Submit(context.Background()), "refresh failures are logged, not surfaced")
	assert.True(t, f.Saved())
}

func TestSubmitSanitizesTextBlocks(t *testing.T) {
	t.Parallel()

	persister := &countingPersister{}
	f, err := New([]field.Spec{{Name: "bio", Kind: field.KindTextBlock}}, persister,
		WithLogger(discardLogger()))
	require.NoError(t, err)

	f.Set("bio", `<p>We play loud.</p><script>alert("x")</script>`)
	require.NoError(t, f.Submit(context.Background()))

	bio, _ := persister.lastPayload()["bio"].(string)
	assert.Contains(t, bio, "<p>We play loud.</p>")
	assert.NotContains(t, bio, "<script>")
}

func TestSubmitPendingAssetWithoutOrchestrator(t *testing.T) {
	t.Parallel()

	persister := &countingPersister{}
	f, err := New(showSpecs(), persister, WithLogger(discardLogger()))
	require.NoError(t, err)

	f.Set("title", "Show A")
	f.SetAssetFile("poster", asset.File{Name: "poster.png"})

	err = f.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNoAssetStore)
	assert.Equal(t, 0, persister.calls())
}

func TestEditClearsSavedFlag(t *testing.T) {
	t.Parallel()

	persister := &countingPersister{}
	f, err := New([]field.Spec{{Name: "title", Kind: field.KindText}}, persister,
		WithLogger(discardLogger()))
	require.NoError(t, err)

	f.Set("title", "Show A")
	require.NoError(t, f.Submit(context.Background()))
	require.True(t, f.Saved())

	f.Set("title", "Show B")
	assert.False(t, f.Saved(), "saved flag is transient and cleared on the next edit")
}

func TestViewSnapshot(t *testing.T) {
	t.Parallel()

	persister := &countingPersister{}
	f, err := New(showSpecs(), persister, WithLogger(discardLogger()))
	require.NoError(t, err)

	f.Set("title", "Show A")
	view := f.View()

	assert.Equal(t, "Show A", view.Values["title"])
	assert.True(t, view.HasChanges)
	assert.False(t, view.IsSaving)
	assert.True(t, view.Effects["poster"].Required)
}
