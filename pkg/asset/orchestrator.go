package asset

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithLogger injects the logger used for swallowed cleanup failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.log = logger
		}
	}
}

// WithTenant scopes every upload to the given tenant.
func WithTenant(tenant string) Option {
	return func(o *Orchestrator) {
		o.tenant = tenant
	}
}

// WithConcurrency bounds bulk-upload parallelism. Zero or negative means
// unbounded.
func WithConcurrency(limit int) Option {
	return func(o *Orchestrator) {
		o.limit = limit
	}
}

// WithClock overrides the timestamp source used in derived names.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator coordinates asset replacement and bulk uploads against a
// remote Store.
type Orchestrator struct {
	store  Store
	tenant string
	limit  int
	now    func() time.Time
	log    *slog.Logger
}

// New constructs an Orchestrator for the given store.
func New(store Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store: store,
		now:   time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Replace uploads file and, only after the upload has durably succeeded,
// attempts to delete the prior asset. An upload failure propagates without
// touching the prior locator, so the old asset is never lost. A deletion
// failure is logged and swallowed: the new asset is already stored and
// user-visible, and an orphaned old asset is a tolerable leak.
func (o *Orchestrator) Replace(ctx context.Context, file File, prior string) (string, error) {
	locator, err := o.store.Upload(ctx, UploadRequest{
		File:        file,
		DerivedName: o.deriveName(file.Name, 0),
		Tenant:      o.tenant,
	})
	if err != nil {
		return "", fmt.Errorf("asset: upload %q: %w", file.Name, err)
	}

	if prior != "" {
		if err := o.store.Delete(ctx, prior); err != nil {
			o.log.Warn("asset cleanup failed, leaving orphan",
				"locator", prior, "replacement", locator, "error", err)
		}
	}
	return locator, nil
}

// BulkUpload fans the files out concurrently and collects one result per
// input, in input order. Items fail independently: one file's error neither
// aborts its siblings nor rolls back uploads that already succeeded.
func (o *Orchestrator) BulkUpload(ctx context.Context, files []File) []UploadResult {
	results := make([]UploadResult, len(files))
	if len(files) == 0 {
		return results
	}

	group, ctx := errgroup.WithContext(ctx)
	if o.limit > 0 {
		group.SetLimit(o.limit)
	}

	for i, file := range files {
		group.Go(func() error {
			locator, err := o.store.Upload(ctx, UploadRequest{
				File:        file,
				DerivedName: o.deriveName(file.Name, i),
				Tenant:      o.tenant,
			})
			results[i] = UploadResult{
				Identifier: file.Name,
				Locator:    locator,
				Err:        err,
			}
			// Item failures live in the result slot, never in the group, so
			// sibling uploads keep running.
			return nil
		})
	}
	_ = group.Wait()
	return results
}

// deriveName builds a locally-unique storage name from a timestamp, the batch
// index, a random component, and a sanitised original name, so concurrent
// uploads in one batch cannot collide.
func (o *Orchestrator) deriveName(original string, index int) string {
	base := sanitizeName(original)
	stamp := o.now().UnixMilli()
	return fmt.Sprintf("%d-%d-%s-%s", stamp, index, shortID(), base)
}

func sanitizeName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "upload"
	}
	var builder strings.Builder
	builder.Grow(len(base))
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('_')
		}
	}
	return builder.String()
}

func shortID() string {
	id := uuid.NewString()
	return id[:8]
}
