// Package asset uploads and replaces remote binary assets (images, video)
// with upload-before-delete ordering and per-item failure isolation for bulk
// batches.
package asset

import (
	"context"
	"io"
)

// File is one local binary pending upload.
type File struct {
	// Name is the original client-side file name. Derived storage names are
	// built from it; see deriveName.
	Name string

	ContentType string

	// Content is read exactly once during upload.
	Content io.Reader

	Size int64
}

// UploadRequest carries one file plus the storage coordinates the remote
// store needs.
type UploadRequest struct {
	File File

	// DerivedName is the collision-free storage name generated per batch
	// item.
	DerivedName string

	// Tenant scopes the upload to one band's storage area.
	Tenant string
}

// Store is the remote asset collaborator. Delete must be safe to call with an
// already-deleted or malformed locator.
type Store interface {
	Upload(ctx context.Context, req UploadRequest) (locator string, err error)
	Delete(ctx context.Context, locator string) error
}

// StoreFuncs adapts plain functions into a Store, mainly for tests and small
// call sites.
type StoreFuncs struct {
	UploadFunc func(ctx context.Context, req UploadRequest) (string, error)
	DeleteFunc func(ctx context.Context, locator string) error
}

func (s StoreFuncs) Upload(ctx context.Context, req UploadRequest) (string, error) {
	return s.UploadFunc(ctx, req)
}

func (s StoreFuncs) Delete(ctx context.Context, locator string) error {
	if s.DeleteFunc == nil {
		return nil
	}
	return s.DeleteFunc(ctx, locator)
}

// UploadResult is the outcome of one item in a bulk upload. Identifier echoes
// the original file name so callers can trace results back to inputs despite
// concurrent completion order.
type UploadResult struct {
	Identifier string
	Locator    string
	Err        error
}

// OK reports whether the item uploaded successfully.
func (r UploadResult) OK() bool { return r.Err == nil }

// Partition splits bulk results into succeeded locators and a failure count.
// Failures are reported to users as a single aggregate count, not per-file
// detail.
func Partition(results []UploadResult) (locators []string, failed int) {
	for _, result := range results {
		if result.OK() {
			locators = append(locators, result.Locator)
			continue
		}
		failed++
	}
	return locators, failed
}
