// Package tokencache caches short-lived request tokens (CSRF and similar)
// behind an explicit object with TTL and invalidation, instead of
// module-level singleton state.
package tokencache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const defaultTTL = 10 * time.Minute

// FetchFunc retrieves a fresh token from the backing service.
type FetchFunc func(ctx context.Context) (string, error)

// Option customises a Cache.
type Option func(*Cache)

// WithTTL overrides how long a fetched token is served before refetching.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// Cache hands out a cached token until its TTL lapses or Invalidate is
// called, then refetches. Constructed once per session; safe for concurrent
// use.
type Cache struct {
	fetch FetchFunc
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// New constructs a cache around the given fetcher.
func New(fetch FetchFunc, opts ...Option) *Cache {
	c := &Cache{
		fetch: fetch,
		ttl:   defaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Token returns the cached token, fetching a fresh one when the cache is
// empty or expired. Fetch errors are not cached.
func (c *Cache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expires) {
		return c.token, nil
	}

	token, err := c.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("tokencache: fetch token: %w", err)
	}
	c.token = token
	c.expires = c.now().Add(c.ttl)
	return token, nil
}

// Invalidate drops the cached token so the next Token call refetches. Called
// when the backend rejects the current token.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expires = time.Time{}
	c.mu.Unlock()
}
