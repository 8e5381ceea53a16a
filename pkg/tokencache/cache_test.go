package tokencache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestTokenIsCachedUntilTTL(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	fetches := 0
	cache := New(func(context.Context) (string, error) {
		fetches++
		return fmt.Sprintf("token-%d", fetches), nil
	}, WithTTL(time.Minute), WithClock(clock.Now))

	ctx := context.Background()

	token, err := cache.Token(ctx)
	if err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	if token != "token-1" {
		t.Fatalf("token = %q", token)
	}

	clock.Advance(30 * time.Second)
	token, _ = cache.Token(ctx)
	if token != "token-1" || fetches != 1 {
		t.Fatalf("expected cached token inside TTL, got %q after %d fetches", token, fetches)
	}

	clock.Advance(31 * time.Second)
	token, _ = cache.Token(ctx)
	if token != "token-2" || fetches != 2 {
		t.Fatalf("expected refetch after TTL, got %q after %d fetches", token, fetches)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	t.Parallel()

	fetches := 0
	cache := New(func(context.Context) (string, error) {
		fetches++
		return fmt.Sprintf("token-%d", fetches), nil
	})

	ctx := context.Background()
	if _, err := cache.Token(ctx); err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	cache.Invalidate()

	token, err := cache.Token(ctx)
	if err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	if token != "token-2" {
		t.Fatalf("expected fresh token after Invalidate, got %q", token)
	}
}

func TestFetchErrorsAreNotCached(t *testing.T) {
	t.Parallel()

	attempts := 0
	cache := New(func(context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("backend down")
		}
		return "token", nil
	})

	ctx := context.Background()
	if _, err := cache.Token(ctx); err == nil {
		t.Fatalf("expected first fetch to fail")
	}
	token, err := cache.Token(ctx)
	if err != nil {
		t.Fatalf("second fetch should succeed: %v", err)
	}
	if token != "token" {
		t.Fatalf("token = %q", token)
	}
}
