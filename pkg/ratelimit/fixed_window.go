package ratelimit

import (
	"context"
	"time"
)

// FixedWindow implements fixed-window rate limiting: every key owns a
// counter that expires a full window after its first increment. Cheap and
// good enough for per-client API throttling; bursts straddling a window
// boundary can briefly see up to twice the limit.
type FixedWindow struct {
	store  Store
	limit  int
	window time.Duration
}

// NewFixedWindow creates a fixed-window rate limiter.
func NewFixedWindow(store Store, limit int, window time.Duration) (*FixedWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if window <= 0 {
		return nil, ErrInvalidInterval
	}

	return &FixedWindow{
		store:  store,
		limit:  limit,
		window: window,
	}, nil
}

// Allow checks if a single request is allowed for the given key.
func (fw *FixedWindow) Allow(ctx context.Context, key string) (*Result, error) {
	return fw.AllowN(ctx, key, 1)
}

// AllowN checks if n requests are allowed for the given key. Rejected
// requests still count against the window, which keeps abusive clients
// locked out until the window turns over.
func (fw *FixedWindow) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	if n <= 0 {
		n = 1
	}

	current, ttl, err := fw.store.IncrementAndGet(ctx, key, n, fw.window)
	if err != nil {
		return nil, err
	}

	return fw.result(current <= int64(fw.limit), current, ttl), nil
}

// Status returns the current rate limit state without consuming anything.
func (fw *FixedWindow) Status(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	current, ttl, err := fw.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	return fw.result(current < int64(fw.limit), current, ttl), nil
}

// Reset clears the counter for the given key.
func (fw *FixedWindow) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	return fw.store.Delete(ctx, key)
}

func (fw *FixedWindow) result(allowed bool, current int64, ttl time.Duration) *Result {
	if ttl <= 0 {
		ttl = fw.window
	}
	remaining := int64(fw.limit) - current
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   allowed,
		Limit:     fw.limit,
		Remaining: int(remaining),
		ResetAt:   time.Now().Add(ttl),
	}
}
