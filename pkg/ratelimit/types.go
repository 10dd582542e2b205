package ratelimit

import (
	"context"
	"time"
)

// Result contains the outcome of a rate limit check.
type Result struct {
	// Allowed indicates whether the request is allowed.
	Allowed bool

	// Limit is the maximum number of requests allowed in the window.
	Limit int

	// Remaining is the number of requests remaining in the current window.
	Remaining int

	// ResetAt is the time when the current window expires.
	ResetAt time.Time
}

// RetryAfter returns how long to wait before the next request is allowed.
// Returns 0 if the current request was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed {
		return 0
	}
	return time.Until(r.ResetAt)
}

// Limiter is the interface rate limiting implementations satisfy.
type Limiter interface {
	// Allow checks if a single request is allowed for the given key and
	// consumes one slot if so.
	Allow(ctx context.Context, key string) (*Result, error)

	// AllowN checks if n requests are allowed for the given key.
	AllowN(ctx context.Context, key string, n int) (*Result, error)

	// Status returns the current state for the key without consuming
	// anything.
	Status(ctx context.Context, key string) (*Result, error)

	// Reset clears the counter for the key.
	Reset(ctx context.Context, key string) error
}

// Store is the counter backend for fixed-window limiting.
type Store interface {
	// IncrementAndGet atomically adds incr to the key's counter, arming the
	// window expiry when the counter is created, and returns the new value
	// with the remaining window TTL.
	IncrementAndGet(ctx context.Context, key string, incr int, window time.Duration) (current int64, ttl time.Duration, err error)

	// Get returns the current counter value and remaining TTL without
	// modifying anything.
	Get(ctx context.Context, key string) (current int64, ttl time.Duration, err error)

	// Delete removes the key from the store.
	Delete(ctx context.Context, key string) error
}
