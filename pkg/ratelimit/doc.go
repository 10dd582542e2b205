// Package ratelimit provides fixed-window rate limiting with pluggable
// counter storage.
//
// The FixedWindow limiter tracks one counter per key; the counter expires a
// full window after its first increment. Two Store implementations are
// provided: RedisStore shares counters across processes, MemoryStore keeps
// them local and is useful in tests.
//
// Usage:
//
//	store, err := ratelimit.NewRedisStore(client)
//	if err != nil {
//		return err
//	}
//	limiter, err := ratelimit.NewFixedWindow(store, 30, time.Minute)
//	if err != nil {
//		return err
//	}
//
//	res, err := limiter.Allow(ctx, "user:"+userID)
//	if err != nil {
//		return err
//	}
//	if !res.Allowed {
//		return fmt.Errorf("rate limited, retry in %s", res.RetryAfter())
//	}
//
// Rejected requests still count against the window: a client hammering the
// API stays rejected until the window turns over.
package ratelimit
