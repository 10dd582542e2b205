// Package redis provides the shared connection helpers for the Redis store
// backing the task queue, cache, and rate limiting packages.
//
// Connect wraps the go-redis client with bounded connection retries so the
// process fails fast when the store is unreachable at startup:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Healthcheck produces a probe function for observability surfaces:
//
//	check := redis.Healthcheck(client)
//	if err := check(ctx); err != nil {
//	    // store unreachable
//	}
//
// Sentinel errors wrap the underlying go-redis errors with errors.Join and
// can be matched with errors.Is.
package redis
