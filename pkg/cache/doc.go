// Package cache provides the Redis-backed JSON cache and messaging-session
// tracking used by the support-bot backend.
//
// Cache stores arbitrary JSON-marshalable values with optional TTLs. The
// TTL* constants capture the backend's expiry strategies (OAuth state,
// sessions, conversation context, order lookups). SetWithJitter skews a TTL
// by up to ±10% to keep co-created entries from expiring together, and
// GetOrSet implements the usual read-through pattern:
//
//	var order OrderSummary
//	err := c.GetOrSet(ctx, "order:1001", &order, cache.TTLOrder,
//	    func(ctx context.Context) (any, error) {
//	        return fetchOrder(ctx, 1001)
//	    })
//
// A missing key is reported as ErrCacheMiss and can be matched with
// errors.Is.
//
// SessionManager tracks per-user messaging sessions under
// "session:{channel}:{user_id}" keys, enforcing the 24-hour WhatsApp reply
// window and a one-hour window for other channels.
package cache
