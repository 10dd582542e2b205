package cache

import "errors"

var (
	// ErrCacheMiss is returned when the key is not present in the cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrClientNil is returned when a nil redis client is provided
	ErrClientNil = errors.New("redis client cannot be nil")

	// ErrStoreNil is returned when a session manager is built without a store
	ErrStoreNil = errors.New("session store cannot be nil")

	// ErrKeyEmpty is returned when an empty cache key is used
	ErrKeyEmpty = errors.New("cache key cannot be empty")
)
