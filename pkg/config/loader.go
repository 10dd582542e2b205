package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	cacheMu sync.RWMutex
	cache   = make(map[string]any)

	defaultEnvOnce sync.Once
)

// LoadEnv loads the named .env files into the process environment before any
// config struct is parsed. Call it early in main when the application keeps
// its environment outside the working directory.
func LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		return errors.Join(ErrEnvFileLoad, err)
	}
	return nil
}

// Load parses environment variables into the provided configuration struct
// based on `env` field tags. Each configuration type is parsed at most once
// per process; later calls for the same type are served from the cache.
//
// A .env file in the working directory is loaded on the first call if one
// exists.
//
// Example:
//
//	type QueueConfig struct {
//		RedisURL    string        `env:"REDIS_URL,required"`
//		PollTimeout time.Duration `env:"QUEUE_POLL_TIMEOUT" envDefault:"5s"`
//	}
//
//	var cfg QueueConfig
//	if err := config.Load(&cfg); err != nil {
//		// handle error
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	defaultEnvOnce.Do(func() {
		// Missing .env is fine, the process environment may be complete.
		_ = godotenv.Load()
	})

	typeName := typeNameOf[T]()

	cacheMu.RLock()
	cached, ok := cache[typeName]
	cacheMu.RUnlock()
	if ok {
		*v = cached.(T)
		return nil
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cached, ok := cache[typeName]; ok {
		// Another goroutine parsed the same type first; keep its copy so every
		// caller sees identical values.
		*v = cached.(T)
		return nil
	}
	cache[typeName] = *v

	return nil
}

// MustLoad works like Load but panics on failure. Use it for configuration
// the application cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// ResetCache clears cached configurations so the next Load parses the
// environment again. Intended for tests that mutate env vars.
func ResetCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache = make(map[string]any)
}

func typeNameOf[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return fmt.Sprintf("%T", *new(T))
	}
	return t.String()
}
