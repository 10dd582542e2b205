// Package config loads application configuration from environment variables
// into typed structs.
//
// It combines github.com/joho/godotenv (optional .env files) with
// github.com/caarlos0/env/v11 (struct tag parsing) behind a small cached API:
//
//   - Load parses the environment into any struct with `env` tags and caches
//     the result per type, so a config struct is parsed at most once per
//     process no matter how many components ask for it.
//   - MustLoad panics on failure, for configuration the process cannot start
//     without.
//   - LoadEnv loads explicit .env files; the default .env in the working
//     directory is picked up automatically on first Load.
//   - ResetCache clears the cache between tests.
//
// Usage:
//
//	type RedisConfig struct {
//		URL string `env:"REDIS_URL,required"`
//	}
//
//	var cfg RedisConfig
//	config.MustLoad(&cfg)
//
// Errors are sentinel values comparable with errors.Is: ErrParsingConfig,
// ErrEnvFileLoad, ErrNilPointer.
package config
