package queue

import "time"

// Config holds the environment-driven settings for queue workers.
type Config struct {
	PollTimeout time.Duration `env:"QUEUE_POLL_TIMEOUT" envDefault:"5s"`
	ErrorPause  time.Duration `env:"QUEUE_ERROR_PAUSE" envDefault:"1s"`
	BackoffBase time.Duration `env:"QUEUE_BACKOFF_BASE" envDefault:"1m"`
	BackoffMax  time.Duration `env:"QUEUE_BACKOFF_MAX" envDefault:"1h"`
}
