package queue

import (
	"log/slog"
	"time"
)

// DispatcherOption is a functional option for configuring a dispatcher.
type DispatcherOption func(*dispatcherOptions)

type dispatcherOptions struct {
	logger      *slog.Logger
	now         func() time.Time
	backoffBase time.Duration
	backoffMax  time.Duration
}

// WithDispatcherLogger sets the logger for the dispatcher.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the dispatcher's time source. Tests use this to drive
// scheduled-task visibility and backoff timestamps deterministically.
func WithClock(now func() time.Time) DispatcherOption {
	return func(o *dispatcherOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithBackoff tunes the retry backoff curve. The delay for attempt n is
// min(2^n * base, max).
func WithBackoff(base, max time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		if base > 0 {
			o.backoffBase = base
		}
		if max > 0 {
			o.backoffMax = max
		}
	}
}
