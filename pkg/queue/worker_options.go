package queue

import (
	"log/slog"
	"time"
)

// WorkerOption is a functional option for configuring a worker.
type WorkerOption func(*workerOptions)

type workerOptions struct {
	pollTimeout time.Duration
	errPause    time.Duration
	logger      *slog.Logger
}

// WithPollTimeout bounds the blocking wait of each dequeue attempt. The
// worker re-checks its stop flag after every wait, so this also caps how
// long Stop may linger behind an idle queue.
func WithPollTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pollTimeout = d
		}
	}
}

// WithErrorPause sets how long the loop pauses after a store error before
// polling again.
func WithErrorPause(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.errPause = d
		}
	}
}

// WithWorkerLogger sets the logger for the worker.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
