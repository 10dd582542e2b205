package queue

import (
	"context"
	"time"
)

// Storage persists tasks across the four logical regions of a queue:
// per-priority ready lists, a time-ordered scheduled set, a processing set,
// and a failed list. Regions are namespaced by queue name and never collide.
//
// Implementations must make PopReady exclusive per call so that concurrent
// workers never observe the same head element; the dispatcher performs no
// additional locking on top of the store.
type Storage interface {
	// PushReady appends the task to the tail of its priority's ready list
	// (FIFO within a priority band).
	PushReady(ctx context.Context, task *Task) error

	// PopReady removes and returns the head of the first non-empty ready
	// list, trying priorities in the given order. It blocks up to timeout
	// and returns (nil, nil) when nothing became ready in time.
	PopReady(ctx context.Context, queueName string, priorities []Priority, timeout time.Duration) (*Task, error)

	// PushScheduled inserts the task into the scheduled set keyed by its
	// ScheduledAt epoch-seconds score.
	PushScheduled(ctx context.Context, task *Task) error

	// PopDueScheduled atomically removes and returns every scheduled entry
	// whose score is <= now. No entry is returned twice from this step.
	PopDueScheduled(ctx context.Context, queueName string, now time.Time) ([]*Task, error)

	// MarkProcessing adds the task to the processing set.
	MarkProcessing(ctx context.Context, task *Task) error

	// UnmarkProcessing removes the task from the processing set. Removing
	// an absent task is a no-op, not an error.
	UnmarkProcessing(ctx context.Context, task *Task) error

	// PushFailed prepends the terminal record to the failed list (newest
	// first).
	PushFailed(ctx context.Context, failed *FailedTask) error

	// Counts returns a point-in-time snapshot of all region sizes.
	Counts(ctx context.Context, queueName string) (*Stats, error)

	// Ping probes store reachability.
	Ping(ctx context.Context) error
}

// Key naming is part of the operational contract: multiple processes
// interoperating against the same store must agree on these exact names.
func readyKey(queueName string, priority Priority) string {
	return "queue:" + queueName + ":" + string(priority)
}

func scheduledKey(queueName string) string {
	return "scheduled:" + queueName
}

func processingKey(queueName string) string {
	return "processing:" + queueName
}

func failedKey(queueName string) string {
	return "failed:" + queueName
}
