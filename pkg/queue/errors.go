package queue

import "errors"

// Common errors
var (
	// ErrEmptyQueueName is returned when a task is built without a queue name
	ErrEmptyQueueName = errors.New("queue name cannot be empty")

	// ErrEmptyTaskType is returned when a task is built without a type tag
	ErrEmptyTaskType = errors.New("task type cannot be empty")

	// ErrInvalidPriority is returned when priority is not one of the known levels
	ErrInvalidPriority = errors.New("invalid task priority")

	// ErrTaskNil is returned when a nil task is passed to a dispatcher method
	ErrTaskNil = errors.New("task cannot be nil")

	// ErrStorageNil is returned when a nil storage is provided
	ErrStorageNil = errors.New("storage cannot be nil")

	// ErrDispatcherNil is returned when a worker is built without a dispatcher
	ErrDispatcherNil = errors.New("dispatcher cannot be nil")

	// ErrStoreUnavailable wraps any storage failure surfaced by the dispatcher.
	// Callers must treat it as "not guaranteed delivered" and decide whether
	// to retry at the application layer.
	ErrStoreUnavailable = errors.New("queue store unavailable")

	// ErrProcessorMissing is returned when no processor is registered for a
	// task's type tag. The affected task is failed through the normal
	// retry/backoff machinery, not dropped.
	ErrProcessorMissing = errors.New("no processor registered for task type")

	// ErrProcessorNil is returned when registering a nil processor
	ErrProcessorNil = errors.New("processor cannot be nil")

	// ErrNoProcessors is returned when a worker starts with an empty registry
	ErrNoProcessors = errors.New("no task processors registered")

	// ErrWorkerAlreadyStarted is returned on a second Start without Stop
	ErrWorkerAlreadyStarted = errors.New("worker already started")

	// ErrWorkerNotStarted is returned when stopping a worker that never started
	ErrWorkerNotStarted = errors.New("worker not started")
)
