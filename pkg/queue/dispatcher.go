package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Dispatcher orchestrates the task lifecycle and is the only component that
// decides state transitions: scheduled -> ready -> processing ->
// completed/failed. It is explicitly constructed and passed by handle to
// producers and workers; there is no shared global instance.
type Dispatcher struct {
	storage Storage
	logger  *slog.Logger
	now     func() time.Time

	backoffBase time.Duration
	backoffMax  time.Duration
}

// NewDispatcher creates a dispatcher on top of the given storage.
func NewDispatcher(storage Storage, opts ...DispatcherOption) (*Dispatcher, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}

	options := &dispatcherOptions{
		logger:      slog.Default(),
		now:         time.Now,
		backoffBase: time.Minute,
		backoffMax:  time.Hour,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Dispatcher{
		storage:     storage,
		logger:      options.logger,
		now:         options.now,
		backoffBase: options.backoffBase,
		backoffMax:  options.backoffMax,
	}, nil
}

// Enqueue places the task into its queue: the scheduled set when the task
// carries a delay, the priority ready list otherwise. A returned error wraps
// ErrStoreUnavailable and means delivery is not guaranteed; the caller
// decides whether to retry at the application layer.
func (d *Dispatcher) Enqueue(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrTaskNil
	}
	if task.QueueName == "" {
		return ErrEmptyQueueName
	}
	if task.TaskType == "" {
		return ErrEmptyTaskType
	}

	var err error
	if task.DelaySeconds > 0 {
		err = d.storage.PushScheduled(ctx, task)
	} else {
		err = d.storage.PushReady(ctx, task)
	}
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to enqueue task",
			slog.String("task_id", task.ID),
			slog.String("queue", task.QueueName),
			slog.String("error", err.Error()))
		return errors.Join(ErrStoreUnavailable, err)
	}

	d.logger.InfoContext(ctx, "task enqueued",
		slog.String("task_id", task.ID),
		slog.String("queue", task.QueueName),
		slog.String("task_type", task.TaskType),
		slog.String("priority", string(task.Priority)),
		slog.Int("delay_seconds", task.DelaySeconds))
	return nil
}

// Dequeue returns the next ready task for the queue, trying priorities in
// strict critical > high > normal > low order, and marks it processing
// before handing it to the caller. Due scheduled tasks are swept into their
// ready lists first, so delayed and backoff-rescheduled work becomes visible
// without a separate timer. Returns (nil, nil) when nothing became ready
// within timeout.
func (d *Dispatcher) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Task, error) {
	if queueName == "" {
		return nil, ErrEmptyQueueName
	}

	d.sweepScheduled(ctx, queueName)

	task, err := d.storage.PopReady(ctx, queueName, priorityOrder, timeout)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to dequeue task",
			slog.String("queue", queueName),
			slog.String("error", err.Error()))
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	if task == nil {
		return nil, nil
	}

	if err := d.storage.MarkProcessing(ctx, task); err != nil {
		// The task is already popped; hand it to the caller anyway so the
		// work is not lost. Worst case the processing set undercounts.
		d.logger.ErrorContext(ctx, "failed to mark task processing",
			slog.String("task_id", task.ID),
			slog.String("queue", queueName),
			slog.String("error", err.Error()))
	}

	return task, nil
}

// sweepScheduled moves every due scheduled task into its ready list at its
// recorded priority. Sweep failures are logged, never propagated: a broken
// sweep must not block dequeueing of already-ready work.
func (d *Dispatcher) sweepScheduled(ctx context.Context, queueName string) {
	due, err := d.storage.PopDueScheduled(ctx, queueName, d.now())
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to sweep scheduled tasks",
			slog.String("queue", queueName),
			slog.String("error", err.Error()))
		return
	}

	for _, task := range due {
		if err := d.storage.PushReady(ctx, task); err != nil {
			d.logger.ErrorContext(ctx, "failed to promote scheduled task",
				slog.String("task_id", task.ID),
				slog.String("queue", queueName),
				slog.String("error", err.Error()))
			// Best effort: put it back so the next sweep retries it.
			if rescheduleErr := d.storage.PushScheduled(ctx, task); rescheduleErr != nil {
				d.logger.ErrorContext(ctx, "failed to reschedule task after promote failure",
					slog.String("task_id", task.ID),
					slog.String("error", rescheduleErr.Error()))
			}
		}
	}
}

// Complete marks the task done by removing it from the processing set. No
// result payload is retained. Completing a task that is already gone is a
// no-op.
func (d *Dispatcher) Complete(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrTaskNil
	}

	if err := d.storage.UnmarkProcessing(ctx, task); err != nil {
		d.logger.ErrorContext(ctx, "failed to complete task",
			slog.String("task_id", task.ID),
			slog.String("queue", task.QueueName),
			slog.String("error", err.Error()))
		return errors.Join(ErrStoreUnavailable, err)
	}

	d.logger.InfoContext(ctx, "task completed",
		slog.String("task_id", task.ID),
		slog.String("queue", task.QueueName),
		slog.String("task_type", task.TaskType))
	return nil
}

// Fail records a processing failure. While the retry budget lasts, the task
// is rescheduled with exponential backoff: min(2^retry * backoffBase,
// backoffMax), i.e. 120s, 240s, 480s, ... capped at one hour with the
// defaults. Once the budget is exhausted the task lands on the failed list
// with its error message and failure time, terminally.
func (d *Dispatcher) Fail(ctx context.Context, task *Task, errorMessage string) error {
	if task == nil {
		return ErrTaskNil
	}

	// Remove from the processing set first; the task is about to live in
	// either the scheduled set or the failed list.
	if err := d.storage.UnmarkProcessing(ctx, task); err != nil {
		d.logger.ErrorContext(ctx, "failed to unmark processing task",
			slog.String("task_id", task.ID),
			slog.String("queue", task.QueueName),
			slog.String("error", err.Error()))
		return errors.Join(ErrStoreUnavailable, err)
	}

	if task.RetryCount < task.MaxRetries {
		task.RetryCount++
		delay := d.backoffDelay(task.RetryCount)
		task.DelaySeconds = int(delay / time.Second)
		task.ScheduledAt = d.now().Add(delay)

		if err := d.storage.PushScheduled(ctx, task); err != nil {
			d.logger.ErrorContext(ctx, "failed to reschedule task for retry",
				slog.String("task_id", task.ID),
				slog.String("queue", task.QueueName),
				slog.String("error", err.Error()))
			return errors.Join(ErrStoreUnavailable, err)
		}

		d.logger.WarnContext(ctx, "task scheduled for retry",
			slog.String("task_id", task.ID),
			slog.String("queue", task.QueueName),
			slog.Int("retry_count", task.RetryCount),
			slog.Int("max_retries", task.MaxRetries),
			slog.Duration("backoff", delay),
			slog.String("error", errorMessage))
		return nil
	}

	failed := &FailedTask{
		Task:         *task,
		ErrorMessage: errorMessage,
		FailedAt:     d.now(),
	}
	if err := d.storage.PushFailed(ctx, failed); err != nil {
		d.logger.ErrorContext(ctx, "failed to record terminal task failure",
			slog.String("task_id", task.ID),
			slog.String("queue", task.QueueName),
			slog.String("error", err.Error()))
		return errors.Join(ErrStoreUnavailable, err)
	}

	d.logger.ErrorContext(ctx, "task failed permanently",
		slog.String("task_id", task.ID),
		slog.String("queue", task.QueueName),
		slog.Int("retry_count", task.RetryCount),
		slog.String("error", errorMessage))
	return nil
}

// backoffDelay computes the retry delay for the given attempt number.
func (d *Dispatcher) backoffDelay(retryCount int) time.Duration {
	// Guard the shift against absurd retry counts.
	if retryCount > 30 {
		return d.backoffMax
	}
	delay := d.backoffBase * (1 << retryCount)
	if delay > d.backoffMax || delay <= 0 {
		delay = d.backoffMax
	}
	return delay
}

// Stats returns a point-in-time snapshot of the queue's region counts.
func (d *Dispatcher) Stats(ctx context.Context, queueName string) (*Stats, error) {
	if queueName == "" {
		return nil, ErrEmptyQueueName
	}

	stats, err := d.storage.Counts(ctx, queueName)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to collect queue stats",
			slog.String("queue", queueName),
			slog.String("error", err.Error()))
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return stats, nil
}

// Healthcheck probes store reachability.
func (d *Dispatcher) Healthcheck(ctx context.Context) error {
	if err := d.storage.Ping(ctx); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
