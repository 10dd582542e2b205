package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Worker drives one queue: it polls the dispatcher for ready tasks and
// invokes the processor registered for each task's type tag. Multiple
// workers may run against the same queue; the storage's exclusive pop
// guarantees no two of them observe the same task.
type Worker struct {
	dispatcher *Dispatcher
	queueName  string
	logger     *slog.Logger

	pollTimeout time.Duration
	errPause    time.Duration

	mu         sync.RWMutex
	processors map[string]Processor
	cancel     context.CancelFunc
	ctx        context.Context
	wg         sync.WaitGroup
}

// NewWorker creates a worker bound to queueName.
func NewWorker(dispatcher *Dispatcher, queueName string, opts ...WorkerOption) (*Worker, error) {
	if dispatcher == nil {
		return nil, ErrDispatcherNil
	}
	if queueName == "" {
		return nil, ErrEmptyQueueName
	}

	options := &workerOptions{
		pollTimeout: 5 * time.Second,
		errPause:    time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		dispatcher:  dispatcher,
		queueName:   queueName,
		logger:      options.logger,
		pollTimeout: options.pollTimeout,
		errPause:    options.errPause,
		processors:  make(map[string]Processor),
	}, nil
}

// Register adds a processor to the registry. Registration is idempotent per
// type tag and the last registration wins; re-registering a type replaces
// the previous processor and is logged, never silently ignored.
//
// The registry is meant to be populated at startup. Registering while the
// worker runs is not a supported operation.
func (w *Worker) Register(p Processor) error {
	if p == nil {
		return ErrProcessorNil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.processors[p.Type()]; exists {
		w.logger.Warn("processor registration overridden",
			slog.String("task_type", p.Type()))
	}
	w.processors[p.Type()] = p

	w.logger.Info("processor registered",
		slog.String("task_type", p.Type()),
		slog.String("queue", w.queueName))
	return nil
}

// Start begins polling in the background. It fails when the worker is
// already running or no processors are registered.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return ErrWorkerAlreadyStarted
	}
	if len(w.processors) == 0 {
		w.mu.Unlock()
		return ErrNoProcessors
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run()

	w.logger.Info("worker started",
		slog.String("queue", w.queueName),
		slog.Duration("poll_timeout", w.pollTimeout))
	return nil
}

// Stop ends the polling loop and waits for the in-flight task, if any, to
// finish. It never interrupts a running processor; stopping only prevents
// new dequeues.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerNotStarted
	}
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()

	w.logger.Info("worker stopped", slog.String("queue", w.queueName))
	return nil
}

// Run adapts the worker to errgroup-style lifecycles: it starts the worker,
// waits for ctx cancellation, and stops it.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return w.Stop()
	}
}

// run is the polling loop. Dequeue's bounded blocking wait provides the
// pacing; an empty result just loops again. Store errors are logged and the
// loop pauses briefly before polling again, so a flapping store never kills
// the worker.
func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		task, err := w.dispatcher.Dequeue(w.ctx, w.queueName, w.pollTimeout)
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}
			w.logger.Error("worker dequeue error",
				slog.String("queue", w.queueName),
				slog.String("error", err.Error()))
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(w.errPause):
			}
			continue
		}
		if task == nil {
			continue
		}

		w.process(task)
	}
}

// process runs one task to completion or failure. The processor executes
// under a background-derived context so a stopping worker lets the in-flight
// task finish, and the final Complete/Fail bookkeeping survives the worker
// context being canceled.
func (w *Worker) process(task *Task) {
	ctx := context.Background()

	w.mu.RLock()
	processor, ok := w.processors[task.TaskType]
	w.mu.RUnlock()

	if !ok {
		w.logger.Error("no processor registered for task type",
			slog.String("task_id", task.ID),
			slog.String("task_type", task.TaskType),
			slog.String("queue", w.queueName))
		// Counts against the retry budget like any other failure; a
		// processor deployed later can still pick up the retried task.
		if err := w.dispatcher.Fail(ctx, task, fmt.Sprintf("%s: %s", ErrProcessorMissing, task.TaskType)); err != nil {
			w.logger.Error("failed to fail task without processor",
				slog.String("task_id", task.ID),
				slog.String("error", err.Error()))
		}
		return
	}

	w.logger.Info("processing task",
		slog.String("task_id", task.ID),
		slog.String("task_type", task.TaskType),
		slog.String("queue", w.queueName),
		slog.Int("retry_count", task.RetryCount))

	start := time.Now()
	err := w.invoke(ctx, processor, task)
	duration := time.Since(start)

	if err != nil {
		w.logger.Error("task processing failed",
			slog.String("task_id", task.ID),
			slog.String("task_type", task.TaskType),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		if failErr := w.dispatcher.Fail(ctx, task, err.Error()); failErr != nil {
			w.logger.Error("failed to record task failure",
				slog.String("task_id", task.ID),
				slog.String("error", failErr.Error()))
		}
		return
	}

	if err := w.dispatcher.Complete(ctx, task); err != nil {
		w.logger.Error("failed to complete task",
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()))
		return
	}

	w.logger.Info("task processed",
		slog.String("task_id", task.ID),
		slog.String("task_type", task.TaskType),
		slog.String("queue", w.queueName),
		slog.Duration("duration", duration))
}

// invoke runs the processor with panic recovery: a panicking processor is
// treated as a task failure, never as a worker crash.
func (w *Worker) invoke(ctx context.Context, processor Processor, task *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in processor: %v", r)
			w.logger.Error("processor panicked",
				slog.String("task_id", task.ID),
				slog.String("task_type", task.TaskType),
				slog.Any("panic", r))
		}
	}()

	return processor.Process(ctx, task.Payload)
}
