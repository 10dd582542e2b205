package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomsupport/botkit/pkg/queue"
)

type sendPayload struct {
	OrderID int    `json:"order_id"`
	Message string `json:"message"`
}

func newTestWorker(t *testing.T, dispatcher *queue.Dispatcher, queueName string) *queue.Worker {
	t.Helper()

	worker, err := queue.NewWorker(dispatcher, queueName,
		queue.WithPollTimeout(20*time.Millisecond),
		queue.WithErrorPause(10*time.Millisecond),
		queue.WithWorkerLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return worker
}

func TestNewWorker(t *testing.T) {
	t.Parallel()

	dispatcher, _, _ := newTestDispatcher(t)

	t.Run("nil dispatcher", func(t *testing.T) {
		t.Parallel()

		worker, err := queue.NewWorker(nil, "orders")
		assert.ErrorIs(t, err, queue.ErrDispatcherNil)
		assert.Nil(t, worker)
	})

	t.Run("empty queue name", func(t *testing.T) {
		t.Parallel()

		worker, err := queue.NewWorker(dispatcher, "")
		assert.ErrorIs(t, err, queue.ErrEmptyQueueName)
		assert.Nil(t, worker)
	})

	t.Run("successful creation", func(t *testing.T) {
		t.Parallel()

		worker, err := queue.NewWorker(dispatcher, "orders")
		require.NoError(t, err)
		require.NotNil(t, worker)
	})
}

func TestWorker_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("start without processors", func(t *testing.T) {
		t.Parallel()

		dispatcher, _, _ := newTestDispatcher(t)
		worker := newTestWorker(t, dispatcher, "orders")

		assert.ErrorIs(t, worker.Start(context.Background()), queue.ErrNoProcessors)
	})

	t.Run("double start", func(t *testing.T) {
		t.Parallel()

		dispatcher, _, _ := newTestDispatcher(t)
		worker := newTestWorker(t, dispatcher, "orders")
		require.NoError(t, worker.Register(queue.NewProcessor("noop",
			func(ctx context.Context, _ json.RawMessage) error { return nil })))

		require.NoError(t, worker.Start(context.Background()))
		assert.ErrorIs(t, worker.Start(context.Background()), queue.ErrWorkerAlreadyStarted)
		require.NoError(t, worker.Stop())
	})

	t.Run("stop before start", func(t *testing.T) {
		t.Parallel()

		dispatcher, _, _ := newTestDispatcher(t)
		worker := newTestWorker(t, dispatcher, "orders")

		assert.ErrorIs(t, worker.Stop(), queue.ErrWorkerNotStarted)
	})

	t.Run("restart after stop", func(t *testing.T) {
		t.Parallel()

		dispatcher, _, _ := newTestDispatcher(t)
		worker := newTestWorker(t, dispatcher, "orders")
		require.NoError(t, worker.Register(queue.NewProcessor("noop",
			func(ctx context.Context, _ json.RawMessage) error { return nil })))

		require.NoError(t, worker.Start(context.Background()))
		require.NoError(t, worker.Stop())
		require.NoError(t, worker.Start(context.Background()))
		require.NoError(t, worker.Stop())
	})
}

func TestWorker_Register(t *testing.T) {
	t.Parallel()

	t.Run("nil processor", func(t *testing.T) {
		t.Parallel()

		dispatcher, _, _ := newTestDispatcher(t)
		worker := newTestWorker(t, dispatcher, "orders")

		assert.ErrorIs(t, worker.Register(nil), queue.ErrProcessorNil)
	})

	t.Run("last registration wins", func(t *testing.T) {
		t.Parallel()

		dispatcher, _, _ := newTestDispatcher(t)
		worker := newTestWorker(t, dispatcher, "orders")
		ctx := context.Background()

		var first, second atomic.Int32
		require.NoError(t, worker.Register(queue.NewProcessor("order.sync",
			func(ctx context.Context, _ json.RawMessage) error {
				first.Add(1)
				return nil
			})))
		// Re-registering the same type replaces the previous processor.
		require.NoError(t, worker.Register(queue.NewProcessor("order.sync",
			func(ctx context.Context, _ json.RawMessage) error {
				second.Add(1)
				return nil
			})))

		task, err := queue.NewTask("orders", "order.sync", nil)
		require.NoError(t, err)
		require.NoError(t, dispatcher.Enqueue(ctx, task))

		require.NoError(t, worker.Start(ctx))
		defer func() { _ = worker.Stop() }()

		require.Eventually(t, func() bool {
			return second.Load() == 1
		}, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, int32(0), first.Load())
	})
}

func TestWorker_ProcessesTask(t *testing.T) {
	t.Parallel()

	dispatcher, _, _ := newTestDispatcher(t)
	worker := newTestWorker(t, dispatcher, "notif")
	ctx := context.Background()

	got := make(chan sendPayload, 1)
	require.NoError(t, worker.Register(queue.NewTypedProcessor("notification.send",
		func(ctx context.Context, p sendPayload) error {
			got <- p
			return nil
		})))

	task, err := queue.NewTask("notif", "notification.send",
		sendPayload{OrderID: 42, Message: "shipped"},
		queue.WithPriority(queue.PriorityHigh))
	require.NoError(t, err)
	require.NoError(t, dispatcher.Enqueue(ctx, task))

	require.NoError(t, worker.Start(ctx))
	defer func() { _ = worker.Stop() }()

	select {
	case p := <-got:
		assert.Equal(t, 42, p.OrderID)
		assert.Equal(t, "shipped", p.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("processor was not invoked")
	}

	// Once completed the task is gone from every region.
	require.Eventually(t, func() bool {
		stats, err := dispatcher.Stats(ctx, "notif")
		return err == nil &&
			stats.ReadyTotal() == 0 &&
			stats.ProcessingCount == 0 &&
			stats.ScheduledCount == 0 &&
			stats.FailedCount == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorker_FailedTaskIsRescheduled(t *testing.T) {
	t.Parallel()

	dispatcher, _, _ := newTestDispatcher(t)
	worker := newTestWorker(t, dispatcher, "notif")
	ctx := context.Background()

	var calls atomic.Int32
	require.NoError(t, worker.Register(queue.NewProcessor("notification.send",
		func(ctx context.Context, _ json.RawMessage) error {
			calls.Add(1)
			return errors.New("smtp unreachable")
		})))

	task, err := queue.NewTask("notif", "notification.send", nil,
		queue.WithMaxRetries(3))
	require.NoError(t, err)
	require.NoError(t, dispatcher.Enqueue(ctx, task))

	require.NoError(t, worker.Start(ctx))
	defer func() { _ = worker.Stop() }()

	// The first attempt fails and the task lands in the scheduled set with
	// its retry budget charged; backoff keeps it out of reach of the loop.
	require.Eventually(t, func() bool {
		stats, err := dispatcher.Stats(ctx, "notif")
		return err == nil && stats.ScheduledCount == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWorker_MissingProcessorScenario(t *testing.T) {
	t.Parallel()

	dispatcher, storage, clk := newTestDispatcher(t)
	worker := newTestWorker(t, dispatcher, "webhooks")
	ctx := context.Background()

	// Registered for a different type; "mystery" has no processor.
	require.NoError(t, worker.Register(queue.NewProcessor("known",
		func(ctx context.Context, _ json.RawMessage) error { return nil })))

	task, err := queue.NewTask("webhooks", "mystery", nil,
		queue.WithMaxRetries(1))
	require.NoError(t, err)
	require.NoError(t, dispatcher.Enqueue(ctx, task))

	require.NoError(t, worker.Start(ctx))
	defer func() { _ = worker.Stop() }()

	// First cycle: failed with a no-processor message, retried once.
	require.Eventually(t, func() bool {
		stats, err := dispatcher.Stats(ctx, "webhooks")
		return err == nil && stats.ScheduledCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Make the retry due; the second cycle exhausts the budget.
	clk.Advance(3 * time.Minute)
	require.Eventually(t, func() bool {
		return len(storage.FailedTasks("webhooks")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	failed := storage.FailedTasks("webhooks")
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].RetryCount)
	assert.Contains(t, failed[0].ErrorMessage, "no processor registered for task type")
	assert.Contains(t, failed[0].ErrorMessage, "mystery")
}

func TestWorker_PanicRecovery(t *testing.T) {
	t.Parallel()

	dispatcher, _, _ := newTestDispatcher(t)
	worker := newTestWorker(t, dispatcher, "webhooks")
	ctx := context.Background()

	var calls atomic.Int32
	require.NoError(t, worker.Register(queue.NewProcessor("webhook.process",
		func(ctx context.Context, _ json.RawMessage) error {
			calls.Add(1)
			panic("corrupt payload")
		})))
	require.NoError(t, worker.Register(queue.NewProcessor("noop",
		func(ctx context.Context, _ json.RawMessage) error {
			calls.Add(1)
			return nil
		})))

	bad, err := queue.NewTask("webhooks", "webhook.process", nil,
		queue.WithMaxRetries(0))
	require.NoError(t, err)
	require.NoError(t, dispatcher.Enqueue(ctx, bad))

	ok, err := queue.NewTask("webhooks", "noop", nil)
	require.NoError(t, err)
	require.NoError(t, dispatcher.Enqueue(ctx, ok))

	require.NoError(t, worker.Start(ctx))
	defer func() { _ = worker.Stop() }()

	// The panicking task fails terminally; the loop survives and still
	// processes the healthy one.
	require.Eventually(t, func() bool {
		stats, err := dispatcher.Stats(ctx, "webhooks")
		return err == nil && stats.FailedCount == 1 && calls.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorker_GracefulStop(t *testing.T) {
	t.Parallel()

	dispatcher, _, _ := newTestDispatcher(t)
	worker := newTestWorker(t, dispatcher, "orders")
	ctx := context.Background()

	started := make(chan struct{})
	finished := make(chan struct{})
	require.NoError(t, worker.Register(queue.NewProcessor("order.sync",
		func(ctx context.Context, _ json.RawMessage) error {
			close(started)
			time.Sleep(100 * time.Millisecond)
			close(finished)
			return nil
		})))

	task, err := queue.NewTask("orders", "order.sync", nil)
	require.NoError(t, err)
	require.NoError(t, dispatcher.Enqueue(ctx, task))

	require.NoError(t, worker.Start(ctx))

	<-started
	// Stop must wait for the in-flight task instead of interrupting it.
	require.NoError(t, worker.Stop())

	select {
	case <-finished:
	default:
		t.Fatal("worker stopped before the in-flight task finished")
	}

	stats, err := dispatcher.Stats(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.ProcessingCount)
}

func TestWorker_RunAdapter(t *testing.T) {
	t.Parallel()

	dispatcher, _, _ := newTestDispatcher(t)
	worker := newTestWorker(t, dispatcher, "orders")
	require.NoError(t, worker.Register(queue.NewProcessor("noop",
		func(ctx context.Context, _ json.RawMessage) error { return nil })))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx)() }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after context cancellation")
	}
}
