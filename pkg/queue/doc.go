// Package queue provides a Redis-backed, priority-aware task queue with
// delayed execution, exponential-backoff retries, and a dead-letter path for
// exhausted tasks.
//
// The package is organised around three main components:
//
//   - Task        — a unit of deferred work with priority, retry budget, and
//     scheduling time
//   - Dispatcher  — the single owner of lifecycle transitions: scheduled ->
//     ready -> processing -> completed/failed
//   - Worker      — a polling loop that pulls ready tasks and invokes the
//     Processor registered for each task's type tag
//
// Components interact only through the Storage interface, keeping the
// lifecycle logic decoupled from persistence. RedisStorage is the production
// implementation; MemoryStorage mirrors its semantics for tests and local
// development.
//
// # Storage layout
//
// Each queue owns four regions in the store, namespaced by queue name:
//
//	queue:{name}:{priority}  ready list per priority band (FIFO)
//	scheduled:{name}         time-ordered set, scored by epoch seconds
//	processing:{name}        set of in-flight tasks
//	failed:{name}            terminal failures, newest first
//
// These key names are part of the operational contract when several
// processes share one store.
//
// # Ordering and delivery
//
// Within one priority band tasks are FIFO by enqueue time. Across bands the
// order is strict: any critical-ready task is returned before high, normal,
// or low work, even when the latter was enqueued earlier. Dequeueing uses a
// single blocking pop across all four priority keys, so an empty queue costs
// one bounded wait, not four.
//
// Delivery is at-least-once. A worker crash between pop and
// Complete/Fail can strand the task's entry in the processing set; the entry
// stays visible through Stats for operators, and there is no automatic
// reaper.
//
// # Usage
//
//	storage, _ := queue.NewRedisStorage(client)
//	dispatcher, _ := queue.NewDispatcher(storage)
//
//	task, _ := queue.NewTask("notifications", "notification.send",
//	    SendPayload{OrderID: 42},
//	    queue.WithPriority(queue.PriorityHigh),
//	    queue.WithDelay(30*time.Second),
//	)
//	_ = dispatcher.Enqueue(ctx, task)
//
//	worker, _ := queue.NewWorker(dispatcher, "notifications")
//	_ = worker.Register(queue.NewTypedProcessor("notification.send",
//	    func(ctx context.Context, p SendPayload) error {
//	        return send(ctx, p.OrderID)
//	    },
//	))
//	_ = worker.Start(ctx)
//	defer worker.Stop()
//
// Failed attempts are rescheduled with exponential backoff (120s, 240s,
// 480s, ... capped at one hour); once MaxRetries is exhausted the task moves
// to the failed list with its error message and failure time.
//
// # Error Handling
//
// Package-level sentinel errors (e.g. ErrStoreUnavailable,
// ErrProcessorMissing) signal violations of business invariants and can be
// checked with errors.Is. A store failure surfaces as a wrapped
// ErrStoreUnavailable from any dispatcher method and must be read as "not
// guaranteed delivered". Processor errors and panics are captured per task
// and routed through the retry machinery; they never halt the worker loop.
package queue
