package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage implements Storage in memory for testing and local
// development. It mirrors the Redis layout region for region and keeps the
// same semantics: FIFO ready lists per priority, a scheduled set ordered by
// ScheduledAt, an ID-keyed processing set, and a newest-first failed list.
type MemoryStorage struct {
	mu         sync.Mutex
	ready      map[string][]*Task
	scheduled  map[string][]*Task
	processing map[string]map[string]struct{}
	failed     map[string][]*FailedTask
}

// NewMemoryStorage creates a new in-memory storage implementation.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		ready:      make(map[string][]*Task),
		scheduled:  make(map[string][]*Task),
		processing: make(map[string]map[string]struct{}),
		failed:     make(map[string][]*FailedTask),
	}
}

func (ms *MemoryStorage) PushReady(ctx context.Context, task *Task) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	key := readyKey(task.QueueName, task.Priority)
	taskCopy := *task
	ms.ready[key] = append(ms.ready[key], &taskCopy)
	return nil
}

func (ms *MemoryStorage) PopReady(ctx context.Context, queueName string, priorities []Priority, timeout time.Duration) (*Task, error) {
	deadline := time.Now().Add(timeout)

	for {
		if task := ms.tryPop(queueName, priorities); task != nil {
			return task, nil
		}
		if timeout <= 0 || time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// tryPop removes the head of the first non-empty ready list in priority
// order, or returns nil when every list is empty.
func (ms *MemoryStorage) tryPop(queueName string, priorities []Priority) *Task {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, p := range priorities {
		key := readyKey(queueName, p)
		list := ms.ready[key]
		if len(list) == 0 {
			continue
		}
		task := list[0]
		ms.ready[key] = list[1:]
		taskCopy := *task
		return &taskCopy
	}
	return nil
}

func (ms *MemoryStorage) PushScheduled(ctx context.Context, task *Task) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	key := scheduledKey(task.QueueName)
	taskCopy := *task
	ms.scheduled[key] = append(ms.scheduled[key], &taskCopy)
	return nil
}

func (ms *MemoryStorage) PopDueScheduled(ctx context.Context, queueName string, now time.Time) ([]*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	key := scheduledKey(queueName)
	var due, remaining []*Task
	for _, task := range ms.scheduled[key] {
		// The scheduled set scores by epoch seconds, so compare at second
		// granularity like the Redis implementation does.
		if task.ScheduledAt.Unix() <= now.Unix() {
			due = append(due, task)
		} else {
			remaining = append(remaining, task)
		}
	}
	ms.scheduled[key] = remaining

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})

	out := make([]*Task, len(due))
	for i, task := range due {
		taskCopy := *task
		out[i] = &taskCopy
	}
	return out, nil
}

func (ms *MemoryStorage) MarkProcessing(ctx context.Context, task *Task) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	key := processingKey(task.QueueName)
	if ms.processing[key] == nil {
		ms.processing[key] = make(map[string]struct{})
	}
	ms.processing[key][task.ID] = struct{}{}
	return nil
}

func (ms *MemoryStorage) UnmarkProcessing(ctx context.Context, task *Task) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	// Removing an absent entry is a no-op so Complete stays idempotent.
	delete(ms.processing[processingKey(task.QueueName)], task.ID)
	return nil
}

func (ms *MemoryStorage) PushFailed(ctx context.Context, failed *FailedTask) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	key := failedKey(failed.QueueName)
	failedCopy := *failed
	ms.failed[key] = append([]*FailedTask{&failedCopy}, ms.failed[key]...)
	return nil
}

// FailedTasks returns the failed list for a queue, newest first. It exists
// so tests and local tooling can inspect terminal failures.
func (ms *MemoryStorage) FailedTasks(queueName string) []*FailedTask {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	list := ms.failed[failedKey(queueName)]
	out := make([]*FailedTask, len(list))
	for i, f := range list {
		failedCopy := *f
		out[i] = &failedCopy
	}
	return out
}

func (ms *MemoryStorage) Counts(ctx context.Context, queueName string) (*Stats, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	stats := &Stats{
		QueueName:       queueName,
		Ready:           make(map[Priority]int64, len(priorityOrder)),
		ScheduledCount:  int64(len(ms.scheduled[scheduledKey(queueName)])),
		ProcessingCount: int64(len(ms.processing[processingKey(queueName)])),
		FailedCount:     int64(len(ms.failed[failedKey(queueName)])),
	}
	for _, p := range priorityOrder {
		stats.Ready[p] = int64(len(ms.ready[readyKey(queueName, p)]))
	}
	return stats, nil
}

func (ms *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}
