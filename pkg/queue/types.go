package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Priority determines the order in which ready tasks are handed to workers.
// Within one priority band tasks are delivered FIFO; across bands critical
// work always wins, regardless of enqueue time.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"

	PriorityDefault = PriorityNormal
)

// priorityOrder lists all priorities from most to least urgent. Storage
// implementations rely on this order when selecting the next ready task.
var priorityOrder = []Priority{PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow}

// Priorities returns all priority levels ordered from most to least urgent.
func Priorities() []Priority {
	out := make([]Priority, len(priorityOrder))
	copy(out, priorityOrder)
	return out
}

// Valid checks if the priority is one of the known levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// DefaultMaxRetries is applied when a task is built without an explicit
// retry budget.
const DefaultMaxRetries = 3

// Task is a unit of deferred work. A task is immutable by convention once
// enqueued; only the dispatcher touches RetryCount and ScheduledAt when it
// reschedules a failed attempt.
type Task struct {
	ID           string          `json:"id"`
	QueueName    string          `json:"queue_name"`
	TaskType     string          `json:"task_type"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Priority     Priority        `json:"priority"`
	MaxRetries   int             `json:"max_retries"`
	RetryCount   int             `json:"retry_count"`
	DelaySeconds int             `json:"delay_seconds,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ScheduledAt  time.Time       `json:"scheduled_at"`
}

// FailedTask is the terminal record kept on the failed list once a task
// exhausts its retry budget. Entries are retained for inspection only.
type FailedTask struct {
	Task
	ErrorMessage string    `json:"error_message"`
	FailedAt     time.Time `json:"failed_at"`
}

// Stats is a point-in-time snapshot of a queue's four storage regions.
// Counts are derived from the store on demand, never persisted.
type Stats struct {
	QueueName       string             `json:"queue_name"`
	Ready           map[Priority]int64 `json:"ready"`
	ScheduledCount  int64              `json:"scheduled_count"`
	ProcessingCount int64              `json:"processing_count"`
	FailedCount     int64              `json:"failed_count"`
}

// ReadyTotal sums the ready counts across all priority bands.
func (s *Stats) ReadyTotal() int64 {
	var total int64
	for _, n := range s.Ready {
		total += n
	}
	return total
}

// NewTask builds a task bound for queueName with the given type tag. The
// payload is marshaled to JSON and treated as opaque from here on. CreatedAt
// and ScheduledAt are derived automatically; a positive delay pushes
// ScheduledAt into the future and routes the task through the scheduled set.
func NewTask(queueName, taskType string, payload any, opts ...TaskOption) (*Task, error) {
	if queueName == "" {
		return nil, ErrEmptyQueueName
	}
	if taskType == "" {
		return nil, ErrEmptyTaskType
	}

	options := &taskOptions{
		priority:   PriorityDefault,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(options)
	}

	if !options.priority.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, options.priority)
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload of type %T: %w", payload, err)
		}
		raw = data
	}

	id := options.id
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	scheduledAt := now.Add(time.Duration(options.delaySeconds) * time.Second)
	if options.scheduledAt != nil {
		scheduledAt = *options.scheduledAt
		if d := int(scheduledAt.Sub(now) / time.Second); d > 0 {
			options.delaySeconds = d
		}
	}

	return &Task{
		ID:           id,
		QueueName:    queueName,
		TaskType:     taskType,
		Payload:      raw,
		Priority:     options.priority,
		MaxRetries:   options.maxRetries,
		RetryCount:   0,
		DelaySeconds: options.delaySeconds,
		CreatedAt:    now,
		ScheduledAt:  scheduledAt,
	}, nil
}

// TaskOption is a functional option for NewTask.
type TaskOption func(*taskOptions)

type taskOptions struct {
	id           string
	priority     Priority
	maxRetries   int
	delaySeconds int
	scheduledAt  *time.Time
}

// WithTaskID sets a caller-supplied task ID instead of a generated UUID.
// The ID is used for logging and inspection; uniqueness is not enforced
// by the store.
func WithTaskID(id string) TaskOption {
	return func(o *taskOptions) {
		if id != "" {
			o.id = id
		}
	}
}

// WithPriority sets the task priority.
func WithPriority(priority Priority) TaskOption {
	return func(o *taskOptions) {
		o.priority = priority
	}
}

// WithMaxRetries sets the retry budget. Negative values are ignored.
func WithMaxRetries(maxRetries int) TaskOption {
	return func(o *taskOptions) {
		if maxRetries >= 0 {
			o.maxRetries = maxRetries
		}
	}
}

// WithDelay delays the first delivery attempt. Sub-second durations are
// rounded down; the scheduled set keys by epoch seconds.
func WithDelay(delay time.Duration) TaskOption {
	return func(o *taskOptions) {
		if delay > 0 {
			o.delaySeconds = int(delay / time.Second)
		}
	}
}

// WithScheduledAt sets an explicit delivery time, overriding WithDelay.
func WithScheduledAt(scheduledAt time.Time) TaskOption {
	return func(o *taskOptions) {
		o.scheduledAt = &scheduledAt
	}
}
