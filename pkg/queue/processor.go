package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

type (
	// Processor consumes a task payload. Process reports failure by
	// returning an error; the worker routes that error through the
	// dispatcher's retry/backoff machinery. Implementations must be safe
	// for concurrent re-entrant use.
	Processor interface {
		Type() string
		Process(ctx context.Context, payload json.RawMessage) error
	}

	// ProcessorFunc is the raw-payload processor signature.
	ProcessorFunc func(ctx context.Context, payload json.RawMessage) error

	// TypedProcessorFunc is a processor signature with a typed payload.
	TypedProcessorFunc[T any] func(ctx context.Context, payload T) error
)

// NewProcessor registers fn against the given task type tag, working on the
// raw JSON payload.
func NewProcessor(taskType string, fn ProcessorFunc) Processor {
	return &rawProcessor{taskType: taskType, fn: fn}
}

// NewTypedProcessor adapts a typed handler: the payload is unmarshaled into
// T before fn runs, and an unmarshalable payload counts as a processing
// failure.
func NewTypedProcessor[T any](taskType string, fn TypedProcessorFunc[T]) Processor {
	return &typedProcessor[T]{taskType: taskType, fn: fn}
}

type rawProcessor struct {
	taskType string
	fn       ProcessorFunc
}

func (p *rawProcessor) Type() string { return p.taskType }

func (p *rawProcessor) Process(ctx context.Context, payload json.RawMessage) error {
	return p.fn(ctx, payload)
}

type typedProcessor[T any] struct {
	taskType string
	fn       TypedProcessorFunc[T]
}

func (p *typedProcessor[T]) Type() string { return p.taskType }

func (p *typedProcessor[T]) Process(ctx context.Context, payload json.RawMessage) error {
	var t T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &t); err != nil {
			return fmt.Errorf("failed to unmarshal payload for task type %q: %w", p.taskType, err)
		}
	}
	return p.fn(ctx, t)
}
