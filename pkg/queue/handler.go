package queue

import (
	"context"
	"encoding/json"
)

type (
	// Handler processes tasks of one name.
	Handler interface {
		Name() string
		Handle(ctx context.Context, payload json.RawMessage) error
	}

	TaskHandlerFunc[T any]  func(ctx context.Context, payload T) error
	PeriodicTaskHandlerFunc func(ctx context.Context) error
)

// NewTaskHandler wraps a typed function as a Handler. The task name is
// derived from the payload type, matching what Enqueue uses by default.
func NewTaskHandler[T any](handler TaskHandlerFunc[T]) Handler {
	var payload T
	return &typedHandler[T]{
		name:    defaultTaskName(payload),
		handler: handler,
	}
}

// NewPeriodicTaskHandler wraps a payload-less function under an explicit
// name, used for scheduler-created tasks.
func NewPeriodicTaskHandler(name string, handler PeriodicTaskHandlerFunc) Handler {
	return &periodicHandler{name: name, handler: handler}
}

type typedHandler[T any] struct {
	name    string
	handler TaskHandlerFunc[T]
}

func (h *typedHandler[T]) Name() string { return h.name }

func (h *typedHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return err
	}
	return h.handler(ctx, t)
}

type periodicHandler struct {
	name    string
	handler PeriodicTaskHandlerFunc
}

func (h *periodicHandler) Name() string { return h.name }

func (h *periodicHandler) Handle(ctx context.Context, _ json.RawMessage) error {
	return h.handler(ctx)
}
