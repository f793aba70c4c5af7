package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
)

// HandlerFunc consumes one event payload. The payload's concrete type
// matches the registration for the event name.
type HandlerFunc func(ctx context.Context, payload any) error

// Dispatcher maps event names to handlers. Unregistered events and
// handler failures are logged, never propagated: raising an event must
// not break the business workflow that raised it.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Name]HandlerFunc
	validate *validator.Validate
	logger   *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[Name]HandlerFunc),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register binds a handler to an event name. Last registration wins.
func (d *Dispatcher) Register(name Name, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = h
}

// Dispatch validates the payload and invokes the registered handler.
// The boolean reports whether a handler ran successfully; false covers
// unregistered names, invalid payloads, handler errors and panics.
func (d *Dispatcher) Dispatch(ctx context.Context, name Name, payload any) bool {
	d.mu.RLock()
	h, ok := d.handlers[name]
	d.mu.RUnlock()

	if !ok {
		d.logger.LogAttrs(ctx, slog.LevelDebug, "no handler registered for event",
			slog.String("event", string(name)),
		)
		return false
	}

	if payload != nil {
		if err := d.validate.Struct(payload); err != nil {
			d.logger.LogAttrs(ctx, slog.LevelWarn, "event payload failed validation",
				slog.String("event", string(name)),
				slog.Any("error", err),
			)
			return false
		}
	}

	if err := d.invoke(ctx, name, h, payload); err != nil {
		d.logger.LogAttrs(ctx, slog.LevelError, "event handler failed",
			slog.String("event", string(name)),
			slog.Any("error", err),
		)
		return false
	}
	return true
}

// invoke runs the handler with panic containment.
func (d *Dispatcher) invoke(ctx context.Context, name Name, h HandlerFunc, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %q panicked: %v", name, r)
		}
	}()
	return h(ctx, payload)
}

// TypedHandler adapts a typed function to a HandlerFunc, rejecting
// payloads of the wrong concrete type.
func TypedHandler[T any](fn func(ctx context.Context, ev T) error) HandlerFunc {
	return func(ctx context.Context, payload any) error {
		ev, ok := payload.(T)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", payload)
		}
		return fn(ctx, ev)
	}
}
