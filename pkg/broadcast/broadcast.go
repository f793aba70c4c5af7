// Package broadcast provides a small type-safe fan-out primitive.
//
// A Broadcaster delivers each published message to every active
// subscriber without blocking the publisher: subscribers that cannot
// keep up have messages dropped and are evicted. The realtime hub
// builds per-recipient notification streams on top of this package.
package broadcast

import (
	"context"
	"sync"
)

// Message wraps data of type T for broadcasting.
type Message[T any] struct {
	Data T
}

// Subscriber receives messages from a Broadcaster. Implementations
// must be safe for concurrent use.
type Subscriber[T any] interface {
	// Receive returns the channel broadcast messages arrive on. The
	// channel is closed when the subscriber is closed.
	Receive(ctx context.Context) <-chan Message[T]

	// Close releases the subscription. Idempotent.
	Close() error
}

// Broadcaster fans messages out to all active subscribers.
type Broadcaster[T any] interface {
	// Subscribe registers a new subscriber. The subscription ends when
	// the context is cancelled or the subscriber is closed.
	Subscribe(ctx context.Context) Subscriber[T]

	// Broadcast sends a message to every active subscriber. Slow
	// consumers have the message dropped rather than blocking.
	Broadcast(ctx context.Context, msg Message[T]) error

	// Close shuts down the broadcaster and all its subscribers.
	Close() error
}

type subscriber[T any] struct {
	ch     chan Message[T]
	mu     sync.RWMutex
	closed bool
}

func newSubscriber[T any](buffer int) *subscriber[T] {
	return &subscriber[T]{ch: make(chan Message[T], buffer)}
}

func (s *subscriber[T]) Receive(ctx context.Context) <-chan Message[T] {
	return s.ch
}

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	return nil
}

// send attempts a non-blocking delivery. A false return means the
// subscriber is closed or its buffer is full.
func (s *subscriber[T]) send(msg Message[T]) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}
