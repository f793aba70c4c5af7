// Package realtime streams notification events to connected clients
// over WebSocket. A Hub keys one broadcaster per recipient so events
// fan out to every device the recipient has open.
package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zayyadi/paroll-sub001/pkg/broadcast"
	"github.com/zayyadi/paroll-sub001/pkg/notification"
)

var (
	// ErrHubClosed is returned when subscribing to or publishing on a
	// closed hub.
	ErrHubClosed = errors.New("realtime hub is closed")

	// ErrUnauthenticated means the request carried no usable identity.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNoProfile means the identity is valid but has no employee
	// profile to receive notifications.
	ErrNoProfile = errors.New("no employee profile")
)

// EventType discriminates server-to-client messages.
type EventType string

const (
	EventConnection         EventType = "connection"
	EventNotification       EventType = "notification"
	EventNotificationUpdate EventType = "notification_update"
	EventUnreadCount        EventType = "unread_count"
	EventPong               EventType = "pong"
	EventError              EventType = "error"
)

// UpdateType discriminates notification_update frames.
type UpdateType string

const (
	UpdateMarkedRead    UpdateType = "marked_read"
	UpdateAllMarkedRead UpdateType = "all_marked_read"
)

// Event is one server-to-client frame. Fields beyond Type are set
// depending on the event type.
type Event struct {
	Type           EventType                  `json:"type"`
	Status         string                     `json:"status,omitempty"`
	Notification   *notification.Notification `json:"notification,omitempty"`
	NotificationID *uuid.UUID                 `json:"notification_id,omitempty"`
	UpdateType     UpdateType                 `json:"update_type,omitempty"`
	UnreadCount    *int                       `json:"unread_count,omitempty"`
	Message        string                     `json:"message,omitempty"`
	Timestamp      *time.Time                 `json:"timestamp,omitempty"`
}

// ConnectionEvent builds the greeting frame sent after a successful
// handshake.
func ConnectionEvent(unread int) Event {
	now := time.Now().UTC()
	return Event{Type: EventConnection, Status: "connected", UnreadCount: &unread, Timestamp: &now}
}

// NotificationEvent builds the frame announcing a new notification.
func NotificationEvent(n *notification.Notification) Event {
	return Event{Type: EventNotification, Notification: n}
}

// MarkedReadEvent builds the frame announcing one notification was read.
func MarkedReadEvent(id uuid.UUID) Event {
	return Event{Type: EventNotificationUpdate, NotificationID: &id, UpdateType: UpdateMarkedRead}
}

// AllMarkedReadEvent builds the frame announcing every notification was
// read at once.
func AllMarkedReadEvent() Event {
	return Event{Type: EventNotificationUpdate, UpdateType: UpdateAllMarkedRead}
}

// UnreadCountEvent builds the frame carrying the current unread count.
func UnreadCountEvent(count int) Event {
	now := time.Now().UTC()
	return Event{Type: EventUnreadCount, UnreadCount: &count, Timestamp: &now}
}

// Hub routes events to per-recipient broadcasters. Safe for
// concurrent use.
type Hub struct {
	mu         sync.RWMutex
	topics     map[string]*broadcast.MemoryBroadcaster[Event]
	bufferSize int
	closed     bool
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBufferSize sets the per-subscriber channel buffer. Default 16.
func WithBufferSize(n int) HubOption {
	return func(h *Hub) { h.bufferSize = n }
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		topics:     make(map[string]*broadcast.MemoryBroadcaster[Event]),
		bufferSize: 16,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe attaches a subscriber to the recipient's event stream. The
// subscription is removed when ctx is cancelled.
func (h *Hub) Subscribe(ctx context.Context, recipientID string) (broadcast.Subscriber[Event], error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	b, ok := h.topics[recipientID]
	if !ok {
		b = broadcast.NewMemoryBroadcaster[Event](h.bufferSize)
		h.topics[recipientID] = b
	}
	return b.Subscribe(ctx), nil
}

// Publish delivers ev to every open connection of the recipient.
// Publishing to a recipient with no connections is a no-op; idle
// broadcasters are reclaimed here.
func (h *Hub) Publish(ctx context.Context, recipientID string, ev Event) error {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrHubClosed
	}
	b, ok := h.topics[recipientID]
	h.mu.RUnlock()

	if !ok {
		return nil
	}
	if b.Len() == 0 {
		h.mu.Lock()
		if cur, ok := h.topics[recipientID]; ok && cur == b && b.Len() == 0 {
			delete(h.topics, recipientID)
			_ = b.Close()
		}
		h.mu.Unlock()
		return nil
	}
	return b.Broadcast(ctx, broadcast.Message[Event]{Data: ev})
}

// Connections reports how many subscribers the recipient has.
func (h *Hub) Connections(recipientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	b, ok := h.topics[recipientID]
	if !ok {
		return 0
	}
	return b.Len()
}

// Close shuts down every broadcaster. Idempotent.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for id, b := range h.topics {
		_ = b.Close()
		delete(h.topics, id)
	}
	return nil
}
