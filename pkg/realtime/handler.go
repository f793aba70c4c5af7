package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zayyadi/paroll-sub001/pkg/broadcast"
	"github.com/zayyadi/paroll-sub001/pkg/notification"
)

// Close codes sent when the handshake succeeds but the client may not
// hold a notification stream.
const (
	CloseUnauthenticated = 4401
	CloseNoProfile       = 4403
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1024
)

// Authenticator resolves the notification recipient from an incoming
// request. ErrUnauthenticated and ErrNoProfile map to the dedicated
// close codes; any other error closes with an internal error.
type Authenticator interface {
	Authenticate(r *http.Request) (recipientID string, err error)
}

// NotificationAPI is the slice of the notification facade the socket
// needs to serve client commands.
type NotificationAPI interface {
	MarkRead(ctx context.Context, recipientID string, id uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID string) (int, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
}

// command is one client-to-server frame.
type command struct {
	Type           string    `json:"type"`
	NotificationID uuid.UUID `json:"notification_id,omitempty"`
}

// Handler upgrades HTTP requests to notification WebSocket streams.
type Handler struct {
	hub    *Hub
	api    NotificationAPI
	auth   Authenticator
	logger *slog.Logger

	upgrader websocket.Upgrader
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// WithCheckOrigin overrides the upgrade origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) HandlerOption {
	return func(h *Handler) { h.upgrader.CheckOrigin = fn }
}

// NewHandler creates the WebSocket handler.
func NewHandler(hub *Hub, api NotificationAPI, auth Authenticator, opts ...HandlerOption) *Handler {
	h := &Handler{
		hub:    hub,
		api:    api,
		auth:   auth,
		logger: slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP completes the WebSocket handshake, then either closes the
// socket with a policy code or starts the read/write pumps.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	recipientID, authErr := h.auth.Authenticate(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return
	}

	if authErr != nil {
		code := websocket.CloseInternalServerErr
		switch {
		case errors.Is(authErr, ErrUnauthenticated):
			code = CloseUnauthenticated
		case errors.Is(authErr, ErrNoProfile):
			code = CloseNoProfile
		}
		h.closeWith(conn, code, authErr.Error())
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := h.hub.Subscribe(ctx, recipientID)
	if err != nil {
		h.closeWith(conn, websocket.CloseServiceRestart, "shutting down")
		return
	}
	defer sub.Close()

	// Direct replies (pong, errors, command results that only concern
	// this connection) bypass the hub.
	direct := make(chan Event, 8)

	count, err := h.api.UnreadCount(ctx, recipientID)
	if err != nil {
		h.logger.LogAttrs(ctx, slog.LevelWarn, "unread count unavailable at connect",
			slog.String("recipient_id", recipientID),
			slog.Any("error", err),
		)
	}
	direct <- ConnectionEvent(count)

	go h.writePump(ctx, cancel, conn, sub.Receive(ctx), direct)
	h.readPump(ctx, conn, recipientID, direct)
}

func (h *Handler) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}

// readPump consumes client commands until the connection drops.
func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, recipientID string, direct chan<- Event) {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.LogAttrs(ctx, slog.LevelDebug, "websocket read failed",
					slog.String("recipient_id", recipientID),
					slog.Any("error", err),
				)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var cmd command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			h.reply(ctx, direct, Event{Type: EventError, Message: "malformed message"})
			continue
		}
		h.handleCommand(ctx, recipientID, cmd, direct)
	}
}

func (h *Handler) handleCommand(ctx context.Context, recipientID string, cmd command, direct chan<- Event) {
	switch cmd.Type {
	case "ping":
		h.reply(ctx, direct, Event{Type: EventPong})

	case "get_unread_count":
		count, err := h.api.UnreadCount(ctx, recipientID)
		if err != nil {
			h.reply(ctx, direct, Event{Type: EventError, Message: "unread count unavailable"})
			return
		}
		h.reply(ctx, direct, UnreadCountEvent(count))

	case "mark_read":
		if cmd.NotificationID == uuid.Nil {
			h.reply(ctx, direct, Event{Type: EventError, Message: "notification_id is required"})
			return
		}
		if err := h.api.MarkRead(ctx, recipientID, cmd.NotificationID); err != nil {
			if errors.Is(err, notification.ErrNotFound) {
				h.reply(ctx, direct, Event{Type: EventError, Message: "notification not found"})
			} else {
				h.reply(ctx, direct, Event{Type: EventError, Message: "mark read failed"})
			}
			return
		}
		// All of the recipient's devices see the update.
		_ = h.hub.Publish(ctx, recipientID, MarkedReadEvent(cmd.NotificationID))
		h.publishUnreadCount(ctx, recipientID)

	case "mark_all_read":
		if _, err := h.api.MarkAllRead(ctx, recipientID); err != nil {
			h.reply(ctx, direct, Event{Type: EventError, Message: "mark all read failed"})
			return
		}
		_ = h.hub.Publish(ctx, recipientID, AllMarkedReadEvent())
		h.publishUnreadCount(ctx, recipientID)

	default:
		h.reply(ctx, direct, Event{Type: EventError, Message: "unknown command " + cmd.Type})
	}
}

func (h *Handler) publishUnreadCount(ctx context.Context, recipientID string) {
	count, err := h.api.UnreadCount(ctx, recipientID)
	if err != nil {
		h.logger.LogAttrs(ctx, slog.LevelWarn, "unread count unavailable",
			slog.String("recipient_id", recipientID),
			slog.Any("error", err),
		)
		return
	}
	_ = h.hub.Publish(ctx, recipientID, UnreadCountEvent(count))
}

func (h *Handler) reply(ctx context.Context, direct chan<- Event, ev Event) {
	select {
	case direct <- ev:
	case <-ctx.Done():
	}
}

// writePump serializes all outbound frames and keeps the connection
// alive with protocol pings.
func (h *Handler) writePump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, events <-chan broadcast.Message[Event], direct <-chan Event) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		conn.Close()
	}()

	write := func(ev Event) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(ev) == nil
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseServiceRestart, "stream closed"),
					time.Now().Add(writeWait))
				return
			}
			if !write(ev.Data) {
				return
			}
		case ev := <-direct:
			if !write(ev) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
