package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zayyadi/paroll-sub001/pkg/cache"
	"github.com/zayyadi/paroll-sub001/pkg/notification"
	"github.com/zayyadi/paroll-sub001/pkg/realtime"
)

// RealtimeHandler pushes the notification onto the recipient's
// WebSocket stream. Broadcast is fire-and-forget: a recipient with no
// open connections still counts as delivered, the in-app list is the
// durable record.
type RealtimeHandler struct {
	hub    *realtime.Hub
	cache  cache.Cache
	logger *slog.Logger
}

// NewRealtimeHandler creates the in-app channel handler.
func NewRealtimeHandler(hub *realtime.Hub, c cache.Cache, logger *slog.Logger) *RealtimeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RealtimeHandler{hub: hub, cache: c, logger: logger}
}

func (h *RealtimeHandler) Channel() notification.Channel {
	return notification.ChannelInApp
}

func (h *RealtimeHandler) Deliver(ctx context.Context, n *notification.Notification, rcpt *Recipient) Result {
	if h.hub == nil {
		return failure(CodeConfigMissing, "realtime hub not configured")
	}

	conns := h.hub.Connections(rcpt.ID)
	if err := h.hub.Publish(ctx, rcpt.ID, realtime.NotificationEvent(n)); err != nil {
		return failure(CodeProviderError, err.Error())
	}

	// Optimistic bump so connected clients see the new count without a
	// recount; the cache repopulates from the store on the next miss.
	if h.cache != nil {
		if err := h.cache.IncrUnreadCount(ctx, rcpt.ID, 1); err != nil {
			h.logger.LogAttrs(ctx, slog.LevelWarn, "unread count bump failed",
				slog.String("recipient_id", rcpt.ID),
				slog.Any("error", err),
			)
		}
	}

	return success(fmt.Sprintf("broadcast to %d connections", conns), map[string]string{
		"connections": fmt.Sprintf("%d", conns),
	})
}
