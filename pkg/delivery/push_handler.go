package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zayyadi/paroll-sub001/pkg/notification"
	"github.com/zayyadi/paroll-sub001/pkg/push"
)

// PushHandler fans one push out to every registered device of the
// recipient. Partial success counts as delivered: one reachable device
// is enough. Tokens the provider reports dead are pruned from the
// registry so they are not retried forever.
type PushHandler struct {
	provider push.Provider
	registry push.TokenRegistry
	logger   *slog.Logger
}

// NewPushHandler creates the push channel handler.
func NewPushHandler(provider push.Provider, registry push.TokenRegistry, logger *slog.Logger) *PushHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushHandler{provider: provider, registry: registry, logger: logger}
}

func (h *PushHandler) Channel() notification.Channel {
	return notification.ChannelPush
}

func (h *PushHandler) Deliver(ctx context.Context, n *notification.Notification, rcpt *Recipient) Result {
	if h.provider == nil || h.registry == nil {
		return failure(CodeConfigMissing, "push provider not configured")
	}

	tokens, err := h.registry.ListByRecipient(ctx, rcpt.ID)
	if err != nil {
		return failure(CodeProviderError, "list device tokens: "+err.Error())
	}
	if len(tokens) == 0 {
		return failure(CodeNoDeviceTokens, "recipient has no registered devices")
	}

	payload := push.Payload{
		Title:   n.Title,
		Message: n.Message,
		Data: map[string]string{
			"notification_id": n.ID.String(),
			"type":            string(n.Type),
		},
	}
	if n.ActionURL != "" {
		payload.Data["action_url"] = n.ActionURL
	}

	var delivered int
	var messageIDs []string
	var lastErr error
	for _, dt := range tokens {
		endpoint := dt.Endpoint
		if endpoint == "" {
			endpoint, err = h.provider.RegisterDevice(ctx, dt.Token)
			if err != nil {
				h.prune(ctx, rcpt.ID, dt.Token, err)
				lastErr = err
				continue
			}
		}

		messageID, err := h.provider.Send(ctx, endpoint, payload)
		if err != nil {
			h.prune(ctx, rcpt.ID, dt.Token, err)
			lastErr = err
			continue
		}
		delivered++
		messageIDs = append(messageIDs, messageID)
	}

	if delivered == 0 {
		return failure(CodeProviderError, fmt.Sprintf("all %d devices failed: %v", len(tokens), lastErr))
	}

	return success(fmt.Sprintf("delivered to %d of %d devices", delivered, len(tokens)), map[string]string{
		"delivered":   fmt.Sprintf("%d", delivered),
		"devices":     fmt.Sprintf("%d", len(tokens)),
		"message_ids": strings.Join(messageIDs, ","),
	})
}

// prune drops tokens the provider declared dead. Other errors leave
// the token in place for the next attempt.
func (h *PushHandler) prune(ctx context.Context, recipientID, token string, sendErr error) {
	if !errors.Is(sendErr, push.ErrInvalidToken) {
		return
	}
	if err := h.registry.Remove(ctx, recipientID, token); err != nil && !errors.Is(err, push.ErrTokenNotFound) {
		h.logger.LogAttrs(ctx, slog.LevelWarn, "failed to prune dead device token",
			slog.String("recipient_id", recipientID),
			slog.Any("error", err),
		)
	}
}
