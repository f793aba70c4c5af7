package delivery

import (
	"context"
	"errors"
	"log/slog"

	"github.com/zayyadi/paroll-sub001/pkg/email"
	"github.com/zayyadi/paroll-sub001/pkg/notification"
	"github.com/zayyadi/paroll-sub001/pkg/template"
)

// EmailHandler renders the notification through the template registry
// and sends it via the configured email sender.
type EmailHandler struct {
	sender    email.Sender
	templates *template.Registry
	logger    *slog.Logger
}

// NewEmailHandler creates the email channel handler. A nil sender is
// tolerated; deliveries then fail with a configuration code and retry
// once credentials appear.
func NewEmailHandler(sender email.Sender, templates *template.Registry, logger *slog.Logger) *EmailHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailHandler{sender: sender, templates: templates, logger: logger}
}

func (h *EmailHandler) Channel() notification.Channel {
	return notification.ChannelEmail
}

func (h *EmailHandler) Deliver(ctx context.Context, n *notification.Notification, rcpt *Recipient) Result {
	if h.sender == nil {
		h.logger.LogAttrs(ctx, slog.LevelWarn, "email sender not configured",
			slog.String("notification_id", n.ID.String()),
		)
		return failure(CodeConfigMissing, "email sender not configured")
	}
	if rcpt.Email == "" {
		return failure(CodeNoEmailAddress, "recipient has no email address")
	}

	rendered, err := h.templates.Render(string(n.Type), notification.ChannelEmail, rcpt.Language, templateData(n, rcpt))
	if err != nil {
		// Registry falls back to the default template, so a render
		// error here means broken template data, not a missing one.
		return failure(CodeProviderError, "render email template: "+err.Error())
	}

	messageID, err := h.sender.Send(ctx, email.Message{
		To:       rcpt.Email,
		Subject:  rendered.Subject,
		BodyText: rendered.Body,
		Tag:      string(n.Type),
	})
	if err != nil {
		if errors.Is(err, email.ErrInvalidRecipient) {
			return failure(CodeInvalidRecipient, err.Error())
		}
		return failure(CodeProviderError, err.Error())
	}

	return success("email sent", map[string]string{
		"message_id": messageID,
		"email":      rcpt.Email,
	})
}

// templateData exposes the notification fields templates may refer to.
func templateData(n *notification.Notification, rcpt *Recipient) map[string]any {
	return map[string]any{
		"title":        n.Title,
		"message":      n.Message,
		"type":         string(n.Type),
		"priority":     n.Priority.String(),
		"action_url":   n.ActionURL,
		"action_label": n.ActionLabel,
		"count":        n.AggregationCount,
		"recipient":    rcpt.Name,
	}
}
