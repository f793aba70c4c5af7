package delivery

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/zayyadi/paroll-sub001/pkg/notification"
	"github.com/zayyadi/paroll-sub001/pkg/ratelimit"
	"github.com/zayyadi/paroll-sub001/pkg/sms"
)

// SMSHandler sends the notification as a text message, capped by a
// per-recipient rate limit. Bodies are truncated to the provider
// length limit; the action URL is appended only when it fits whole.
type SMSHandler struct {
	sender  sms.Sender
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// NewSMSHandler creates the SMS channel handler.
func NewSMSHandler(sender sms.Sender, limiter *ratelimit.Limiter, logger *slog.Logger) *SMSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMSHandler{sender: sender, limiter: limiter, logger: logger}
}

func (h *SMSHandler) Channel() notification.Channel {
	return notification.ChannelSMS
}

func (h *SMSHandler) Deliver(ctx context.Context, n *notification.Notification, rcpt *Recipient) Result {
	if h.sender == nil {
		return failure(CodeConfigMissing, "sms sender not configured")
	}
	if rcpt.Phone == "" {
		return failure(CodeNoPhoneNumber, "recipient has no phone number")
	}

	if h.limiter != nil {
		res, err := h.limiter.Allow(ctx, "sms:"+rcpt.ID)
		if err != nil {
			return failure(CodeProviderError, "rate limit check: "+err.Error())
		}
		if !res.Allowed() {
			// Retry backoff pushes the next attempt past the window edge.
			return failure(CodeRateLimited, "sms rate limit reached for recipient")
		}
	}

	body := composeSMS(n)
	messageSID, err := h.sender.Send(ctx, rcpt.Phone, body)
	if err != nil {
		return failure(CodeProviderError, err.Error())
	}

	return success("sms sent", map[string]string{
		"message_sid": messageSID,
		"phone":       rcpt.Phone,
	})
}

// composeSMS builds the message body within sms.MaxLength.
func composeSMS(n *notification.Notification) string {
	body := n.Title
	if n.Message != "" {
		body += ": " + n.Message
	}

	if n.ActionURL != "" && len(body)+1+len(n.ActionURL) <= sms.MaxLength {
		body += " " + n.ActionURL
	}
	if len(body) > sms.MaxLength {
		body = truncateRunes(body, sms.MaxLength-3) + "..."
	}
	return body
}

// truncateRunes cuts s to at most max bytes on a rune boundary, so
// interpolated names never leave a split multi-byte character behind.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
