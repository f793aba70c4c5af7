package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// DevSender logs emails instead of sending them, for local development
// and tests. Message IDs are generated locally.
type DevSender struct {
	logger *slog.Logger
}

// NewDevSender creates a logging email sender.
func NewDevSender(logger *slog.Logger) *DevSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &DevSender{logger: logger}
}

func (d *DevSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("dev-%s", uuid.NewString())
	d.logger.LogAttrs(ctx, slog.LevelInfo, "dev email sender: not sending",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("tag", msg.Tag),
		slog.String("message_id", messageID),
	)
	return messageID, nil
}
