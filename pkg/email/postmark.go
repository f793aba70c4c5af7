package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

// Postmark error codes for permanently undeliverable recipients.
const (
	postmarkErrInactiveRecipient = 406
	postmarkErrInvalidEmail      = 300
)

type postmarkSender struct {
	client *postmark.Client
	config Config
}

// NewPostmarkSender creates a Postmark-backed sender. Tokens and sender
// identity are required so misconfiguration surfaces at startup, not on
// the first delivery attempt.
func NewPostmarkSender(cfg Config) (Sender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if cfg.ReplyToEmail != "" && !emailRegex.MatchString(cfg.ReplyToEmail) {
		return nil, fmt.Errorf("%w: ReplyToEmail must be a valid email address", ErrInvalidConfig)
	}

	return &postmarkSender{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

func (s *postmarkSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.config.SenderEmail,
		ReplyTo:  s.config.ReplyToEmail,
		To:       msg.To,
		Subject:  msg.Subject,
		Tag:      msg.Tag,
		TextBody: msg.BodyText,
	})
	if err != nil {
		return "", errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		providerErr := fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message)
		switch resp.ErrorCode {
		case postmarkErrInactiveRecipient, postmarkErrInvalidEmail:
			return "", errors.Join(ErrInvalidRecipient, providerErr)
		default:
			return "", errors.Join(ErrSendFailed, providerErr)
		}
	}
	return resp.MessageID, nil
}
