// Package email sends transactional notification emails.
package email

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrInvalidConfig is returned when a sender is constructed with
	// missing or malformed configuration.
	ErrInvalidConfig = errors.New("invalid email config")

	// ErrInvalidMessage is returned when a message fails validation
	// before it reaches the provider.
	ErrInvalidMessage = errors.New("invalid email message")

	// ErrInvalidRecipient marks permanent provider rejections of the
	// recipient address. Retrying cannot succeed.
	ErrInvalidRecipient = errors.New("invalid email recipient")

	// ErrSendFailed wraps provider transport failures, which are worth
	// retrying.
	ErrSendFailed = errors.New("failed to send email")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Config holds the email provider configuration. The Postmark tokens are
// optional so development environments can run on the dev sender.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"EMAIL_SENDER" envDefault:"notifications@example.com"`
	ReplyToEmail         string `env:"EMAIL_REPLY_TO"`
}

// Message is one outbound email.
type Message struct {
	To       string
	Subject  string
	BodyText string
	Tag      string
}

// Validate checks the message before it is handed to a provider.
func (m Message) Validate() error {
	if !emailRegex.MatchString(m.To) {
		return fmt.Errorf("%w: recipient %q is not a valid address", ErrInvalidMessage, m.To)
	}
	if m.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	if m.BodyText == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	return nil
}

// Sender delivers one email and returns the provider's message ID.
type Sender interface {
	Send(ctx context.Context, msg Message) (messageID string, err error)
}
