package delivery

import (
	"context"

	"github.com/zayyadi/paroll-sub001/pkg/notification"
)

// Error codes recorded on failed delivery log rows. Operators use the
// code to tell "will never succeed" from "gave up too early".
const (
	CodeConfigMissing     = "configuration_missing"
	CodeProviderError     = "provider_error"
	CodeInvalidRecipient  = "invalid_recipient"
	CodeNoEmailAddress    = "no_email_address"
	CodeNoPhoneNumber     = "no_phone_number"
	CodeNoDeviceTokens    = "no_device_tokens"
	CodeRateLimited       = "rate_limited"
	CodeRecipientNotFound = "recipient_not_found"
	CodeNotificationGone  = "notification_not_found"
	CodeExpired           = "notification_expired"
	CodeAttemptTimeout    = "attempt_timeout"
	CodeDirectoryError    = "directory_error"
)

// Recipient is the contact profile a channel handler delivers to.
type Recipient struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Language string `json:"language,omitempty"`
}

// Directory resolves recipient IDs to contact profiles. Unknown IDs
// return ErrRecipientNotFound.
type Directory interface {
	Lookup(ctx context.Context, recipientID string) (*Recipient, error)
}

// Result is the outcome of one delivery attempt. Handlers never return
// errors; failures are expressed through Success=false plus a code so
// provider faults cannot escape the delivery pipeline.
type Result struct {
	Success  bool
	Message  string
	Code     string
	Metadata map[string]string
}

func success(message string, metadata map[string]string) Result {
	return Result{Success: true, Message: message, Metadata: metadata}
}

func failure(code, message string) Result {
	return Result{Success: false, Code: code, Message: message}
}

// Handler performs delivery on one channel.
type Handler interface {
	// Channel names the delivery channel the handler serves.
	Channel() notification.Channel

	// Deliver attempts one delivery. Provider errors are folded into
	// the Result, never returned.
	Deliver(ctx context.Context, n *notification.Notification, rcpt *Recipient) Result
}
