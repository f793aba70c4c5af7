// Package delivery orchestrates asynchronous channel delivery of
// notifications. Every (notification, channel, recipient) tuple gets a
// delivery log row tracking its attempt lineage through a small state
// machine; the orchestrator claims rows, invokes the channel handler
// and applies the retry policy.
package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zayyadi/paroll-sub001/pkg/notification"
)

var (
	// ErrLogNotFound is returned for unknown delivery log rows.
	ErrLogNotFound = errors.New("delivery log not found")

	// ErrRecipientNotFound means the directory has no contact profile
	// for the recipient.
	ErrRecipientNotFound = errors.New("recipient not found")
)

// Status is the delivery log state. QUEUED and RETRYING rows are
// claimable; DELIVERED and FAILED are terminal.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusDelivered  Status = "delivered"
	StatusFailed     Status = "failed"
	StatusRetrying   Status = "retrying"
)

// Terminal reports whether no further attempts will happen.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// Claimable reports whether a worker may take the row to PROCESSING.
func (s Status) Claimable() bool {
	return s == StatusQueued || s == StatusRetrying
}

// Log is the attempt lineage of one (notification, channel, recipient)
// tuple. At most one non-terminal row exists per tuple; a duplicate
// queuing attempt reuses the existing row.
type Log struct {
	ID             uuid.UUID            `json:"id"`
	NotificationID uuid.UUID            `json:"notification_id"`
	Recipient      string               `json:"recipient"`
	Channel        notification.Channel `json:"channel"`

	Status      Status     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`

	// Channel specifics (provider message ID, email address, phone,
	// device counts) recorded by the handler on each attempt.
	ProviderMessageID string            `json:"provider_message_id,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`

	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TupleKey identifies the delivery tuple the row belongs to.
func (l *Log) TupleKey() string {
	return l.NotificationID.String() + "|" + string(l.Channel) + "|" + l.Recipient
}

// LogStorage persists delivery log rows. The row is the single source
// of truth for attempt ordering: workers only process after a
// successful Claim.
type LogStorage interface {
	// GetOrCreate returns the tuple's row, creating a QUEUED one when
	// none exists. An existing row, terminal or not, is returned as-is
	// so callers can honor idempotency.
	GetOrCreate(ctx context.Context, notificationID uuid.UUID, ch notification.Channel, recipientID string) (*Log, error)

	// Claim atomically moves a QUEUED or RETRYING row to PROCESSING.
	// A false return means the row is already claimed or terminal.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)

	// Update persists the row's mutable fields.
	Update(ctx context.Context, l *Log) error

	// Get returns one row by ID.
	Get(ctx context.Context, id uuid.UUID) (*Log, error)

	// ListByNotification returns all rows for a notification, ordered
	// by creation time.
	ListByNotification(ctx context.Context, notificationID uuid.UUID) ([]Log, error)
}
