package notification

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies the business event a notification describes. The set is
// closed: unknown types are rejected at creation time.
type Type string

const (
	TypeLeaveRequestCreated  Type = "leave_request_created"
	TypeLeaveRequestApproved Type = "leave_request_approved"
	TypeLeaveRequestRejected Type = "leave_request_rejected"
	TypeIOUCreated           Type = "iou_created"
	TypeIOUApproved          Type = "iou_approved"
	TypeIOURejected          Type = "iou_rejected"
	TypeIOUPaid              Type = "iou_paid"
	TypePayrollProcessed     Type = "payroll_processed"
	TypeAppraisalAssigned    Type = "appraisal_assigned"
	TypeProfileUpdated       Type = "profile_updated"
	TypeSystemAnnouncement   Type = "system_announcement"
	TypeDigest               Type = "digest"
)

// Types returns every valid notification type.
func Types() []Type {
	return []Type{
		TypeLeaveRequestCreated, TypeLeaveRequestApproved, TypeLeaveRequestRejected,
		TypeIOUCreated, TypeIOUApproved, TypeIOURejected, TypeIOUPaid,
		TypePayrollProcessed, TypeAppraisalAssigned,
		TypeProfileUpdated, TypeSystemAnnouncement, TypeDigest,
	}
}

// Valid reports whether t is a member of the closed type set.
func (t Type) Valid() bool {
	switch t {
	case TypeLeaveRequestCreated, TypeLeaveRequestApproved, TypeLeaveRequestRejected,
		TypeIOUCreated, TypeIOUApproved, TypeIOURejected, TypeIOUPaid,
		TypePayrollProcessed, TypeAppraisalAssigned,
		TypeProfileUpdated, TypeSystemAnnouncement, TypeDigest:
		return true
	}
	return false
}

// Priority orders notifications from Low to Critical.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// Valid reports whether p is within the defined range.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority converts the string form back to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	}
	return 0, fmt.Errorf("%w: unknown priority %q", ErrValidation, s)
}

// Channel is one of the four delivery mechanisms.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
)

// Channels returns all delivery channels in a stable order.
func Channels() []Channel {
	return []Channel{ChannelInApp, ChannelEmail, ChannelPush, ChannelSMS}
}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelPush, ChannelSMS:
		return true
	}
	return false
}

// State is the lifecycle state of a notification row. A single enum instead
// of independent deleted/archived flags keeps illegal combinations
// unrepresentable.
type State string

const (
	StateActive   State = "active"
	StateDeleted  State = "deleted"
	StateArchived State = "archived"
)

// RelatedKind discriminates the business entity a notification points at.
type RelatedKind string

const (
	RelatedNone         RelatedKind = ""
	RelatedLeaveRequest RelatedKind = "leave_request"
	RelatedIOU          RelatedKind = "iou"
	RelatedPayrollRun   RelatedKind = "payroll_run"
	RelatedAppraisal    RelatedKind = "appraisal"
)

// RelatedObject is a read-only tagged reference to the originating business
// entity. It is context for the recipient, not an ownership relation.
type RelatedObject struct {
	Kind RelatedKind `json:"kind"`
	ID   string      `json:"id"`
}

// IsZero reports whether the reference is unset.
func (r RelatedObject) IsZero() bool {
	return r.Kind == RelatedNone && r.ID == ""
}

// DeliveryStatus is the per-channel delivery state recorded on the
// notification itself. The authoritative attempt history lives in the
// delivery log; this map is the denormalized view shown to users.
type DeliveryStatus string

const (
	DeliveryQueued     DeliveryStatus = "queued"
	DeliveryProcessing DeliveryStatus = "processing"
	DeliverySent       DeliveryStatus = "sent"
	DeliveryDelivered  DeliveryStatus = "delivered"
	DeliveryFailed     DeliveryStatus = "failed"
	DeliveryRetrying   DeliveryStatus = "retrying"
)

// ChannelDelivery is one channel's entry in the delivery status map. Entries
// are merged per channel and never overwritten wholesale.
type ChannelDelivery struct {
	Status   DeliveryStatus    `json:"status"`
	At       time.Time         `json:"at"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Notification is the unit of user-facing information.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	Recipient string    `json:"recipient"` // employee ID, weak reference
	Type      Type      `json:"type"`
	Priority  Priority  `json:"priority"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`

	State      State      `json:"state"`
	Read       bool       `json:"read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`

	Delivery map[Channel]ChannelDelivery `json:"delivery,omitempty"`

	Aggregated       bool        `json:"aggregated"`
	AggregationKey   string      `json:"aggregation_key,omitempty"`
	AggregationCount int         `json:"aggregation_count,omitempty"`
	AggregatedWith   []uuid.UUID `json:"aggregated_with,omitempty"`

	Related     RelatedObject `json:"related,omitempty"`
	ActionURL   string        `json:"action_url,omitempty"`
	ActionLabel string        `json:"action_label,omitempty"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsExpired reports whether the notification is stale for delivery purposes.
// Expired notifications are not auto-deleted.
func (n *Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && now.After(*n.ExpiresAt)
}

// DefaultAggregationKey groups bursts per recipient and type.
func (n *Notification) DefaultAggregationKey() string {
	return n.Recipient + "|" + string(n.Type)
}

// IsRollup reports whether the notification summarizes others rather
// than carrying its own event.
func (n *Notification) IsRollup() bool {
	return n.AggregationCount > 0
}

// Validate checks the invariants required before a notification may be
// persisted.
func (n *Notification) Validate() error {
	if n.Recipient == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if !n.Type.Valid() {
		return fmt.Errorf("%w: unknown notification type %q", ErrValidation, n.Type)
	}
	if !n.Priority.Valid() {
		return fmt.Errorf("%w: invalid priority %d", ErrValidation, int(n.Priority))
	}
	if n.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	return nil
}
