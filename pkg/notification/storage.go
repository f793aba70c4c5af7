package notification

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ListOptions provides filtering and pagination for notification queries.
// By default only active, non-aggregated notifications are returned:
// aggregated originals stay readable for audit but are excluded from
// default views so rollups are not double-counted.
type ListOptions struct {
	Limit             int
	Offset            int
	OnlyUnread        bool
	Types             []Type
	Since             *time.Time
	IncludeAggregated bool
}

// CacheKey returns a stable fingerprint of the filter set, used to namespace
// cached list results.
func (o ListOptions) CacheKey() string {
	key := ""
	if o.OnlyUnread {
		key += "unread;"
	}
	if o.IncludeAggregated {
		key += "agg;"
	}
	for _, t := range o.Types {
		key += string(t) + ";"
	}
	if o.Since != nil {
		key += o.Since.UTC().Format(time.RFC3339) + ";"
	}
	if o.Limit > 0 || o.Offset > 0 {
		key += strconv.Itoa(o.Limit) + ":" + strconv.Itoa(o.Offset)
	}
	if key == "" {
		return "all"
	}
	return key
}

// Storage persists notifications. All read and mutate operations except
// SetChannelDelivery, MarkAggregated and the archive sweep helpers are
// scoped to the owning recipient; operating on another recipient's
// notification returns ErrNotFound.
type Storage interface {
	Create(ctx context.Context, n Notification) error
	Get(ctx context.Context, recipientID string, id uuid.UUID) (*Notification, error)
	List(ctx context.Context, recipientID string, opts ListOptions) ([]Notification, error)

	MarkRead(ctx context.Context, recipientID string, id uuid.UUID) error
	MarkUnread(ctx context.Context, recipientID string, id uuid.UUID) error
	// MarkAllRead returns the number of notifications transitioned.
	MarkAllRead(ctx context.Context, recipientID string) (int, error)
	SoftDelete(ctx context.Context, recipientID string, id uuid.UUID) error
	// SoftDeleteAll returns the number of notifications tombstoned.
	SoftDeleteAll(ctx context.Context, recipientID string) (int, error)

	// CountUnread counts active, unread, non-aggregated notifications.
	CountUnread(ctx context.Context, recipientID string) (int, error)

	// SetChannelDelivery merges one channel's delivery state into the
	// notification's delivery map without touching other channels.
	SetChannelDelivery(ctx context.Context, id uuid.UUID, ch Channel, cd ChannelDelivery) error

	// MarkAggregated flags the given notifications as subsumed by a rollup.
	MarkAggregated(ctx context.Context, ids []uuid.UUID, aggregationKey string) error

	// ListSiblings returns active, non-aggregated notifications with the
	// given aggregation key created at or after since.
	ListSiblings(ctx context.Context, recipientID, aggregationKey string, since time.Time) ([]Notification, error)

	// ListOlderThan returns active notifications created before cutoff,
	// oldest first, for the archive sweep.
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]Notification, error)

	// MarkArchived transitions a notification to the archived state.
	MarkArchived(ctx context.Context, id uuid.UUID) error
}
