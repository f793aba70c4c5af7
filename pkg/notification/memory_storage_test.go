package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayyadi/paroll-sub001/pkg/notification"
)

func newNotif(recipient string, typ notification.Type) notification.Notification {
	return notification.Notification{
		ID:        uuid.New(),
		Recipient: recipient,
		Type:      typ,
		Priority:  notification.PriorityMedium,
		Title:     "title",
		Message:   "message",
	}
}

func TestMemoryStorage_CreateAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notification.NewMemoryStorage()

	n := newNotif("emp-1", notification.TypeLeaveRequestCreated)
	require.NoError(t, store.Create(ctx, n))

	got, err := store.Get(ctx, "emp-1", n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, notification.StateActive, got.State)
	assert.NotEmpty(t, got.AggregationKey)

	// Another recipient must not be able to see it: opaque not-found.
	_, err = store.Get(ctx, "emp-2", n.ID)
	require.ErrorIs(t, err, notification.ErrNotFound)
}

func TestMemoryStorage_ReadStateIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notification.NewMemoryStorage()

	a := newNotif("emp-a", notification.TypeIOUApproved)
	b := newNotif("emp-b", notification.TypeIOUApproved)
	require.NoError(t, store.Create(ctx, a))
	require.NoError(t, store.Create(ctx, b))

	require.NoError(t, store.MarkRead(ctx, "emp-a", a.ID))

	countA, err := store.CountUnread(ctx, "emp-a")
	require.NoError(t, err)
	countB, err := store.CountUnread(ctx, "emp-b")
	require.NoError(t, err)

	assert.Equal(t, 0, countA)
	assert.Equal(t, 1, countB, "marking A's notification read must not touch B")

	// Marking by the wrong owner is a not-found, not a cross-tenant write.
	require.ErrorIs(t, store.MarkRead(ctx, "emp-a", b.ID), notification.ErrNotFound)
}

func TestMemoryStorage_MarkAllReadAndUnread(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notification.NewMemoryStorage()

	n1 := newNotif("emp-1", notification.TypeIOUCreated)
	n2 := newNotif("emp-1", notification.TypeIOUPaid)
	require.NoError(t, store.Create(ctx, n1))
	require.NoError(t, store.Create(ctx, n2))

	count, err := store.MarkAllRead(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	unread, err := store.CountUnread(ctx, "emp-1")
	require.NoError(t, err)
	assert.Zero(t, unread)

	require.NoError(t, store.MarkUnread(ctx, "emp-1", n1.ID))
	unread, err = store.CountUnread(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestMemoryStorage_SoftDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notification.NewMemoryStorage()

	n := newNotif("emp-1", notification.TypePayrollProcessed)
	require.NoError(t, store.Create(ctx, n))
	require.NoError(t, store.SoftDelete(ctx, "emp-1", n.ID))

	// Tombstoned rows are invisible to recipient-scoped reads.
	_, err := store.Get(ctx, "emp-1", n.ID)
	require.ErrorIs(t, err, notification.ErrNotFound)

	list, err := store.List(ctx, "emp-1", notification.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)

	count, err := store.CountUnread(ctx, "emp-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryStorage_ListFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notification.NewMemoryStorage()

	leave := newNotif("emp-1", notification.TypeLeaveRequestCreated)
	iou := newNotif("emp-1", notification.TypeIOUCreated)
	require.NoError(t, store.Create(ctx, leave))
	require.NoError(t, store.Create(ctx, iou))
	require.NoError(t, store.MarkRead(ctx, "emp-1", iou.ID))

	list, err := store.List(ctx, "emp-1", notification.ListOptions{OnlyUnread: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, leave.ID, list[0].ID)

	list, err = store.List(ctx, "emp-1", notification.ListOptions{
		Types: []notification.Type{notification.TypeIOUCreated},
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, iou.ID, list[0].ID)

	list, err = store.List(ctx, "emp-1", notification.ListOptions{Limit: 1, Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryStorage_AggregatedExcludedFromDefaults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notification.NewMemoryStorage()

	n1 := newNotif("emp-1", notification.TypeLeaveRequestCreated)
	n2 := newNotif("emp-1", notification.TypeLeaveRequestCreated)
	require.NoError(t, store.Create(ctx, n1))
	require.NoError(t, store.Create(ctx, n2))

	key := n1.DefaultAggregationKey()
	require.NoError(t, store.MarkAggregated(ctx, []uuid.UUID{n1.ID, n2.ID}, key))

	// Aggregated originals stay readable for audit but are excluded from
	// default lists and the unread count.
	count, err := store.CountUnread(ctx, "emp-1")
	require.NoError(t, err)
	assert.Zero(t, count)

	list, err := store.List(ctx, "emp-1", notification.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = store.List(ctx, "emp-1", notification.ListOptions{IncludeAggregated: true})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestMemoryStorage_ListSiblings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notification.NewMemoryStorage()

	old := newNotif("emp-1", notification.TypeLeaveRequestCreated)
	old.CreatedAt = time.Now().Add(-2 * time.Hour)
	recent := newNotif("emp-1", notification.TypeLeaveRequestCreated)
	other := newNotif("emp-1", notification.TypeIOUCreated)

	require.NoError(t, store.Create(ctx, old))
	require.NoError(t, store.Create(ctx, recent))
	require.NoError(t, store.Create(ctx, other))

	key := recent.DefaultAggregationKey()
	siblings, err := store.ListSiblings(ctx, "emp-1", key, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, siblings, 1, "old and differently-typed notifications are excluded")
	assert.Equal(t, recent.ID, siblings[0].ID)
}

func TestMemoryStorage_SetChannelDelivery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notification.NewMemoryStorage()

	n := newNotif("emp-1", notification.TypeAppraisalAssigned)
	require.NoError(t, store.Create(ctx, n))

	require.NoError(t, store.SetChannelDelivery(ctx, n.ID, notification.ChannelEmail, notification.ChannelDelivery{
		Status: notification.DeliveryDelivered,
		At:     time.Now(),
	}))
	require.NoError(t, store.SetChannelDelivery(ctx, n.ID, notification.ChannelSMS, notification.ChannelDelivery{
		Status: notification.DeliveryFailed,
		At:     time.Now(),
	}))

	got, err := store.Get(ctx, "emp-1", n.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.DeliveryDelivered, got.Delivery[notification.ChannelEmail].Status)
	assert.Equal(t, notification.DeliveryFailed, got.Delivery[notification.ChannelSMS].Status)
}

func TestArchiver_Sweep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notification.NewMemoryStorage()
	archive := notification.NewMemoryArchiveStorage()

	old := newNotif("emp-1", notification.TypeSystemAnnouncement)
	old.CreatedAt = time.Now().Add(-100 * 24 * time.Hour)
	fresh := newNotif("emp-1", notification.TypeSystemAnnouncement)
	require.NoError(t, store.Create(ctx, old))
	require.NoError(t, store.Create(ctx, fresh))

	archiver := notification.NewArchiver(store, archive)
	moved, err := archiver.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	rows, err := archive.ListByRecipient(ctx, "emp-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, old.ID, rows[0].OriginalID)

	// A second sweep is a no-op: the original is no longer active.
	moved, err = archiver.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, moved)
}
