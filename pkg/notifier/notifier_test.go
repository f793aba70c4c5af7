package notifier_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayyadi/paroll-sub001/pkg/aggregate"
	"github.com/zayyadi/paroll-sub001/pkg/cache"
	"github.com/zayyadi/paroll-sub001/pkg/delivery"
	"github.com/zayyadi/paroll-sub001/pkg/notification"
	"github.com/zayyadi/paroll-sub001/pkg/notifier"
	"github.com/zayyadi/paroll-sub001/pkg/preference"
)

type fakeEnqueuer struct {
	mu    sync.Mutex
	calls []enqueueCall
}

type enqueueCall struct {
	notificationID uuid.UUID
	channel        notification.Channel
}

func (f *fakeEnqueuer) EnqueueChannel(ctx context.Context, n *notification.Notification, ch notification.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, enqueueCall{notificationID: n.ID, channel: ch})
	return nil
}

func (f *fakeEnqueuer) channelsFor(id uuid.UUID) []notification.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notification.Channel
	for _, c := range f.calls {
		if c.notificationID == id {
			out = append(out, c.channel)
		}
	}
	return out
}

type fakeDirectory struct {
	known map[string]bool
}

func (d *fakeDirectory) Lookup(ctx context.Context, recipientID string) (*delivery.Recipient, error) {
	if d.known[recipientID] {
		return &delivery.Recipient{ID: recipientID, Email: recipientID + "@example.com"}, nil
	}
	return nil, delivery.ErrRecipientNotFound
}

type fixture struct {
	store    *notification.MemoryStorage
	prefs    *preference.Service
	prefdata *preference.MemoryStorage
	enqueuer *fakeEnqueuer
	cache    cache.Cache
	svc      *notifier.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    notification.NewMemoryStorage(),
		prefdata: preference.NewMemoryStorage(),
		enqueuer: &fakeEnqueuer{},
		cache:    cache.NewMemoryCache(),
	}
	f.prefs = preference.NewService(f.prefdata, f.cache)
	directory := &fakeDirectory{known: map[string]bool{"emp_1": true, "emp_2": true}}
	agg := aggregate.NewService(f.store)
	f.svc = notifier.NewService(f.store, f.prefs, agg, f.enqueuer, f.cache, directory)
	return f
}

func leaveApproved(recipient string) notifier.SendInput {
	return notifier.SendInput{
		Recipient: recipient,
		Type:      notification.TypeLeaveRequestApproved,
		Priority:  notification.PriorityMedium,
		Title:     "Leave approved",
		Message:   "Your leave request was approved.",
	}
}

func TestSend_CreatesAndQueuesEligibleChannels(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	n, err := f.svc.Send(ctx, leaveApproved("emp_1"))
	require.NoError(t, err)
	require.NotNil(t, n)

	stored, err := f.store.Get(ctx, "emp_1", n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Leave approved", stored.Title)
	assert.False(t, stored.Read)

	// Default preferences reserve SMS for high-priority traffic.
	channels := f.enqueuer.channelsFor(n.ID)
	assert.ElementsMatch(t, []notification.Channel{
		notification.ChannelInApp, notification.ChannelEmail, notification.ChannelPush,
	}, channels)
}

func TestSend_SMSQueuedForHighPriority(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	in := leaveApproved("emp_1")
	in.Type = notification.TypePayrollProcessed
	in.Priority = notification.PriorityHigh
	n, err := f.svc.Send(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, n)

	assert.Contains(t, f.enqueuer.channelsFor(n.ID), notification.ChannelSMS)
}

func TestSend_SoftFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown recipient", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		n, err := f.svc.Send(ctx, leaveApproved("emp_ghost"))
		require.NoError(t, err)
		assert.Nil(t, n)

		list, err := f.store.List(ctx, "emp_ghost", notification.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, list, "nothing persisted on soft failure")
	})

	t.Run("globally disabled", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		p := preference.Default("emp_1")
		p.Enabled = false
		require.NoError(t, f.prefs.Update(ctx, p))

		n, err := f.svc.Send(ctx, leaveApproved("emp_1"))
		require.NoError(t, err)
		assert.Nil(t, n)

		list, err := f.store.List(ctx, "emp_1", notification.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestSend_ValidationRejectedSynchronously(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	in := leaveApproved("emp_1")
	in.Title = ""
	_, err := f.svc.Send(ctx, in)
	require.ErrorIs(t, err, notification.ErrValidation)
	assert.Empty(t, f.enqueuer.calls)
}

func TestSend_AggregatesBurst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	burst := notifier.SendInput{
		Recipient: "emp_1",
		Type:      notification.TypeLeaveRequestCreated,
		Priority:  notification.PriorityMedium,
		Title:     "New leave request",
		Message:   "A teammate filed a leave request.",
	}

	first, err := f.svc.Send(ctx, burst)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Zero(t, first.AggregationCount)

	second, err := f.svc.Send(ctx, burst)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, 2, second.AggregationCount, "second send returns the rollup")
	assert.Len(t, second.AggregatedWith, 2)

	// Rollups count once: originals are excluded from unread views.
	count, err := f.svc.UnreadCount(ctx, "emp_1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	list, err := f.store.List(ctx, "emp_1", notification.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	// The rollup, not the originals, goes out on the side channels.
	assert.NotEmpty(t, f.enqueuer.channelsFor(second.ID))
}

func TestSend_BurstGrowsOneRollup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	burst := notifier.SendInput{
		Recipient: "emp_1",
		Type:      notification.TypeLeaveRequestCreated,
		Priority:  notification.PriorityMedium,
		Title:     "New leave request",
		Message:   "A teammate filed a leave request.",
	}

	_, err := f.svc.Send(ctx, burst)
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, burst)
	require.NoError(t, err)

	third, err := f.svc.Send(ctx, burst)
	require.NoError(t, err)
	require.NotNil(t, third)

	// The third member folds into the running rollup: the count keeps
	// tracking the originals instead of resetting at two.
	assert.Equal(t, 3, third.AggregationCount)
	assert.Len(t, third.AggregatedWith, 3)
	assert.Contains(t, third.Title, "3 leave request")

	list, err := f.store.List(ctx, "emp_1", notification.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1, "exactly one live rollup")
	assert.Equal(t, third.ID, list[0].ID)

	count, err := f.svc.UnreadCount(ctx, "emp_1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSendBulk_IsolatesFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	bad := leaveApproved("emp_2")
	bad.Title = ""
	created, err := f.svc.SendBulk(ctx, []notifier.SendInput{
		leaveApproved("emp_1"),
		bad,
		leaveApproved("emp_2"),
	})
	require.Error(t, err, "the bad input is reported")
	assert.Len(t, created, 2, "good inputs still created")
}

func TestUnreadCount_CacheFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	n, err := f.svc.Send(ctx, leaveApproved("emp_1"))
	require.NoError(t, err)

	count, err := f.svc.UnreadCount(ctx, "emp_1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Bypassing the facade leaves the cache stale until invalidation.
	require.NoError(t, f.store.Create(ctx, notification.Notification{
		Recipient: "emp_1",
		Type:      notification.TypeSystemAnnouncement,
		Priority:  notification.PriorityLow,
		Title:     "Maintenance window",
	}))
	count, err = f.svc.UnreadCount(ctx, "emp_1")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "served from cache")

	require.NoError(t, f.svc.MarkRead(ctx, "emp_1", n.ID))
	count, err = f.svc.UnreadCount(ctx, "emp_1")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "invalidation forces a recount")
}

func TestMarkRead_IsolatedPerRecipient(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	n1, err := f.svc.Send(ctx, leaveApproved("emp_1"))
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, leaveApproved("emp_2"))
	require.NoError(t, err)

	// A recipient cannot touch another recipient's notification.
	require.ErrorIs(t, f.svc.MarkRead(ctx, "emp_2", n1.ID), notification.ErrNotFound)

	require.NoError(t, f.svc.MarkRead(ctx, "emp_1", n1.ID))

	count, err := f.svc.UnreadCount(ctx, "emp_2")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "other recipients unaffected")
}

func TestDeleteAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Send(ctx, leaveApproved("emp_1"))
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, leaveApproved("emp_1"))
	require.NoError(t, err)

	deleted, err := f.svc.DeleteAll(ctx, "emp_1")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	count, err := f.svc.UnreadCount(ctx, "emp_1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestList_CacheFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Send(ctx, leaveApproved("emp_1"))
	require.NoError(t, err)

	list, err := f.svc.List(ctx, "emp_1", notification.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	// A write that bypasses the facade is invisible until the cache is
	// invalidated.
	require.NoError(t, f.store.Create(ctx, notification.Notification{
		Recipient: "emp_1",
		Type:      notification.TypeSystemAnnouncement,
		Priority:  notification.PriorityLow,
		Title:     "Maintenance window",
	}))

	list, err = f.svc.List(ctx, "emp_1", notification.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 1, "served from cache")
}
