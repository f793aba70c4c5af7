package digest_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayyadi/paroll-sub001/pkg/digest"
	"github.com/zayyadi/paroll-sub001/pkg/notification"
	"github.com/zayyadi/paroll-sub001/pkg/preference"
)

type fakeDeliverer struct {
	mu       sync.Mutex
	enqueued []*notification.Notification
}

func (f *fakeDeliverer) EnqueueDelivery(ctx context.Context, n *notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, n)
	return nil
}

func seed(t *testing.T, store *notification.MemoryStorage, recipient string, typ notification.Type, createdAt time.Time) *notification.Notification {
	t.Helper()
	n := &notification.Notification{
		ID:        uuid.New(),
		Recipient: recipient,
		Type:      typ,
		Priority:  notification.PriorityMedium,
		Title:     "t",
		Message:   "m",
		State:     notification.StateActive,
		CreatedAt: createdAt,
	}
	require.NoError(t, store.Create(context.Background(), *n))
	return n
}

func TestService_CreateDigest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)

	t.Run("empty window returns nil", func(t *testing.T) {
		t.Parallel()
		store := notification.NewMemoryStorage()
		svc := digest.NewService(store, preference.NewMemoryStorage(), &fakeDeliverer{},
			digest.WithClock(func() time.Time { return now }))

		d, err := svc.CreateDigest(ctx, "emp_1", preference.DigestDaily)
		require.NoError(t, err)
		assert.Nil(t, d)
	})

	t.Run("daily digest summarizes the last day", func(t *testing.T) {
		t.Parallel()
		store := notification.NewMemoryStorage()
		svc := digest.NewService(store, preference.NewMemoryStorage(), &fakeDeliverer{},
			digest.WithClock(func() time.Time { return now }))

		inWindow := []*notification.Notification{
			seed(t, store, "emp_2", notification.TypeLeaveRequestApproved, now.Add(-2*time.Hour)),
			seed(t, store, "emp_2", notification.TypeLeaveRequestApproved, now.Add(-3*time.Hour)),
			seed(t, store, "emp_2", notification.TypePayrollProcessed, now.Add(-20*time.Hour)),
		}
		// Outside the window, stays untouched.
		old := seed(t, store, "emp_2", notification.TypeIOUCreated, now.Add(-48*time.Hour))

		d, err := svc.CreateDigest(ctx, "emp_2", preference.DigestDaily)
		require.NoError(t, err)
		require.NotNil(t, d)

		assert.Equal(t, notification.TypeDigest, d.Type)
		assert.Equal(t, notification.PriorityLow, d.Priority)
		assert.Equal(t, 3, d.AggregationCount)
		assert.Len(t, d.AggregatedWith, 3)
		assert.Contains(t, d.Title, "3 unread")
		assert.Contains(t, d.Message, "leave request approved: 2")
		assert.Contains(t, d.Message, "payroll processed: 1")

		for _, n := range inWindow {
			got, err := store.Get(ctx, "emp_2", n.ID)
			require.NoError(t, err)
			assert.True(t, got.Aggregated)
		}
		gotOld, err := store.Get(ctx, "emp_2", old.ID)
		require.NoError(t, err)
		assert.False(t, gotOld.Aggregated)
	})

	t.Run("read notifications are excluded", func(t *testing.T) {
		t.Parallel()
		store := notification.NewMemoryStorage()
		svc := digest.NewService(store, preference.NewMemoryStorage(), &fakeDeliverer{},
			digest.WithClock(func() time.Time { return now }))

		n := seed(t, store, "emp_3", notification.TypeIOUApproved, now.Add(-time.Hour))
		require.NoError(t, store.MarkRead(ctx, "emp_3", n.ID))

		d, err := svc.CreateDigest(ctx, "emp_3", preference.DigestDaily)
		require.NoError(t, err)
		assert.Nil(t, d)
	})
}

func TestService_SendDigest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)

	store := notification.NewMemoryStorage()
	deliverer := &fakeDeliverer{}
	svc := digest.NewService(store, preference.NewMemoryStorage(), deliverer,
		digest.WithClock(func() time.Time { return now }))

	seed(t, store, "emp_4", notification.TypeAppraisalAssigned, now.Add(-time.Hour))

	d, err := svc.SendDigest(ctx, "emp_4", preference.DigestDaily)
	require.NoError(t, err)
	require.NotNil(t, d)

	require.Len(t, deliverer.enqueued, 1)
	assert.Equal(t, d.ID, deliverer.enqueued[0].ID)
}

func TestService_Run(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)

	store := notification.NewMemoryStorage()
	prefs := preference.NewMemoryStorage()
	deliverer := &fakeDeliverer{}
	svc := digest.NewService(store, prefs, deliverer,
		digest.WithClock(func() time.Time { return now }))

	// Two daily subscribers, one with pending notifications, plus one
	// weekly subscriber outside this run.
	for _, recipient := range []string{"emp_5", "emp_6"} {
		p := preference.Default(recipient)
		p.Channels[notification.ChannelEmail] = preference.ChannelSetting{
			Enabled: true, MinPriority: notification.PriorityLow, Digest: preference.DigestDaily,
		}
		require.NoError(t, prefs.Save(ctx, p))
	}
	weekly := preference.Default("emp_7")
	weekly.Channels[notification.ChannelEmail] = preference.ChannelSetting{
		Enabled: true, MinPriority: notification.PriorityLow, Digest: preference.DigestWeekly,
	}
	require.NoError(t, prefs.Save(ctx, weekly))

	seed(t, store, "emp_5", notification.TypePayrollProcessed, now.Add(-time.Hour))
	seed(t, store, "emp_7", notification.TypePayrollProcessed, now.Add(-time.Hour))

	sent, err := svc.Run(ctx, preference.DigestDaily)
	require.NoError(t, err)
	assert.Equal(t, 1, sent, "only the subscriber with unread notifications gets a digest")
	require.Len(t, deliverer.enqueued, 1)
	assert.Equal(t, "emp_5", deliverer.enqueued[0].Recipient)
}
