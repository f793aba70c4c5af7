package aggregate_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayyadi/paroll-sub001/pkg/aggregate"
	"github.com/zayyadi/paroll-sub001/pkg/notification"
)

func newNotif(recipient string, typ notification.Type, createdAt time.Time) *notification.Notification {
	return &notification.Notification{
		ID:        uuid.New(),
		Recipient: recipient,
		Type:      typ,
		Priority:  notification.PriorityMedium,
		Title:     "t",
		Message:   "m",
		State:     notification.StateActive,
		CreatedAt: createdAt,
	}
}

func TestService_ShouldAggregate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	newService := func(t *testing.T) (*aggregate.Service, *notification.MemoryStorage) {
		t.Helper()
		store := notification.NewMemoryStorage()
		svc := aggregate.NewService(store, aggregate.WithClock(func() time.Time { return now }))
		return svc, store
	}

	t.Run("disabled type never aggregates", func(t *testing.T) {
		t.Parallel()
		svc, store := newService(t)

		a := newNotif("hr_1", notification.TypeLeaveRequestApproved, now)
		b := newNotif("hr_1", notification.TypeLeaveRequestApproved, now)
		require.NoError(t, store.Create(ctx, *a))
		require.NoError(t, store.Create(ctx, *b))

		ok, err := svc.ShouldAggregate(ctx, b)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("no siblings means no aggregation", func(t *testing.T) {
		t.Parallel()
		svc, store := newService(t)

		a := newNotif("hr_2", notification.TypeLeaveRequestCreated, now)
		require.NoError(t, store.Create(ctx, *a))

		ok, err := svc.ShouldAggregate(ctx, a)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("one sibling inside window aggregates", func(t *testing.T) {
		t.Parallel()
		svc, store := newService(t)

		a := newNotif("hr_3", notification.TypeLeaveRequestCreated, now.Add(-10*time.Minute))
		b := newNotif("hr_3", notification.TypeLeaveRequestCreated, now)
		require.NoError(t, store.Create(ctx, *a))
		require.NoError(t, store.Create(ctx, *b))

		ok, err := svc.ShouldAggregate(ctx, b)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("sibling outside window does not count", func(t *testing.T) {
		t.Parallel()
		svc, store := newService(t)

		a := newNotif("hr_4", notification.TypeLeaveRequestCreated, now.Add(-2*time.Hour))
		b := newNotif("hr_4", notification.TypeLeaveRequestCreated, now)
		require.NoError(t, store.Create(ctx, *a))
		require.NoError(t, store.Create(ctx, *b))

		ok, err := svc.ShouldAggregate(ctx, b)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("saturated window stops aggregating", func(t *testing.T) {
		t.Parallel()
		store := notification.NewMemoryStorage()
		svc := aggregate.NewService(store,
			aggregate.WithClock(func() time.Time { return now }),
			aggregate.WithRules(map[notification.Type]aggregate.Rule{
				notification.TypeLeaveRequestCreated: {Enabled: true, Window: time.Hour, MaxCount: 2},
			}),
		)

		for range 2 {
			require.NoError(t, store.Create(ctx, *newNotif("hr_5", notification.TypeLeaveRequestCreated, now.Add(-5*time.Minute))))
		}
		b := newNotif("hr_5", notification.TypeLeaveRequestCreated, now)
		require.NoError(t, store.Create(ctx, *b))

		ok, err := svc.ShouldAggregate(ctx, b)
		require.NoError(t, err)
		assert.False(t, ok, "window at max count must not keep folding")
	})
}

func TestService_Aggregate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	t.Run("creates rollup and marks inputs", func(t *testing.T) {
		t.Parallel()
		store := notification.NewMemoryStorage()
		svc := aggregate.NewService(store, aggregate.WithClock(func() time.Time { return now }))

		var inputs []*notification.Notification
		for range 3 {
			n := newNotif("hr_6", notification.TypeLeaveRequestCreated, now)
			require.NoError(t, store.Create(ctx, *n))
			inputs = append(inputs, n)
		}

		rollup, err := svc.Aggregate(ctx, inputs)
		require.NoError(t, err)
		assert.Equal(t, notification.TypeLeaveRequestCreated, rollup.Type)
		assert.Equal(t, notification.PriorityMedium, rollup.Priority)
		assert.Equal(t, 3, rollup.AggregationCount)
		assert.Len(t, rollup.AggregatedWith, 3)
		assert.Contains(t, rollup.Title, "3 leave request")

		// Inputs stay readable but are flagged aggregated.
		for _, in := range inputs {
			got, err := store.Get(ctx, "hr_6", in.ID)
			require.NoError(t, err)
			assert.True(t, got.Aggregated)
		}

		// Default list shows only the rollup.
		list, err := store.List(ctx, "hr_6", notification.ListOptions{Limit: 10})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, rollup.ID, list[0].ID)

		count, err := store.CountUnread(ctx, "hr_6")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("absorbs an existing rollup", func(t *testing.T) {
		t.Parallel()
		store := notification.NewMemoryStorage()
		svc := aggregate.NewService(store, aggregate.WithClock(func() time.Time { return now }))

		var originals []*notification.Notification
		for range 2 {
			n := newNotif("hr_10", notification.TypeLeaveRequestCreated, now)
			require.NoError(t, store.Create(ctx, *n))
			originals = append(originals, n)
		}
		first, err := svc.Aggregate(ctx, originals)
		require.NoError(t, err)
		require.Equal(t, 2, first.AggregationCount)

		third := newNotif("hr_10", notification.TypeLeaveRequestCreated, now)
		require.NoError(t, store.Create(ctx, *third))

		second, err := svc.Aggregate(ctx, []*notification.Notification{first, third})
		require.NoError(t, err)
		assert.Equal(t, 3, second.AggregationCount)
		assert.Contains(t, second.Title, "3 leave request")

		// Every original is linked; the superseded rollup is not
		// counted as a notification of its own.
		assert.ElementsMatch(t,
			[]uuid.UUID{originals[0].ID, originals[1].ID, third.ID},
			second.AggregatedWith)

		// The old rollup drops out of sibling selection and views.
		got, err := store.Get(ctx, "hr_10", first.ID)
		require.NoError(t, err)
		assert.True(t, got.Aggregated)

		list, err := store.List(ctx, "hr_10", notification.ListOptions{Limit: 10})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, second.ID, list[0].ID)

		count, err := store.CountUnread(ctx, "hr_10")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("rollup weight saturates the window", func(t *testing.T) {
		t.Parallel()
		store := notification.NewMemoryStorage()
		svc := aggregate.NewService(store,
			aggregate.WithClock(func() time.Time { return now }),
			aggregate.WithRules(map[notification.Type]aggregate.Rule{
				notification.TypeLeaveRequestCreated: {Enabled: true, Window: time.Hour, MaxCount: 3},
			}),
		)

		var originals []*notification.Notification
		for range 3 {
			n := newNotif("hr_11", notification.TypeLeaveRequestCreated, now)
			require.NoError(t, store.Create(ctx, *n))
			originals = append(originals, n)
		}
		rollup, err := svc.Aggregate(ctx, originals)
		require.NoError(t, err)
		require.Equal(t, 3, rollup.AggregationCount)

		fourth := newNotif("hr_11", notification.TypeLeaveRequestCreated, now)
		require.NoError(t, store.Create(ctx, *fourth))

		ok, err := svc.ShouldAggregate(ctx, fourth)
		require.NoError(t, err)
		assert.False(t, ok, "a rollup at max count must stop the fold")
	})

	t.Run("rejects fewer than two inputs", func(t *testing.T) {
		t.Parallel()
		store := notification.NewMemoryStorage()
		svc := aggregate.NewService(store)

		_, err := svc.Aggregate(ctx, []*notification.Notification{newNotif("hr_7", notification.TypeIOUCreated, now)})
		require.ErrorIs(t, err, aggregate.ErrTooFewInputs)
	})

	t.Run("rejects mixed recipients", func(t *testing.T) {
		t.Parallel()
		store := notification.NewMemoryStorage()
		svc := aggregate.NewService(store)

		_, err := svc.Aggregate(ctx, []*notification.Notification{
			newNotif("hr_8", notification.TypeIOUCreated, now),
			newNotif("hr_9", notification.TypeIOUCreated, now),
		})
		require.ErrorIs(t, err, aggregate.ErrMixedInputs)
	})
}
