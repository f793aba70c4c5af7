package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayyadi/paroll-sub001/pkg/notification"
	"github.com/zayyadi/paroll-sub001/pkg/queue"
)

type testPayload struct {
	NotificationID string `json:"notification_id"`
	Channel        string `json:"channel"`
}

func TestLaneFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, queue.LaneCritical, queue.LaneFor(notification.PriorityCritical))
	assert.Equal(t, queue.LaneHigh, queue.LaneFor(notification.PriorityHigh))
	assert.Equal(t, queue.LaneNormal, queue.LaneFor(notification.PriorityMedium))
	assert.Equal(t, queue.LaneLow, queue.LaneFor(notification.PriorityLow))
}

func TestEnqueuer_Enqueue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = store.Close() })

	enq, err := queue.NewEnqueuer(store)
	require.NoError(t, err)

	require.NoError(t, enq.Enqueue(ctx, testPayload{NotificationID: "n1", Channel: "email"},
		queue.WithLane(queue.LaneHigh),
		queue.WithMaxRetries(5),
	))

	task, err := store.ClaimTask(ctx, uuid.New(), queue.Lanes(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, queue.LaneHigh, task.Lane)
	assert.EqualValues(t, 5, task.MaxRetries)
	assert.JSONEq(t, `{"notification_id":"n1","channel":"email"}`, string(task.Payload))

	require.ErrorIs(t, enq.Enqueue(ctx, nil), queue.ErrPayloadNil)
	require.ErrorIs(t, enq.Enqueue(ctx, testPayload{}, queue.WithLane("bogus")), queue.ErrInvalidLane)
}

func TestEnqueuer_ScheduledTaskNotClaimableEarly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = store.Close() })

	enq, err := queue.NewEnqueuer(store)
	require.NoError(t, err)

	require.NoError(t, enq.Enqueue(ctx, testPayload{NotificationID: "n2"},
		queue.WithScheduledAt(time.Now().Add(time.Hour)),
	))

	_, err = store.ClaimTask(ctx, uuid.New(), queue.Lanes(), time.Minute)
	require.ErrorIs(t, err, queue.ErrNoTaskToClaim)
}

func TestClaimTask_LaneOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = store.Close() })

	enq, err := queue.NewEnqueuer(store)
	require.NoError(t, err)

	require.NoError(t, enq.Enqueue(ctx, testPayload{NotificationID: "low"}, queue.WithLane(queue.LaneLow)))
	require.NoError(t, enq.Enqueue(ctx, testPayload{NotificationID: "critical"}, queue.WithLane(queue.LaneCritical)))
	require.NoError(t, enq.Enqueue(ctx, testPayload{NotificationID: "normal"}, queue.WithLane(queue.LaneNormal)))

	workerID := uuid.New()
	var claimed []queue.Lane
	for range 3 {
		task, err := store.ClaimTask(ctx, workerID, queue.Lanes(), time.Minute)
		require.NoError(t, err)
		claimed = append(claimed, task.Lane)
	}
	assert.Equal(t, []queue.Lane{queue.LaneCritical, queue.LaneNormal, queue.LaneLow}, claimed)
}

func TestMemoryStorage_FailAndDLQ(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = store.Close() })

	enq, err := queue.NewEnqueuer(store)
	require.NoError(t, err)
	require.NoError(t, enq.Enqueue(ctx, testPayload{NotificationID: "n3"}, queue.WithMaxRetries(1)))

	workerID := uuid.New()
	task, err := store.ClaimTask(ctx, workerID, queue.Lanes(), time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.FailTask(ctx, task.ID, "provider down"))

	stored, ok := store.GetTask(task.ID)
	require.True(t, ok)
	assert.Equal(t, queue.TaskStatusFailed, stored.Status)
	assert.EqualValues(t, 1, stored.RetryCount)

	require.NoError(t, store.MoveToDLQ(ctx, task.ID))
	entries := store.DLQEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, task.ID, entries[0].TaskID)
	assert.Equal(t, "provider down", entries[0].Error)

	_, ok = store.GetTask(task.ID)
	assert.False(t, ok, "task removed from main storage after DLQ move")
}

func TestWorker_ProcessesTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = store.Close() })

	enq, err := queue.NewEnqueuer(store)
	require.NoError(t, err)

	var mu sync.Mutex
	var got []testPayload
	done := make(chan struct{})

	worker, err := queue.NewWorker(store,
		queue.WithPullInterval(10*time.Millisecond),
		queue.WithMaxConcurrentTasks(2),
	)
	require.NoError(t, err)

	worker.RegisterHandlers(queue.NewTaskHandler(func(ctx context.Context, p testPayload) error {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
		close(done)
		return nil
	}))

	require.NoError(t, enq.Enqueue(ctx, testPayload{NotificationID: "n4", Channel: "push"}))
	require.NoError(t, worker.Start(ctx))
	t.Cleanup(func() { _ = worker.Stop() })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task was not processed in time")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "n4", got[0].NotificationID)
}

func TestWorker_RequiresHandlers(t *testing.T) {
	t.Parallel()

	store := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = store.Close() })

	worker, err := queue.NewWorker(store)
	require.NoError(t, err)
	require.ErrorIs(t, worker.Start(context.Background()), queue.ErrNoHandlers)
}

func TestSchedules(t *testing.T) {
	t.Parallel()

	// Monday 2025-06-02 10:30 UTC.
	from := time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)

	t.Run("interval", func(t *testing.T) {
		t.Parallel()
		next := queue.EveryMinutes(15).Next(from)
		assert.Equal(t, from.Add(15*time.Minute), next)
	})

	t.Run("hourly", func(t *testing.T) {
		t.Parallel()
		next := queue.HourlyAt(15).Next(from)
		assert.Equal(t, time.Date(2025, 6, 2, 11, 15, 0, 0, time.UTC), next)
	})

	t.Run("daily before the hour", func(t *testing.T) {
		t.Parallel()
		next := queue.DailyAt(7, 0).Next(from)
		assert.Equal(t, time.Date(2025, 6, 3, 7, 0, 0, 0, time.UTC), next)
	})

	t.Run("daily after the hour", func(t *testing.T) {
		t.Parallel()
		next := queue.DailyAt(23, 0).Next(from)
		assert.Equal(t, time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC), next)
	})

	t.Run("weekly same day earlier time rolls a week", func(t *testing.T) {
		t.Parallel()
		next := queue.WeeklyOn(time.Monday, 7, 0).Next(from)
		assert.Equal(t, time.Date(2025, 6, 9, 7, 0, 0, 0, time.UTC), next)
	})

	t.Run("weekly later in week", func(t *testing.T) {
		t.Parallel()
		next := queue.WeeklyOn(time.Friday, 7, 0).Next(from)
		assert.Equal(t, time.Date(2025, 6, 6, 7, 0, 0, 0, time.UTC), next)
	})
}

func TestScheduler_AddTask(t *testing.T) {
	t.Parallel()

	store := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = store.Close() })

	sched, err := queue.NewScheduler(store)
	require.NoError(t, err)

	require.NoError(t, sched.AddTask("digest:daily", queue.DailyAt(7, 0)))
	require.ErrorIs(t, sched.AddTask("digest:daily", queue.DailyAt(8, 0)), queue.ErrTaskAlreadyRegistered)
	assert.Contains(t, sched.ListTasks(), "digest:daily")
}
