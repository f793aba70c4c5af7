package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayyadi/paroll-sub001/pkg/aggregate"
	"github.com/zayyadi/paroll-sub001/pkg/cache"
	"github.com/zayyadi/paroll-sub001/pkg/delivery"
	"github.com/zayyadi/paroll-sub001/pkg/email"
	"github.com/zayyadi/paroll-sub001/pkg/event"
	"github.com/zayyadi/paroll-sub001/pkg/notification"
	"github.com/zayyadi/paroll-sub001/pkg/notifier"
	"github.com/zayyadi/paroll-sub001/pkg/preference"
	"github.com/zayyadi/paroll-sub001/pkg/queue"
	"github.com/zayyadi/paroll-sub001/pkg/realtime"
	"github.com/zayyadi/paroll-sub001/pkg/template"
)

// hrDirectory serves both the event fan-out (who in HR gets workflow
// notifications) and delivery contact lookup.
type hrDirectory struct {
	hr []string
}

func (d *hrDirectory) HRRecipients(ctx context.Context) ([]string, error) {
	return d.hr, nil
}

func (d *hrDirectory) EmployeeName(ctx context.Context, employeeID string) (string, error) {
	return "Bola Adeyemi", nil
}

func (d *hrDirectory) Lookup(ctx context.Context, recipientID string) (*delivery.Recipient, error) {
	return &delivery.Recipient{ID: recipientID, Name: recipientID, Email: recipientID + "@example.com"}, nil
}

// drainDeliveries processes every claimable queue task in-line, the
// way a worker would, until the queue reports empty.
func drainDeliveries(t *testing.T, ctx context.Context, store *queue.MemoryStorage, orch *delivery.Orchestrator) {
	t.Helper()

	handler := queue.NewTaskHandler(orch.Process)
	workerID := uuid.New()
	for {
		task, err := store.ClaimTask(ctx, workerID, queue.Lanes(), time.Minute)
		if errors.Is(err, queue.ErrNoTaskToClaim) {
			return
		}
		require.NoError(t, err)
		require.NoError(t, handler.Handle(ctx, task.Payload))
		require.NoError(t, store.CompleteTask(ctx, task.ID))
	}
}

// TestLeaveRequestFanOutDeliversToHR walks one business event through
// the whole pipeline: dispatcher to notifier to queued channel
// deliveries, asserting on the per-recipient record at each stage.
func TestLeaveRequestFanOutDeliversToHR(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	hr := []string{"hr_1", "hr_2"}
	directory := &hrDirectory{hr: hr}

	store := notification.NewMemoryStorage()
	c := cache.NewMemoryCache()
	prefs := preference.NewService(preference.NewMemoryStorage(), c)

	// In-app and email only: push has no provider in this fixture, and
	// SMS is off by default.
	for _, id := range hr {
		p := preference.Default(id)
		p.Channels[notification.ChannelPush] = preference.ChannelSetting{
			Enabled:     false,
			MinPriority: notification.PriorityLow,
			Digest:      preference.DigestImmediate,
		}
		require.NoError(t, prefs.Update(ctx, p))
	}

	queueStore := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = queueStore.Close() })
	enq, err := queue.NewEnqueuer(queueStore)
	require.NoError(t, err)

	hub := realtime.NewHub()
	t.Cleanup(func() { _ = hub.Close() })

	logs := delivery.NewMemoryLogStorage()
	orch := delivery.NewOrchestrator(logs, store, directory, enq)
	orch.Register(delivery.NewRealtimeHandler(hub, c, nil))
	orch.Register(delivery.NewEmailHandler(email.NewDevSender(nil), template.NewRegistry(), nil))

	svc := notifier.NewService(store, prefs, aggregate.NewService(store), orch, c, directory)

	disp := event.NewDispatcher()
	event.NewNotifications(svc, directory).RegisterAll(disp)

	handled := disp.Dispatch(ctx, event.LeaveRequestCreated, event.LeaveRequestEvent{
		LeaveRequestID: "lr_42",
		EmployeeID:     "emp_9",
		LeaveType:      "annual",
		StartDate:      time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC),
	})
	require.True(t, handled)

	// One notification per HR recipient, before any delivery runs.
	byRecipient := make(map[string]notification.Notification, len(hr))
	for _, id := range hr {
		list, err := svc.List(ctx, id, notification.ListOptions{Limit: 10})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "New Leave Request", list[0].Title)
		assert.Equal(t, notification.PriorityMedium, list[0].Priority)
		assert.Contains(t, list[0].Message, "Bola Adeyemi")
		byRecipient[id] = list[0]
	}

	drainDeliveries(t, ctx, queueStore, orch)

	for _, id := range hr {
		rows, err := logs.ListByNotification(ctx, byRecipient[id].ID)
		require.NoError(t, err)
		require.Len(t, rows, 2, "in-app and email only")

		statuses := make(map[notification.Channel]delivery.Status, len(rows))
		for _, row := range rows {
			statuses[row.Channel] = row.Status
		}
		assert.Equal(t, delivery.StatusDelivered, statuses[notification.ChannelInApp])
		assert.Equal(t, delivery.StatusDelivered, statuses[notification.ChannelEmail])

		count, err := svc.UnreadCount(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	}

	// Reading one recipient's copy leaves the other untouched.
	require.NoError(t, svc.MarkRead(ctx, "hr_1", byRecipient["hr_1"].ID))

	count, err := svc.UnreadCount(ctx, "hr_1")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = svc.UnreadCount(ctx, "hr_2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
