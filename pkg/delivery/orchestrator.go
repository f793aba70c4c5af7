package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zayyadi/paroll-sub001/pkg/notification"
	"github.com/zayyadi/paroll-sub001/pkg/queue"
)

// maxBackoff caps the exponential retry delay.
const maxBackoff = 10 * time.Minute

// defaultAttemptTimeout bounds one handler invocation.
const defaultAttemptTimeout = 30 * time.Second

// Job is the queue payload for one (notification, channel, recipient)
// delivery unit.
type Job struct {
	NotificationID uuid.UUID            `json:"notification_id"`
	Recipient      string               `json:"recipient"`
	Channel        notification.Channel `json:"channel"`
}

// Enqueuer is the slice of the task queue the orchestrator uses.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) error
}

// Orchestrator drives the delivery state machine. One instance serves
// all channels; handlers register per channel.
type Orchestrator struct {
	logs      LogStorage
	store     notification.Storage
	directory Directory
	enqueuer  Enqueuer
	handlers  map[notification.Channel]Handler

	logger         *slog.Logger
	now            func() time.Time
	attemptTimeout time.Duration
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// WithAttemptTimeout bounds one handler invocation. An attempt that
// exceeds it follows the failure path.
func WithAttemptTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.attemptTimeout = d }
}

// NewOrchestrator creates the orchestrator. Handlers are added with
// Register before the worker starts consuming.
func NewOrchestrator(logs LogStorage, store notification.Storage, directory Directory, enq Enqueuer, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		logs:           logs,
		store:          store,
		directory:      directory,
		enqueuer:       enq,
		handlers:       make(map[notification.Channel]Handler),
		logger:         slog.Default(),
		now:            time.Now,
		attemptTimeout: defaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register adds a channel handler. Last registration per channel wins.
func (o *Orchestrator) Register(h Handler) {
	o.handlers[h.Channel()] = h
}

// EnqueueChannel creates (or reuses) the tuple's delivery log row and
// submits the delivery task on the lane matching the notification's
// priority. Idempotent: a tuple already delivered is left alone.
func (o *Orchestrator) EnqueueChannel(ctx context.Context, n *notification.Notification, ch notification.Channel) error {
	l, err := o.logs.GetOrCreate(ctx, n.ID, ch, n.Recipient)
	if err != nil {
		return fmt.Errorf("get or create delivery log: %w", err)
	}
	if l.Status == StatusDelivered {
		return nil
	}

	if err := o.store.SetChannelDelivery(ctx, n.ID, ch, notification.ChannelDelivery{
		Status: notification.DeliveryQueued,
		At:     o.now(),
	}); err != nil {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "failed to record queued delivery status",
			slog.String("notification_id", n.ID.String()),
			slog.String("channel", string(ch)),
			slog.Any("error", err),
		)
	}

	job := Job{NotificationID: n.ID, Recipient: n.Recipient, Channel: ch}
	if err := o.enqueuer.Enqueue(ctx, job, queue.WithLane(queue.LaneFor(n.Priority))); err != nil {
		return fmt.Errorf("enqueue %s delivery: %w", ch, err)
	}
	return nil
}

// Process runs one delivery attempt for the tuple. Channel failures
// never bubble up: the returned error only reports infrastructure
// faults (storage, re-enqueue) that warrant a queue-level retry.
func (o *Orchestrator) Process(ctx context.Context, job Job) error {
	handler, ok := o.handlers[job.Channel]
	if !ok {
		return fmt.Errorf("no handler registered for channel %q", job.Channel)
	}

	l, err := o.logs.GetOrCreate(ctx, job.NotificationID, job.Channel, job.Recipient)
	if err != nil {
		return fmt.Errorf("get or create delivery log: %w", err)
	}

	// Idempotent short-circuits: a delivered tuple stays delivered and
	// produces no second provider call; a failed one waits for manual
	// replay.
	if l.Status.Terminal() {
		o.logger.LogAttrs(ctx, slog.LevelDebug, "delivery already terminal",
			slog.String("log_id", l.ID.String()),
			slog.String("status", string(l.Status)),
		)
		return nil
	}

	claimed, err := o.logs.Claim(ctx, l.ID)
	if err != nil {
		return fmt.Errorf("claim delivery log: %w", err)
	}
	if !claimed {
		// Another worker holds the tuple; attempts stay sequential.
		return nil
	}
	l.Status = StatusProcessing

	n, err := o.store.Get(ctx, job.Recipient, job.NotificationID)
	if err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			return o.fail(ctx, l, nil, failure(CodeNotificationGone, "notification no longer exists"))
		}
		return fmt.Errorf("load notification: %w", err)
	}
	if n.IsExpired(o.now()) {
		return o.fail(ctx, l, n, failure(CodeExpired, "notification expired before delivery"))
	}

	rcpt, err := o.directory.Lookup(ctx, job.Recipient)
	if err != nil {
		if errors.Is(err, ErrRecipientNotFound) {
			return o.fail(ctx, l, n, failure(CodeRecipientNotFound, "recipient has no profile"))
		}
		return o.fail(ctx, l, n, failure(CodeDirectoryError, "directory lookup: "+err.Error()))
	}

	attemptCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	res := handler.Deliver(attemptCtx, n, rcpt)
	timedOut := attemptCtx.Err() != nil && res.Success
	cancel()
	if timedOut {
		res = failure(CodeAttemptTimeout, "delivery attempt exceeded timeout")
	}

	if !res.Success {
		return o.fail(ctx, l, n, res)
	}
	return o.succeed(ctx, l, n, res)
}

func (o *Orchestrator) succeed(ctx context.Context, l *Log, n *notification.Notification, res Result) error {
	now := o.now()
	l.Status = StatusDelivered
	l.DeliveredAt = &now
	l.NextRetryAt = nil
	l.ErrorCode = ""
	l.ErrorMessage = ""
	l.Metadata = res.Metadata
	if id, ok := res.Metadata["message_id"]; ok {
		l.ProviderMessageID = id
	} else if sid, ok := res.Metadata["message_sid"]; ok {
		l.ProviderMessageID = sid
	}

	if err := o.logs.Update(ctx, l); err != nil {
		return fmt.Errorf("record delivered status: %w", err)
	}
	o.reflectStatus(ctx, l, notification.DeliveryDelivered, res.Metadata)

	o.logger.LogAttrs(ctx, slog.LevelInfo, "notification delivered",
		slog.String("notification_id", l.NotificationID.String()),
		slog.String("channel", string(l.Channel)),
		slog.String("recipient_id", l.Recipient),
		slog.String("detail", res.Message),
	)
	return nil
}

// fail applies the retry policy. ConfigurationMissing and provider
// faults share the same counter; the error code on the final FAILED
// row tells permanent causes apart.
func (o *Orchestrator) fail(ctx context.Context, l *Log, n *notification.Notification, res Result) error {
	l.RetryCount++
	l.ErrorCode = res.Code
	l.ErrorMessage = res.Message

	if l.RetryCount < l.MaxRetries {
		next := o.now().Add(backoff(l.RetryCount))
		l.Status = StatusRetrying
		l.NextRetryAt = &next
		if err := o.logs.Update(ctx, l); err != nil {
			return fmt.Errorf("record retrying status: %w", err)
		}
		o.reflectStatus(ctx, l, notification.DeliveryRetrying, nil)

		job := Job{NotificationID: l.NotificationID, Recipient: l.Recipient, Channel: l.Channel}
		lane := queue.DefaultLane
		if n != nil {
			lane = queue.LaneFor(n.Priority)
		}
		if err := o.enqueuer.Enqueue(ctx, job, queue.WithLane(lane), queue.WithScheduledAt(next)); err != nil {
			return fmt.Errorf("re-enqueue %s delivery: %w", l.Channel, err)
		}

		o.logger.LogAttrs(ctx, slog.LevelWarn, "delivery attempt failed, retrying",
			slog.String("notification_id", l.NotificationID.String()),
			slog.String("channel", string(l.Channel)),
			slog.Int("retry_count", l.RetryCount),
			slog.Time("next_retry_at", next),
			slog.String("error_code", res.Code),
			slog.String("error", res.Message),
		)
		return nil
	}

	l.Status = StatusFailed
	l.NextRetryAt = nil
	if err := o.logs.Update(ctx, l); err != nil {
		return fmt.Errorf("record failed status: %w", err)
	}
	o.reflectStatus(ctx, l, notification.DeliveryFailed, nil)

	o.logger.LogAttrs(ctx, slog.LevelError, "delivery failed permanently",
		slog.String("notification_id", l.NotificationID.String()),
		slog.String("channel", string(l.Channel)),
		slog.String("recipient_id", l.Recipient),
		slog.String("error_code", res.Code),
		slog.String("error", res.Message),
	)
	return nil
}

// reflectStatus mirrors the log state onto the notification's
// denormalized per-channel delivery map. Best-effort: the log row
// stays authoritative.
func (o *Orchestrator) reflectStatus(ctx context.Context, l *Log, status notification.DeliveryStatus, metadata map[string]string) {
	err := o.store.SetChannelDelivery(ctx, l.NotificationID, l.Channel, notification.ChannelDelivery{
		Status:   status,
		At:       o.now(),
		Metadata: metadata,
	})
	if err != nil && !errors.Is(err, notification.ErrNotFound) {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "failed to reflect delivery status",
			slog.String("notification_id", l.NotificationID.String()),
			slog.String("channel", string(l.Channel)),
			slog.Any("error", err),
		)
	}
}

// backoff is 2^retryCount minutes, capped.
func backoff(retryCount int) time.Duration {
	if retryCount >= 4 {
		return maxBackoff
	}
	return min(time.Duration(1<<retryCount)*time.Minute, maxBackoff)
}
