// Package notifier is the facade business workflows talk to. It owns
// the notification lifecycle: creation with preference checks and
// burst aggregation, queuing channel deliveries, and the recipient's
// read/unread/delete surface with cache-first reads.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zayyadi/paroll-sub001/pkg/aggregate"
	"github.com/zayyadi/paroll-sub001/pkg/cache"
	"github.com/zayyadi/paroll-sub001/pkg/delivery"
	"github.com/zayyadi/paroll-sub001/pkg/notification"
	"github.com/zayyadi/paroll-sub001/pkg/preference"
)

// ChannelEnqueuer submits one channel delivery task. Implemented by
// the delivery orchestrator.
type ChannelEnqueuer interface {
	EnqueueChannel(ctx context.Context, n *notification.Notification, ch notification.Channel) error
}

// SendInput describes one notification to create.
type SendInput struct {
	Recipient   string
	Type        notification.Type
	Priority    notification.Priority
	Title       string
	Message     string
	Related     notification.RelatedObject
	ActionURL   string
	ActionLabel string
	ExpiresAt   *time.Time
}

// Service coordinates creation, eligibility, aggregation and delivery.
type Service struct {
	store     notification.Storage
	prefs     *preference.Service
	agg       *aggregate.Service
	enqueuer  ChannelEnqueuer
	cache     cache.Cache
	directory delivery.Directory

	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the notification facade. agg may be nil to
// disable burst aggregation.
func NewService(store notification.Storage, prefs *preference.Service, agg *aggregate.Service, enq ChannelEnqueuer, c cache.Cache, directory delivery.Directory, opts ...Option) *Service {
	s := &Service{
		store:     store,
		prefs:     prefs,
		agg:       agg,
		enqueuer:  enq,
		cache:     c,
		directory: directory,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send creates and queues one notification. Missing recipients and
// globally disabled preferences fail softly: the call returns
// (nil, nil) and only logs, so business workflows never break on
// notification settings.
func (s *Service) Send(ctx context.Context, in SendInput) (*notification.Notification, error) {
	n := notification.Notification{
		ID:          uuid.New(),
		Recipient:   in.Recipient,
		Type:        in.Type,
		Priority:    in.Priority,
		Title:       in.Title,
		Message:     in.Message,
		State:       notification.StateActive,
		Related:     in.Related,
		ActionURL:   in.ActionURL,
		ActionLabel: in.ActionLabel,
		ExpiresAt:   in.ExpiresAt,
		CreatedAt:   s.now(),
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}

	if s.directory != nil {
		if _, err := s.directory.Lookup(ctx, in.Recipient); err != nil {
			if errors.Is(err, delivery.ErrRecipientNotFound) {
				s.logger.LogAttrs(ctx, slog.LevelWarn, "dropping notification for unknown recipient",
					slog.String("recipient_id", in.Recipient),
					slog.String("type", string(in.Type)),
				)
				return nil, nil
			}
			return nil, fmt.Errorf("lookup recipient: %w", err)
		}
	}

	p, err := s.prefs.Get(ctx, in.Recipient)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	if !p.Enabled {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "notifications globally disabled for recipient",
			slog.String("recipient_id", in.Recipient),
		)
		return nil, nil
	}

	if err := s.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}
	s.invalidate(ctx, in.Recipient)

	if rollup := s.tryAggregate(ctx, &n); rollup != nil {
		return rollup, nil
	}

	if err := s.EnqueueDelivery(ctx, &n); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to queue deliveries",
			slog.String("notification_id", n.ID.String()),
			slog.Any("error", err),
		)
	}
	return &n, nil
}

// SendBulk creates many notifications with isolated failures: one bad
// input does not stop the rest. The joined error reports every
// failure.
func (s *Service) SendBulk(ctx context.Context, inputs []SendInput) ([]*notification.Notification, error) {
	var out []*notification.Notification
	var errs []error
	for i, in := range inputs {
		n, err := s.Send(ctx, in)
		if err != nil {
			errs = append(errs, fmt.Errorf("input %d (%s): %w", i, in.Recipient, err))
			continue
		}
		if n != nil {
			out = append(out, n)
		}
	}
	return out, errors.Join(errs...)
}

// tryAggregate folds the fresh notification into a rollup when a burst
// is in progress. Aggregation failures never fail the send; the
// notification just delivers individually.
func (s *Service) tryAggregate(ctx context.Context, n *notification.Notification) *notification.Notification {
	if s.agg == nil {
		return nil
	}

	ok, err := s.agg.ShouldAggregate(ctx, n)
	if err != nil || !ok {
		if err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "aggregation check failed",
				slog.String("notification_id", n.ID.String()),
				slog.Any("error", err),
			)
		}
		return nil
	}

	siblings, err := s.agg.Siblings(ctx, n)
	if err != nil || len(siblings) < 2 {
		return nil
	}
	inputs := make([]*notification.Notification, len(siblings))
	for i := range siblings {
		inputs[i] = &siblings[i]
	}

	rollup, err := s.agg.Aggregate(ctx, inputs)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "aggregation failed",
			slog.String("notification_id", n.ID.String()),
			slog.Any("error", err),
		)
		return nil
	}
	s.invalidate(ctx, n.Recipient)

	if err := s.EnqueueDelivery(ctx, rollup); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to queue rollup deliveries",
			slog.String("notification_id", rollup.ID.String()),
			slog.Any("error", err),
		)
	}
	return rollup
}

// EnqueueDelivery queues one delivery task per eligible channel.
// Channels with a non-immediate digest frequency are left for the
// digest run unless the notification is critical. Per-channel enqueue
// failures are logged and isolated; the in-app record already exists
// regardless of side-channel outcomes.
func (s *Service) EnqueueDelivery(ctx context.Context, n *notification.Notification) error {
	p, err := s.prefs.Get(ctx, n.Recipient)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}

	for _, ch := range notification.Channels() {
		ok, err := s.prefs.ShouldSend(ctx, n.Recipient, n.Type, ch, n.Priority)
		if err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "eligibility check failed",
				slog.String("channel", string(ch)),
				slog.Any("error", err),
			)
			continue
		}
		if !ok {
			continue
		}

		if n.Type != notification.TypeDigest && n.Priority != notification.PriorityCritical {
			if setting, has := p.Channels[ch]; has && setting.Digest != preference.DigestImmediate {
				continue
			}
		}

		if err := s.enqueuer.EnqueueChannel(ctx, n, ch); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to enqueue channel delivery",
				slog.String("notification_id", n.ID.String()),
				slog.String("channel", string(ch)),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

// MarkRead marks one notification read. IDs outside the recipient's
// scope surface as ErrNotFound.
func (s *Service) MarkRead(ctx context.Context, recipientID string, id uuid.UUID) error {
	if err := s.store.MarkRead(ctx, recipientID, id); err != nil {
		return err
	}
	s.invalidate(ctx, recipientID)
	return nil
}

// MarkUnread reverts a notification to unread.
func (s *Service) MarkUnread(ctx context.Context, recipientID string, id uuid.UUID) error {
	if err := s.store.MarkUnread(ctx, recipientID, id); err != nil {
		return err
	}
	s.invalidate(ctx, recipientID)
	return nil
}

// MarkAllRead marks every unread notification read and returns the
// number transitioned.
func (s *Service) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	n, err := s.store.MarkAllRead(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, recipientID)
	return n, nil
}

// Delete soft-deletes one notification.
func (s *Service) Delete(ctx context.Context, recipientID string, id uuid.UUID) error {
	if err := s.store.SoftDelete(ctx, recipientID, id); err != nil {
		return err
	}
	s.invalidate(ctx, recipientID)
	return nil
}

// DeleteAll soft-deletes every active notification of the recipient.
func (s *Service) DeleteAll(ctx context.Context, recipientID string) (int, error) {
	n, err := s.store.SoftDeleteAll(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, recipientID)
	return n, nil
}

// UnreadCount returns the recipient's unread count, cache-first.
// Aggregated originals are excluded so rollups count once.
func (s *Service) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	if s.cache != nil {
		if count, err := s.cache.GetUnreadCount(ctx, recipientID); err == nil {
			return count, nil
		}
	}

	count, err := s.store.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.SetUnreadCount(ctx, recipientID, count); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to cache unread count",
				slog.String("recipient_id", recipientID),
				slog.Any("error", err),
			)
		}
	}
	return count, nil
}

// List returns the recipient's notifications, cache-first, keyed by
// the filter fingerprint.
func (s *Service) List(ctx context.Context, recipientID string, opts notification.ListOptions) ([]notification.Notification, error) {
	filterKey := opts.CacheKey()
	if s.cache != nil {
		if data, err := s.cache.GetList(ctx, recipientID, filterKey); err == nil {
			var out []notification.Notification
			if err := json.Unmarshal(data, &out); err == nil {
				return out, nil
			}
		}
	}

	out, err := s.store.List(ctx, recipientID, opts)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if data, err := json.Marshal(out); err == nil {
			if err := s.cache.SetList(ctx, recipientID, filterKey, data); err != nil {
				s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to cache notification list",
					slog.String("recipient_id", recipientID),
					slog.Any("error", err),
				)
			}
		}
	}
	return out, nil
}

// Get returns one notification scoped to the recipient.
func (s *Service) Get(ctx context.Context, recipientID string, id uuid.UUID) (*notification.Notification, error) {
	return s.store.Get(ctx, recipientID, id)
}

func (s *Service) invalidate(ctx context.Context, recipientID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateRecipient(ctx, recipientID); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to invalidate recipient cache",
			slog.String("recipient_id", recipientID),
			slog.Any("error", err),
		)
	}
}
