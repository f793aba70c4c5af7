// Package digest rolls a recipient's recent unread notifications into one
// periodic summary notification.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zayyadi/paroll-sub001/pkg/notification"
	"github.com/zayyadi/paroll-sub001/pkg/preference"
)

// Deliverer enqueues a notification for channel delivery. Implemented by
// the notifier service; kept as a local interface so digest does not
// depend on it.
type Deliverer interface {
	EnqueueDelivery(ctx context.Context, n *notification.Notification) error
}

// Service assembles and sends digests.
type Service struct {
	store     notification.Storage
	prefs     preference.Storage
	deliverer Deliverer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a digest service.
func NewService(store notification.Storage, prefs preference.Storage, deliverer Deliverer, opts ...Option) *Service {
	s := &Service{
		store:     store,
		prefs:     prefs,
		deliverer: deliverer,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func window(freq preference.DigestFrequency) (time.Duration, bool) {
	switch freq {
	case preference.DigestHourly:
		return time.Hour, true
	case preference.DigestDaily:
		return 24 * time.Hour, true
	case preference.DigestWeekly:
		return 7 * 24 * time.Hour, true
	}
	return 0, false
}

// CreateDigest builds a digest of the recipient's unread, non-deleted,
// non-aggregated notifications created inside the frequency's window.
// Returns nil without error when there is nothing to summarize.
func (s *Service) CreateDigest(ctx context.Context, recipientID string, freq preference.DigestFrequency) (*notification.Notification, error) {
	win, ok := window(freq)
	if !ok {
		return nil, fmt.Errorf("digest frequency %q has no window", freq)
	}

	now := s.now()
	since := now.Add(-win)
	items, err := s.store.List(ctx, recipientID, notification.ListOptions{
		OnlyUnread: true,
		Since:      &since,
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications for digest: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	byType := make(map[notification.Type]int)
	ids := make([]uuid.UUID, 0, len(items))
	for _, n := range items {
		byType[n.Type]++
		ids = append(ids, n.ID)
	}

	digest := notification.Notification{
		ID:               uuid.New(),
		Recipient:        recipientID,
		Type:             notification.TypeDigest,
		Priority:         notification.PriorityLow,
		Title:            fmt.Sprintf("You have %d unread notifications", len(items)),
		Message:          summarize(byType),
		State:            notification.StateActive,
		AggregationCount: len(items),
		AggregatedWith:   ids,
		CreatedAt:        now,
	}

	if err := s.store.Create(ctx, digest); err != nil {
		return nil, fmt.Errorf("create digest notification: %w", err)
	}

	digestKey := digest.DefaultAggregationKey()
	if err := s.store.MarkAggregated(ctx, ids, digestKey); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to mark notifications as digested",
			slog.String("recipient", recipientID),
			slog.String("error", err.Error()),
		)
	}

	return &digest, nil
}

// SendDigest creates the digest and hands it to the delivery pipeline.
func (s *Service) SendDigest(ctx context.Context, recipientID string, freq preference.DigestFrequency) (*notification.Notification, error) {
	digest, err := s.CreateDigest(ctx, recipientID, freq)
	if err != nil || digest == nil {
		return digest, err
	}

	if err := s.deliverer.EnqueueDelivery(ctx, digest); err != nil {
		return digest, fmt.Errorf("enqueue digest delivery: %w", err)
	}
	return digest, nil
}

// Run sends digests to every recipient subscribed at the given frequency.
// Per-recipient failures are logged and do not abort the batch. Returns
// the number of digests sent.
func (s *Service) Run(ctx context.Context, freq preference.DigestFrequency) (int, error) {
	recipients, err := s.prefs.ListRecipientsByDigest(ctx, freq)
	if err != nil {
		return 0, fmt.Errorf("list digest recipients: %w", err)
	}

	sent := 0
	for _, recipientID := range recipients {
		digest, err := s.SendDigest(ctx, recipientID, freq)
		if err != nil {
			s.logger.LogAttrs(ctx, slog.LevelError, "digest delivery failed",
				slog.String("recipient", recipientID),
				slog.String("frequency", string(freq)),
				slog.String("error", err.Error()),
			)
			continue
		}
		if digest != nil {
			sent++
		}
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "digest run complete",
		slog.String("frequency", string(freq)),
		slog.Int("recipients", len(recipients)),
		slog.Int("sent", sent),
	)
	return sent, nil
}

func summarize(byType map[notification.Type]int) string {
	types := make([]string, 0, len(byType))
	for typ := range byType {
		types = append(types, string(typ))
	}
	sort.Strings(types)

	parts := make([]string, 0, len(types))
	for _, typ := range types {
		parts = append(parts, fmt.Sprintf("%s: %d", strings.ReplaceAll(typ, "_", " "), byType[notification.Type(typ)]))
	}
	return strings.Join(parts, ", ")
}
