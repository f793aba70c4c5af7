// Package aggregate collapses notification bursts: several notifications
// of the same type for the same recipient within a short window become one
// rollup notification.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zayyadi/paroll-sub001/pkg/notification"
)

var (
	// ErrTooFewInputs is returned when Aggregate is called with fewer
	// than two notifications.
	ErrTooFewInputs = errors.New("aggregation requires at least two notifications")

	// ErrMixedInputs is returned when inputs span recipients or types.
	ErrMixedInputs = errors.New("aggregation inputs must share recipient and type")
)

// Rule controls aggregation for one notification type.
type Rule struct {
	Enabled  bool
	Window   time.Duration
	MaxCount int
}

// DefaultRules returns the static per-type rule table. Types absent from
// the table never aggregate. Approval outcomes and payslips stay
// individual; request-creation bursts aimed at HR collapse.
func DefaultRules() map[notification.Type]Rule {
	return map[notification.Type]Rule{
		notification.TypeLeaveRequestCreated: {Enabled: true, Window: time.Hour, MaxCount: 10},
		notification.TypeIOUCreated:          {Enabled: true, Window: time.Hour, MaxCount: 10},
		notification.TypeProfileUpdated:      {Enabled: true, Window: 30 * time.Minute, MaxCount: 5},
	}
}

// Service implements burst aggregation over the notification store.
type Service struct {
	store  notification.Storage
	rules  map[notification.Type]Rule
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRules replaces the default rule table.
func WithRules(rules map[notification.Type]Rule) Option {
	return func(s *Service) {
		if rules != nil {
			s.rules = rules
		}
	}
}

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

// NewService creates an aggregation service.
func NewService(store notification.Storage, opts ...Option) *Service {
	s := &Service{
		store:  store,
		rules:  DefaultRules(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rule returns the aggregation rule for a type.
func (s *Service) Rule(typ notification.Type) (Rule, bool) {
	r, ok := s.rules[typ]
	return r, ok && r.Enabled
}

// ShouldAggregate reports whether the notification should be folded into
// a rollup: its type is aggregation-enabled, at least one live sibling
// with the same aggregation key exists inside the window, and the window
// is not already saturated past the rule's max count.
func (s *Service) ShouldAggregate(ctx context.Context, n *notification.Notification) (bool, error) {
	rule, ok := s.Rule(n.Type)
	if !ok {
		return false, nil
	}

	since := s.now().Add(-rule.Window)
	siblings, err := s.store.ListSiblings(ctx, n.Recipient, n.DefaultAggregationKey(), since)
	if err != nil {
		return false, fmt.Errorf("list aggregation siblings: %w", err)
	}

	// Exclude the notification itself when it is already persisted. A
	// live rollup weighs as many notifications as it subsumes so the
	// max-count saturation check tracks the real burst size.
	total := 0
	for _, sib := range siblings {
		if sib.ID != n.ID {
			total += weight(&sib)
		}
	}
	return total >= 1 && total < rule.MaxCount, nil
}

// weight is the number of underlying notifications an input stands for.
func weight(n *notification.Notification) int {
	if n.IsRollup() {
		return n.AggregationCount
	}
	return 1
}

// Siblings returns the live notifications sharing the aggregation key
// within the type's window, including the given notification.
func (s *Service) Siblings(ctx context.Context, n *notification.Notification) ([]notification.Notification, error) {
	rule, ok := s.Rule(n.Type)
	if !ok {
		return nil, nil
	}
	since := s.now().Add(-rule.Window)
	return s.store.ListSiblings(ctx, n.Recipient, n.DefaultAggregationKey(), since)
}

// Aggregate folds two or more notifications into one rollup. The rollup
// carries the type and priority of the first input, a count-based summary,
// and links every underlying notification. A prior rollup among the
// inputs is absorbed: its count and links carry over and the superseded
// rollup itself is marked aggregated, so a growing burst always shows
// one rollup whose count equals the number of original notifications.
// Inputs are marked aggregated but stay readable for audit; they just
// disappear from default unread views.
func (s *Service) Aggregate(ctx context.Context, notifs []*notification.Notification) (*notification.Notification, error) {
	if len(notifs) < 2 {
		return nil, ErrTooFewInputs
	}

	first := notifs[0]
	total := 0
	ids := make([]uuid.UUID, 0, len(notifs))
	linked := make([]uuid.UUID, 0, len(notifs))
	for _, n := range notifs {
		if n.Recipient != first.Recipient || n.Type != first.Type {
			return nil, ErrMixedInputs
		}
		ids = append(ids, n.ID)
		if n.IsRollup() {
			total += n.AggregationCount
			linked = append(linked, n.AggregatedWith...)
		} else {
			total++
			linked = append(linked, n.ID)
		}
	}

	key := first.DefaultAggregationKey()
	rollup := notification.Notification{
		ID:               uuid.New(),
		Recipient:        first.Recipient,
		Type:             first.Type,
		Priority:         first.Priority,
		Title:            summaryTitle(first.Type, total),
		Message:          fmt.Sprintf("You have %d new %s notifications.", total, label(first.Type)),
		State:            notification.StateActive,
		AggregationKey:   key,
		AggregationCount: total,
		AggregatedWith:   linked,
		CreatedAt:        s.now(),
	}

	if err := s.store.Create(ctx, rollup); err != nil {
		return nil, fmt.Errorf("create rollup notification: %w", err)
	}

	if err := s.store.MarkAggregated(ctx, ids, key); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to mark notifications aggregated",
			slog.String("aggregation_key", key),
			slog.String("error", err.Error()),
		)
	}

	return &rollup, nil
}

func summaryTitle(typ notification.Type, count int) string {
	return fmt.Sprintf("%d %s notifications", count, label(typ))
}

func label(typ notification.Type) string {
	switch typ {
	case notification.TypeLeaveRequestCreated:
		return "leave request"
	case notification.TypeIOUCreated:
		return "IOU request"
	case notification.TypeProfileUpdated:
		return "profile update"
	default:
		return string(typ)
	}
}
