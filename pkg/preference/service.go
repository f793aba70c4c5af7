package preference

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/zayyadi/paroll-sub001/pkg/cache"
	"github.com/zayyadi/paroll-sub001/pkg/logger"
	"github.com/zayyadi/paroll-sub001/pkg/notification"
)

// Service resolves delivery eligibility. Preference snapshots are cached
// with a medium TTL and invalidated on every update.
type Service struct {
	storage Storage
	cache   cache.Cache
	logger  *slog.Logger
	now     func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source, used by quiet-hours tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a preference service.
func NewService(storage Storage, c cache.Cache, opts ...ServiceOption) *Service {
	s := &Service{
		storage: storage,
		cache:   c,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the recipient's preference, lazily creating defaults on first
// access. Reads are cache-first.
func (s *Service) Get(ctx context.Context, recipientID string) (*Preference, error) {
	if data, err := s.cache.GetPreferences(ctx, recipientID); err == nil {
		var p Preference
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
		// A corrupt snapshot falls through to the store.
	}

	p, err := s.storage.Get(ctx, recipientID)
	if errors.Is(err, ErrNotFound) {
		def := Default(recipientID)
		if err := s.storage.Save(ctx, def); err != nil {
			return nil, err
		}
		p = &def
	} else if err != nil {
		return nil, err
	}

	s.cacheSnapshot(ctx, p)
	return p, nil
}

// Update persists a preference change and invalidates the recipient's
// cache. Only the owning recipient (or an administrator acting on their
// behalf) reaches this path; the transport layer enforces that.
func (s *Service) Update(ctx context.Context, p Preference) error {
	p.UpdatedAt = s.now()
	if err := s.storage.Save(ctx, p); err != nil {
		return err
	}
	if err := s.cache.InvalidateRecipient(ctx, p.Recipient); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to invalidate preference cache",
			logger.RecipientID(p.Recipient),
			logger.Error(err),
		)
	}
	return nil
}

// ShouldSend reports whether a notification of the given type and priority
// may be delivered to the recipient on the given channel.
func (s *Service) ShouldSend(ctx context.Context, recipientID string, typ notification.Type, ch notification.Channel, prio notification.Priority) (bool, error) {
	p, err := s.Get(ctx, recipientID)
	if err != nil {
		return false, err
	}

	if !p.ChannelEnabled(typ, ch) {
		return false, nil
	}
	if setting, ok := p.Channels[ch]; ok && prio < setting.MinPriority {
		return false, nil
	}
	if p.QuietHours != nil && prio != notification.PriorityCritical && p.QuietHours.Contains(s.now()) {
		return false, nil
	}
	return true, nil
}

// EffectiveChannels returns the per-channel eligibility map for a type,
// falling back to channel-level defaults when no override exists.
func (s *Service) EffectiveChannels(ctx context.Context, recipientID string, typ notification.Type) (map[notification.Channel]bool, error) {
	p, err := s.Get(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	out := make(map[notification.Channel]bool, len(notification.Channels()))
	for _, ch := range notification.Channels() {
		out[ch] = p.ChannelEnabled(typ, ch)
	}
	return out, nil
}

func (s *Service) cacheSnapshot(ctx context.Context, p *Preference) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.cache.SetPreferences(ctx, p.Recipient, data); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to cache preference snapshot",
			logger.RecipientID(p.Recipient),
			logger.Error(err),
		)
	}
}
