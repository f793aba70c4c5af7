package notification

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory Storage implementation for development and
// tests. Notifications are held per recipient; all methods return copies so
// callers cannot mutate stored state.
type MemoryStorage struct {
	mu          sync.RWMutex
	byRecipient map[string][]*Notification
	byID        map[uuid.UUID]*Notification
}

// NewMemoryStorage creates an empty in-memory notification store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		byRecipient: make(map[string][]*Notification),
		byID:        make(map[uuid.UUID]*Notification),
	}
}

func (s *MemoryStorage) Create(ctx context.Context, n Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.State == "" {
		n.State = StateActive
	}
	if n.AggregationKey == "" {
		n.AggregationKey = n.DefaultAggregationKey()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := n
	s.byRecipient[n.Recipient] = append(s.byRecipient[n.Recipient], &stored)
	s.byID[n.ID] = &stored
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, recipientID string, id uuid.UUID) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, err := s.owned(recipientID, id)
	if err != nil {
		return nil, err
	}
	out := *n
	return &out, nil
}

func (s *MemoryStorage) List(ctx context.Context, recipientID string, opts ListOptions) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []Notification
	for _, n := range s.byRecipient[recipientID] {
		if n.State != StateActive {
			continue
		}
		if n.Aggregated && !opts.IncludeAggregated {
			continue
		}
		if opts.OnlyUnread && n.Read {
			continue
		}
		if len(opts.Types) > 0 && !slices.Contains(opts.Types, n.Type) {
			continue
		}
		if opts.Since != nil && n.CreatedAt.Before(*opts.Since) {
			continue
		}
		filtered = append(filtered, *n)
	}

	// Newest first, stable for equal timestamps.
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(filtered) {
			return []Notification{}, nil
		}
		filtered = filtered[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(filtered) {
		filtered = filtered[:opts.Limit]
	}
	if filtered == nil {
		filtered = []Notification{}
	}
	return filtered, nil
}

func (s *MemoryStorage) MarkRead(ctx context.Context, recipientID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.owned(recipientID, id)
	if err != nil {
		return err
	}
	if !n.Read {
		now := time.Now()
		n.Read = true
		n.ReadAt = &now
	}
	return nil
}

func (s *MemoryStorage) MarkUnread(ctx context.Context, recipientID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.owned(recipientID, id)
	if err != nil {
		return err
	}
	n.Read = false
	n.ReadAt = nil
	return nil
}

func (s *MemoryStorage) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	count := 0
	for _, n := range s.byRecipient[recipientID] {
		if n.State == StateActive && !n.Read {
			n.Read = true
			at := now
			n.ReadAt = &at
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) SoftDelete(ctx context.Context, recipientID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.owned(recipientID, id)
	if err != nil {
		return err
	}
	now := time.Now()
	n.State = StateDeleted
	n.DeletedAt = &now
	return nil
}

func (s *MemoryStorage) SoftDeleteAll(ctx context.Context, recipientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	count := 0
	for _, n := range s.byRecipient[recipientID] {
		if n.State == StateActive {
			at := now
			n.State = StateDeleted
			n.DeletedAt = &at
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) CountUnread(ctx context.Context, recipientID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.byRecipient[recipientID] {
		if n.State == StateActive && !n.Read && !n.Aggregated {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) SetChannelDelivery(ctx context.Context, id uuid.UUID, ch Channel, cd ChannelDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if n.Delivery == nil {
		n.Delivery = make(map[Channel]ChannelDelivery)
	}
	n.Delivery[ch] = cd
	return nil
}

func (s *MemoryStorage) MarkAggregated(ctx context.Context, ids []uuid.UUID, aggregationKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		n, ok := s.byID[id]
		if !ok {
			return ErrNotFound
		}
		n.Aggregated = true
		n.AggregationKey = aggregationKey
	}
	return nil
}

func (s *MemoryStorage) ListSiblings(ctx context.Context, recipientID, aggregationKey string, since time.Time) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Notification
	for _, n := range s.byRecipient[recipientID] {
		if n.State != StateActive || n.Aggregated {
			continue
		}
		if n.AggregationKey != aggregationKey {
			continue
		}
		if n.CreatedAt.Before(since) {
			continue
		}
		out = append(out, *n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStorage) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Notification
	for _, n := range s.byID {
		if n.State == StateActive && n.CreatedAt.Before(cutoff) {
			out = append(out, *n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStorage) MarkArchived(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	n.State = StateArchived
	n.ArchivedAt = &now
	return nil
}

// owned looks up a notification and enforces recipient scoping. Must be
// called with the lock held.
func (s *MemoryStorage) owned(recipientID string, id uuid.UUID) (*Notification, error) {
	n, ok := s.byID[id]
	if !ok || n.Recipient != recipientID || n.State == StateDeleted {
		return nil, ErrNotFound
	}
	return n, nil
}
