package delivery

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zayyadi/paroll-sub001/pkg/notification"
)

// DefaultMaxRetries is the attempt budget for new delivery log rows.
const DefaultMaxRetries = 5

// MemoryLogStorage is the in-memory LogStorage for development and
// tests. Safe for concurrent use.
type MemoryLogStorage struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*Log
	tuples map[string]uuid.UUID
	now    func() time.Time
}

// NewMemoryLogStorage creates an empty store.
func NewMemoryLogStorage() *MemoryLogStorage {
	return &MemoryLogStorage{
		byID:   make(map[uuid.UUID]*Log),
		tuples: make(map[string]uuid.UUID),
		now:    time.Now,
	}
}

func (s *MemoryLogStorage) GetOrCreate(ctx context.Context, notificationID uuid.UUID, ch notification.Channel, recipientID string) (*Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := notificationID.String() + "|" + string(ch) + "|" + recipientID
	if id, ok := s.tuples[key]; ok {
		return copyLog(s.byID[id]), nil
	}

	now := s.now()
	l := &Log{
		ID:             uuid.New(),
		NotificationID: notificationID,
		Recipient:      recipientID,
		Channel:        ch,
		Status:         StatusQueued,
		MaxRetries:     DefaultMaxRetries,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.byID[l.ID] = l
	s.tuples[key] = l.ID
	return copyLog(l), nil
}

func (s *MemoryLogStorage) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.byID[id]
	if !ok {
		return false, ErrLogNotFound
	}
	if !l.Status.Claimable() {
		return false, nil
	}
	l.Status = StatusProcessing
	l.UpdatedAt = s.now()
	return true, nil
}

func (s *MemoryLogStorage) Update(ctx context.Context, updated *Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.byID[updated.ID]
	if !ok {
		return ErrLogNotFound
	}

	cp := copyLog(updated)
	cp.CreatedAt = l.CreatedAt
	cp.UpdatedAt = s.now()
	s.byID[updated.ID] = cp
	return nil
}

func (s *MemoryLogStorage) Get(ctx context.Context, id uuid.UUID) (*Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.byID[id]
	if !ok {
		return nil, ErrLogNotFound
	}
	return copyLog(l), nil
}

func (s *MemoryLogStorage) ListByNotification(ctx context.Context, notificationID uuid.UUID) ([]Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Log{}
	for _, l := range s.byID {
		if l.NotificationID == notificationID {
			out = append(out, *copyLog(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func copyLog(l *Log) *Log {
	cp := *l
	if l.Metadata != nil {
		cp.Metadata = maps.Clone(l.Metadata)
	}
	if l.NextRetryAt != nil {
		t := *l.NextRetryAt
		cp.NextRetryAt = &t
	}
	if l.DeliveredAt != nil {
		t := *l.DeliveredAt
		cp.DeliveredAt = &t
	}
	return &cp
}
