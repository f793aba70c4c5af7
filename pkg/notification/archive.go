package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zayyadi/paroll-sub001/pkg/logger"
)

// DefaultRetention is how long notifications stay in the live table before
// the sweep moves them to the archive.
const DefaultRetention = 90 * 24 * time.Hour

// ArchivedNotification is an immutable copy of a notification moved out of
// the live table. It carries the original ID for traceability and is never
// mutated after creation.
type ArchivedNotification struct {
	ID         uuid.UUID  `json:"id"`
	OriginalID uuid.UUID  `json:"original_id"`
	Recipient  string     `json:"recipient"`
	Type       Type       `json:"type"`
	Priority   Priority   `json:"priority"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Read       bool       `json:"read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ArchivedAt time.Time  `json:"archived_at"`
}

// ArchiveStorage persists archived notifications.
type ArchiveStorage interface {
	Save(ctx context.Context, a ArchivedNotification) error
	ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]ArchivedNotification, error)
}

// MemoryArchiveStorage is an in-memory ArchiveStorage for development and
// tests.
type MemoryArchiveStorage struct {
	mu   sync.RWMutex
	rows map[string][]ArchivedNotification
}

func NewMemoryArchiveStorage() *MemoryArchiveStorage {
	return &MemoryArchiveStorage{rows: make(map[string][]ArchivedNotification)}
}

func (s *MemoryArchiveStorage) Save(ctx context.Context, a ArchivedNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[a.Recipient] = append(s.rows[a.Recipient], a)
	return nil
}

func (s *MemoryArchiveStorage) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]ArchivedNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.rows[recipientID]
	if offset >= len(rows) {
		return []ArchivedNotification{}, nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	out := make([]ArchivedNotification, len(rows))
	copy(out, rows)
	return out, nil
}

// Archiver moves notifications past the retention threshold into the
// archive. Intended to run as a periodic queue task.
type Archiver struct {
	store     Storage
	archive   ArchiveStorage
	retention time.Duration
	batchSize int
	logger    *slog.Logger
}

// ArchiverOption configures an Archiver.
type ArchiverOption func(*Archiver)

// WithRetention overrides the retention threshold.
func WithRetention(d time.Duration) ArchiverOption {
	return func(a *Archiver) {
		if d > 0 {
			a.retention = d
		}
	}
}

// WithBatchSize limits how many notifications one sweep moves.
func WithBatchSize(n int) ArchiverOption {
	return func(a *Archiver) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithArchiverLogger sets the logger.
func WithArchiverLogger(l *slog.Logger) ArchiverOption {
	return func(a *Archiver) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewArchiver creates an archive sweep over the given stores.
func NewArchiver(store Storage, archive ArchiveStorage, opts ...ArchiverOption) *Archiver {
	a := &Archiver{
		store:     store,
		archive:   archive,
		retention: DefaultRetention,
		batchSize: 500,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sweep archives one batch of notifications older than the retention
// threshold and returns the number moved. Per-row failures are logged and
// skipped so one bad row cannot stall the sweep.
func (a *Archiver) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-a.retention)

	olds, err := a.store.ListOlderThan(ctx, cutoff, a.batchSize)
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, n := range olds {
		archived := ArchivedNotification{
			ID:         uuid.New(),
			OriginalID: n.ID,
			Recipient:  n.Recipient,
			Type:       n.Type,
			Priority:   n.Priority,
			Title:      n.Title,
			Message:    n.Message,
			Read:       n.Read,
			ReadAt:     n.ReadAt,
			CreatedAt:  n.CreatedAt,
			ArchivedAt: time.Now(),
		}
		if err := a.archive.Save(ctx, archived); err != nil {
			a.logger.LogAttrs(ctx, slog.LevelError, "failed to archive notification",
				logger.NotificationID(n.ID.String()),
				logger.Error(err),
			)
			continue
		}
		if err := a.store.MarkArchived(ctx, n.ID); err != nil {
			a.logger.LogAttrs(ctx, slog.LevelError, "failed to mark notification archived",
				logger.NotificationID(n.ID.String()),
				logger.Error(err),
			)
			continue
		}
		moved++
	}

	if moved > 0 {
		a.logger.LogAttrs(ctx, slog.LevelInfo, "archive sweep completed",
			slog.Int("moved", moved),
			slog.Time("cutoff", cutoff),
		)
	}
	return moved, nil
}
