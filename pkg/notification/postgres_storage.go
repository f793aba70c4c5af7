package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage is the production Storage implementation backed by pgx.
// The schema lives in the goose migrations under modules/notifications.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a notification store over the given pool.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

const notificationColumns = `id, recipient, type, priority, title, message, state,
	read, read_at, deleted_at, archived_at, delivery, aggregated,
	aggregation_key, aggregation_count, aggregated_with, related_kind,
	related_id, action_url, action_label, expires_at, created_at`

func (s *PostgresStorage) Create(ctx context.Context, n Notification) error {
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

	delivery, err := json.Marshal(n.Delivery)
	if err != nil {
		return fmt.Errorf("marshal delivery map: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		n.ID, n.Recipient, n.Type, int(n.Priority), n.Title, n.Message, n.State,
		n.Read, n.ReadAt, n.DeletedAt, n.ArchivedAt, delivery, n.Aggregated,
		n.AggregationKey, n.AggregationCount, n.AggregatedWith, n.Related.Kind,
		n.Related.ID, n.ActionURL, n.ActionLabel, n.ExpiresAt, n.CreatedAt,
	)
	return err
}

func (s *PostgresStorage) Get(ctx context.Context, recipientID string, id uuid.UUID) (*Notification, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE id = $1 AND recipient = $2 AND state <> 'deleted'`,
		id, recipientID,
	)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

func (s *PostgresStorage) List(ctx context.Context, recipientID string, opts ListOptions) ([]Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE recipient = $1 AND state = 'active'`
	args := []any{recipientID}

	if !opts.IncludeAggregated {
		query += ` AND NOT aggregated`
	}
	if opts.OnlyUnread {
		query += ` AND NOT read`
	}
	if len(opts.Types) > 0 {
		args = append(args, opts.Types)
		query += fmt.Sprintf(` AND type = ANY($%d)`, len(args))
	}
	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}

	query += ` ORDER BY created_at DESC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectNotifications(rows)
}

func (s *PostgresStorage) MarkRead(ctx context.Context, recipientID string, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET read = TRUE, read_at = now()
		WHERE id = $1 AND recipient = $2 AND state <> 'deleted'`,
		id, recipientID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) MarkUnread(ctx context.Context, recipientID string, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET read = FALSE, read_at = NULL
		WHERE id = $1 AND recipient = $2 AND state <> 'deleted'`,
		id, recipientID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET read = TRUE, read_at = now()
		WHERE recipient = $1 AND state = 'active' AND NOT read`,
		recipientID,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStorage) SoftDelete(ctx context.Context, recipientID string, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET state = 'deleted', deleted_at = now()
		WHERE id = $1 AND recipient = $2 AND state = 'active'`,
		id, recipientID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) SoftDeleteAll(ctx context.Context, recipientID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET state = 'deleted', deleted_at = now()
		WHERE recipient = $1 AND state = 'active'`,
		recipientID,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStorage) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM notifications
		WHERE recipient = $1 AND state = 'active' AND NOT read AND NOT aggregated`,
		recipientID,
	).Scan(&count)
	return count, err
}

func (s *PostgresStorage) SetChannelDelivery(ctx context.Context, id uuid.UUID, ch Channel, cd ChannelDelivery) error {
	entry, err := json.Marshal(cd)
	if err != nil {
		return fmt.Errorf("marshal channel delivery: %w", err)
	}

	// jsonb_set merges the single channel entry, leaving other channels as
	// they are.
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET delivery = jsonb_set(COALESCE(delivery, '{}'::jsonb), ARRAY[$2::text], $3::jsonb, TRUE)
		WHERE id = $1`,
		id, string(ch), entry,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) MarkAggregated(ctx context.Context, ids []uuid.UUID, aggregationKey string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET aggregated = TRUE, aggregation_key = $2
		WHERE id = ANY($1)`,
		ids, aggregationKey,
	)
	if err != nil {
		return err
	}
	if int(tag.RowsAffected()) != len(ids) {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) ListSiblings(ctx context.Context, recipientID, aggregationKey string, since time.Time) ([]Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE recipient = $1 AND aggregation_key = $2 AND state = 'active'
		  AND NOT aggregated AND created_at >= $3
		ORDER BY created_at ASC`,
		recipientID, aggregationKey, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectNotifications(rows)
}

func (s *PostgresStorage) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE state = 'active' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectNotifications(rows)
}

func (s *PostgresStorage) MarkArchived(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET state = 'archived', archived_at = now()
		WHERE id = $1 AND state = 'active'`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*Notification, error) {
	var (
		n        Notification
		priority int
		delivery []byte
	)
	err := row.Scan(
		&n.ID, &n.Recipient, &n.Type, &priority, &n.Title, &n.Message, &n.State,
		&n.Read, &n.ReadAt, &n.DeletedAt, &n.ArchivedAt, &delivery, &n.Aggregated,
		&n.AggregationKey, &n.AggregationCount, &n.AggregatedWith, &n.Related.Kind,
		&n.Related.ID, &n.ActionURL, &n.ActionLabel, &n.ExpiresAt, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.Priority = Priority(priority)
	if len(delivery) > 0 {
		if err := json.Unmarshal(delivery, &n.Delivery); err != nil {
			return nil, fmt.Errorf("unmarshal delivery map: %w", err)
		}
	}
	return &n, nil
}

func collectNotifications(rows pgx.Rows) ([]Notification, error) {
	out := []Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// PostgresArchiveStorage persists archived notifications.
type PostgresArchiveStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresArchiveStorage(pool *pgxpool.Pool) *PostgresArchiveStorage {
	return &PostgresArchiveStorage{pool: pool}
}

func (s *PostgresArchiveStorage) Save(ctx context.Context, a ArchivedNotification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO archived_notifications
			(id, original_id, recipient, type, priority, title, message, read, read_at, created_at, archived_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.OriginalID, a.Recipient, a.Type, int(a.Priority), a.Title,
		a.Message, a.Read, a.ReadAt, a.CreatedAt, a.ArchivedAt,
	)
	return err
}

func (s *PostgresArchiveStorage) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]ArchivedNotification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, original_id, recipient, type, priority, title, message, read, read_at, created_at, archived_at
		FROM archived_notifications
		WHERE recipient = $1
		ORDER BY archived_at DESC
		LIMIT $2 OFFSET $3`,
		recipientID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ArchivedNotification{}
	for rows.Next() {
		var (
			a        ArchivedNotification
			priority int
		)
		if err := rows.Scan(
			&a.ID, &a.OriginalID, &a.Recipient, &a.Type, &priority, &a.Title,
			&a.Message, &a.Read, &a.ReadAt, &a.CreatedAt, &a.ArchivedAt,
		); err != nil {
			return nil, err
		}
		a.Priority = Priority(priority)
		out = append(out, a)
	}
	return out, rows.Err()
}
