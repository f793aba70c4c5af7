package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zayyadi/paroll-sub001/pkg/notification"
)

// PostgresLogStorage is the production LogStorage backed by pgx. The
// schema lives in the goose migrations under modules/notifications; a
// partial unique index on (notification_id, channel, recipient) where
// status is non-terminal enforces the single-row-per-tuple invariant.
type PostgresLogStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresLogStorage creates a delivery log store over the pool.
func NewPostgresLogStorage(pool *pgxpool.Pool) *PostgresLogStorage {
	return &PostgresLogStorage{pool: pool}
}

const logColumns = `id, notification_id, recipient, channel, status, retry_count,
	max_retries, next_retry_at, provider_message_id, metadata,
	error_code, error_message, delivered_at, created_at, updated_at`

func (s *PostgresLogStorage) GetOrCreate(ctx context.Context, notificationID uuid.UUID, ch notification.Channel, recipientID string) (*Log, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+logColumns+`
		FROM notification_delivery_logs
		WHERE notification_id = $1 AND channel = $2 AND recipient = $3
		ORDER BY created_at DESC
		LIMIT 1`,
		notificationID, ch, recipientID,
	)
	l, err := scanLog(row)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	now := time.Now()
	l = &Log{
		ID:             uuid.New(),
		NotificationID: notificationID,
		Recipient:      recipientID,
		Channel:        ch,
		Status:         StatusQueued,
		MaxRetries:     DefaultMaxRetries,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO notification_delivery_logs (`+logColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT DO NOTHING`,
		l.ID, l.NotificationID, l.Recipient, l.Channel, l.Status, l.RetryCount,
		l.MaxRetries, l.NextRetryAt, l.ProviderMessageID, nil,
		l.ErrorCode, l.ErrorMessage, l.DeliveredAt, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert delivery log: %w", err)
	}
	// A concurrent insert may have won the conflict; re-read the tuple.
	row = s.pool.QueryRow(ctx, `
		SELECT `+logColumns+`
		FROM notification_delivery_logs
		WHERE notification_id = $1 AND channel = $2 AND recipient = $3
		ORDER BY created_at DESC
		LIMIT 1`,
		notificationID, ch, recipientID,
	)
	return scanLog(row)
}

func (s *PostgresLogStorage) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notification_delivery_logs
		SET status = 'processing', updated_at = now()
		WHERE id = $1 AND status IN ('queued', 'retrying')`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("claim delivery log %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresLogStorage) Update(ctx context.Context, l *Log) error {
	metadata, err := json.Marshal(l.Metadata)
	if err != nil {
		return fmt.Errorf("marshal delivery metadata: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE notification_delivery_logs
		SET status = $2, retry_count = $3, next_retry_at = $4,
			provider_message_id = $5, metadata = $6, error_code = $7,
			error_message = $8, delivered_at = $9, updated_at = now()
		WHERE id = $1`,
		l.ID, l.Status, l.RetryCount, l.NextRetryAt,
		l.ProviderMessageID, metadata, l.ErrorCode,
		l.ErrorMessage, l.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("update delivery log %s: %w", l.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLogNotFound
	}
	return nil
}

func (s *PostgresLogStorage) Get(ctx context.Context, id uuid.UUID) (*Log, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+logColumns+`
		FROM notification_delivery_logs
		WHERE id = $1`,
		id,
	)
	l, err := scanLog(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLogNotFound
		}
		return nil, err
	}
	return l, nil
}

func (s *PostgresLogStorage) ListByNotification(ctx context.Context, notificationID uuid.UUID) ([]Log, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+logColumns+`
		FROM notification_delivery_logs
		WHERE notification_id = $1
		ORDER BY created_at`,
		notificationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Log
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func scanLog(row pgx.Row) (*Log, error) {
	var l Log
	var metadata []byte
	err := row.Scan(
		&l.ID, &l.NotificationID, &l.Recipient, &l.Channel, &l.Status,
		&l.RetryCount, &l.MaxRetries, &l.NextRetryAt, &l.ProviderMessageID,
		&metadata, &l.ErrorCode, &l.ErrorMessage, &l.DeliveredAt,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &l.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal delivery metadata: %w", err)
		}
	}
	return &l, nil
}
