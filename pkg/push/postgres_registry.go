package push

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRegistry is the production TokenRegistry backed by pgx.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

// NewPostgresRegistry creates a device token store over the pool.
func NewPostgresRegistry(pool *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

func (r *PostgresRegistry) Register(ctx context.Context, dt DeviceToken) error {
	if dt.Token == "" {
		return ErrInvalidToken
	}
	if dt.CreatedAt.IsZero() {
		dt.CreatedAt = time.Now()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO device_tokens (recipient, token, endpoint, platform, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (recipient, token) DO UPDATE
		SET endpoint = EXCLUDED.endpoint, platform = EXCLUDED.platform`,
		dt.Recipient, dt.Token, dt.Endpoint, dt.Platform, dt.CreatedAt,
	)
	return err
}

func (r *PostgresRegistry) ListByRecipient(ctx context.Context, recipientID string) ([]DeviceToken, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT recipient, token, endpoint, platform, created_at
		FROM device_tokens
		WHERE recipient = $1
		ORDER BY token`,
		recipientID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []DeviceToken{}
	for rows.Next() {
		var dt DeviceToken
		if err := rows.Scan(&dt.Recipient, &dt.Token, &dt.Endpoint, &dt.Platform, &dt.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, dt)
	}
	return out, rows.Err()
}

func (r *PostgresRegistry) Remove(ctx context.Context, recipientID, token string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM device_tokens
		WHERE recipient = $1 AND token = $2`,
		recipientID, token,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}
