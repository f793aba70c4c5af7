package preference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage persists preferences as one jsonb document per recipient.
// The document shape is owned by this package; queries that need to reach
// inside it (digest frequency) use jsonb operators.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a preference store over the given pool.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

func (s *PostgresStorage) Get(ctx context.Context, recipientID string) (*Preference, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `
		SELECT document
		FROM notification_preferences
		WHERE recipient = $1`,
		recipientID,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var p Preference
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("unmarshal preference document: %w", err)
	}
	return &p, nil
}

func (s *PostgresStorage) Save(ctx context.Context, p Preference) error {
	if err := p.Validate(); err != nil {
		return err
	}

	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal preference document: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO notification_preferences (recipient, document, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (recipient) DO UPDATE
		SET document = EXCLUDED.document, updated_at = now()`,
		p.Recipient, doc,
	)
	return err
}

func (s *PostgresStorage) ListRecipientsByDigest(ctx context.Context, freq DigestFrequency) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT recipient
		FROM notification_preferences
		WHERE (document->>'enabled')::boolean
		  AND EXISTS (
			SELECT 1
			FROM jsonb_each(document->'channels') AS c(name, cfg)
			WHERE (cfg->>'enabled')::boolean AND cfg->>'digest' = $1
		  )
		ORDER BY recipient`,
		string(freq),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var recipient string
		if err := rows.Scan(&recipient); err != nil {
			return nil, err
		}
		out = append(out, recipient)
	}
	return out, rows.Err()
}
