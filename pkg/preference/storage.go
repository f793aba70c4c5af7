package preference

import "context"

// Storage persists notification preferences, one row per recipient.
type Storage interface {
	// Get returns the recipient's preference or ErrNotFound.
	Get(ctx context.Context, recipientID string) (*Preference, error)

	// Save upserts the preference row.
	Save(ctx context.Context, p Preference) error

	// ListRecipientsByDigest returns recipients with at least one channel
	// configured for the given digest frequency.
	ListRecipientsByDigest(ctx context.Context, freq DigestFrequency) ([]string, error)
}
