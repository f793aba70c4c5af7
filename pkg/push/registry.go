package push

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRegistry is an in-memory TokenRegistry for development and tests.
type MemoryRegistry struct {
	mu     sync.RWMutex
	tokens map[string]map[string]DeviceToken
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{tokens: make(map[string]map[string]DeviceToken)}
}

func (r *MemoryRegistry) Register(ctx context.Context, dt DeviceToken) error {
	if dt.Token == "" {
		return ErrInvalidToken
	}
	if dt.CreatedAt.IsZero() {
		dt.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byToken, ok := r.tokens[dt.Recipient]
	if !ok {
		byToken = make(map[string]DeviceToken)
		r.tokens[dt.Recipient] = byToken
	}
	byToken[dt.Token] = dt
	return nil
}

func (r *MemoryRegistry) ListByRecipient(ctx context.Context, recipientID string) ([]DeviceToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byToken := r.tokens[recipientID]
	out := make([]DeviceToken, 0, len(byToken))
	for _, dt := range byToken {
		out = append(out, dt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}

func (r *MemoryRegistry) Remove(ctx context.Context, recipientID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byToken, ok := r.tokens[recipientID]
	if !ok {
		return ErrTokenNotFound
	}
	if _, ok := byToken[token]; !ok {
		return ErrTokenNotFound
	}
	delete(byToken, token)
	return nil
}
