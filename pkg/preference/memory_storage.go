package preference

import (
	"context"
	"sort"
	"sync"
)

// MemoryStorage is an in-memory Storage implementation for development and
// tests.
type MemoryStorage struct {
	mu    sync.RWMutex
	prefs map[string]Preference
}

// NewMemoryStorage creates an empty in-memory preference store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{prefs: make(map[string]Preference)}
}

func (s *MemoryStorage) Get(ctx context.Context, recipientID string) (*Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prefs[recipientID]
	if !ok {
		return nil, ErrNotFound
	}
	out := p
	return &out, nil
}

func (s *MemoryStorage) Save(ctx context.Context, p Preference) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[p.Recipient] = p
	return nil
}

func (s *MemoryStorage) ListRecipientsByDigest(ctx context.Context, freq DigestFrequency) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for recipient, p := range s.prefs {
		if !p.Enabled {
			continue
		}
		for _, setting := range p.Channels {
			if setting.Enabled && setting.Digest == freq {
				out = append(out, recipient)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
