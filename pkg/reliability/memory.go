package reliability

import (
	"context"
	"sync"

	"github.com/Mindburn-Labs/pact/pkg/identity"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	scores map[identity.Phone]Score
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scores: make(map[identity.Phone]Score)}
}

func (m *MemoryStore) GetScore(ctx context.Context, id identity.Phone) (Score, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scores[id]
	return s, ok, nil
}

func (m *MemoryStore) PutScore(ctx context.Context, s Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[s.Identity] = s
	return nil
}
