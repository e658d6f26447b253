package conversation

import (
	"context"
	"sync"

	"github.com/Mindburn-Labs/pact/pkg/identity"
)

// Store persists wizard states and quick-add context. Expiry is enforced
// by the Manager; a Store may additionally evict on its own (Redis TTLs).
type Store interface {
	GetState(ctx context.Context, phone identity.Phone) (*State, bool, error)
	PutState(ctx context.Context, s *State) error
	DeleteState(ctx context.Context, phone identity.Phone) error

	GetRecent(ctx context.Context, phone identity.Phone) (*Recent, bool, error)
	PutRecent(ctx context.Context, phone identity.Phone, r *Recent) error
	DeleteRecent(ctx context.Context, phone identity.Phone) error
}

// MemoryStore is the in-process Store used in tests and single-node runs.
type MemoryStore struct {
	mu     sync.Mutex
	states map[identity.Phone]State
	recent map[identity.Phone]Recent
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[identity.Phone]State),
		recent: make(map[identity.Phone]Recent),
	}
}

func (m *MemoryStore) GetState(_ context.Context, phone identity.Phone) (*State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[phone]
	if !ok {
		return nil, false, nil
	}
	out := s
	return &out, true, nil
}

func (m *MemoryStore) PutState(_ context.Context, s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[s.Phone] = *s
	return nil
}

func (m *MemoryStore) DeleteState(_ context.Context, phone identity.Phone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, phone)
	return nil
}

func (m *MemoryStore) GetRecent(_ context.Context, phone identity.Phone) (*Recent, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recent[phone]
	if !ok {
		return nil, false, nil
	}
	out := r
	return &out, true, nil
}

func (m *MemoryStore) PutRecent(_ context.Context, phone identity.Phone, r *Recent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recent[phone] = *r
	return nil
}

func (m *MemoryStore) DeleteRecent(_ context.Context, phone identity.Phone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recent, phone)
	return nil
}
