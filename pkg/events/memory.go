package events

import (
	"context"
	"sync"
)

// MemoryOutbox is an in-memory OutboxStore for development and tests.
type MemoryOutbox struct {
	mu      sync.Mutex
	pending []*Event
}

// NewMemoryOutbox creates an empty outbox.
func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{}
}

func (m *MemoryOutbox) Schedule(ctx context.Context, ev *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, ev)
	return nil
}

func (m *MemoryOutbox) Pending(ctx context.Context, limit int) ([]*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.pending)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]*Event, n)
	copy(out, m.pending[:n])
	return out, nil
}

func (m *MemoryOutbox) MarkDone(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, ev := range m.pending {
		if ev.ID == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return nil
		}
	}
	return nil
}
