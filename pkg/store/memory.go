// Package store provides the persistence backends for commitments:
// in-memory for tests and the dev loop, SQLite for single-node deployments
// and Postgres for everything else.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Mindburn-Labs/pact/pkg/commitment"
	"github.com/Mindburn-Labs/pact/pkg/identity"
)

// Memory is a mutex-guarded in-memory commitment.Store.
type Memory struct {
	mu           sync.RWMutex
	nextID       int64
	commitments  map[int64]commitment.Commitment
	participants map[int64][]commitment.Participant
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nextID:       1,
		commitments:  make(map[int64]commitment.Commitment),
		participants: make(map[int64][]commitment.Participant),
	}
}

func (m *Memory) CreateCommitment(_ context.Context, c *commitment.Commitment) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	stored := *c
	stored.ID = id
	m.commitments[id] = stored
	return id, nil
}

func (m *Memory) GetCommitment(_ context.Context, id int64) (*commitment.Commitment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.commitments[id]
	if !ok {
		return nil, commitment.ErrNotFound
	}
	return &c, nil
}

func (m *Memory) BindEscrow(_ context.Context, id int64, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commitments[id]
	if !ok {
		return commitment.ErrNotFound
	}
	if c.EscrowAddress != "" && c.EscrowAddress != address {
		return commitment.ErrEscrowAlreadyBound
	}
	c.EscrowAddress = address
	m.commitments[id] = c
	return nil
}

func (m *Memory) TransitionStatus(_ context.Context, id int64, from, to commitment.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commitments[id]
	if !ok {
		return commitment.ErrNotFound
	}
	if c.Status != from {
		return commitment.ErrStatusConflict
	}
	c.Status = to
	m.commitments[id] = c
	return nil
}

func (m *Memory) RecordRelease(_ context.Context, id int64, rr commitment.ReleaseResult, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commitments[id]
	if !ok {
		return commitment.ErrNotFound
	}
	c.ReleasedAmount = rr.ReleasedAmount
	c.ReleaseTxRef = rr.ReleaseTxRef
	c.ReleasedAt = &at
	m.commitments[id] = c
	return nil
}

func (m *Memory) AddParticipant(_ context.Context, p *commitment.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.commitments[p.CommitmentID]; !ok {
		return commitment.ErrNotFound
	}
	for _, existing := range m.participants[p.CommitmentID] {
		if existing.Phone == p.Phone {
			return commitment.ErrDuplicate
		}
	}
	m.participants[p.CommitmentID] = append(m.participants[p.CommitmentID], *p)
	return nil
}

func (m *Memory) GetParticipant(_ context.Context, id int64, phone identity.Phone) (*commitment.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.participants[id] {
		if p.Phone == phone {
			out := p
			return &out, nil
		}
	}
	return nil, commitment.ErrParticipantNotFound
}

func (m *Memory) ListParticipants(_ context.Context, id int64) ([]commitment.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]commitment.Participant, len(m.participants[id]))
	copy(out, m.participants[id])
	return out, nil
}

func (m *Memory) UpdateParticipant(_ context.Context, p *commitment.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.participants[p.CommitmentID]
	for i := range list {
		if list[i].Phone == p.Phone {
			list[i] = *p
			return nil
		}
	}
	return commitment.ErrParticipantNotFound
}

func (m *Memory) ListByParticipant(_ context.Context, phone identity.Phone) ([]commitment.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []commitment.Participant
	for _, list := range m.participants {
		for _, p := range list {
			if p.Phone == phone {
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvitedAt.After(out[j].InvitedAt) })
	return out, nil
}

func (m *Memory) ListDueOpen(_ context.Context, asOf time.Time) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []int64
	for id, c := range m.commitments {
		if c.Status == commitment.StatusOpen && !asOf.Before(c.Deadline) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *Memory) ListUnrefunded(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []int64
	for id, c := range m.commitments {
		if c.Status != commitment.StatusCancelled {
			continue
		}
		for _, p := range m.participants[id] {
			if p.Status == commitment.ParticipantLocked {
				out = append(out, id)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
