// Package reliability maintains a per-user payment reliability score and
// badge derived from commitment outcomes. Scores are only mutated by the
// commitment engine's lock and forfeit events.
package reliability

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Mindburn-Labs/pact/pkg/identity"
)

// Score is a user's reliability record. The score starts at 100 and is
// clamped to [0,100] for life.
type Score struct {
	Identity  identity.Phone `json:"identity"`
	Score     int            `json:"score"`
	Fulfilled int            `json:"fulfilled"`
	Missed    int            `json:"missed"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Total is the number of outcomes recorded for the user.
func (s Score) Total() int {
	return s.Fulfilled + s.Missed
}

// Store persists reliability records. Implementations must return a zero
// Score (not an error) for identities never seen before.
type Store interface {
	GetScore(ctx context.Context, id identity.Phone) (Score, bool, error)
	PutScore(ctx context.Context, s Score) error
}

// Tier maps a minimum score to a badge label. Tier cutoffs are
// configuration, not protocol.
type Tier struct {
	Min   int    `yaml:"min" json:"min"`
	Badge string `yaml:"badge" json:"badge"`
}

// Config tunes score deltas and badge tiers.
type Config struct {
	// LockDelta is applied when a participant locks on time.
	LockDelta int `yaml:"lock_delta"`
	// ForfeitDelta is applied when a participant misses a deadline.
	// Larger magnitude than LockDelta: lateness costs more than
	// promptness earns.
	ForfeitDelta int `yaml:"forfeit_delta"`
	// Tiers in any order; badge lookup uses the highest matching Min.
	Tiers []Tier `yaml:"tiers"`
}

// DefaultConfig mirrors the badge cutoffs of the original deployment.
func DefaultConfig() Config {
	return Config{
		LockDelta:    2,
		ForfeitDelta: -10,
		Tiers: []Tier{
			{Min: 95, Badge: "Diamond"},
			{Min: 85, Badge: "Trophy"},
			{Min: 70, Badge: "Star"},
			{Min: 50, Badge: "Steady"},
			{Min: 0, Badge: "At Risk"},
		},
	}
}

// Ledger applies score deltas and answers badge queries.
type Ledger struct {
	mu     sync.Mutex
	store  Store
	cfg    Config
	clock  func() time.Time
	sorted []Tier // descending by Min
}

// NewLedger creates a reliability ledger over the given store.
func NewLedger(store Store, cfg Config) *Ledger {
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = DefaultConfig().Tiers
	}
	sorted := make([]Tier, len(cfg.Tiers))
	copy(sorted, cfg.Tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min > sorted[j].Min })
	return &Ledger{store: store, cfg: cfg, clock: time.Now, sorted: sorted}
}

// WithClock overrides clock for testing.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// Config returns the active configuration.
func (l *Ledger) Config() Config {
	return l.cfg
}

// Get returns the user's current record, a pristine 100 if never seen.
func (l *Ledger) Get(ctx context.Context, id identity.Phone) (Score, error) {
	s, ok, err := l.store.GetScore(ctx, id)
	if err != nil {
		return Score{}, fmt.Errorf("get score for %s: %w", id, err)
	}
	if !ok {
		return Score{Identity: id, Score: 100}, nil
	}
	return s, nil
}

// AdjustScore applies delta to the user's score, clamped to [0,100], and
// bumps the fulfilled or missed counter based on the sign. Returns the new
// score.
func (l *Ledger) AdjustScore(ctx context.Context, id identity.Phone, delta int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	s.Score = clamp(s.Score + delta)
	switch {
	case delta > 0:
		s.Fulfilled++
	case delta < 0:
		s.Missed++
	}
	s.UpdatedAt = l.clock()

	if err := l.store.PutScore(ctx, s); err != nil {
		return 0, fmt.Errorf("put score for %s: %w", id, err)
	}
	return s.Score, nil
}

// RecordLock applies the configured on-time lock reward.
func (l *Ledger) RecordLock(ctx context.Context, id identity.Phone) (int, error) {
	return l.AdjustScore(ctx, id, l.cfg.LockDelta)
}

// RecordForfeit applies the configured deadline-miss penalty.
func (l *Ledger) RecordForfeit(ctx context.Context, id identity.Phone) (int, error) {
	return l.AdjustScore(ctx, id, l.cfg.ForfeitDelta)
}

// Badge is a pure function of the score against the configured tiers.
func (l *Ledger) Badge(score int) string {
	for _, tier := range l.sorted {
		if score >= tier.Min {
			return tier.Badge
		}
	}
	if len(l.sorted) == 0 {
		return ""
	}
	return l.sorted[len(l.sorted)-1].Badge
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
