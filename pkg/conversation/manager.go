package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Mindburn-Labs/pact/pkg/commitment"
	"github.com/Mindburn-Labs/pact/pkg/identity"
)

// DefaultTimeout is how long an idle wizard (or quick-add context)
// survives before the next message is treated as a fresh start.
const DefaultTimeout = 10 * time.Minute

// Manager drives the wizard state machine. Messages from the same sender
// are serialized so rapid double-sends cannot interleave steps.
type Manager struct {
	store   Store
	timeout time.Duration
	clock   func() time.Time
	logger  *slog.Logger

	mu    sync.Mutex
	users map[identity.Phone]*sync.Mutex
}

// NewManager creates a manager over the given store.
func NewManager(store Store, timeout time.Duration, logger *slog.Logger) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:   store,
		timeout: timeout,
		clock:   time.Now,
		logger:  logger,
		users:   make(map[identity.Phone]*sync.Mutex),
	}
}

// WithClock overrides clock for testing.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	m.clock = clock
	return m
}

func (m *Manager) lockUser(phone identity.Phone) func() {
	m.mu.Lock()
	mu, ok := m.users[phone]
	if !ok {
		mu = &sync.Mutex{}
		m.users[phone] = mu
	}
	m.mu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// Begin starts the create wizard with the extracted title, replacing any
// prior flow for the sender.
func (m *Manager) Begin(ctx context.Context, phone identity.Phone, title string) (*State, error) {
	unlock := m.lockUser(phone)
	defer unlock()

	now := m.clock()
	s := &State{
		Phone:     phone,
		Flow:      FlowCreate,
		Step:      StepAmount,
		Title:     title,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.PutState(ctx, s); err != nil {
		return nil, fmt.Errorf("start wizard: %w", err)
	}
	m.logger.Info("wizard started", "phone", phone.String(), "title", title)
	return s, nil
}

// Advance applies one message to the sender's active wizard. Callers route
// the message elsewhere when the outcome is OutcomeNone or OutcomeExpired.
func (m *Manager) Advance(ctx context.Context, phone identity.Phone, text string) (Result, error) {
	unlock := m.lockUser(phone)
	defer unlock()

	s, ok, err := m.store.GetState(ctx, phone)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Outcome: OutcomeNone}, nil
	}

	now := m.clock()
	if now.Sub(s.UpdatedAt) > m.timeout {
		if err := m.store.DeleteState(ctx, phone); err != nil {
			return Result{}, fmt.Errorf("expire wizard: %w", err)
		}
		m.logger.Info("wizard expired", "phone", phone.String())
		return Result{Outcome: OutcomeExpired}, nil
	}

	if IsCancel(text) {
		if err := m.store.DeleteState(ctx, phone); err != nil {
			return Result{}, fmt.Errorf("cancel wizard: %w", err)
		}
		return Result{Outcome: OutcomeCancelled, State: s}, nil
	}

	switch s.Step {
	case StepAmount:
		amount, ok := ExtractAmount(text)
		if !ok {
			return m.reprompt(ctx, s, now)
		}
		s.Amount = amount
		s.Step = StepParticipants
	case StepParticipants:
		n, ok := ExtractInt(text)
		if !ok || n < commitment.MinParticipants || n > commitment.MaxParticipants {
			return m.reprompt(ctx, s, now)
		}
		s.Participants = n
		s.Step = StepDeadline
	case StepDeadline:
		days, ok := ExtractInt(text)
		if !ok || days < commitment.MinDeadlineDays || days > commitment.MaxDeadlineDays {
			return m.reprompt(ctx, s, now)
		}
		s.Days = days
		s.Step = StepConfirm
	case StepConfirm:
		yes, ok := ParseYesNo(text)
		if !ok {
			return m.reprompt(ctx, s, now)
		}
		if err := m.store.DeleteState(ctx, phone); err != nil {
			return Result{}, fmt.Errorf("finish wizard: %w", err)
		}
		if yes {
			return Result{Outcome: OutcomeConfirmed, State: s}, nil
		}
		return Result{Outcome: OutcomeDeclined, State: s}, nil
	default:
		// Unknown step, drop the broken state.
		if err := m.store.DeleteState(ctx, phone); err != nil {
			return Result{}, fmt.Errorf("reset wizard: %w", err)
		}
		return Result{Outcome: OutcomeCancelled, State: s}, nil
	}

	s.UpdatedAt = now
	if err := m.store.PutState(ctx, s); err != nil {
		return Result{}, fmt.Errorf("advance wizard: %w", err)
	}
	return Result{Outcome: OutcomePrompt, State: s}, nil
}

// reprompt keeps the failed step but still counts the message as activity,
// so a user who keeps answering never times out mid-dialogue.
func (m *Manager) reprompt(ctx context.Context, s *State, now time.Time) (Result, error) {
	s.UpdatedAt = now
	if err := m.store.PutState(ctx, s); err != nil {
		return Result{}, fmt.Errorf("reprompt wizard: %w", err)
	}
	return Result{Outcome: OutcomeInvalid, State: s}, nil
}

// SetLastCommitment remembers the sender's most recent commitment for
// quick-add.
func (m *Manager) SetLastCommitment(ctx context.Context, phone identity.Phone, id int64) error {
	return m.store.PutRecent(ctx, phone, &Recent{CommitmentID: id, SavedAt: m.clock()})
}

// LastCommitment returns the quick-add target, if it is still fresh. Stale
// context is dropped rather than silently reused against the wrong
// commitment.
func (m *Manager) LastCommitment(ctx context.Context, phone identity.Phone) (int64, bool, error) {
	r, ok, err := m.store.GetRecent(ctx, phone)
	if err != nil || !ok {
		return 0, false, err
	}
	if m.clock().Sub(r.SavedAt) > m.timeout {
		if err := m.store.DeleteRecent(ctx, phone); err != nil {
			return 0, false, fmt.Errorf("expire quick-add context: %w", err)
		}
		return 0, false, nil
	}
	return r.CommitmentID, true, nil
}
