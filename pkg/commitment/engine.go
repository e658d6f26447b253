package commitment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mindburn-Labs/pact/pkg/chain"
	"github.com/Mindburn-Labs/pact/pkg/escrow"
	"github.com/Mindburn-Labs/pact/pkg/events"
	"github.com/Mindburn-Labs/pact/pkg/identity"
	"github.com/Mindburn-Labs/pact/pkg/money"
	"github.com/Mindburn-Labs/pact/pkg/reliability"
)

// Participant count and deadline bounds.
const (
	MinParticipants = 2
	MaxParticipants = 100
	MinDeadlineDays = 1
	MaxDeadlineDays = 365
)

// DefaultFeeHeadroom is the network fee estimate added on top of the
// per-person amount for the balance check (0.001 ALGO).
var DefaultFeeHeadroom = money.FromMicro(1000)

// Engine orchestrates the commitment lifecycle. All lock/cancel/release
// operations on the same commitment id are serialized through a
// per-commitment mutex so a release and a late lock cannot race past the
// deadline check.
type Engine struct {
	store       Store
	escrow      *escrow.Directory
	ledger      chain.Ledger
	wallets     *chain.Wallets
	reliability *reliability.Ledger
	emitter     *events.Emitter
	feeHeadroom money.Money
	clock       func() time.Time
	locks       *keyedMutex
	logger      *slog.Logger
}

// NewEngine wires the engine against its collaborators.
func NewEngine(store Store, dir *escrow.Directory, ledger chain.Ledger, wallets *chain.Wallets,
	rel *reliability.Ledger, emitter *events.Emitter, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:       store,
		escrow:      dir,
		ledger:      ledger,
		wallets:     wallets,
		reliability: rel,
		emitter:     emitter,
		feeHeadroom: DefaultFeeHeadroom,
		clock:       time.Now,
		locks:       newKeyedMutex(),
		logger:      logger,
	}
}

// WithClock overrides clock for testing.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// WithFeeHeadroom overrides the network fee estimate.
func (e *Engine) WithFeeHeadroom(fee money.Money) *Engine {
	e.feeHeadroom = fee
	return e
}

// Reliability exposes the reliability ledger for read paths.
func (e *Engine) Reliability() *reliability.Ledger {
	return e.reliability
}

// CreateCommitment validates inputs, opens a dedicated escrow account and
// persists the commitment in OPEN status with deadline = now + days.
func (e *Engine) CreateCommitment(ctx context.Context, organizer identity.Phone, title string,
	amountPerPerson money.Money, participantCount, deadlineDays int) (*Commitment, error) {

	if title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if !amountPerPerson.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if participantCount < MinParticipants || participantCount > MaxParticipants {
		return nil, &ValidationError{Field: "participants",
			Reason: fmt.Sprintf("must be between %d and %d", MinParticipants, MaxParticipants)}
	}
	if deadlineDays < MinDeadlineDays || deadlineDays > MaxDeadlineDays {
		return nil, &ValidationError{Field: "deadline",
			Reason: fmt.Sprintf("must be between %d and %d days", MinDeadlineDays, MaxDeadlineDays)}
	}

	if _, err := e.wallets.GetOrCreate(ctx, organizer); err != nil {
		return nil, &LedgerError{Op: "create organizer wallet", Err: err}
	}

	now := e.clock()
	c := &Commitment{
		Title:              title,
		Organizer:          organizer,
		AmountPerPerson:    amountPerPerson,
		TargetParticipants: participantCount,
		Deadline:           now.Add(time.Duration(deadlineDays) * 24 * time.Hour),
		Status:             StatusOpen,
		CreatedAt:          now,
	}

	id, err := e.store.CreateCommitment(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("persist commitment: %w", err)
	}
	c.ID = id

	// Escrow opening is self-healing: on failure the first lock attempt
	// re-opens it through the idempotent directory call.
	ref, err := e.escrow.Open(ctx, id)
	if err != nil {
		e.logger.Warn("escrow open deferred to first lock", "commitment_id", id, "error", err)
		return c, nil
	}
	c.EscrowAddress = ref.Address
	if err := e.store.BindEscrow(ctx, id, ref.Address); err != nil && !errors.Is(err, ErrEscrowAlreadyBound) {
		return nil, fmt.Errorf("bind escrow: %w", err)
	}

	e.logger.Info("commitment created",
		"commitment_id", id, "title", title, "organizer", organizer.String(),
		"amount", amountPerPerson.String(), "participants", participantCount, "deadline", c.Deadline)
	return c, nil
}

// AddParticipant registers an identity against a commitment. The requester
// must be the organizer or the participant themself.
func (e *Engine) AddParticipant(ctx context.Context, id int64, requester identity.Phone, rawPhone string) (*Participant, error) {
	phone, err := identity.Normalize(rawPhone)
	if err != nil {
		return nil, &ValidationError{Field: "phone", Reason: err.Error()}
	}

	unlock := e.locks.lock(id)
	defer unlock()

	c, err := e.getCommitment(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status.Terminal() {
		return nil, &TerminalStateError{ID: id, Status: c.Status}
	}
	if requester != c.Organizer && requester != phone {
		return nil, &AuthorizationError{ID: id, Requester: requester}
	}

	p := &Participant{
		CommitmentID: id,
		Phone:        phone,
		Status:       ParticipantPending,
		InvitedAt:    e.clock(),
	}
	if err := e.store.AddParticipant(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, &DuplicateParticipantError{ID: id, Phone: phone}
		}
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("persist participant: %w", err)
	}

	e.emitter.Emit(ctx, phone, events.KindParticipantAdded, map[string]any{
		"commitment_id": id,
		"title":         c.Title,
		"amount":        c.AmountPerPerson.String(),
		"deadline":      c.Deadline,
		"organizer":     c.Organizer.String(),
	})
	e.logger.Info("participant added", "commitment_id", id, "phone", phone.String())
	return p, nil
}

// LockFunds moves the participant's per-person amount into escrow. The
// deadline check is authoritative: a lock after the deadline is rejected
// even while the status is still nominally OPEN.
func (e *Engine) LockFunds(ctx context.Context, id int64, phone identity.Phone) (*Participant, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	c, err := e.getCommitment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.clock().Before(c.Deadline) {
		return nil, &DeadlinePassedError{ID: id, Deadline: c.Deadline}
	}
	if c.Status.Terminal() {
		return nil, &TerminalStateError{ID: id, Status: c.Status}
	}

	p, err := e.store.GetParticipant(ctx, id, phone)
	if err != nil {
		if errors.Is(err, ErrParticipantNotFound) {
			return nil, &ParticipantNotFoundError{ID: id, Phone: phone}
		}
		return nil, fmt.Errorf("load participant: %w", err)
	}
	if p.Status != ParticipantPending {
		return nil, &ValidationError{Field: "participant",
			Reason: fmt.Sprintf("funds already %s", p.Status)}
	}

	acct, err := e.wallets.GetOrCreate(ctx, phone)
	if err != nil {
		return nil, &LedgerError{Op: "create wallet", Err: err}
	}
	balance, err := e.ledger.Balance(ctx, acct.Address)
	if err != nil {
		return nil, &LedgerError{Op: "balance", Err: err}
	}
	need := c.AmountPerPerson.Add(e.feeHeadroom)
	if balance.Cmp(need) < 0 {
		return nil, &InsufficientBalanceError{Phone: phone, Need: need, Have: balance}
	}

	ref, err := e.escrow.Open(ctx, id)
	if err != nil {
		return nil, &LedgerError{Op: "open escrow", Err: err}
	}
	if c.EscrowAddress == "" {
		if err := e.store.BindEscrow(ctx, id, ref.Address); err != nil && !errors.Is(err, ErrEscrowAlreadyBound) {
			return nil, fmt.Errorf("bind escrow: %w", err)
		}
	}

	tx, err := e.escrow.Deposit(ctx, ref, acct.Address, c.AmountPerPerson, "Locked for: "+c.Title)
	if err != nil {
		if errors.Is(err, chain.ErrInsufficientBalance) {
			return nil, &InsufficientBalanceError{Phone: phone, Need: need, Have: balance}
		}
		return nil, &LedgerError{Op: "deposit", Err: err}
	}

	now := e.clock()
	p.Status = ParticipantLocked
	p.LockedAt = &now
	p.LockTxRef = tx
	if err := e.store.UpdateParticipant(ctx, p); err != nil {
		return nil, fmt.Errorf("persist lock: %w", err)
	}

	if _, err := e.reliability.RecordLock(ctx, phone); err != nil {
		e.logger.Warn("reliability update failed", "phone", phone.String(), "error", err)
	}

	e.emitter.Emit(ctx, c.Organizer, events.KindFundsLocked, map[string]any{
		"commitment_id": id,
		"title":         c.Title,
		"phone":         phone.String(),
		"amount":        c.AmountPerPerson.String(),
		"tx_ref":        string(tx),
	})
	e.logger.Info("funds locked", "commitment_id", id, "phone", phone.String(), "tx", string(tx))
	return p, nil
}

// ReleaseCommitment disburses all locked escrow funds to the organizer and
// forfeits participants still pending. Idempotent: a second call returns
// the prior result without moving funds.
func (e *Engine) ReleaseCommitment(ctx context.Context, id int64) (*ReleaseResult, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	c, err := e.getCommitment(ctx, id)
	if err != nil {
		return nil, err
	}

	switch c.Status {
	case StatusReleased:
		return e.priorRelease(ctx, c)
	case StatusCancelled:
		return nil, &TerminalStateError{ID: id, Status: c.Status}
	}

	parts, err := e.store.ListParticipants(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	var locked, pending []Participant
	for _, p := range parts {
		switch p.Status {
		case ParticipantLocked:
			locked = append(locked, p)
		case ParticipantPending:
			pending = append(pending, p)
		}
	}

	// Flip the status before touching the ledger. A store failure after
	// the disbursement then leaves the commitment RELEASED rather than
	// OPEN over an emptied escrow, so the sweeper never retries a
	// transfer that already settled.
	if err := e.store.TransitionStatus(ctx, id, StatusOpen, StatusReleased); err != nil {
		return nil, fmt.Errorf("transition to released: %w", err)
	}

	total := c.AmountPerPerson.Mul(int64(len(locked)))
	var tx chain.TxRef
	if total.IsPositive() {
		acct, err := e.wallets.GetOrCreate(ctx, c.Organizer)
		if err != nil {
			return nil, e.reopenAfter(ctx, id, &LedgerError{Op: "create organizer wallet", Err: err})
		}
		ref, err := e.escrow.Open(ctx, id)
		if err != nil {
			return nil, e.reopenAfter(ctx, id, &LedgerError{Op: "open escrow", Err: err})
		}
		// A failed disbursement reopens the commitment for retry;
		// escrow funds are never partially disbursed on release.
		tx, err = e.escrow.Disburse(ctx, ref, acct.Address, total, "Released: "+c.Title)
		if err != nil {
			return nil, e.reopenAfter(ctx, id, &LedgerError{Op: "release", Err: err})
		}
	}

	rr := ReleaseResult{CommitmentID: id, ReleasedAmount: total, ReleaseTxRef: tx}
	for i := range pending {
		p := pending[i]
		p.Status = ParticipantForfeited
		if err := e.store.UpdateParticipant(ctx, &p); err != nil {
			e.logger.Error("failed to mark forfeit", "commitment_id", id, "phone", p.Phone.String(), "error", err)
			continue
		}
		rr.Forfeited = append(rr.Forfeited, p.Phone)
		if _, err := e.reliability.RecordForfeit(ctx, p.Phone); err != nil {
			e.logger.Warn("reliability update failed", "phone", p.Phone.String(), "error", err)
		}
	}

	// The status stays RELEASED even if the bookkeeping write fails:
	// funds already moved, so reopening here would double-disburse on
	// the next sweep.
	if err := e.store.RecordRelease(ctx, id, rr, e.clock()); err != nil {
		return nil, fmt.Errorf("record release: %w", err)
	}

	e.emitter.Emit(ctx, c.Organizer, events.KindCommitmentReleased, map[string]any{
		"commitment_id": id,
		"title":         c.Title,
		"amount":        total.String(),
		"tx_ref":        string(tx),
		"forfeited":     len(rr.Forfeited),
	})
	for _, phone := range rr.Forfeited {
		e.emitter.Emit(ctx, phone, events.KindCommitmentReleased, map[string]any{
			"commitment_id": id,
			"title":         c.Title,
			"forfeit":       true,
		})
	}

	e.logger.Info("commitment released",
		"commitment_id", id, "amount", total.String(), "forfeited", len(rr.Forfeited))
	return &rr, nil
}

// reopenAfter rolls the status back to OPEN after a ledger failure so
// the next sweep can retry the release. No funds have moved when it runs.
func (e *Engine) reopenAfter(ctx context.Context, id int64, lerr error) error {
	if err := e.store.TransitionStatus(ctx, id, StatusReleased, StatusOpen); err != nil {
		e.logger.Error("failed to reopen after release failure", "commitment_id", id, "error", err)
	}
	return lerr
}

// priorRelease rebuilds the result of an already-performed release.
func (e *Engine) priorRelease(ctx context.Context, c *Commitment) (*ReleaseResult, error) {
	parts, err := e.store.ListParticipants(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	rr := ReleaseResult{
		CommitmentID:    c.ID,
		ReleasedAmount:  c.ReleasedAmount,
		ReleaseTxRef:    c.ReleaseTxRef,
		AlreadyReleased: true,
	}
	for _, p := range parts {
		if p.Status == ParticipantForfeited {
			rr.Forfeited = append(rr.Forfeited, p.Phone)
		}
	}
	return &rr, nil
}

// CancelCommitment refunds every locked participant and terminates the
// commitment. Individual refund failures are logged and kept retryable;
// they do not roll back refunds already completed.
func (e *Engine) CancelCommitment(ctx context.Context, id int64, requester identity.Phone) (*CancelResult, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	c, err := e.getCommitment(ctx, id)
	if err != nil {
		return nil, err
	}
	if requester != c.Organizer {
		return nil, &AuthorizationError{ID: id, Requester: requester}
	}
	if c.Status.Terminal() {
		return nil, &TerminalStateError{ID: id, Status: c.Status}
	}

	parts, err := e.store.ListParticipants(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	result := CancelResult{CommitmentID: id}
	for i := range parts {
		p := parts[i]
		switch p.Status {
		case ParticipantLocked:
			refund := e.refundOne(ctx, c, &p)
			result.Refunds = append(result.Refunds, refund)
		case ParticipantPending:
			p.Status = ParticipantRefunded // no transfer: nothing was locked
			if err := e.store.UpdateParticipant(ctx, &p); err != nil {
				e.logger.Error("failed to mark pending refund", "commitment_id", id, "phone", p.Phone.String(), "error", err)
			}
		}
	}

	if err := e.store.TransitionStatus(ctx, id, StatusOpen, StatusCancelled); err != nil {
		return nil, fmt.Errorf("transition to cancelled: %w", err)
	}

	for _, p := range parts {
		e.emitter.Emit(ctx, p.Phone, events.KindCommitmentCancelled, map[string]any{
			"commitment_id": id,
			"title":         c.Title,
			"amount":        c.AmountPerPerson.String(),
		})
	}

	e.logger.Info("commitment cancelled",
		"commitment_id", id, "refunds", len(result.Refunds), "failed", len(result.Failed()))
	return &result, nil
}

// RetryRefunds re-attempts refunds for LOCKED participants of a CANCELLED
// commitment. Invoked by the sweeper and safe to call repeatedly.
func (e *Engine) RetryRefunds(ctx context.Context, id int64) (*CancelResult, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	c, err := e.getCommitment(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusCancelled {
		return nil, &ValidationError{Field: "status", Reason: "refund retry only applies to cancelled commitments"}
	}

	parts, err := e.store.ListParticipants(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	result := CancelResult{CommitmentID: id}
	for i := range parts {
		p := parts[i]
		if p.Status != ParticipantLocked {
			continue
		}
		result.Refunds = append(result.Refunds, e.refundOne(ctx, c, &p))
	}
	return &result, nil
}

// refundOne disburses one participant's refund from escrow. On failure the
// participant stays LOCKED so a later retry picks it up.
func (e *Engine) refundOne(ctx context.Context, c *Commitment, p *Participant) Refund {
	acct, err := e.wallets.GetOrCreate(ctx, p.Phone)
	if err != nil {
		e.logger.Warn("refund deferred: wallet unavailable", "commitment_id", c.ID, "phone", p.Phone.String(), "error", err)
		return Refund{Phone: p.Phone, Err: &LedgerError{Op: "create wallet", Err: err}}
	}
	ref, err := e.escrow.Open(ctx, c.ID)
	if err != nil {
		return Refund{Phone: p.Phone, Err: &LedgerError{Op: "open escrow", Err: err}}
	}
	tx, err := e.escrow.Disburse(ctx, ref, acct.Address, c.AmountPerPerson, "Refund: "+c.Title+" cancelled")
	if err != nil {
		e.logger.Warn("refund deferred", "commitment_id", c.ID, "phone", p.Phone.String(), "error", err)
		return Refund{Phone: p.Phone, Err: &LedgerError{Op: "refund", Err: err}}
	}

	p.Status = ParticipantRefunded
	p.RefundTxRef = tx
	if err := e.store.UpdateParticipant(ctx, p); err != nil {
		// The transfer settled; surface the persistence failure loudly.
		e.logger.Error("refund settled but not persisted", "commitment_id", c.ID, "phone", p.Phone.String(), "tx", string(tx), "error", err)
		return Refund{Phone: p.Phone, Err: err}
	}

	e.emitter.Emit(ctx, p.Phone, events.KindParticipantRefunded, map[string]any{
		"commitment_id": c.ID,
		"title":         c.Title,
		"amount":        c.AmountPerPerson.String(),
		"tx_ref":        string(tx),
	})
	return Refund{Phone: p.Phone, TxRef: tx}
}

// GetStatus returns a read-only snapshot: participant counts by state,
// locked total vs target and days remaining floored at zero.
func (e *Engine) GetStatus(ctx context.Context, id int64) (*StatusSnapshot, error) {
	c, err := e.getCommitment(ctx, id)
	if err != nil {
		return nil, err
	}
	parts, err := e.store.ListParticipants(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	snap := StatusSnapshot{
		Commitment:   *c,
		Participants: parts,
		TargetTotal:  c.AmountPerPerson.Mul(int64(c.TargetParticipants)),
	}
	for _, p := range parts {
		switch p.Status {
		case ParticipantLocked:
			snap.LockedCount++
		case ParticipantPending:
			snap.PendingCount++
		case ParticipantRefunded:
			snap.RefundedCount++
		case ParticipantForfeited:
			snap.ForfeitedCount++
		}
	}
	snap.TotalLocked = c.AmountPerPerson.Mul(int64(snap.LockedCount))
	if c.Status == StatusReleased {
		snap.TotalLocked = c.ReleasedAmount
	}

	if remaining := c.Deadline.Sub(e.clock()); remaining > 0 {
		snap.DaysRemaining = int(remaining / (24 * time.Hour))
	}
	if c.TargetParticipants > 0 {
		snap.Completion = snap.LockedCount * 100 / c.TargetParticipants
	}
	snap.FullyCommitted = snap.LockedCount >= c.TargetParticipants
	return &snap, nil
}

// ListMine returns every stake an identity holds, most recent first.
func (e *Engine) ListMine(ctx context.Context, phone identity.Phone) ([]Participant, error) {
	return e.store.ListByParticipant(ctx, phone)
}

// GetCommitment loads a single commitment.
func (e *Engine) GetCommitment(ctx context.Context, id int64) (*Commitment, error) {
	return e.getCommitment(ctx, id)
}

func (e *Engine) getCommitment(ctx context.Context, id int64) (*Commitment, error) {
	c, err := e.store.GetCommitment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("load commitment: %w", err)
	}
	return c, nil
}
