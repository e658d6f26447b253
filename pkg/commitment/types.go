// Package commitment implements the payment-commitment engine: multi-party
// fund locking against an escrow account with a deadline-triggered release
// or organizer-initiated refund.
package commitment

import (
	"time"

	"github.com/Mindburn-Labs/pact/pkg/chain"
	"github.com/Mindburn-Labs/pact/pkg/identity"
	"github.com/Mindburn-Labs/pact/pkg/money"
)

// Status of a commitment. OPEN is the only non-terminal state; transitions
// are one-way, OPEN→RELEASED or OPEN→CANCELLED.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusReleased  Status = "RELEASED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusReleased || s == StatusCancelled
}

// ParticipantStatus of one participant within a commitment.
type ParticipantStatus string

const (
	ParticipantPending   ParticipantStatus = "PENDING"
	ParticipantLocked    ParticipantStatus = "LOCKED"
	ParticipantRefunded  ParticipantStatus = "REFUNDED"
	ParticipantForfeited ParticipantStatus = "FORFEITED_LATE"
)

// Commitment is a group pre-commitment to pay a fixed per-person amount,
// enforced by escrow and a deadline.
type Commitment struct {
	ID                 int64          `json:"id"`
	Title              string         `json:"title"`
	Organizer          identity.Phone `json:"organizer"`
	AmountPerPerson    money.Money    `json:"amount_per_person"`
	TargetParticipants int            `json:"target_participants"`
	Deadline           time.Time      `json:"deadline"`
	Status             Status         `json:"status"`
	EscrowAddress      string         `json:"escrow_address"`
	CreatedAt          time.Time      `json:"created_at"`

	// Release bookkeeping, set exactly once. Re-invoking release returns
	// these instead of moving funds again.
	ReleasedAmount money.Money `json:"released_amount"`
	ReleaseTxRef   chain.TxRef `json:"release_tx_ref,omitempty"`
	ReleasedAt     *time.Time  `json:"released_at,omitempty"`
}

// Participant is one identity's stake in a commitment. A participant
// appears at most once per commitment.
type Participant struct {
	CommitmentID int64             `json:"commitment_id"`
	Phone        identity.Phone    `json:"phone"`
	Status       ParticipantStatus `json:"status"`
	InvitedAt    time.Time         `json:"invited_at"`
	LockedAt     *time.Time        `json:"locked_at,omitempty"`
	LockTxRef    chain.TxRef       `json:"lock_tx_ref,omitempty"`
	RefundTxRef  chain.TxRef       `json:"refund_tx_ref,omitempty"`
}

// Locked reports whether the participant's funds sit in escrow.
func (p Participant) Locked() bool {
	return p.Status == ParticipantLocked
}

// StatusSnapshot is the read-only view served by GetStatus.
type StatusSnapshot struct {
	Commitment     Commitment
	Participants   []Participant
	LockedCount    int
	PendingCount   int
	RefundedCount  int
	ForfeitedCount int
	TotalLocked    money.Money
	TargetTotal    money.Money
	DaysRemaining  int
	Completion     int // percentage of target participants locked
	FullyCommitted bool
}

// ReleaseResult reports the outcome of ReleaseCommitment. Idempotent
// re-invocations return the same amounts with AlreadyReleased set.
type ReleaseResult struct {
	CommitmentID    int64
	ReleasedAmount  money.Money
	ReleaseTxRef    chain.TxRef
	Forfeited       []identity.Phone
	AlreadyReleased bool
}

// Refund is one participant's refund outcome within a cancellation.
type Refund struct {
	Phone identity.Phone
	TxRef chain.TxRef
	Err   error // non-nil when this refund is still pending retry
}

// CancelResult reports the outcome of CancelCommitment. Failed refunds stay
// observable and retryable; they do not roll back completed ones.
type CancelResult struct {
	CommitmentID int64
	Refunds      []Refund
}

// Failed returns the identities whose refunds still need a retry.
func (r CancelResult) Failed() []identity.Phone {
	var out []identity.Phone
	for _, ref := range r.Refunds {
		if ref.Err != nil {
			out = append(out, ref.Phone)
		}
	}
	return out
}
