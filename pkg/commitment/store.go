package commitment

import (
	"context"
	"errors"
	"time"

	"github.com/Mindburn-Labs/pact/pkg/identity"
)

// Store-level sentinels, translated into the typed engine errors by the
// Engine so store implementations stay dumb.
var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicate           = errors.New("already exists")
	ErrStatusConflict      = errors.New("status conflict")
	ErrEscrowAlreadyBound  = errors.New("escrow already bound")
	ErrParticipantNotFound = errors.New("participant not found")
)

// Store is the entity repository for commitments and participants. The
// engine serializes writes per commitment; a Store only needs to be safe
// for concurrent use, not transactional across calls.
type Store interface {
	// CreateCommitment persists c and assigns its monotonic ID.
	CreateCommitment(ctx context.Context, c *Commitment) (int64, error)
	// GetCommitment returns ErrNotFound for unknown ids.
	GetCommitment(ctx context.Context, id int64) (*Commitment, error)
	// BindEscrow sets the escrow address once; ErrEscrowAlreadyBound after.
	BindEscrow(ctx context.Context, id int64, address string) error
	// TransitionStatus flips status from→to; ErrStatusConflict if the
	// stored status is not `from`. This is the single atomic state flip
	// guarding terminal transitions.
	TransitionStatus(ctx context.Context, id int64, from, to Status) error
	// RecordRelease stores the release bookkeeping fields.
	RecordRelease(ctx context.Context, id int64, rr ReleaseResult, at time.Time) error

	// AddParticipant inserts p; ErrDuplicate if the identity is already in
	// the commitment's participant set, ErrNotFound for unknown commitments.
	AddParticipant(ctx context.Context, p *Participant) error
	// GetParticipant returns ErrParticipantNotFound for unknown pairs.
	GetParticipant(ctx context.Context, id int64, phone identity.Phone) (*Participant, error)
	ListParticipants(ctx context.Context, id int64) ([]Participant, error)
	UpdateParticipant(ctx context.Context, p *Participant) error

	// ListByParticipant returns every stake an identity holds, most recent
	// first.
	ListByParticipant(ctx context.Context, phone identity.Phone) ([]Participant, error)
	// ListDueOpen returns ids of OPEN commitments whose deadline is at or
	// before asOf, for the release sweep.
	ListDueOpen(ctx context.Context, asOf time.Time) ([]int64, error)
	// ListUnrefunded returns ids of CANCELLED commitments that still have
	// LOCKED participants awaiting a refund retry.
	ListUnrefunded(ctx context.Context) ([]int64, error)
}
