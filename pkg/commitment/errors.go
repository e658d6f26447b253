package commitment

import (
	"fmt"
	"time"

	"github.com/Mindburn-Labs/pact/pkg/identity"
	"github.com/Mindburn-Labs/pact/pkg/money"
)

// ValidationError reports a bad input shape or range, naming the field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an unknown commitment id.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("commitment #%d not found", e.ID)
}

// ParticipantNotFoundError reports an identity with no stake in the
// commitment.
type ParticipantNotFoundError struct {
	ID    int64
	Phone identity.Phone
}

func (e *ParticipantNotFoundError) Error() string {
	return fmt.Sprintf("%s is not a participant of commitment #%d", e.Phone, e.ID)
}

// TerminalStateError reports an operation against a RELEASED or CANCELLED
// commitment.
type TerminalStateError struct {
	ID     int64
	Status Status
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("commitment #%d is %s; no further changes allowed", e.ID, e.Status)
}

// AuthorizationError reports a non-organizer attempting an organizer-only
// action.
type AuthorizationError struct {
	ID        int64
	Requester identity.Phone
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s is not the organizer of commitment #%d", e.Requester, e.ID)
}

// DeadlinePassedError reports a lock attempt after the deadline. Distinct
// from validation: the user should check status, not resubmit.
type DeadlinePassedError struct {
	ID       int64
	Deadline time.Time
}

func (e *DeadlinePassedError) Error() string {
	return fmt.Sprintf("commitment #%d deadline passed at %s", e.ID, e.Deadline.UTC().Format(time.RFC3339))
}

// DuplicateParticipantError reports an identity already present in the
// commitment's participant set.
type DuplicateParticipantError struct {
	ID    int64
	Phone identity.Phone
}

func (e *DuplicateParticipantError) Error() string {
	return fmt.Sprintf("%s already participates in commitment #%d", e.Phone, e.ID)
}

// InsufficientBalanceError reports a wallet that cannot cover the
// per-person amount plus fee headroom.
type InsufficientBalanceError struct {
	Phone identity.Phone
	Need  money.Money
	Have  money.Money
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%s needs %s ALGO but holds %s ALGO", e.Phone, e.Need, e.Have)
}

// LedgerError wraps an underlying ledger transfer failure. Release and
// refund callers retry the same idempotent operation; it is never fatal to
// the commitment's eventual consistency.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s failed: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// NoRecentCommitmentError reports a quick-add with no commitment in the
// activity window. The user should fall back to the explicit two-argument
// form.
type NoRecentCommitmentError struct {
	Organizer identity.Phone
}

func (e *NoRecentCommitmentError) Error() string {
	return fmt.Sprintf("no recent commitment for %s", e.Organizer)
}
