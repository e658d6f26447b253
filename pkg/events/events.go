// Package events decouples commitment-engine side effects from their
// transactional outcome. The engine emits domain events into an outbox; a
// dispatcher delivers them to the notifier asynchronously. Notification
// failures are logged, never propagated.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/pact/pkg/identity"
)

// Kind labels a domain event.
type Kind string

const (
	KindParticipantAdded    Kind = "PARTICIPANT_ADDED"
	KindFundsLocked         Kind = "FUNDS_LOCKED"
	KindCommitmentReleased  Kind = "COMMITMENT_RELEASED"
	KindCommitmentCancelled Kind = "COMMITMENT_CANCELLED"
	KindParticipantRefunded Kind = "PARTICIPANT_REFUNDED"
)

// Event is one pending notification to one recipient.
type Event struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	Recipient  identity.Phone `json:"recipient"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Notifier is the external delivery capability. Fire-and-forget,
// best-effort.
type Notifier interface {
	Notify(ctx context.Context, recipient identity.Phone, kind Kind, payload map[string]any) error
}

// OutboxStore queues events for asynchronous delivery.
type OutboxStore interface {
	Schedule(ctx context.Context, ev *Event) error
	Pending(ctx context.Context, limit int) ([]*Event, error)
	MarkDone(ctx context.Context, id string) error
}

// Emitter writes engine events into the outbox. Scheduling failures are
// swallowed after logging: a lost notification must never fail the
// commitment operation that produced it.
type Emitter struct {
	outbox OutboxStore
	clock  func() time.Time
	logger *slog.Logger
}

// NewEmitter creates an emitter over the given outbox.
func NewEmitter(outbox OutboxStore, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{outbox: outbox, clock: time.Now, logger: logger}
}

// Emit queues an event for the recipient.
func (e *Emitter) Emit(ctx context.Context, recipient identity.Phone, kind Kind, payload map[string]any) {
	ev := &Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Recipient:  recipient,
		Payload:    payload,
		OccurredAt: e.clock(),
	}
	if err := e.outbox.Schedule(ctx, ev); err != nil {
		e.logger.Warn("failed to schedule notification", "kind", string(kind), "recipient", recipient.String(), "error", err)
	}
}
