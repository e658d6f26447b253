package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Mindburn-Labs/pact/pkg/commitment"
	"github.com/Mindburn-Labs/pact/pkg/conversation"
	"github.com/Mindburn-Labs/pact/pkg/identity"
	"github.com/Mindburn-Labs/pact/pkg/money"
)

// Dispatcher turns one inbound message into one reply. Routing order
// matters: an active wizard consumes everything except its own expiry,
// quick-add and trigger phrases beat the fixed grammar.
type Dispatcher struct {
	engine *commitment.Engine
	conv   *conversation.Manager
	logger *slog.Logger
}

// NewDispatcher wires the dispatcher.
func NewDispatcher(engine *commitment.Engine, conv *conversation.Manager, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{engine: engine, conv: conv, logger: logger}
}

// HandleMessage processes one chat message and returns the reply text.
func (d *Dispatcher) HandleMessage(ctx context.Context, from identity.Phone, text string) string {
	r, err := d.conv.Advance(ctx, from, text)
	if err != nil {
		d.logger.Error("conversation advance failed", "phone", from.String(), "error", err)
		return errorReply(err)
	}

	prefix := ""
	switch r.Outcome {
	case conversation.OutcomePrompt:
		return promptFor(r.State)
	case conversation.OutcomeInvalid:
		return invalidFor(r.State)
	case conversation.OutcomeCancelled, conversation.OutcomeDeclined:
		return wizardCancelledText
	case conversation.OutcomeConfirmed:
		s := r.State
		return d.create(ctx, from, s.Title, s.Amount, s.Participants, s.Days)
	case conversation.OutcomeExpired:
		// The state is gone; the message still deserves normal routing.
		prefix = wizardExpiredText
	}

	if phone, ok := DetectQuickAdd(text); ok {
		return prefix + d.quickAdd(ctx, from, phone)
	}

	if title, ok := DetectTrigger(text); ok {
		if _, err := d.conv.Begin(ctx, from, title); err != nil {
			d.logger.Error("failed to start wizard", "phone", from.String(), "error", err)
			return prefix + errorReply(err)
		}
		return prefix + promptAmount(title)
	}

	return prefix + d.handleCommand(ctx, from, ParseCommand(text))
}

func (d *Dispatcher) handleCommand(ctx context.Context, from identity.Phone, cmd Command) string {
	switch cmd.Type {
	case CmdHelp:
		return helpText
	case CmdCreate:
		return d.create(ctx, from, cmd.Title, cmd.Amount, cmd.Participants, cmd.Days)
	case CmdCommit:
		return d.commit(ctx, from, cmd.CommitmentID)
	case CmdStatus:
		snap, err := d.engine.GetStatus(ctx, cmd.CommitmentID)
		if err != nil {
			return errorReply(err)
		}
		return renderStatus(snap)
	case CmdCancel:
		c, err := d.engine.GetCommitment(ctx, cmd.CommitmentID)
		if err != nil {
			return errorReply(err)
		}
		result, err := d.engine.CancelCommitment(ctx, cmd.CommitmentID, from)
		if err != nil {
			return errorReply(err)
		}
		return renderCancelled(c, result)
	case CmdAddParticipant:
		return d.add(ctx, from, cmd.CommitmentID, cmd.Phone)
	case CmdReliability:
		score, err := d.engine.Reliability().Get(ctx, from)
		if err != nil {
			return errorReply(err)
		}
		return renderReliability(score, d.engine.Reliability().Badge(score.Score))
	case CmdMyCommitments:
		stakes, err := d.engine.ListMine(ctx, from)
		if err != nil {
			return errorReply(err)
		}
		return renderMine(stakes)
	}
	return "Sorry, I didn't understand that.\n\n" + helpText
}

func (d *Dispatcher) create(ctx context.Context, from identity.Phone, title string,
	amount money.Money, participants, days int) string {

	c, err := d.engine.CreateCommitment(ctx, from, title, amount, participants, days)
	if err != nil {
		return errorReply(err)
	}
	// Remember for quick-add; the commitment itself is already safe.
	if err := d.conv.SetLastCommitment(ctx, from, c.ID); err != nil {
		d.logger.Warn("failed to save quick-add context", "phone", from.String(), "error", err)
	}
	return renderCreated(c)
}

// commit locks the sender's funds. A sender who was never added joins
// themself first: self-registration plus lock in one message.
func (d *Dispatcher) commit(ctx context.Context, from identity.Phone, id int64) string {
	p, err := d.engine.LockFunds(ctx, id, from)
	var missing *commitment.ParticipantNotFoundError
	if errors.As(err, &missing) {
		if _, addErr := d.engine.AddParticipant(ctx, id, from, string(from)); addErr != nil {
			return errorReply(addErr)
		}
		p, err = d.engine.LockFunds(ctx, id, from)
	}
	if err != nil {
		return errorReply(err)
	}

	c, err := d.engine.GetCommitment(ctx, id)
	if err != nil {
		return errorReply(err)
	}
	snap, err := d.engine.GetStatus(ctx, id)
	if err != nil {
		return errorReply(err)
	}
	return renderLocked(c, p, snap)
}

func (d *Dispatcher) add(ctx context.Context, from identity.Phone, id int64, phone string) string {
	p, err := d.engine.AddParticipant(ctx, id, from, phone)
	if err != nil {
		return errorReply(err)
	}
	c, err := d.engine.GetCommitment(ctx, id)
	if err != nil {
		return errorReply(err)
	}
	return renderParticipantAdded(c, p.Phone)
}

// quickAdd resolves "add [phone]" against the sender's most recent
// commitment. Stale context is an error, not a guess at an older
// commitment.
func (d *Dispatcher) quickAdd(ctx context.Context, from identity.Phone, phone string) string {
	id, ok, err := d.conv.LastCommitment(ctx, from)
	if err != nil {
		d.logger.Error("quick-add context lookup failed", "phone", from.String(), "error", err)
		return errorReply(err)
	}
	if !ok {
		return errorReply(&commitment.NoRecentCommitmentError{Organizer: from}) +
			"\ne.g. /add 123 " + phone
	}
	reply := d.add(ctx, from, id, phone)
	// Keep the context warm so consecutive quick-adds target the same
	// commitment.
	if err := d.conv.SetLastCommitment(ctx, from, id); err != nil {
		d.logger.Warn("failed to refresh quick-add context", "phone", from.String(), "error", err)
	}
	return reply
}
