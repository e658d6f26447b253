package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/pact/pkg/chain"
	"github.com/Mindburn-Labs/pact/pkg/commitment"
	"github.com/Mindburn-Labs/pact/pkg/conversation"
	"github.com/Mindburn-Labs/pact/pkg/identity"
	"github.com/Mindburn-Labs/pact/pkg/reliability"
)

const helpText = `Payment Commitments

Create: /lock create [title] [amount] [people] [days]
  e.g. /lock create Goa Trip 500 5 7
Or just say: "make a goa trip"

Lock funds:    /commit [id]
Status:        /commitment [id]
Add someone:   /add [id] [phone]  (or just "add +91XXXXXXXXXX")
Cancel:        /cancel [id]
My stakes:     my commitments
My score:      /reliability`

func shortTx(ref chain.TxRef) string {
	s := string(ref)
	if len(s) > 8 {
		return s[:8] + "..."
	}
	return s
}

func progressBar(pct int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct / 10
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

func promptAmount(title string) string {
	return fmt.Sprintf("Creating \"%s\".\n\nHow much should each person lock (in ALGO)?\n\nReply with a number, or \"cancel\" to stop.", title)
}

func promptParticipants(s *conversation.State) string {
	return fmt.Sprintf("%s ALGO per person for \"%s\".\n\nHow many people are in? (2-100)", s.Amount, s.Title)
}

func promptDeadline(s *conversation.State) string {
	return fmt.Sprintf("%d people, %s ALGO each.\n\nHow many days until the deadline? (1-365)", s.Participants, s.Amount)
}

func promptConfirm(s *conversation.State) string {
	return fmt.Sprintf(`Ready to create:

%s
%s ALGO per person
%d participants
%d days to lock funds

Reply "yes" to confirm or "no" to cancel.`, s.Title, s.Amount, s.Participants, s.Days)
}

func promptFor(s *conversation.State) string {
	switch s.Step {
	case conversation.StepAmount:
		return promptAmount(s.Title)
	case conversation.StepParticipants:
		return promptParticipants(s)
	case conversation.StepDeadline:
		return promptDeadline(s)
	case conversation.StepConfirm:
		return promptConfirm(s)
	}
	return helpText
}

func invalidFor(s *conversation.State) string {
	switch s.Step {
	case conversation.StepAmount:
		return "Please send a positive amount, like \"500\" or \"500 ALGO\"."
	case conversation.StepParticipants:
		return "Please send a number of people between 2 and 100."
	case conversation.StepDeadline:
		return "Please send a number of days between 1 and 365."
	case conversation.StepConfirm:
		return "Please reply \"yes\" to confirm or \"no\" to cancel."
	}
	return helpText
}

const wizardCancelledText = "Okay, cancelled. Nothing was created."

const wizardExpiredText = "Your previous session expired, starting fresh.\n\n"

func renderCreated(c *commitment.Commitment) string {
	return fmt.Sprintf(`Payment commitment created!

%s
%s ALGO per person
%d participants needed
Deadline: %s

Commitment ID: #%d

Share with participants:
"Lock your payment: /commit %d"

Add participants: just say "add +91XXXXXXXXXX"`,
		c.Title, c.AmountPerPerson, c.TargetParticipants,
		c.Deadline.Format("Jan 2, 2006"), c.ID, c.ID)
}

func renderLocked(c *commitment.Commitment, p *commitment.Participant, snap *commitment.StatusSnapshot) string {
	return fmt.Sprintf(`Funds locked!

Locked %s ALGO for:
%s

Transaction: %s

Progress: %d/%d participants locked, %s ALGO total

Your funds will be:
- Released to the organizer on %s
- Refunded if the commitment is cancelled

Check status: /commitment %d`,
		c.AmountPerPerson, c.Title, shortTx(p.LockTxRef),
		snap.LockedCount, c.TargetParticipants, snap.TotalLocked,
		c.Deadline.Format("Jan 2"), c.ID)
}

func renderStatus(snap *commitment.StatusSnapshot) string {
	c := snap.Commitment

	var locked, pending []string
	for _, p := range snap.Participants {
		switch p.Status {
		case commitment.ParticipantLocked:
			locked = append(locked, fmt.Sprintf("- %s: locked", p.Phone))
		case commitment.ParticipantPending:
			pending = append(pending, fmt.Sprintf("- %s: not locked", p.Phone))
		}
	}
	lockedList := "None yet"
	if len(locked) > 0 {
		lockedList = strings.Join(locked, "\n")
	}
	pendingList := "All locked!"
	if len(pending) > 0 {
		pendingList = strings.Join(pending, "\n")
	}

	reminder := ""
	if len(pending) > 0 && c.Status == commitment.StatusOpen {
		reminder = "\nReminder: lock your funds before the deadline!\n"
	}

	return fmt.Sprintf(`%s [%s]

Amount: %s ALGO per person
Organizer: %s
Deadline: %s (%d days left)

Progress: %d%%
[%s]

Locked (%d/%d):
%s

Pending (%d):
%s

Total locked: %s / %s ALGO
%s
Lock now: /commit %d`,
		c.Title, c.Status,
		c.AmountPerPerson, c.Organizer, c.Deadline.Format("Jan 2, 2006"), snap.DaysRemaining,
		snap.Completion, progressBar(snap.Completion),
		snap.LockedCount, c.TargetParticipants, lockedList,
		snap.PendingCount, pendingList,
		snap.TotalLocked, snap.TargetTotal,
		reminder, c.ID)
}

func renderCancelled(c *commitment.Commitment, result *commitment.CancelResult) string {
	var refunds []string
	for _, r := range result.Refunds {
		if r.Err != nil {
			refunds = append(refunds, fmt.Sprintf("- %s: refund pending, will retry", r.Phone))
		} else {
			refunds = append(refunds, fmt.Sprintf("- %s: refunded (%s)", r.Phone, shortTx(r.TxRef)))
		}
	}
	refundList := "No locked funds to refund."
	if len(refunds) > 0 {
		refundList = strings.Join(refunds, "\n")
	}
	return fmt.Sprintf(`Commitment cancelled

%s

Refunds:
%s`, c.Title, refundList)
}

func renderParticipantAdded(c *commitment.Commitment, phone identity.Phone) string {
	return fmt.Sprintf(`Participant added

Added %s to:
%s

They can lock funds with:
/commit %d`, phone, c.Title, c.ID)
}

func renderReliability(score reliability.Score, badge string) string {
	tip := "Keep locking funds on time to improve your score!"
	if score.Score >= 90 {
		tip = "Excellent reliability, keep it up!"
	}
	return fmt.Sprintf(`Your reliability score

%s - %d/100

Fulfilled: %d
Missed: %d
Total: %d

%s`, badge, score.Score, score.Fulfilled, score.Missed, score.Total(), tip)
}

func renderMine(stakes []commitment.Participant) string {
	if len(stakes) == 0 {
		return `Your commitments

No commitments yet.

Create one: /lock create [title] [amount] [people] [days]
Example: /lock create Goa Trip 500 5 7`
	}

	var locked, pending []string
	for _, p := range stakes {
		switch p.Status {
		case commitment.ParticipantLocked:
			locked = append(locked, fmt.Sprintf("#%d - locked", p.CommitmentID))
		case commitment.ParticipantPending:
			pending = append(pending, fmt.Sprintf("#%d - not locked", p.CommitmentID))
		}
	}
	lockedList := "None"
	if len(locked) > 0 {
		lockedList = strings.Join(locked, "\n")
	}
	pendingList := "None"
	if len(pending) > 0 {
		pendingList = strings.Join(pending, "\n")
	}

	return fmt.Sprintf(`Your commitments

Locked (%d):
%s

Pending (%d):
%s

View details: /commitment [id]
Lock funds: /commit [id]
Check reliability: /reliability`,
		len(locked), lockedList, len(pending), pendingList)
}

// errorReply maps engine errors to user-facing text. Unrecognized errors
// get a generic line so internals never leak into chat.
func errorReply(err error) string {
	var (
		verr *commitment.ValidationError
		nerr *commitment.NotFoundError
		perr *commitment.ParticipantNotFoundError
		terr *commitment.TerminalStateError
		aerr *commitment.AuthorizationError
		derr *commitment.DeadlinePassedError
		dupe *commitment.DuplicateParticipantError
		berr *commitment.InsufficientBalanceError
		lerr *commitment.LedgerError
		rerr *commitment.NoRecentCommitmentError
	)
	switch {
	case errors.As(err, &verr):
		return fmt.Sprintf("Invalid %s: %s.", verr.Field, verr.Reason)
	case errors.As(err, &nerr):
		return fmt.Sprintf("Commitment #%d not found.", nerr.ID)
	case errors.As(err, &perr):
		return fmt.Sprintf("You are not a participant of commitment #%d. Ask the organizer to add you, or send \"add %s\".", perr.ID, perr.Phone)
	case errors.As(err, &terr):
		return fmt.Sprintf("Commitment #%d is already %s.", terr.ID, strings.ToLower(string(terr.Status)))
	case errors.As(err, &aerr):
		return "Only the organizer can do that."
	case errors.As(err, &derr):
		return fmt.Sprintf("The deadline for commitment #%d has passed, funds can no longer be locked.", derr.ID)
	case errors.As(err, &dupe):
		return fmt.Sprintf("%s is already in commitment #%d.", dupe.Phone, dupe.ID)
	case errors.As(err, &berr):
		return fmt.Sprintf("Insufficient balance: you need %s ALGO (including network fee) but have %s.", berr.Need, berr.Have)
	case errors.As(err, &lerr):
		return "The payment network is unavailable right now, please try again in a moment."
	case errors.As(err, &rerr):
		return "No recent commitment found. Use /add [id] [phone] instead."
	default:
		return "Something went wrong, please try again."
	}
}
