// Package conversation tracks multi-step chat flows, currently the guided
// commitment-creation wizard, plus the short-lived "last commitment"
// context used by quick-add. State is keyed by sender identity and expires
// after a configurable idle timeout.
package conversation

import (
	"time"

	"github.com/Mindburn-Labs/pact/pkg/identity"
	"github.com/Mindburn-Labs/pact/pkg/money"
)

// Flow identifies which wizard a state belongs to.
type Flow string

const FlowCreate Flow = "create_commitment"

// Step is the wizard's pending question.
type Step string

const (
	StepAmount       Step = "AWAITING_AMOUNT"
	StepParticipants Step = "AWAITING_PARTICIPANTS"
	StepDeadline     Step = "AWAITING_DEADLINE"
	StepConfirm      Step = "AWAITING_CONFIRMATION"
)

// State is one user's in-flight wizard. Fields fill in as steps complete.
type State struct {
	Phone        identity.Phone `json:"phone"`
	Flow         Flow           `json:"flow"`
	Step         Step           `json:"step"`
	Title        string         `json:"title"`
	Amount       money.Money    `json:"amount"`
	Participants int            `json:"participants"`
	Days         int            `json:"days"`
	StartedAt    time.Time      `json:"started_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Recent is the quick-add context: the last commitment a user created.
type Recent struct {
	CommitmentID int64     `json:"commitment_id"`
	SavedAt      time.Time `json:"saved_at"`
}

// Outcome classifies what a message did to the active wizard.
type Outcome int

const (
	// OutcomeNone: no active wizard; the message belongs to normal routing.
	OutcomeNone Outcome = iota
	// OutcomePrompt: a step completed; State.Step is the next question.
	OutcomePrompt
	// OutcomeInvalid: input rejected; State.Step is unchanged.
	OutcomeInvalid
	// OutcomeCancelled: the user aborted the wizard.
	OutcomeCancelled
	// OutcomeDeclined: the user answered "no" at confirmation.
	OutcomeDeclined
	// OutcomeConfirmed: the draft is complete; State holds the final values.
	OutcomeConfirmed
	// OutcomeExpired: the wizard idled out; the message still needs routing.
	OutcomeExpired
)

// Result of feeding one message into the wizard.
type Result struct {
	Outcome Outcome
	// State after the message was applied. Nil for OutcomeNone and
	// OutcomeExpired; the final draft for OutcomeConfirmed.
	State *State
}
