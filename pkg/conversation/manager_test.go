package conversation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/pact/pkg/conversation"
	"github.com/Mindburn-Labs/pact/pkg/identity"
	"github.com/Mindburn-Labs/pact/pkg/money"
)

const caller = identity.Phone("+15550000001")

type clock struct{ now time.Time }

func newManager() (*conversation.Manager, *clock) {
	c := &clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	m := conversation.NewManager(conversation.NewMemoryStore(), 10*time.Minute, nil).
		WithClock(func() time.Time { return c.now })
	return m, c
}

func TestWizardHappyPath(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	s, err := m.Begin(ctx, caller, "Goa Trip")
	require.NoError(t, err)
	assert.Equal(t, conversation.StepAmount, s.Step)

	r, err := m.Advance(ctx, caller, "500 ALGO")
	require.NoError(t, err)
	assert.Equal(t, conversation.OutcomePrompt, r.Outcome)
	assert.Equal(t, conversation.StepParticipants, r.State.Step)
	assert.Equal(t, money.FromAlgo(500), r.State.Amount)

	r, err = m.Advance(ctx, caller, "5 people")
	require.NoError(t, err)
	assert.Equal(t, conversation.OutcomePrompt, r.Outcome)
	assert.Equal(t, conversation.StepDeadline, r.State.Step)
	assert.Equal(t, 5, r.State.Participants)

	r, err = m.Advance(ctx, caller, "7 days")
	require.NoError(t, err)
	assert.Equal(t, conversation.OutcomePrompt, r.Outcome)
	assert.Equal(t, conversation.StepConfirm, r.State.Step)
	assert.Equal(t, 7, r.State.Days)

	r, err = m.Advance(ctx, caller, "yes")
	require.NoError(t, err)
	assert.Equal(t, conversation.OutcomeConfirmed, r.Outcome)
	assert.Equal(t, "Goa Trip", r.State.Title)

	// Wizard is gone after confirmation.
	r, err = m.Advance(ctx, caller, "anything")
	require.NoError(t, err)
	assert.Equal(t, conversation.OutcomeNone, r.Outcome)
}

func TestWizardInvalidReplyCountsAsActivity(t *testing.T) {
	m, c := newManager()
	ctx := context.Background()

	_, err := m.Begin(ctx, caller, "Goa Trip")
	require.NoError(t, err)

	// An unparseable answer nine minutes in still resets the clock.
	c.now = c.now.Add(9 * time.Minute)
	r, err := m.Advance(ctx, caller, "lots")
	require.NoError(t, err)
	require.Equal(t, conversation.OutcomeInvalid, r.Outcome)

	// Eleven minutes after Begin, but only two after the re-prompt.
	c.now = c.now.Add(2 * time.Minute)
	r, err = m.Advance(ctx, caller, "500")
	require.NoError(t, err)
	assert.Equal(t, conversation.OutcomePrompt, r.Outcome)
	assert.Equal(t, conversation.StepParticipants, r.State.Step)
}

func TestWizardInvalidInputsReprompt(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	_, err := m.Begin(ctx, caller, "Goa Trip")
	require.NoError(t, err)

	for _, text := range []string{"lots", "0"} {
		r, err := m.Advance(ctx, caller, text)
		require.NoError(t, err)
		assert.Equal(t, conversation.OutcomeInvalid, r.Outcome, "input %q", text)
		assert.Equal(t, conversation.StepAmount, r.State.Step)
	}

	r, err := m.Advance(ctx, caller, "500")
	require.NoError(t, err)
	require.Equal(t, conversation.OutcomePrompt, r.Outcome)

	// Participant bounds.
	for _, text := range []string{"1", "101", "many"} {
		r, err = m.Advance(ctx, caller, text)
		require.NoError(t, err)
		assert.Equal(t, conversation.OutcomeInvalid, r.Outcome, "input %q", text)
	}
	r, err = m.Advance(ctx, caller, "5")
	require.NoError(t, err)
	require.Equal(t, conversation.OutcomePrompt, r.Outcome)

	// Deadline bounds.
	for _, text := range []string{"0", "366"} {
		r, err = m.Advance(ctx, caller, text)
		require.NoError(t, err)
		assert.Equal(t, conversation.OutcomeInvalid, r.Outcome, "input %q", text)
	}
}

func TestWizardCancelKeywords(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	for _, word := range []string{"cancel", "STOP", "quit", "exit"} {
		_, err := m.Begin(ctx, caller, "Goa Trip")
		require.NoError(t, err)

		r, err := m.Advance(ctx, caller, word)
		require.NoError(t, err)
		assert.Equal(t, conversation.OutcomeCancelled, r.Outcome, "keyword %q", word)

		r, err = m.Advance(ctx, caller, "500")
		require.NoError(t, err)
		assert.Equal(t, conversation.OutcomeNone, r.Outcome)
	}
}

func TestWizardConfirmVariants(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	toConfirm := func() {
		_, err := m.Begin(ctx, caller, "Goa Trip")
		require.NoError(t, err)
		for _, text := range []string{"500", "5", "7"} {
			_, err = m.Advance(ctx, caller, text)
			require.NoError(t, err)
		}
	}

	toConfirm()
	r, err := m.Advance(ctx, caller, "maybe")
	require.NoError(t, err)
	assert.Equal(t, conversation.OutcomeInvalid, r.Outcome, "ambiguous reply re-prompts")

	r, err = m.Advance(ctx, caller, "nope")
	require.NoError(t, err)
	assert.Equal(t, conversation.OutcomeDeclined, r.Outcome)

	toConfirm()
	r, err = m.Advance(ctx, caller, "sure")
	require.NoError(t, err)
	assert.Equal(t, conversation.OutcomeConfirmed, r.Outcome)
}

func TestWizardExpiry(t *testing.T) {
	m, c := newManager()
	ctx := context.Background()

	_, err := m.Begin(ctx, caller, "Goa Trip")
	require.NoError(t, err)

	c.now = c.now.Add(11 * time.Minute)
	r, err := m.Advance(ctx, caller, "500")
	require.NoError(t, err)
	assert.Equal(t, conversation.OutcomeExpired, r.Outcome)

	// The expired state is gone; the next message routes normally.
	r, err = m.Advance(ctx, caller, "500")
	require.NoError(t, err)
	assert.Equal(t, conversation.OutcomeNone, r.Outcome)
}

func TestLastCommitmentContext(t *testing.T) {
	m, c := newManager()
	ctx := context.Background()

	_, ok, err := m.LastCommitment(ctx, caller)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.SetLastCommitment(ctx, caller, 42))

	id, ok, err := m.LastCommitment(ctx, caller)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	// Context goes stale after the idle timeout.
	c.now = c.now.Add(11 * time.Minute)
	_, ok, err = m.LastCommitment(ctx, caller)
	require.NoError(t, err)
	assert.False(t, ok)
}
