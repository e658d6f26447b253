package sweep_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/pact/pkg/chain"
	"github.com/Mindburn-Labs/pact/pkg/commitment"
	"github.com/Mindburn-Labs/pact/pkg/escrow"
	"github.com/Mindburn-Labs/pact/pkg/events"
	"github.com/Mindburn-Labs/pact/pkg/identity"
	"github.com/Mindburn-Labs/pact/pkg/journal"
	"github.com/Mindburn-Labs/pact/pkg/money"
	"github.com/Mindburn-Labs/pact/pkg/reliability"
	"github.com/Mindburn-Labs/pact/pkg/store"
	"github.com/Mindburn-Labs/pact/pkg/sweep"
)

const (
	organizer = identity.Phone("+15550000001")
	alice     = identity.Phone("+15550000002")
)

type fixture struct {
	engine  *commitment.Engine
	store   *store.Memory
	ledger  *chain.DevLedger
	wallets *chain.Wallets
	sweeper *sweep.Sweeper
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		store:  store.NewMemory(),
		ledger: chain.NewDevLedger(nil),
		now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return fx.now }
	fx.wallets = chain.NewWallets(fx.ledger)
	dir := escrow.NewDirectory(fx.ledger, journal.New(), nil)
	rel := reliability.NewLedger(reliability.NewMemoryStore(), reliability.DefaultConfig())
	emitter := events.NewEmitter(events.NewMemoryOutbox(), nil)
	fx.engine = commitment.NewEngine(fx.store, dir, fx.ledger, fx.wallets, rel, emitter, nil).
		WithClock(clock)
	fx.sweeper = sweep.New(fx.engine, fx.store, time.Minute, nil).WithClock(clock)
	return fx
}

func (fx *fixture) fund(t *testing.T, phone identity.Phone, algos int64) {
	t.Helper()
	acct, err := fx.wallets.GetOrCreate(context.Background(), phone)
	require.NoError(t, err)
	fx.ledger.Fund(acct.Address, money.FromAlgo(algos))
}

func TestSweepReleasesDueCommitments(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	c, err := fx.engine.CreateCommitment(ctx, organizer, "Goa Trip", money.FromAlgo(50), 2, 7)
	require.NoError(t, err)
	_, err = fx.engine.AddParticipant(ctx, c.ID, organizer, string(alice))
	require.NoError(t, err)
	fx.fund(t, alice, 60)
	_, err = fx.engine.LockFunds(ctx, c.ID, alice)
	require.NoError(t, err)

	// Not yet due: nothing happens.
	report, err := fx.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Released)

	fx.now = c.Deadline.Add(time.Minute)
	report, err = fx.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Released)
	assert.Zero(t, report.Failed)

	got, err := fx.engine.GetCommitment(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, commitment.StatusReleased, got.Status)

	// A second pass finds nothing due and releases nothing again.
	report, err = fx.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Released)
}

func TestSweepRetriesFailedRefunds(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	c, err := fx.engine.CreateCommitment(ctx, organizer, "Goa Trip", money.FromAlgo(50), 2, 7)
	require.NoError(t, err)
	_, err = fx.engine.AddParticipant(ctx, c.ID, organizer, string(alice))
	require.NoError(t, err)
	fx.fund(t, alice, 60)
	_, err = fx.engine.LockFunds(ctx, c.ID, alice)
	require.NoError(t, err)

	// Cancel behind the engine's back with the participant still LOCKED,
	// simulating a cancellation whose refund leg failed.
	require.NoError(t, fx.store.TransitionStatus(ctx, c.ID, commitment.StatusOpen, commitment.StatusCancelled))

	report, err := fx.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Refunded)

	p, err := fx.store.GetParticipant(ctx, c.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, commitment.ParticipantRefunded, p.Status)
}
