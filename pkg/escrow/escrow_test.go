package escrow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/pact/pkg/chain"
	"github.com/Mindburn-Labs/pact/pkg/escrow"
	"github.com/Mindburn-Labs/pact/pkg/journal"
	"github.com/Mindburn-Labs/pact/pkg/money"
)

func newDirectory(t *testing.T) (*escrow.Directory, *chain.DevLedger) {
	t.Helper()
	ledger := chain.NewDevLedger(nil)
	return escrow.NewDirectory(ledger, journal.New(), nil), ledger
}

func TestOpenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dir, _ := newDirectory(t)

	first, err := dir.Open(ctx, 1)
	require.NoError(t, err)
	second, err := dir.Open(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := dir.Open(ctx, 2)
	require.NoError(t, err)
	assert.NotEqual(t, first.Address, other.Address, "escrow accounts must not be shared across commitments")
}

func TestDepositAndDisburse(t *testing.T) {
	ctx := context.Background()
	dir, ledger := newDirectory(t)

	payer, _ := ledger.CreateAccount(ctx)
	payee, _ := ledger.CreateAccount(ctx)
	ledger.Fund(payer.Address, money.FromAlgo(10))

	ref, err := dir.Open(ctx, 7)
	require.NoError(t, err)

	_, err = dir.Deposit(ctx, ref, payer.Address, money.FromAlgo(5), "lock")
	require.NoError(t, err)
	assert.Equal(t, money.FromAlgo(5), dir.Held(ref))

	_, err = dir.Disburse(ctx, ref, payee.Address, money.FromAlgo(5), "release")
	require.NoError(t, err)
	assert.Equal(t, money.Zero, dir.Held(ref))

	got, err := ledger.Balance(ctx, payee.Address)
	require.NoError(t, err)
	assert.Equal(t, money.FromAlgo(5), got)
}

func TestDisburseNeverExceedsDeposits(t *testing.T) {
	ctx := context.Background()
	dir, ledger := newDirectory(t)

	payer, _ := ledger.CreateAccount(ctx)
	payee, _ := ledger.CreateAccount(ctx)
	ledger.Fund(payer.Address, money.FromAlgo(10))

	ref, _ := dir.Open(ctx, 1)
	_, err := dir.Deposit(ctx, ref, payer.Address, money.FromAlgo(3), "")
	require.NoError(t, err)

	_, err = dir.Disburse(ctx, ref, payee.Address, money.FromAlgo(4), "")
	assert.Error(t, err, "disbursement above recorded deposits must be refused")
	assert.Equal(t, money.FromAlgo(3), dir.Held(ref))
}

func TestDepositFailurePropagates(t *testing.T) {
	ctx := context.Background()
	dir, ledger := newDirectory(t)

	broke, _ := ledger.CreateAccount(ctx)
	ref, _ := dir.Open(ctx, 1)

	_, err := dir.Deposit(ctx, ref, broke.Address, money.FromAlgo(1), "")
	require.Error(t, err)
	assert.Equal(t, money.Zero, dir.Held(ref), "failed deposit must not be recorded")
}

func TestMovementsAreJournaled(t *testing.T) {
	ctx := context.Background()
	jnl := journal.New()
	ledger := chain.NewDevLedger(nil)
	dir := escrow.NewDirectory(ledger, jnl, nil)

	payer, _ := ledger.CreateAccount(ctx)
	payee, _ := ledger.CreateAccount(ctx)
	ledger.Fund(payer.Address, money.FromAlgo(2))

	ref, _ := dir.Open(ctx, 1)
	_, err := dir.Deposit(ctx, ref, payer.Address, money.FromAlgo(2), "")
	require.NoError(t, err)
	_, err = dir.Disburse(ctx, ref, payee.Address, money.FromAlgo(1), "")
	require.NoError(t, err)

	require.Equal(t, 2, jnl.Length())
	ok, reason := jnl.Verify()
	assert.True(t, ok, reason)

	first, err := jnl.Get(1)
	require.NoError(t, err)
	assert.Equal(t, journal.KindDeposit, first.Kind)
	assert.Equal(t, money.FromAlgo(2).Micro, first.AmountMicro)
}

func TestRestoreRebindsAccount(t *testing.T) {
	ctx := context.Background()
	dir, _ := newDirectory(t)

	dir.Restore(9, "RESTORED", money.FromAlgo(4), money.FromAlgo(1))
	ref, err := dir.Open(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "RESTORED", ref.Address)
	assert.Equal(t, money.FromAlgo(3), dir.Held(ref))
}
