// Package escrow maps each commitment to exactly one escrow-holding account
// and mediates all fund movement for it. The commitment engine never talks
// to the ledger directly for commitment-related transfers.
package escrow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Mindburn-Labs/pact/pkg/chain"
	"github.com/Mindburn-Labs/pact/pkg/journal"
	"github.com/Mindburn-Labs/pact/pkg/money"
)

// Ref identifies the escrow account bound to a commitment.
type Ref struct {
	CommitmentID int64  `json:"commitment_id"`
	Address      string `json:"address"`
}

// Directory tracks one escrow account per commitment. Accounts are never
// reused across commitments and are not reclaimed here; closing minimum
// balance reserves is the ledger collaborator's account-lifecycle policy.
type Directory struct {
	mu        sync.Mutex
	ledger    chain.Ledger
	journal   *journal.Journal
	accounts  map[int64]Ref
	deposited map[string]money.Money
	disbursed map[string]money.Money
	logger    *slog.Logger
}

// NewDirectory creates an empty directory over the given ledger.
func NewDirectory(ledger chain.Ledger, jnl *journal.Journal, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	if jnl == nil {
		jnl = journal.New()
	}
	return &Directory{
		ledger:    ledger,
		journal:   jnl,
		accounts:  make(map[int64]Ref),
		deposited: make(map[string]money.Money),
		disbursed: make(map[string]money.Money),
		logger:    logger,
	}
}

// Open returns the escrow account for a commitment, creating it on first
// call. Idempotent: calling twice returns the same ref.
func (d *Directory) Open(ctx context.Context, commitmentID int64) (Ref, error) {
	d.mu.Lock()
	if ref, ok := d.accounts[commitmentID]; ok {
		d.mu.Unlock()
		return ref, nil
	}
	d.mu.Unlock()

	acct, err := d.ledger.CreateAccount(ctx)
	if err != nil {
		return Ref{}, fmt.Errorf("open escrow for commitment %d: %w", commitmentID, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	// Lost the race: keep the first account, the spare stays unused.
	if ref, ok := d.accounts[commitmentID]; ok {
		return ref, nil
	}
	ref := Ref{CommitmentID: commitmentID, Address: acct.Address}
	d.accounts[commitmentID] = ref
	d.logger.Info("escrow account opened", "commitment_id", commitmentID, "address", acct.Address)
	return ref, nil
}

// Restore re-registers a known escrow binding, used when commitments are
// loaded back from persistent storage after a restart.
func (d *Directory) Restore(commitmentID int64, address string, deposited, disbursed money.Money) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[commitmentID] = Ref{CommitmentID: commitmentID, Address: address}
	d.deposited[address] = deposited
	d.disbursed[address] = disbursed
}

// Deposit moves amount from a participant wallet into escrow.
func (d *Directory) Deposit(ctx context.Context, ref Ref, fromAddress string, amount money.Money, note string) (chain.TxRef, error) {
	tx, err := d.ledger.Transfer(ctx, fromAddress, ref.Address, amount, note)
	if err != nil {
		return "", fmt.Errorf("deposit %s to escrow %s: %w", amount, ref.Address, err)
	}

	d.mu.Lock()
	d.deposited[ref.Address] = d.deposited[ref.Address].Add(amount)
	d.mu.Unlock()

	if _, err := d.journal.Append(journal.KindDeposit, ref.Address, fromAddress, amount.Micro, string(tx)); err != nil {
		d.logger.Warn("journal append failed", "error", err, "tx", string(tx))
	}
	return tx, nil
}

// Disburse moves amount out of escrow, for release-to-organizer and
// refund-to-participant alike. It refuses to disburse more than what has
// been recorded as deposited.
func (d *Directory) Disburse(ctx context.Context, ref Ref, toAddress string, amount money.Money, note string) (chain.TxRef, error) {
	d.mu.Lock()
	available := d.deposited[ref.Address].Sub(d.disbursed[ref.Address])
	if available.Cmp(amount) < 0 {
		d.mu.Unlock()
		return "", fmt.Errorf("disburse %s from escrow %s: only %s held", amount, ref.Address, available)
	}
	d.mu.Unlock()

	tx, err := d.ledger.Transfer(ctx, ref.Address, toAddress, amount, note)
	if err != nil {
		return "", fmt.Errorf("disburse %s from escrow %s: %w", amount, ref.Address, err)
	}

	d.mu.Lock()
	d.disbursed[ref.Address] = d.disbursed[ref.Address].Add(amount)
	d.mu.Unlock()

	if _, err := d.journal.Append(journal.KindDisburse, ref.Address, toAddress, amount.Micro, string(tx)); err != nil {
		d.logger.Warn("journal append failed", "error", err, "tx", string(tx))
	}
	return tx, nil
}

// Held reports the balance still held by an escrow account per the
// directory's own deposit/disburse records.
func (d *Directory) Held(ref Ref) money.Money {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deposited[ref.Address].Sub(d.disbursed[ref.Address])
}

// Journal exposes the movement journal for audit.
func (d *Directory) Journal() *journal.Journal {
	return d.journal
}
