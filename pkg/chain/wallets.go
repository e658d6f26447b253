package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/Mindburn-Labs/pact/pkg/identity"
)

// Wallets maps chat identities to ledger accounts, creating one on first
// use. Custody of the underlying keys is the ledger collaborator's problem;
// this registry only remembers addresses.
type Wallets struct {
	mu       sync.Mutex
	ledger   Ledger
	accounts map[identity.Phone]Account
}

// NewWallets creates a wallet registry over the given ledger.
func NewWallets(ledger Ledger) *Wallets {
	return &Wallets{
		ledger:   ledger,
		accounts: make(map[identity.Phone]Account),
	}
}

// GetOrCreate returns the account bound to the identity, provisioning one on
// the ledger the first time the identity is seen.
func (w *Wallets) GetOrCreate(ctx context.Context, id identity.Phone) (Account, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if acct, ok := w.accounts[id]; ok {
		return acct, nil
	}
	acct, err := w.ledger.CreateAccount(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("create wallet for %s: %w", id, err)
	}
	w.accounts[id] = acct
	return acct, nil
}

// Lookup returns the account for an identity if one exists.
func (w *Wallets) Lookup(id identity.Phone) (Account, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	acct, ok := w.accounts[id]
	return acct, ok
}
