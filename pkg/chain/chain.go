// Package chain defines the ledger capability the commitment engine runs
// against. The engine never constructs or signs raw transactions; it only
// requests account creation and value transfers through this interface.
package chain

import (
	"context"
	"errors"

	"github.com/Mindburn-Labs/pact/pkg/money"
)

// TxRef identifies a settled transfer on the underlying ledger.
type TxRef string

// Account is a ledger-held account.
type Account struct {
	Address string `json:"address"`
}

// ErrInsufficientBalance is returned by Transfer when the source account
// cannot cover the requested amount.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Ledger is the opaque ledger capability.
type Ledger interface {
	// CreateAccount provisions a fresh account with zero balance.
	CreateAccount(ctx context.Context) (Account, error)
	// Transfer moves amount from one address to another and returns the
	// settled transaction reference. A note travels with the transfer for
	// explorer display; it carries no protocol meaning.
	Transfer(ctx context.Context, from, to string, amount money.Money, note string) (TxRef, error)
	// Balance reports the spendable balance of an address.
	Balance(ctx context.Context, address string) (money.Money, error)
}
