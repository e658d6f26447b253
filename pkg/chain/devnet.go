package chain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/pact/pkg/money"
)

// DevLedger is an in-process Ledger for development and tests. Balances live
// in memory; transfer references are random UUIDs in the same shape a real
// ledger client would hand back.
type DevLedger struct {
	mu       sync.Mutex
	balances map[string]money.Money
	logger   *slog.Logger
}

// NewDevLedger creates an empty in-memory ledger.
func NewDevLedger(logger *slog.Logger) *DevLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &DevLedger{
		balances: make(map[string]money.Money),
		logger:   logger,
	}
}

// CreateAccount provisions a fresh zero-balance account.
func (l *DevLedger) CreateAccount(ctx context.Context) (Account, error) {
	addr := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))

	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr] = money.Zero
	return Account{Address: addr}, nil
}

// Fund credits an account out of thin air. Dev faucet; not part of the
// Ledger interface.
func (l *DevLedger) Fund(address string, amount money.Money) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[address] = l.balances[address].Add(amount)
}

// Transfer moves amount between accounts.
func (l *DevLedger) Transfer(ctx context.Context, from, to string, amount money.Money, note string) (TxRef, error) {
	if !amount.IsPositive() {
		return "", fmt.Errorf("transfer amount must be positive, got %s", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	src, ok := l.balances[from]
	if !ok {
		return "", fmt.Errorf("unknown source account %s", from)
	}
	if _, ok := l.balances[to]; !ok {
		return "", fmt.Errorf("unknown destination account %s", to)
	}
	if src.Cmp(amount) < 0 {
		return "", fmt.Errorf("transfer %s from %s: %w", amount, from, ErrInsufficientBalance)
	}

	l.balances[from] = src.Sub(amount)
	l.balances[to] = l.balances[to].Add(amount)

	ref := TxRef(strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")))
	l.logger.Debug("devnet transfer settled",
		"tx", string(ref), "from", from, "to", to, "amount", amount.String(), "note", note)
	return ref, nil
}

// Balance reports the spendable balance of an address.
func (l *DevLedger) Balance(ctx context.Context, address string) (money.Money, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal, ok := l.balances[address]
	if !ok {
		return money.Zero, fmt.Errorf("unknown account %s", address)
	}
	return bal, nil
}
