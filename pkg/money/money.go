// Package money provides integer micro-unit arithmetic for ledger amounts.
// It uses integer math (microalgos) to avoid floating point errors.
package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MicroPerAlgo is the number of micro-units in one whole ALGO.
const MicroPerAlgo int64 = 1_000_000

// Money represents an amount in microalgos.
type Money struct {
	Micro int64 `json:"micro"`
}

// Zero is the zero amount.
var Zero = Money{}

// FromMicro creates Money from a micro-unit count.
func FromMicro(micro int64) Money {
	return Money{Micro: micro}
}

// FromAlgo creates Money from a whole-ALGO count.
func FromAlgo(algo int64) Money {
	return Money{Micro: algo * MicroPerAlgo}
}

// Parse reads a decimal amount such as "500", "0.5" or "500 ALGO".
// At most six fractional digits are accepted.
func Parse(s string) (Money, error) {
	text := strings.TrimSpace(s)
	if fields := strings.Fields(text); len(fields) > 0 {
		text = fields[0]
	}
	if text == "" {
		return Zero, fmt.Errorf("empty amount")
	}

	whole, frac := text, ""
	if i := strings.IndexByte(text, '.'); i >= 0 {
		whole, frac = text[:i], text[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 6 {
		return Zero, fmt.Errorf("amount %q exceeds micro precision", s)
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 {
		return Zero, fmt.Errorf("invalid amount %q", s)
	}
	if w > math.MaxInt64/MicroPerAlgo {
		return Zero, fmt.Errorf("amount %q too large", s)
	}

	micro := w * MicroPerAlgo
	if frac != "" {
		f, err := strconv.ParseInt(frac+strings.Repeat("0", 6-len(frac)), 10, 64)
		if err != nil {
			return Zero, fmt.Errorf("invalid amount %q", s)
		}
		if micro > math.MaxInt64-f {
			return Zero, fmt.Errorf("amount %q too large", s)
		}
		micro += f
	}
	return Money{Micro: micro}, nil
}

// Add adds two amounts.
func (m Money) Add(other Money) Money {
	return Money{Micro: m.Micro + other.Micro}
}

// Sub subtracts other from m.
func (m Money) Sub(other Money) Money {
	return Money{Micro: m.Micro - other.Micro}
}

// Mul multiplies the amount by n.
func (m Money) Mul(n int64) Money {
	return Money{Micro: m.Micro * n}
}

// Cmp returns -1, 0 or +1 comparing m against other.
func (m Money) Cmp(other Money) int {
	switch {
	case m.Micro < other.Micro:
		return -1
	case m.Micro > other.Micro:
		return 1
	default:
		return 0
	}
}

// IsZero returns true if the amount is 0.
func (m Money) IsZero() bool {
	return m.Micro == 0
}

// IsPositive returns true if the amount is > 0.
func (m Money) IsPositive() bool {
	return m.Micro > 0
}

// IsNegative returns true if the amount is < 0.
func (m Money) IsNegative() bool {
	return m.Micro < 0
}

// String renders the amount as a decimal ALGO figure with trailing
// fractional zeros trimmed, e.g. "500", "0.5", "12.000001".
func (m Money) String() string {
	micro := m.Micro
	sign := ""
	if micro < 0 {
		sign = "-"
		micro = -micro
	}
	whole := micro / MicroPerAlgo
	frac := micro % MicroPerAlgo
	if frac == 0 {
		return fmt.Sprintf("%s%d", sign, whole)
	}
	fracText := strings.TrimRight(fmt.Sprintf("%06d", frac), "0")
	return fmt.Sprintf("%s%d.%s", sign, whole, fracText)
}
