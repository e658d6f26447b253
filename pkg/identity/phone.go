// Package identity normalizes chat-transport user identities.
//
// Users are addressed by phone number or messenger handle. All storage and
// uniqueness checks operate on the canonical form produced here.
package identity

import (
	"fmt"
	"strings"
)

// Phone is a canonical user identity: "+" followed by 8-15 digits.
type Phone string

// Normalize canonicalizes a raw phone representation. It accepts the number
// with or without the leading "+", and tolerates spaces, dashes and
// parentheses. The canonical form always carries the leading "+".
func Normalize(raw string) (Phone, error) {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')':
			// separator or country-code marker, dropped
		default:
			return "", fmt.Errorf("invalid character %q in phone %q", r, raw)
		}
	}
	n := digits.Len()
	if n < 8 || n > 15 {
		return "", fmt.Errorf("phone %q must have 8-15 digits, has %d", raw, n)
	}
	return Phone("+" + digits.String()), nil
}

// String returns the canonical representation.
func (p Phone) String() string {
	return string(p)
}
