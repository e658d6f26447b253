package conversation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Mindburn-Labs/pact/pkg/money"
)

var (
	decimalRe = regexp.MustCompile(`\d+(?:\.\d+)?`)
	integerRe = regexp.MustCompile(`\d+`)
)

// cancelWords abort the wizard from any step.
var cancelWords = map[string]bool{
	"cancel": true, "stop": true, "quit": true, "exit": true,
}

var yesWords = map[string]bool{
	"yes": true, "y": true, "confirm": true, "ok": true, "sure": true, "yeah": true,
}

var noWords = map[string]bool{
	"no": true, "n": true, "cancel": true, "nope": true,
}

// IsCancel reports whether the message is a wizard abort keyword.
func IsCancel(text string) bool {
	return cancelWords[strings.ToLower(strings.TrimSpace(text))]
}

// ParseYesNo interprets a confirmation reply. ok is false when the reply is
// neither an affirmation nor a refusal.
func ParseYesNo(text string) (yes, ok bool) {
	word := strings.ToLower(strings.TrimSpace(text))
	if yesWords[word] {
		return true, true
	}
	if noWords[word] {
		return false, true
	}
	return false, false
}

// ExtractAmount pulls the first decimal number out of free text, so "500",
// "500 algo" and "around 500.5 ALGO" all parse.
func ExtractAmount(text string) (money.Money, bool) {
	m := decimalRe.FindString(text)
	if m == "" {
		return money.Money{}, false
	}
	amount, err := money.Parse(m)
	if err != nil || !amount.IsPositive() {
		return money.Money{}, false
	}
	return amount, true
}

// ExtractInt pulls the first integer out of free text, so "5", "5 people"
// and "in 14 days" all parse.
func ExtractInt(text string) (int, bool) {
	m := integerRe.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
