package dispatch

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

var (
	tripTriggerRe   = regexp.MustCompile(`^make\s+(?:a\s+)?(.+?)\s+trip\b`)
	createTriggerRe = regexp.MustCompile(`^create\s+(?:a\s+)?(.+)$`)
	lockTriggerRe   = regexp.MustCompile(`^(?:new|start)\s+(?:commitment|lock)\s+(?:for\s+)?(.+)$`)
	quickAddRe      = regexp.MustCompile(`^add\s+(\+?\d+)\b`)
)

// DetectTrigger recognizes free-text phrases that start the creation
// wizard and extracts a title:
//
//	"make a goa trip"          -> "Goa Trip"
//	"create beach party"       -> "Beach Party"
//	"new commitment for rent"  -> "Rent"
func DetectTrigger(text string) (string, bool) {
	msg := strings.ToLower(strings.TrimSpace(text))

	if m := tripTriggerRe.FindStringSubmatch(msg); m != nil {
		return titleCaser.String(strings.TrimSpace(m[1])) + " Trip", true
	}
	if m := createTriggerRe.FindStringSubmatch(msg); m != nil && !strings.Contains(msg, "commitment") {
		return titleCaser.String(strings.TrimSpace(m[1])), true
	}
	if m := lockTriggerRe.FindStringSubmatch(msg); m != nil {
		return titleCaser.String(strings.TrimSpace(m[1])), true
	}
	return "", false
}

// DetectQuickAdd recognizes "add +919999999999" style messages and returns
// the raw phone, prefixed with + when missing.
func DetectQuickAdd(text string) (string, bool) {
	msg := strings.ToLower(strings.TrimSpace(text))
	m := quickAddRe.FindStringSubmatch(msg)
	if m == nil {
		return "", false
	}
	phone := m[1]
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return phone, true
}
