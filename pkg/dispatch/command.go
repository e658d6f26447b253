// Package dispatch routes inbound chat messages: active wizard first, then
// quick-add, then creation triggers, then the fixed command grammar. It
// turns engine results and errors into plain-text replies.
package dispatch

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Mindburn-Labs/pact/pkg/money"
)

// CommandType labels a parsed fixed command.
type CommandType string

const (
	CmdHelp           CommandType = "help"
	CmdCreate         CommandType = "create"
	CmdCommit         CommandType = "commit"
	CmdStatus         CommandType = "status"
	CmdCancel         CommandType = "cancel"
	CmdAddParticipant CommandType = "add_participant"
	CmdReliability    CommandType = "reliability"
	CmdMyCommitments  CommandType = "my_commitments"
	CmdUnknown        CommandType = "unknown"
)

// Command is the structured form of one fixed-grammar message.
type Command struct {
	Type CommandType

	Title        string
	Amount       money.Money
	Participants int
	Days         int

	CommitmentID int64
	Phone        string
}

var (
	helpRe        = regexp.MustCompile(`^(help|start|hi|hello|menu)$`)
	lockCreateRe  = regexp.MustCompile(`^/lock\s+create\s+(.+?)\s+(\d+(?:\.\d+)?)\s+(\d+)\s+(\d+)$`)
	commitRe      = regexp.MustCompile(`^/commit\s+(\d+)$`)
	statusRe      = regexp.MustCompile(`^/(?:commitment|status)\s+(\d+)$`)
	cancelRe      = regexp.MustCompile(`^/cancel\s+(\d+)$`)
	addRe         = regexp.MustCompile(`^/add\s+(\d+)\s+(\+?\d+)$`)
	reliabilityRe = regexp.MustCompile(`^/?reliability$`)
	mineRe        = regexp.MustCompile(`^/?my\s+commitments$`)
)

// ParseCommand matches the fixed command grammar. Free-text triggers and
// quick-add are detected separately, before this runs.
func ParseCommand(text string) Command {
	msg := strings.ToLower(strings.TrimSpace(text))

	if helpRe.MatchString(msg) {
		return Command{Type: CmdHelp}
	}
	if m := lockCreateRe.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		amount, err := money.Parse(m[2])
		if err != nil {
			return Command{Type: CmdUnknown}
		}
		participants, _ := strconv.Atoi(m[3])
		days, _ := strconv.Atoi(m[4])
		return Command{
			Type:         CmdCreate,
			Title:        strings.TrimSpace(m[1]),
			Amount:       amount,
			Participants: participants,
			Days:         days,
		}
	}
	if m := commitRe.FindStringSubmatch(msg); m != nil {
		return Command{Type: CmdCommit, CommitmentID: mustID(m[1])}
	}
	if m := statusRe.FindStringSubmatch(msg); m != nil {
		return Command{Type: CmdStatus, CommitmentID: mustID(m[1])}
	}
	if m := cancelRe.FindStringSubmatch(msg); m != nil {
		return Command{Type: CmdCancel, CommitmentID: mustID(m[1])}
	}
	if m := addRe.FindStringSubmatch(msg); m != nil {
		phone := m[2]
		if !strings.HasPrefix(phone, "+") {
			phone = "+" + phone
		}
		return Command{Type: CmdAddParticipant, CommitmentID: mustID(m[1]), Phone: phone}
	}
	if reliabilityRe.MatchString(msg) {
		return Command{Type: CmdReliability}
	}
	if mineRe.MatchString(msg) {
		return Command{Type: CmdMyCommitments}
	}
	return Command{Type: CmdUnknown}
}

func mustID(s string) int64 {
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}
