package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectTrigger(t *testing.T) {
	cases := []struct {
		in    string
		title string
		ok    bool
	}{
		{"make a goa trip", "Goa Trip", true},
		{"Make Goa Trip", "Goa Trip", true},
		{"make a south goa trip", "South Goa Trip", true},
		{"create beach party", "Beach Party", true},
		{"create a beach party", "Beach Party", true},
		{"create commitment", "", false}, // "commitment" is excluded from the create pattern
		{"new commitment for rent", "Rent", true},
		{"start lock for office lunch", "Office Lunch", true},
		{"new lock trek fund", "Trek Fund", true},
		{"/commit 5", "", false},
		{"hello", "", false},
	}
	for _, tc := range cases {
		title, ok := DetectTrigger(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		if tc.ok {
			assert.Equal(t, tc.title, title, "input %q", tc.in)
		}
	}
}

func TestDetectQuickAdd(t *testing.T) {
	phone, ok := DetectQuickAdd("add +919999999999")
	assert.True(t, ok)
	assert.Equal(t, "+919999999999", phone)

	phone, ok = DetectQuickAdd("add 919999999999")
	assert.True(t, ok)
	assert.Equal(t, "+919999999999", phone, "missing plus is supplied")

	_, ok = DetectQuickAdd("/add 5 +919999999999")
	assert.False(t, ok, "fixed grammar is not quick-add")

	_, ok = DetectQuickAdd("add two people")
	assert.False(t, ok)
}

func TestParseCommand(t *testing.T) {
	cmd := ParseCommand("/lock create Goa Trip 500 5 7")
	assert.Equal(t, CmdCreate, cmd.Type)
	assert.Equal(t, "Goa Trip", cmd.Title)
	assert.Equal(t, int64(500_000_000), cmd.Amount.Micro)
	assert.Equal(t, 5, cmd.Participants)
	assert.Equal(t, 7, cmd.Days)

	cmd = ParseCommand("/commit 123")
	assert.Equal(t, CmdCommit, cmd.Type)
	assert.Equal(t, int64(123), cmd.CommitmentID)

	assert.Equal(t, CmdStatus, ParseCommand("/commitment 123").Type)
	assert.Equal(t, CmdStatus, ParseCommand("/status 123").Type)
	assert.Equal(t, CmdCancel, ParseCommand("/cancel 123").Type)

	cmd = ParseCommand("/add 123 919999999999")
	assert.Equal(t, CmdAddParticipant, cmd.Type)
	assert.Equal(t, int64(123), cmd.CommitmentID)
	assert.Equal(t, "+919999999999", cmd.Phone)

	assert.Equal(t, CmdReliability, ParseCommand("/reliability").Type)
	assert.Equal(t, CmdReliability, ParseCommand("reliability").Type)
	assert.Equal(t, CmdMyCommitments, ParseCommand("my commitments").Type)

	for _, text := range []string{"help", "hi", "HELLO", "menu", "start"} {
		assert.Equal(t, CmdHelp, ParseCommand(text).Type, text)
	}

	assert.Equal(t, CmdUnknown, ParseCommand("what is this").Type)
	assert.Equal(t, CmdUnknown, ParseCommand("/commit abc").Type)
}
