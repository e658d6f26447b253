package conversation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Mindburn-Labs/pact/pkg/conversation"
	"github.com/Mindburn-Labs/pact/pkg/money"
)

func TestExtractAmount(t *testing.T) {
	cases := []struct {
		in   string
		want money.Money
		ok   bool
	}{
		{"500", money.FromAlgo(500), true},
		{"500 algo", money.FromAlgo(500), true},
		{"around 12.5 ALGO", money.FromMicro(12_500_000), true},
		{"0", money.Money{}, false},
		{"lots", money.Money{}, false},
		{"", money.Money{}, false},
	}
	for _, tc := range cases {
		got, ok := conversation.ExtractAmount(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got, "input %q", tc.in)
		}
	}
}

func TestExtractInt(t *testing.T) {
	n, ok := conversation.ExtractInt("5 people")
	assert.True(t, ok)
	assert.Equal(t, 5, n)

	n, ok = conversation.ExtractInt("in 14 days")
	assert.True(t, ok)
	assert.Equal(t, 14, n)

	_, ok = conversation.ExtractInt("several")
	assert.False(t, ok)
}

func TestParseYesNo(t *testing.T) {
	for _, word := range []string{"yes", "Y", "confirm", "OK", "sure", "yeah"} {
		yes, ok := conversation.ParseYesNo(word)
		assert.True(t, ok, word)
		assert.True(t, yes, word)
	}
	for _, word := range []string{"no", "N", "cancel", "nope"} {
		yes, ok := conversation.ParseYesNo(word)
		assert.True(t, ok, word)
		assert.False(t, yes, word)
	}
	_, ok := conversation.ParseYesNo("perhaps")
	assert.False(t, ok)
}
