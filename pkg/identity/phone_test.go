package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/pact/pkg/identity"
)

func TestNormalizeCanonicalizes(t *testing.T) {
	cases := []struct {
		in   string
		want identity.Phone
	}{
		{"+919999999999", "+919999999999"},
		{"919999999999", "+919999999999"},
		{" +91 99999-99999 ", "+919999999999"},
		{"(91) 8237987667", "+918237987667"},
	}
	for _, tc := range cases {
		got, err := identity.Normalize(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestNormalizeRejects(t *testing.T) {
	for _, in := range []string{"", "12345", "abc123456789", "+1234567890123456"} {
		_, err := identity.Normalize(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestNormalizeStableUnderPlusVariants(t *testing.T) {
	// Uniqueness checks depend on both forms mapping to the same key.
	withPlus, err := identity.Normalize("+918237987667")
	require.NoError(t, err)
	withoutPlus, err := identity.Normalize("918237987667")
	require.NoError(t, err)
	assert.Equal(t, withPlus, withoutPlus)
}
