package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	t1, err := GenerateToken(TokenSize256)
	require.NoError(t, err)
	t2, err := GenerateToken(TokenSize256)
	require.NoError(t, err)

	require.NotEmpty(t, t1)
	require.NotEqual(t, t1, t2)
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	fp := Fingerprint("Mozilla/5.0", "203.0.113.9")
	require.Len(t, fp, 64, "hex sha-256")
	require.Equal(t, fp, Fingerprint("Mozilla/5.0", "203.0.113.9"), "must be stable")
	require.NotEqual(t, fp, Fingerprint("Mozilla/5.0", "203.0.113.10"))

	// Part boundaries matter: ("ab","c") and ("a","bc") are different
	// devices.
	require.NotEqual(t, Fingerprint("ab", "c"), Fingerprint("a", "bc"))
}
