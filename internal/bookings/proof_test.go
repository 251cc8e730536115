package bookings

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCompletionSecretEntropy(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		secret, err := newCompletionSecret()
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(secret), 32, "at least 128 bits encoded")
		require.False(t, seen[secret], "secrets must not repeat")
		seen[secret] = true
	}
}

func TestSecretsMatch(t *testing.T) {
	secret, err := newCompletionSecret()
	require.NoError(t, err)

	require.True(t, secretsMatch(secret, secret))
	require.False(t, secretsMatch(secret, secret+"x"))
	require.False(t, secretsMatch(secret, ""))
	require.False(t, secretsMatch("", secret))
	require.False(t, secretsMatch("", ""))
}
