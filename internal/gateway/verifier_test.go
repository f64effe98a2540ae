package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrail/x402/internal/challenge"
	"github.com/payrail/x402/internal/token"
)

func TestPrefixVerifier(t *testing.T) {
	var tests = []struct {
		name       string
		verifier   PrefixVerifier
		credential string
		expected   bool
	}{
		{"test prefix", PrefixVerifier{}, "test_abc", true},
		{"api key match", PrefixVerifier{APIKey: "key_123"}, "key_123", true},
		{"custom prefix", PrefixVerifier{Prefix: "demo_"}, "demo_1", true},
		{"custom prefix excludes default", PrefixVerifier{Prefix: "demo_"}, "test_abc", false},
		{"no api key configured", PrefixVerifier{}, "key_123", false},
		{"garbage", PrefixVerifier{APIKey: "key_123"}, "bogus", false},
		{"empty credential", PrefixVerifier{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.verifier.Verify(context.Background(), tt.credential))
		})
	}
}

// The gateway defers entirely to the injected verifier, so a real
// payment processor can replace the placeholder policy.
func TestSettleInjectedVerifier(t *testing.T) {
	challenges := challenge.New(0)
	svc, err := New(challenges, token.New(0), mockVerifier{VerifyBool: false})
	require.NoError(t, err)

	ch := challenges.Issue("weather", 0.10)

	// Even a test-prefixed credential is rejected when the injected
	// verifier says no.
	_, err = svc.Settle(context.Background(), ch.ID, "test_123")
	assert.ErrorIs(t, err, ErrPaymentRejected)
}
