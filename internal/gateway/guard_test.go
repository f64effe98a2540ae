package gateway

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrail/x402/internal/challenge"
	"github.com/payrail/x402/internal/token"
)

func TestAuthorizeNoToken(t *testing.T) {
	challenges := challenge.New(0)
	g := NewGuard(challenges, token.New(0), nil)

	decision := g.Authorize("weather", 0.10, Credentials{})

	require.False(t, decision.Proceed)
	require.NotNil(t, decision.Challenge)
	assert.Equal(t, "weather", decision.Challenge.Resource)
	assert.Equal(t, 0.10, decision.Challenge.Cost)

	// The issued challenge is settleable.
	_, ok := challenges.Lookup(decision.Challenge.ID)
	assert.True(t, ok)
}

func TestAuthorizeValidToken(t *testing.T) {
	challenges := challenge.New(0)
	tokens := token.New(0)
	g := NewGuard(challenges, tokens, nil)

	tok := tokens.Mint(challenges.Issue("weather", 0.10), "test_123")

	decision := g.Authorize("weather", 0.10, Credentials{Token: tok.Token})
	assert.True(t, decision.Proceed)
	assert.Nil(t, decision.Challenge)
}

func TestAuthorizeInvalidTokenIssuesFreshChallenge(t *testing.T) {
	challenges := challenge.New(0)
	tokens := token.New(0)
	g := NewGuard(challenges, tokens, nil)

	orig := challenges.Issue("weather", 0.10)
	tok := tokens.Mint(orig, "test_123")

	// Token is bound to weather; presenting it for stock_data
	// yields a challenge, and never the token's original one.
	decision := g.Authorize("stock_data", 0.25, Credentials{Token: tok.Token})
	require.False(t, decision.Proceed)
	require.NotNil(t, decision.Challenge)
	assert.NotEqual(t, orig.ID, decision.Challenge.ID)
	assert.Equal(t, "stock_data", decision.Challenge.Resource)
}

func TestAuthorizeFreshChallengeEachTime(t *testing.T) {
	g := NewGuard(challenge.New(0), token.New(0), nil)

	first := g.Authorize("news", 0.15, Credentials{})
	second := g.Authorize("news", 0.15, Credentials{})

	require.NotNil(t, first.Challenge)
	require.NotNil(t, second.Challenge)
	assert.NotEqual(t, first.Challenge.ID, second.Challenge.ID)
}

func TestAuthorizeSignedPayment(t *testing.T) {
	var tests = []struct {
		name     string
		payments PaymentAccepter
		proceed  bool
	}{
		{
			name:     "accepted payment header",
			payments: mockAccepter{},
			proceed:  true,
		},
		{
			name:     "rejected payment header",
			payments: mockAccepter{AcceptErr: errors.New("bad signature")},
			proceed:  false,
		},
		{
			name:     "signed path disabled",
			payments: nil,
			proceed:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGuard(challenge.New(0), token.New(0), tt.payments)

			decision := g.Authorize("weather", 0.10, Credentials{Payment: "aGVsbG8="})
			assert.Equal(t, tt.proceed, decision.Proceed)
			if !tt.proceed {
				assert.NotNil(t, decision.Challenge)
			}
		})
	}
}

// A valid bearer token wins before the payment header is consulted.
func TestAuthorizeTokenBeforePayment(t *testing.T) {
	challenges := challenge.New(0)
	tokens := token.New(0)
	g := NewGuard(challenges, tokens, mockAccepter{AcceptErr: errors.New("never called")})

	tok := tokens.Mint(challenges.Issue("weather", 0.10), "test_123")

	decision := g.Authorize("weather", 0.10, Credentials{
		Token:   tok.Token,
		Payment: "aGVsbG8=",
	})
	assert.True(t, decision.Proceed)
}
