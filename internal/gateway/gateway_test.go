package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrail/x402/internal/challenge"
	"github.com/payrail/x402/internal/token"
)

func newTestService(t *testing.T, challengeTTL time.Duration) (*Service, *challenge.Store, *token.Store) {
	t.Helper()

	challenges := challenge.New(challengeTTL)
	tokens := token.New(0)
	svc, err := New(challenges, tokens, PrefixVerifier{APIKey: "key_123"})
	require.NoError(t, err)

	return svc, challenges, tokens
}

func TestSettle(t *testing.T) {
	var tests = []struct {
		name        string
		challengeID string // "issued" is replaced with a real id
		credential  string
		ttl         time.Duration
		prePaid     bool
		err         error
	}{
		{
			name:        "test credential accepted",
			challengeID: "issued",
			credential:  "test_123",
		},
		{
			name:        "api key accepted",
			challengeID: "issued",
			credential:  "key_123",
		},
		{
			name:        "unknown challenge",
			challengeID: "nope",
			credential:  "test_123",
			err:         ErrUnknownChallenge,
		},
		{
			name:        "already settled",
			challengeID: "issued",
			credential:  "test_123",
			prePaid:     true,
			err:         ErrAlreadySettled,
		},
		{
			name:        "rejected credential",
			challengeID: "issued",
			credential:  "bogus",
			err:         ErrPaymentRejected,
		},
		{
			name:        "expired challenge",
			challengeID: "issued",
			credential:  "test_123",
			ttl:         -time.Second,
			err:         ErrChallengeExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, challenges, _ := newTestService(t, tt.ttl)

			ch := challenges.Issue("weather", 0.10)
			id := tt.challengeID
			if id == "issued" {
				id = ch.ID
			}
			if tt.prePaid {
				require.NoError(t, challenges.MarkPaid(ch.ID))
			}

			tok, err := svc.Settle(context.Background(), id, tt.credential)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Nil(t, tok)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "weather", tok.Resource)
			assert.Equal(t, ch.ID, tok.ChallengeID)
		})
	}
}

func TestSettleRoundTrip(t *testing.T) {
	svc, challenges, tokens := newTestService(t, 0)

	ch := challenges.Issue("weather", 0.10)
	tok, err := svc.Settle(context.Background(), ch.ID, "test_123")
	require.NoError(t, err)

	assert.NoError(t, tokens.Validate(tok.Token, "weather"))
	assert.ErrorIs(t, tokens.Validate(tok.Token, "stock_data"), token.ErrTokenResourceMismatch)
}

// A failed settlement leaves the challenge unpaid and retryable with
// a different credential.
func TestSettleRejectionIsRetryable(t *testing.T) {
	svc, challenges, _ := newTestService(t, 0)

	ch := challenges.Issue("news", 0.15)

	_, err := svc.Settle(context.Background(), ch.ID, "bogus")
	require.ErrorIs(t, err, ErrPaymentRejected)

	tok, err := svc.Settle(context.Background(), ch.ID, "test_123")
	require.NoError(t, err)
	assert.Equal(t, "news", tok.Resource)
}

// Settling an already-paid challenge always reports AlreadySettled,
// regardless of credential.
func TestSettleAlreadySettledIdempotent(t *testing.T) {
	svc, challenges, _ := newTestService(t, 0)

	ch := challenges.Issue("weather", 0.10)
	_, err := svc.Settle(context.Background(), ch.ID, "test_123")
	require.NoError(t, err)

	for _, credential := range []string{"test_123", "key_123", "bogus"} {
		_, err := svc.Settle(context.Background(), ch.ID, credential)
		assert.ErrorIs(t, err, ErrAlreadySettled)
	}
}

func TestSettleConcurrent(t *testing.T) {
	svc, challenges, _ := newTestService(t, 0)

	ch := challenges.Issue("weather", 0.10)

	const n = 32
	var (
		wg   sync.WaitGroup
		toks = make([]*token.AccessToken, n)
		errs = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			toks[i], errs[i] = svc.Settle(context.Background(), ch.ID, "test_123")
		}(i)
	}
	wg.Wait()

	var ok, already int
	for i := range errs {
		switch {
		case errs[i] == nil:
			require.NotNil(t, toks[i])
			ok++
		case errs[i] == ErrAlreadySettled:
			already++
		default:
			t.Fatalf("unexpected err: %v", errs[i])
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, already)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.Error(t, err)

	// A nil verifier falls back to the test-prefix policy.
	svc, err := New(challenge.New(0), token.New(0), nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}
