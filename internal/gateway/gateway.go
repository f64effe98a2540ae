package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/payrail/x402/internal/challenge"
	"github.com/payrail/x402/internal/token"
)

// New returns a payment gateway composing the challenge and token
// stores with a credential verifier.
func New(challenges *challenge.Store, tokens *token.Store, verifier CredentialVerifier) (*Service, error) {
	if challenges == nil || tokens == nil {
		return nil, fmt.Errorf("must provide challenge and token stores")
	}
	if verifier == nil {
		verifier = PrefixVerifier{}
	}
	return &Service{
		challenges: challenges,
		tokens:     tokens,
		verifier:   verifier,
	}, nil
}

type Service struct {
	challenges *challenge.Store
	tokens     *token.Store
	verifier   CredentialVerifier
}

// Settle converts a payment credential plus an unpaid challenge into
// an access token. A challenge settles at most once: under concurrent
// attempts on the same id exactly one caller mints a token and the
// rest observe ErrAlreadySettled. A rejected credential leaves the
// challenge unpaid and retryable.
func (s *Service) Settle(ctx context.Context, challengeID, credential string) (*token.AccessToken, error) {
	ch, ok := s.challenges.Lookup(challengeID)
	if !ok {
		return nil, ErrUnknownChallenge
	}
	if ch.Paid {
		return nil, ErrAlreadySettled
	}
	if ch.Expired(time.Now()) {
		return nil, ErrChallengeExpired
	}

	if !s.verifier.Verify(ctx, credential) {
		return nil, ErrPaymentRejected
	}

	// The unpaid->paid flip is the atomic point. Losing the race
	// here means another settlement won between our lookup and now.
	if err := s.challenges.MarkPaid(challengeID); err != nil {
		switch {
		case errors.Is(err, challenge.ErrAlreadyPaid):
			return nil, ErrAlreadySettled
		case errors.Is(err, challenge.ErrChallengeNotFound):
			return nil, ErrUnknownChallenge
		default:
			return nil, fmt.Errorf("markPaid: %w", err)
		}
	}

	tok := s.tokens.Mint(ch, credential)
	return &tok, nil
}
