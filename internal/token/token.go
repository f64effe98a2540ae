package token

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/payrail/x402/internal/challenge"
)

// DefaultTTL is how long a minted access token stays valid.
const DefaultTTL = time.Hour

var (
	ErrTokenUnknown          = errors.New("access token unknown")
	ErrTokenExpired          = errors.New("access token expired")
	ErrTokenResourceMismatch = errors.New("access token bound to a different resource")
)

// AccessToken is a bearer credential proving a challenge was settled.
// It is scoped to the single resource recorded at issuance.
type AccessToken struct {
	Token       string    `json:"access_token"`
	ChallengeID string    `json:"-"`
	Resource    string    `json:"resource"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// New returns a token store. A ttl of 0 uses DefaultTTL.
func New(ttl time.Duration) *Store {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:    ttl,
		tokens: make(map[string]AccessToken),
	}
}

type Store struct {
	mu     sync.Mutex
	ttl    time.Duration
	tokens map[string]AccessToken
}

// Mint issues an access token for a settled challenge, bound to the
// challenge's resource.
func (s *Store) Mint(ch challenge.Challenge, credential string) AccessToken {
	now := time.Now()
	tok := AccessToken{
		Token:       newToken(ch.ID, credential, now),
		ChallengeID: ch.ID,
		Resource:    ch.Resource,
		ExpiresAt:   now.Add(s.ttl),
	}

	s.mu.Lock()
	s.tokens[tok.Token] = tok
	s.mu.Unlock()

	return tok
}

// Validate checks a presented token against a resource. It fails
// closed: unknown tokens, expired tokens, and tokens bound to another
// resource are all rejected. Expiry evicts the entry; a resource
// mismatch leaves the token usable for its own resource.
func (s *Store) Validate(token, resource string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.tokens[token]
	if !ok {
		return ErrTokenUnknown
	}
	if time.Now().After(tok.ExpiresAt) {
		delete(s.tokens, token)
		return ErrTokenExpired
	}
	if tok.Resource != resource {
		return ErrTokenResourceMismatch
	}
	return nil
}

// Revoke removes a token regardless of its state.
func (s *Store) Revoke(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

func newToken(challengeID, credential string, now time.Time) string {
	sum := sha256.Sum256([]byte(challengeID + credential + strconv.FormatInt(now.UnixNano(), 10)))
	return fmt.Sprintf("%x", sum)
}
