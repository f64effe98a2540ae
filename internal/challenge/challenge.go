package challenge

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// DefaultTTL is how long a challenge stays settleable after it is issued.
const DefaultTTL = 5 * time.Minute

// idLen is the length of the opaque challenge identifier in hex chars.
const idLen = 16

var paymentMethods = []string{"credit_card", "crypto", "test_token"}

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrAlreadyPaid       = errors.New("challenge already paid")
)

// Challenge describes what must be paid to access a resource. It is
// created on unauthorized access and mutated exactly once, when its
// Paid flag flips during settlement.
type Challenge struct {
	ID             string    `json:"challenge_id"`
	Resource       string    `json:"resource"`
	Cost           float64   `json:"cost"`
	Currency       string    `json:"currency"`
	PaymentMethods []string  `json:"payment_methods"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	Paid           bool      `json:"-"`
}

// Expired reports whether the challenge can no longer be settled.
func (c Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// New returns a challenge store. A ttl of 0 uses DefaultTTL.
func New(ttl time.Duration) *Store {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:        ttl,
		challenges: make(map[string]*Challenge),
	}
}

// Store holds issued challenges keyed by id. All access goes through
// the mutex; the gateway relies on MarkPaid being the single
// serialization point for settlement.
type Store struct {
	mu         sync.Mutex
	ttl        time.Duration
	challenges map[string]*Challenge
}

// Issue creates and persists a fresh challenge for a resource.
func (s *Store) Issue(resource string, cost float64) Challenge {
	now := time.Now()
	ch := Challenge{
		ID:             newID(resource, now),
		Resource:       resource,
		Cost:           cost,
		Currency:       "USD",
		PaymentMethods: paymentMethods,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.challenges[ch.ID]; exists {
		// 64 bits of hash space; a collision means something is
		// deeply broken. Never overwrite an existing challenge.
		panic(fmt.Sprintf("challenge id collision: %s", ch.ID))
	}
	stored := ch
	s.challenges[ch.ID] = &stored

	return ch
}

// Lookup returns a copy of the challenge with the given id.
func (s *Store) Lookup(id string) (Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[id]
	if !ok {
		return Challenge{}, false
	}
	return *ch, true
}

// MarkPaid flips a challenge from unpaid to paid. The flip happens at
// most once per challenge: concurrent callers serialize here and all
// but the first get ErrAlreadyPaid.
func (s *Store) MarkPaid(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[id]
	if !ok {
		return ErrChallengeNotFound
	}
	if ch.Paid {
		return ErrAlreadyPaid
	}
	ch.Paid = true
	return nil
}

// newID derives an unguessable fixed-length identifier from the
// resource name and a high-resolution timestamp.
func newID(resource string, now time.Time) string {
	sum := sha256.Sum256([]byte(resource + strconv.FormatInt(now.UnixNano(), 10)))
	return fmt.Sprintf("%x", sum)[:idLen]
}
