package gateway

import (
	"log"

	"github.com/payrail/x402/internal/challenge"
	"github.com/payrail/x402/internal/token"
)

// PaymentAccepter verifies a self-contained signed payment
// authorization presented in place of an access token.
type PaymentAccepter interface {
	Accept(resource, header string) error
}

// Credentials carries whatever proof of payment a request presented.
// Either field may be empty.
type Credentials struct {
	Token   string // X-Access-Token bearer token
	Payment string // X-PAYMENT signed authorization
}

// Decision is the outcome of an authorization check. Either Proceed
// is true or Challenge holds the fresh challenge to surface as a 402.
type Decision struct {
	Proceed   bool
	Challenge *challenge.Challenge
}

// NewGuard returns the per-request authorization gate resource
// handlers call before serving content. payments may be nil, in which
// case the signed-authorization path is disabled.
func NewGuard(challenges *challenge.Store, tokens *token.Store, payments PaymentAccepter) *Guard {
	return &Guard{
		challenges: challenges,
		tokens:     tokens,
		payments:   payments,
	}
}

type Guard struct {
	challenges *challenge.Store
	tokens     *token.Store
	payments   PaymentAccepter
}

// Authorize checks the presented credentials against a resource. Any
// validation failure results in a fresh challenge; the stale token's
// original challenge is never reused.
func (g *Guard) Authorize(resource string, cost float64, creds Credentials) Decision {
	if creds.Token != "" {
		err := g.tokens.Validate(creds.Token, resource)
		if err == nil {
			return Decision{Proceed: true}
		}
		log.Printf("token rejected: resource=%v err=%v", resource, err)
	}

	if creds.Payment != "" && g.payments != nil {
		err := g.payments.Accept(resource, creds.Payment)
		if err == nil {
			return Decision{Proceed: true}
		}
		log.Printf("payment header rejected: resource=%v err=%v", resource, err)
	}

	ch := g.challenges.Issue(resource, cost)
	return Decision{Challenge: &ch}
}
