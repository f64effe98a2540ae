// Package payauth implements the signed payment authorization carried
// in the X-PAYMENT header: a token-free, self-contained proof of
// payment intent that bypasses the settlement endpoint entirely.
package payauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/payrail/x402/internal/challenge"
)

// DefaultValidity is the width of the [validAfter, validBefore]
// window when the caller does not configure one.
const DefaultValidity = 5 * time.Minute

// Version is the x402 payload version emitted in the envelope.
const Version = 1

// Authorization binds a payer to a single transfer inside a validity
// window. Value is the amount in cents. The nonce is single-use.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// Payload pairs an authorization with its signature.
type Payload struct {
	Signature     string        `json:"signature"`
	Authorization Authorization `json:"authorization"`
}

// Envelope is the transport-safe structure base64-encoded into the
// X-PAYMENT header.
type Envelope struct {
	X402Version int     `json:"x402Version"`
	Scheme      string  `json:"scheme"`
	Network     string  `json:"network"`
	Payload     Payload `json:"payload"`
}

// Signer is the held credential capability that signs authorization
// messages. Cryptographic correctness is the implementation's problem;
// the protocol engine only transports what it produces.
type Signer interface {
	Address() string
	Sign(message []byte) (string, error)
}

// HMACSigner signs with a shared key. It stands in for a real wallet
// signer in tests and demos.
type HMACSigner struct {
	Key  []byte
	Addr string
}

func (s HMACSigner) Address() string { return s.Addr }

func (s HMACSigner) Sign(message []byte) (string, error) {
	mac := hmac.New(sha256.New, s.Key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Config holds the static fields of every authorization a signer
// produces.
type Config struct {
	Scheme   string // defaults to "exact"
	Network  string // defaults to "test"
	PayTo    string
	Validity time.Duration // defaults to DefaultValidity
}

// NewAuthorizationSigner returns a builder that produces signed
// X-PAYMENT header values for payment challenges.
func NewAuthorizationSigner(signer Signer, cfg Config) (*AuthorizationSigner, error) {
	if signer == nil {
		return nil, fmt.Errorf("must provide a signer")
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "exact"
	}
	if cfg.Network == "" {
		cfg.Network = "test"
	}
	if cfg.Validity == 0 {
		cfg.Validity = DefaultValidity
	}
	return &AuthorizationSigner{
		signer: signer,
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

type AuthorizationSigner struct {
	signer Signer
	cfg    Config
	now    func() time.Time
}

// Header builds, signs, and encodes a payment authorization for a
// challenge. Each call produces a fresh nonce; headers are per-request
// and must not be cached.
func (a *AuthorizationSigner) Header(ch challenge.Challenge) (string, error) {
	now := a.now()
	auth := Authorization{
		From:        a.signer.Address(),
		To:          a.cfg.PayTo,
		Value:       strconv.FormatInt(int64(math.Round(ch.Cost*100)), 10),
		ValidAfter:  strconv.FormatInt(now.Unix(), 10),
		ValidBefore: strconv.FormatInt(now.Add(a.cfg.Validity).Unix(), 10),
		Nonce:       uuid.NewString(),
	}

	sig, err := a.signer.Sign(signingMessage(a.cfg.Scheme, a.cfg.Network, auth))
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}

	env := Envelope{
		X402Version: Version,
		Scheme:      a.cfg.Scheme,
		Network:     a.cfg.Network,
		Payload: Payload{
			Signature:     sig,
			Authorization: auth,
		},
	}

	jsonb, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(jsonb), nil
}

// signingMessage is the domain-separated byte string both sides sign
// and verify. Scheme and network participate so a signature for one
// network cannot be replayed on another.
func signingMessage(scheme, network string, auth Authorization) []byte {
	jsonb, _ := json.Marshal(auth)
	return []byte("x402/transfer-authorization\n" + scheme + "\n" + network + "\n" + string(jsonb))
}
