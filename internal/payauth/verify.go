package payauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

var (
	ErrMalformedPayment  = errors.New("malformed payment header")
	ErrOutsideWindow     = errors.New("authorization outside validity window")
	ErrNonceReplayed     = errors.New("authorization nonce already spent")
	ErrSignatureRejected = errors.New("authorization signature rejected")
)

// SignatureVerifier checks an authorization signature. Real on-chain
// verification plugs in here; the engine only enforces structure,
// validity window, and nonce single-use.
type SignatureVerifier interface {
	Verify(message []byte, signature, from string) bool
}

// HMACVerifier is the counterpart of HMACSigner.
type HMACVerifier struct {
	Key []byte
}

func (v HMACVerifier) Verify(message []byte, signature, _ string) bool {
	mac := hmac.New(sha256.New, v.Key)
	mac.Write(message)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}

// NewVerifier returns the server-side check for X-PAYMENT headers.
func NewVerifier(sig SignatureVerifier) (*Verifier, error) {
	if sig == nil {
		return nil, fmt.Errorf("must provide a signature verifier")
	}
	return &Verifier{
		sig:   sig,
		spent: make(map[string]struct{}),
		now:   time.Now,
	}, nil
}

type Verifier struct {
	sig SignatureVerifier
	now func() time.Time

	mu    sync.Mutex
	spent map[string]struct{}
}

// Accept validates a presented X-PAYMENT header. It fails closed and
// spends the nonce only after every other check passes, so a rejected
// header can be corrected and resubmitted.
func (v *Verifier) Accept(_ string, header string) error {
	jsonb, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayment, err)
	}

	var env Envelope
	if err := json.Unmarshal(jsonb, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayment, err)
	}

	auth := env.Payload.Authorization
	if auth.From == "" || auth.Nonce == "" {
		return ErrMalformedPayment
	}

	validAfter, err := strconv.ParseInt(auth.ValidAfter, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad validAfter", ErrMalformedPayment)
	}
	validBefore, err := strconv.ParseInt(auth.ValidBefore, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad validBefore", ErrMalformedPayment)
	}

	now := v.now().Unix()
	if now < validAfter || now > validBefore {
		return ErrOutsideWindow
	}

	msg := signingMessage(env.Scheme, env.Network, auth)
	if !v.sig.Verify(msg, env.Payload.Signature, auth.From) {
		return ErrSignatureRejected
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, used := v.spent[auth.Nonce]; used {
		return ErrNonceReplayed
	}
	v.spent[auth.Nonce] = struct{}{}
	return nil
}
