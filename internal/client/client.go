// Package client implements the buyer side of the x402 protocol: a
// request runner that detects 402 responses, settles the payment, and
// retries exactly once with the resulting proof.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/payrail/x402/internal/challenge"
	"github.com/payrail/x402/internal/payauth"
)

const defaultCredential = "test_token_123"

var (
	ErrMalformedChallenge = errors.New("malformed payment challenge")
	ErrSettlementFailed   = errors.New("settlement failed")
	ErrRetryFailed        = errors.New("request failed after payment")
)

// Config configures a Client. Zero values get usable defaults.
type Config struct {
	// HTTPClient is the underlying transport.
	HTTPClient *http.Client

	// Credential is the static payment credential sent to the
	// settlement endpoint.
	Credential string

	// PaymentURL overrides the settlement endpoint. When empty it is
	// derived from the gated URL: same scheme and host, path /payment.
	PaymentURL string

	// Signer, when set, switches the client to the signed
	// authorization path: instead of calling the settlement endpoint
	// it attaches a per-request X-PAYMENT header.
	Signer *payauth.AuthorizationSigner
}

// Outcome is the terminal result of a successful Fetch.
type Outcome struct {
	StatusCode int
	Body       []byte
	// Paid reports whether a settlement happened during this call.
	Paid bool
	// Resource is the resource name learned from the challenge, if
	// the call went through the payment cycle.
	Resource string
}

// New returns a client. The client is safe for concurrent use; the
// token cache is shared across calls.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Credential == "" {
		cfg.Credential = defaultCredential
	}
	return &Client{
		cfg:       cfg,
		tokens:    make(map[string]cachedToken),
		resources: make(map[string]string),
	}
}

type Client struct {
	cfg Config

	mu sync.Mutex
	// tokens caches access tokens per resource name.
	tokens map[string]cachedToken
	// resources remembers which resource a request path maps to,
	// learned from challenge bodies.
	resources map[string]string
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// settlementResponse is the wire shape of POST /payment responses.
type settlementResponse struct {
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	AccessToken string    `json:"access_token,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	Resource    string    `json:"resource,omitempty"`
}

// Fetch performs a request against a payment-gated endpoint. On a 402
// it settles the challenge and retries exactly once, never
// recursively. A cached token for the target resource is attached up
// front; if the server rejects it the client falls back to the full
// challenge cycle and refreshes the cache.
func (c *Client) Fetch(ctx context.Context, method, rawurl string, body []byte) (*Outcome, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	cached := c.cachedTokenFor(u.Path)

	resp, respBody, err := c.do(ctx, method, rawurl, body, map[string]string{
		"X-Access-Token": cached,
	})
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return &Outcome{StatusCode: resp.StatusCode, Body: respBody}, nil
	case http.StatusPaymentRequired:
		// fall through to the payment cycle below
	default:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody)
	}

	var ch challenge.Challenge
	if err := json.Unmarshal(respBody, &ch); err != nil || ch.ID == "" {
		return nil, ErrMalformedChallenge
	}

	c.mu.Lock()
	c.resources[u.Path] = ch.Resource
	if cached != "" {
		// The server rejected our cached token; drop it.
		delete(c.tokens, ch.Resource)
	}
	c.mu.Unlock()

	headers := map[string]string{}
	if c.cfg.Signer != nil {
		header, err := c.cfg.Signer.Header(ch)
		if err != nil {
			return nil, fmt.Errorf("sign authorization: %w", err)
		}
		headers["X-PAYMENT"] = header
	} else {
		tok, err := c.settle(ctx, u, ch)
		if err != nil {
			return nil, err
		}
		headers["X-Access-Token"] = tok
	}

	// The one retry. Whatever comes back is terminal.
	retry, retryBody, err := c.do(ctx, method, rawurl, body, headers)
	if err != nil {
		return nil, fmt.Errorf("retry: %w", err)
	}
	if retry.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrRetryFailed, retry.StatusCode, retryBody)
	}

	return &Outcome{
		StatusCode: retry.StatusCode,
		Body:       retryBody,
		Paid:       true,
		Resource:   ch.Resource,
	}, nil
}

// settle exchanges a challenge plus the static credential for an
// access token and caches it per resource.
func (c *Client) settle(ctx context.Context, gated *url.URL, ch challenge.Challenge) (string, error) {
	paymentURL := c.cfg.PaymentURL
	if paymentURL == "" {
		paymentURL = gated.Scheme + "://" + gated.Host + "/payment"
	}

	reqBody, _ := json.Marshal(map[string]string{
		"challenge_id":  ch.ID,
		"payment_token": c.cfg.Credential,
	})

	resp, respBody, err := c.do(ctx, http.MethodPost, paymentURL, reqBody, nil)
	if err != nil {
		return "", fmt.Errorf("settlement request: %w", err)
	}

	var settled settlementResponse
	if err := json.Unmarshal(respBody, &settled); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}
	if resp.StatusCode != http.StatusOK || !settled.Success {
		return "", fmt.Errorf("%w: %s", ErrSettlementFailed, settled.Error)
	}

	c.mu.Lock()
	c.tokens[settled.Resource] = cachedToken{
		token:     settled.AccessToken,
		expiresAt: settled.ExpiresAt,
	}
	c.mu.Unlock()

	return settled.AccessToken, nil
}

// cachedTokenFor returns an unexpired cached token for the resource a
// path is known to serve, or "".
func (c *Client) cachedTokenFor(path string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	resource, ok := c.resources[path]
	if !ok {
		return ""
	}
	tok, ok := c.tokens[resource]
	if !ok {
		return ""
	}
	if time.Now().After(tok.expiresAt) {
		delete(c.tokens, resource)
		return ""
	}
	return tok.token
}

func (c *Client) do(ctx context.Context, method, rawurl string, body []byte, headers map[string]string) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawurl, reader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp, respBody, nil
}
