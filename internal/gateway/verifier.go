package gateway

import (
	"context"
	"strings"
)

// CredentialVerifier decides whether a payment credential is good for
// settling a challenge. A production deployment plugs a real payment
// processor in here.
type CredentialVerifier interface {
	Verify(ctx context.Context, credential string) bool
}

// PrefixVerifier accepts credentials bearing a recognized test prefix
// or matching a configured API key. It stands in for real payment
// verification.
type PrefixVerifier struct {
	Prefix string // defaults to "test_"
	APIKey string
}

func (v PrefixVerifier) Verify(_ context.Context, credential string) bool {
	prefix := v.Prefix
	if prefix == "" {
		prefix = "test_"
	}
	if strings.HasPrefix(credential, prefix) {
		return true
	}
	return v.APIKey != "" && credential == v.APIKey
}
