package gateway

import "errors"

var (
	ErrUnknownChallenge = errors.New("invalid challenge ID")
	ErrAlreadySettled   = errors.New("payment already processed")
	ErrChallengeExpired = errors.New("challenge expired")
	ErrPaymentRejected  = errors.New("payment failed")
)
