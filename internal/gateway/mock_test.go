package gateway

import "context"

type mockVerifier struct {
	VerifyBool bool
}

func (m mockVerifier) Verify(_ context.Context, _ string) bool {
	return m.VerifyBool
}

type mockAccepter struct {
	AcceptErr error
}

func (m mockAccepter) Accept(_, _ string) error {
	return m.AcceptErr
}
