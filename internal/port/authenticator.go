package port

import (
	"context"
	"errors"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator is the external accounts collaborator. Credential storage,
// hashing, and token issuance all live behind it; this service only decides
// whether the attempt may reach it at all.
type Authenticator interface {
	// Authenticate verifies the credentials and returns the user id.
	Authenticate(ctx context.Context, email, password string) (string, error)
}

type AuthenticatorFunc func(ctx context.Context, email, password string) (string, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, email, password string) (string, error) {
	return f(ctx, email, password)
}
