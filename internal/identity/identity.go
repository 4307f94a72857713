// Package identity delegates caller authentication to the external
// identity provider. Session and token mechanics are not reimplemented
// here; a bearer token is handed to the provider, which either yields a
// stable account identifier or rejects it.
package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrInvalidToken is returned when the identity provider rejects a token.
var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is the authenticated principal supplied by the provider.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// Provider verifies bearer tokens against the identity collaborator.
type Provider interface {
	// Verify validates the raw bearer token. Returns ErrInvalidToken for
	// rejected tokens; any other error is a provider availability problem.
	Verify(ctx context.Context, token string) (*Identity, error)
}
