// Package auth provides authentication context helpers.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/thumbgate/thumbgate/internal/identity"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const accountContextKey contextKey = "account"

// GetAccount retrieves the authenticated principal from the context.
// Returns nil if no principal is present.
func GetAccount(ctx context.Context) *identity.Identity {
	id, ok := ctx.Value(accountContextKey).(*identity.Identity)
	if !ok {
		return nil
	}
	return id
}

// GetAccountFromRequest retrieves the authenticated principal from the
// request context.
func GetAccountFromRequest(r *http.Request) *identity.Identity {
	return GetAccount(r.Context())
}

// SetAccount stores a principal in the context. Called by the auth
// middleware after token verification.
func SetAccount(ctx context.Context, id *identity.Identity) context.Context {
	return context.WithValue(ctx, accountContextKey, id)
}
