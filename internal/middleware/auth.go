// Package middleware contains HTTP middleware for the Thumbgate service.
//
// Middleware functions follow the standard Go pattern of wrapping
// http.Handler and are composed with Stack.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/thumbgate/thumbgate/internal/auth"
	"github.com/thumbgate/thumbgate/internal/handler"
	"github.com/thumbgate/thumbgate/internal/identity"
)

// AuthMiddleware authenticates requests by delegating bearer tokens to
// the external identity provider. No session state is kept here.
type AuthMiddleware struct {
	provider identity.Provider
	logger   *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(provider identity.Provider, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		provider: provider,
		logger:   logger,
	}
}

// RequireAccount verifies the Authorization bearer token and stores the
// resolved principal in the request context. Requests without a valid
// principal get a 401; identity-provider outages get a 500 rather than
// an auth bypass.
func (m *AuthMiddleware) RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}

		id, err := m.provider.Verify(r.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidToken) {
				handler.UnauthorizedResponse(w, r, m.logger)
				return
			}
			m.logger.Error("identity provider unavailable", "error", err)
			handler.InternalErrorResponse(w, r, m.logger, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetAccount(r.Context(), id)))
	})
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Stack composes multiple middleware functions into a single middleware.
// The first middleware in the slice is the outermost.
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
