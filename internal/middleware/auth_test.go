package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/thumbgate/thumbgate/internal/auth"
	"github.com/thumbgate/thumbgate/internal/identity"
	"github.com/thumbgate/thumbgate/internal/identity/mock"
)

// =============================================================================
// Auth Middleware Tests
// =============================================================================

func newTestAuthMiddleware(provider identity.Provider) *AuthMiddleware {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthMiddleware(provider, logger)
}

func TestRequireAccount_ValidToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := mock.New(logger)
	userID := uuid.New()
	provider.Register("good-token", identity.Identity{UserID: userID, Email: "fox@example.com"})

	mw := newTestAuthMiddleware(provider)

	var gotID *identity.Identity
	handler := mw.RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = auth.GetAccount(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/v1/usage", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotID == nil || gotID.UserID != userID {
		t.Errorf("expected principal %s in context, got %v", userID, gotID)
	}
}

func TestRequireAccount_MissingToken(t *testing.T) {
	provider := mock.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	mw := newTestAuthMiddleware(provider)

	called := false
	handler := mw.RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("POST", "/api/v1/usage", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if called {
		t.Error("handler must not run without a token")
	}
	if provider.VerifyCalls != 0 {
		t.Error("provider should not be called without a token")
	}
}

func TestRequireAccount_InvalidToken(t *testing.T) {
	provider := mock.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	mw := newTestAuthMiddleware(provider)

	handler := mw.RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run with an invalid token")
	}))

	req := httptest.NewRequest("POST", "/api/v1/usage", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAccount_ProviderOutageDoesNotBypassAuth(t *testing.T) {
	provider := mock.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	provider.VerifyError = errors.New("identity service unreachable")
	mw := newTestAuthMiddleware(provider)

	handler := mw.RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run when the provider is down")
	}))

	req := httptest.NewRequest("POST", "/api/v1/usage", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestRequireAccount_MalformedAuthorizationHeader(t *testing.T) {
	provider := mock.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	mw := newTestAuthMiddleware(provider)

	handler := mw.RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run with a malformed header")
	}))

	for _, header := range []string{"good-token", "Basic abc123", "Bearer"} {
		req := httptest.NewRequest("POST", "/api/v1/usage", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}
