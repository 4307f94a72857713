// Package remote implements identity verification by introspecting tokens
// against the hosted identity service's user endpoint.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thumbgate/thumbgate/internal/identity"
)

// Config holds connection settings for the identity service.
type Config struct {
	// BaseURL of the identity service, e.g. "https://auth.example.com".
	BaseURL string

	// APIKey sent as the apikey header alongside the user's bearer token.
	APIKey string

	// Timeout for the introspection call. Default 5s.
	Timeout time.Duration
}

// Provider verifies tokens over HTTP.
type Provider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// New creates a remote identity provider.
func New(cfg Config, logger *slog.Logger) *Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Provider{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// userResponse is the subset of the identity service's user payload we need.
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Verify introspects the token by fetching the user it belongs to.
func (p *Provider) Verify(ctx context.Context, token string) (*identity.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("building identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, identity.ErrInvalidToken
	default:
		return nil, fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}

	var user userResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decoding identity response: %w", err)
	}

	userID, err := uuid.Parse(user.ID)
	if err != nil {
		p.logger.Warn("identity service returned malformed user id", "id", user.ID)
		return nil, identity.ErrInvalidToken
	}

	return &identity.Identity{UserID: userID, Email: user.Email}, nil
}
