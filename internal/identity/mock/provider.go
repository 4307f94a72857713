package mock

import (
	"context"
	"log/slog"
	"sync"

	"github.com/thumbgate/thumbgate/internal/identity"
)

// Provider is a mock identity provider for testing and development.
// Tokens are registered up front and verified from memory.
type Provider struct {
	logger *slog.Logger

	mu     sync.RWMutex
	tokens map[string]identity.Identity

	// VerifyError, when set, is returned by every Verify call. Useful for
	// simulating an unreachable identity service.
	VerifyError error

	// VerifyCalls counts invocations for test assertions.
	VerifyCalls int
}

// New creates a new mock identity provider.
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
		tokens: make(map[string]identity.Identity),
	}
}

// Register associates a token with an identity.
func (p *Provider) Register(token string, id identity.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[token] = id
}

// Verify resolves a registered token or returns ErrInvalidToken.
func (p *Provider) Verify(ctx context.Context, token string) (*identity.Identity, error) {
	p.mu.Lock()
	p.VerifyCalls++
	p.mu.Unlock()

	if p.VerifyError != nil {
		return nil, p.VerifyError
	}

	p.mu.RLock()
	id, ok := p.tokens[token]
	p.mu.RUnlock()
	if !ok {
		return nil, identity.ErrInvalidToken
	}
	return &id, nil
}
