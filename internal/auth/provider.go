package auth

import (
	"context"
	"sync"
	"time"

	"github.com/careops/callbell/internal/identity"
	"github.com/careops/callbell/pkg/callbell"
)

// Provider composes per-identity token caches with credential flows to
// expose one "get current valid token" operation. The flow is an explicit
// argument: a session that starts without a delegation header and later
// gains one (or vice versa) simply passes a different flow. Caches are
// keyed by the flow's CacheKey, so concurrent sessions for different
// identities sharing one Provider never serve each other's tokens.
type Provider struct {
	mu     sync.Mutex
	caches map[string]*TokenCache
	logger callbell.Logger
}

// NewProvider creates a Provider with no cached tokens.
// Panics if logger is nil; pass logging.NewNullLogger() to discard output.
func NewProvider(logger callbell.Logger) *Provider {
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Provider{
		caches: make(map[string]*TokenCache),
		logger: logger,
	}
}

// Provide returns a usable token, refreshing through flow when the cached
// one is inside the refresh buffer. Exactly one acquisition attempt is made
// per call that triggers a refresh; failed exchanges are not retried here.
func (p *Provider) Provide(ctx context.Context, flow callbell.CredentialFlow) (callbell.AccessToken, error) {
	tok, err := p.cacheFor(flow).GetOrRefresh(ctx, func(ctx context.Context) (callbell.AccessToken, error) {
		p.logger.Verbose("refreshing SQL access token via %s", flow)
		fresh, err := flow.Acquire(ctx)
		if err != nil {
			return callbell.AccessToken{}, err
		}
		identity.LogTokenIdentity(p.logger, fresh.Token, flow.String())
		if until := time.Until(fresh.ExpiresOn); until < callbell.RefreshBuffer {
			p.logger.Info("Warning: %s issued a token expiring in %v", flow, until.Round(time.Second))
		}
		return fresh, nil
	})
	if err != nil {
		return callbell.AccessToken{}, err
	}
	return tok, nil
}

// cacheFor returns the cache slot for the flow's identity, creating it on
// first use.
func (p *Provider) cacheFor(flow callbell.CredentialFlow) *TokenCache {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := flow.CacheKey()
	cache, ok := p.caches[key]
	if !ok {
		cache = NewTokenCache()
		p.caches[key] = cache
	}
	return cache
}

// Bind fixes a credential flow and returns a TokenSource for components
// that only need the single provide operation, such as the connection
// factory. Bindings with the same cache key share one cached token;
// bindings with different keys are fully isolated.
func (p *Provider) Bind(flow callbell.CredentialFlow) callbell.TokenSource {
	return &boundSource{provider: p, flow: flow}
}

type boundSource struct {
	provider *Provider
	flow     callbell.CredentialFlow
}

func (s *boundSource) Provide(ctx context.Context) (callbell.AccessToken, error) {
	return s.provider.Provide(ctx, s.flow)
}
