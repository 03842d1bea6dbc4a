// Package auth acquires and caches Azure AD access tokens for SQL access.
//
// Two credential flows are supported: the on-behalf-of exchange of an
// inbound user assertion (delegated identity, when the app runs behind a
// reverse-proxy authentication layer) and the direct client-credentials
// grant (service identity, local development and scheduled pipelines).
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/careops/callbell/pkg/callbell"
)

// TokenCache holds a single cached access token and decides when a refresh
// is due. One cache serves one identity; concurrent sessions for that
// identity call into it simultaneously, so mutation of the cached slot is
// serialized with a mutex. A redundant refresh on a tight race would be
// acceptable; a torn token value never is.
type TokenCache struct {
	mu  sync.Mutex
	tok callbell.AccessToken

	// now is swappable for tests.
	now func() time.Time
}

// NewTokenCache creates an empty cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{now: time.Now}
}

// GetOrRefresh returns the cached token if it is still outside the refresh
// buffer, otherwise invokes refresh exactly once to obtain a replacement.
// The refreshed token is stored and returned as-is: if the identity
// provider issues a token expiring inside the buffer, it is passed through
// without re-validation.
func (c *TokenCache) GetOrRefresh(ctx context.Context, refresh func(ctx context.Context) (callbell.AccessToken, error)) (callbell.AccessToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tok.Token != "" && c.now().Before(c.tok.ExpiresOn.Add(-callbell.RefreshBuffer)) {
		return c.tok, nil
	}

	tok, err := refresh(ctx)
	if err != nil {
		return callbell.AccessToken{}, err
	}
	c.tok = tok
	return tok, nil
}
