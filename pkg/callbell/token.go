package callbell

import (
	"context"
	"time"
)

// RefreshBuffer is how long before expiry a cached token is considered due
// for refresh. A token returned by a TokenSource always has at least this
// much lifetime left, unless the identity provider itself issued a shorter
// one (passed through as-is, never re-validated).
const RefreshBuffer = 300 * time.Second

// TokenSource supplies a current, usable access token for database
// authentication. Implementations must be safe for concurrent use:
// the dashboard host invokes data loads from multiple user sessions
// against a shared process.
type TokenSource interface {
	// Provide returns a token that is valid at the moment of issuance.
	// Exactly one acquisition attempt is made when a refresh is due;
	// failures surface immediately wrapped in ErrCredentialExchange.
	Provide(ctx context.Context) (AccessToken, error)
}

// CredentialFlow acquires a fresh token from the identity provider.
// Two variants exist: the on-behalf-of exchange of an inbound user
// assertion, and the direct client-credentials grant. The flow for a
// request is resolved once by the HTTP layer and passed down explicitly;
// it is never re-derived from ambient state.
type CredentialFlow interface {
	// Acquire performs one token acquisition.
	Acquire(ctx context.Context) (AccessToken, error)

	// CacheKey returns a stable key identifying the identity this flow
	// acquires tokens for. Cached tokens are shared only between flows
	// returning the same key: two delegated users, or a delegated user
	// and the service principal, must never serve each other's tokens.
	// Must not include secrets or raw assertions.
	CacheKey() string

	// String returns a loggable description. Must not include secrets.
	String() string
}
