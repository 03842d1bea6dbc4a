// Package session composes one authenticated data-access session per
// dashboard user: resolved credential flow, identity context, executor,
// and uploader. The dashboard layer owns one Session per user and passes
// it down — there is no ambient per-user state.
package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/careops/callbell/internal/auth"
	"github.com/careops/callbell/internal/config"
	"github.com/careops/callbell/internal/db"
	"github.com/careops/callbell/internal/identity"
	"github.com/careops/callbell/internal/staging"
	"github.com/careops/callbell/pkg/callbell"
)

// Session is a per-user handle over the token-authenticated SQL layer.
type Session struct {
	user     *identity.User
	identity *callbell.IdentityContext
	flow     callbell.CredentialFlow
	executor *db.Executor
	uploader *staging.Uploader
}

// New resolves the credential flow from the inbound request headers,
// builds the identity context, and connects. The provider is process-wide
// shared state: its token caches are keyed per identity, so concurrent
// sessions reuse tokens only with sessions for the same identity.
//
// Flow selection: a delegation token header selects the on-behalf-of
// flow; its absence selects the client-credentials flow. The HTTP layer
// resolves this per request — a session that gains or loses the header
// switches flow transparently on the next New.
func New(ctx context.Context, cfg *config.Config, headers http.Header, provider *auth.Provider, logger callbell.Logger) (*Session, error) {
	if provider == nil {
		panic("provider cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	creds := auth.ClientCredentials{
		TenantID:     cfg.AzureTenantID,
		ClientID:     cfg.AzureClientID,
		ClientSecret: cfg.AzureClientSecret,
	}

	flow, err := resolveFlow(creds, headers)
	if err != nil {
		return nil, err
	}

	user, err := resolveUser(cfg, headers)
	if err != nil {
		return nil, err
	}

	source := provider.Bind(flow)
	factory := db.NewFactory(cfg.QueryConfig(), source, logger)

	pool, err := factory.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("session connect: %w", err)
	}

	executor := db.NewExecutor(pool, cfg.SQLDatabase, logger)
	return &Session{
		user:     user,
		identity: identity.Context(user, cfg.AppName),
		flow:     flow,
		executor: executor,
		uploader: staging.NewUploader(executor, logger),
	}, nil
}

func resolveFlow(creds auth.ClientCredentials, headers http.Header) (callbell.CredentialFlow, error) {
	if headers != nil {
		if token := identity.DelegationToken(headers); token != "" {
			return auth.NewDelegatedFlow(creds, token)
		}
	}
	return auth.NewServicePrincipalFlow(creds)
}

func resolveUser(cfg *config.Config, headers http.Header) (*identity.User, error) {
	if cfg.LocalDev {
		return identity.MockUser(cfg.DevUserEmail), nil
	}
	if headers == nil {
		return nil, nil
	}
	return identity.FromHeaders(headers)
}

// User returns the authenticated user, or nil for service-principal
// operation.
func (s *Session) User() *identity.User {
	return s.user
}

// Identity returns the session's identity context.
func (s *Session) Identity() *callbell.IdentityContext {
	return s.identity
}

// Flow returns the credential flow resolved for this session.
func (s *Session) Flow() callbell.CredentialFlow {
	return s.flow
}

// Executor returns the query executor.
func (s *Session) Executor() *db.Executor {
	return s.executor
}

// Uploader returns the staging uploader.
func (s *Session) Uploader() *staging.Uploader {
	return s.uploader
}

// Close releases the session's connection pool.
func (s *Session) Close() error {
	return s.executor.Close()
}
