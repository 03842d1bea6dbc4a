package auth

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/careops/callbell/pkg/callbell"
)

// SQLDatabaseScope is the OAuth scope for Azure SQL Database.
// This is the resource identifier Azure AD uses to issue tokens for SQL access.
const SQLDatabaseScope = "https://database.windows.net/.default"

// ClientCredentials holds the app registration used by both flows.
type ClientCredentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

func (c ClientCredentials) validate() error {
	if c.TenantID == "" || c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("tenantID, clientID, and clientSecret are required: %w", callbell.ErrInvalidConfig)
	}
	return nil
}

// ServicePrincipalFlow acquires tokens directly for the service identity via
// the client-credentials grant. This is the fallback when no delegated user
// token is present (local development, scheduled pipelines).
type ServicePrincipalFlow struct {
	creds      ClientCredentials
	credential azcore.TokenCredential
}

// NewServicePrincipalFlow creates a client-credentials flow.
// All three credential parameters are required.
func NewServicePrincipalFlow(creds ClientCredentials) (*ServicePrincipalFlow, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}

	cred, err := azidentity.NewClientSecretCredential(creds.TenantID, creds.ClientID, creds.ClientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create client secret credential: %w", err)
	}

	return &ServicePrincipalFlow{creds: creds, credential: cred}, nil
}

// Acquire performs one client-credentials token acquisition.
func (f *ServicePrincipalFlow) Acquire(ctx context.Context) (callbell.AccessToken, error) {
	tok, err := f.credential.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{SQLDatabaseScope},
	})
	if err != nil {
		return callbell.AccessToken{}, fmt.Errorf("client-credentials token acquisition: %w: %w", callbell.ErrCredentialExchange, err)
	}
	return callbell.AccessToken{Token: tok.Token, ExpiresOn: tok.ExpiresOn}, nil
}

// CacheKey identifies the service principal itself: every
// client-credentials flow for the same app registration shares one
// cached token.
func (f *ServicePrincipalFlow) CacheKey() string {
	return fmt.Sprintf("client-credentials|%s|%s", f.creds.TenantID, f.creds.ClientID)
}

func (f *ServicePrincipalFlow) String() string {
	return fmt.Sprintf("ServicePrincipal(tenant=%s, client=%s)", f.creds.TenantID, f.creds.ClientID)
}

// DelegatedFlow exchanges an inbound user access token for a SQL-scoped
// token via the on-behalf-of protocol, preserving the user's identity in
// the issued token. The user assertion comes from the reverse-proxy
// authentication header of the current request.
type DelegatedFlow struct {
	creds      ClientCredentials
	credential azcore.TokenCredential
	cacheKey   string
}

// NewDelegatedFlow creates an on-behalf-of flow for the given user assertion.
// A flow is bound to one assertion; the HTTP layer constructs a fresh flow
// per request.
func NewDelegatedFlow(creds ClientCredentials, userAssertion string) (*DelegatedFlow, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}
	if userAssertion == "" {
		return nil, fmt.Errorf("user assertion is required for the on-behalf-of flow: %w", callbell.ErrInvalidConfig)
	}

	cred, err := azidentity.NewOnBehalfOfCredentialWithSecret(creds.TenantID, creds.ClientID, userAssertion, creds.ClientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create on-behalf-of credential: %w", err)
	}

	return &DelegatedFlow{
		creds:      creds,
		credential: cred,
		cacheKey:   fmt.Sprintf("on-behalf-of|%s|%s|%x", creds.TenantID, creds.ClientID, sha256.Sum256([]byte(userAssertion))),
	}, nil
}

// Acquire performs one on-behalf-of exchange.
func (f *DelegatedFlow) Acquire(ctx context.Context) (callbell.AccessToken, error) {
	tok, err := f.credential.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{SQLDatabaseScope},
	})
	if err != nil {
		return callbell.AccessToken{}, fmt.Errorf("on-behalf-of token acquisition: %w: %w", callbell.ErrCredentialExchange, err)
	}
	return callbell.AccessToken{Token: tok.Token, ExpiresOn: tok.ExpiresOn}, nil
}

// CacheKey identifies the delegated user by a digest of their inbound
// assertion: tokens exchanged for different users never share a cache
// slot, and the raw assertion never appears in the key.
func (f *DelegatedFlow) CacheKey() string {
	return f.cacheKey
}

func (f *DelegatedFlow) String() string {
	return fmt.Sprintf("Delegated(tenant=%s, client=%s)", f.creds.TenantID, f.creds.ClientID)
}
