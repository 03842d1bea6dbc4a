// Package identity extracts the authenticated end user from the headers
// injected by the platform's reverse-proxy authentication layer (Azure
// App Service / Container Apps Easy Auth) and builds the identity context
// propagated into database sessions.
package identity

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/careops/callbell/pkg/callbell"
)

// Headers injected by the authentication layer.
const (
	// HeaderDelegationToken carries the signed-in user's AAD access
	// token. Its presence selects the on-behalf-of credential flow.
	HeaderDelegationToken = "X-Ms-Token-Aad-Access-Token"

	// Direct shortcut headers (fast path).
	HeaderPrincipalName = "X-Ms-Client-Principal-Name"
	HeaderPrincipalID   = "X-Ms-Client-Principal-Id"

	// HeaderPrincipal is the base64-encoded JSON claims document
	// (fallback when the shortcuts are absent).
	HeaderPrincipal = "X-Ms-Client-Principal"
)

// Claim type URIs inside the principal document.
const (
	claimEmail    = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"
	claimName     = "name"
	claimObjectID = "http://schemas.microsoft.com/identity/claims/objectidentifier"
)

// User is the authenticated caller as seen by the proxy layer.
type User struct {
	OID   string
	Email string
	Name  string
}

// DelegationToken returns the user's AAD access token from the request
// headers, or "" when the request is unauthenticated (service-principal
// operation).
func DelegationToken(h http.Header) string {
	return h.Get(HeaderDelegationToken)
}

// FromHeaders extracts the authenticated user. Returns nil (no error) when
// no identity headers are present at all.
func FromHeaders(h http.Header) (*User, error) {
	email := h.Get(HeaderPrincipalName)
	oid := h.Get(HeaderPrincipalID)
	if email != "" && oid != "" {
		return &User{
			OID:   oid,
			Email: email,
			Name:  strings.SplitN(email, "@", 2)[0],
		}, nil
	}

	principal := h.Get(HeaderPrincipal)
	if principal == "" {
		return nil, nil
	}
	return parsePrincipal(principal)
}

// parsePrincipal decodes the base64 JSON claims document and extracts the
// email, name, and object identifier claims.
func parsePrincipal(encoded string) (*User, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode client principal header: %w", err)
	}

	var doc struct {
		Claims []struct {
			Typ string `json:"typ"`
			Val string `json:"val"`
		} `json:"claims"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse client principal header: %w", err)
	}

	user := &User{}
	for _, c := range doc.Claims {
		switch c.Typ {
		case claimEmail:
			user.Email = c.Val
		case claimName:
			user.Name = c.Val
		case claimObjectID:
			user.OID = c.Val
		}
	}

	if user.OID == "" && user.Email == "" && user.Name == "" {
		return nil, nil
	}
	return user, nil
}

// MockUser is the local-development identity used when no authentication
// layer fronts the app.
func MockUser(email string) *User {
	if email == "" {
		email = "dev@example.com"
	}
	return &User{
		OID:   "local-dev-guid-12345",
		Email: email,
		Name:  strings.SplitN(email, "@", 2)[0],
	}
}

// Context builds the session identity context for a user. Absent fields
// are dropped (the session-context mechanism cannot store NULL); the
// source application tag is always present.
func Context(user *User, sourceApp string) *callbell.IdentityContext {
	ctx := callbell.NewIdentityContext().Set(callbell.ContextKeySourceApp, sourceApp)
	if user != nil {
		ctx.Set(callbell.ContextKeyUser, user.Email)
		ctx.Set(callbell.ContextKeyUserOID, user.OID)
	}
	return ctx
}
