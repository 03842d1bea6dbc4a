package session

import (
	"net/http"
	"testing"

	"github.com/careops/callbell/internal/auth"
	"github.com/careops/callbell/internal/config"
	"github.com/careops/callbell/internal/identity"
)

var testCreds = auth.ClientCredentials{
	TenantID:     "tenant-id",
	ClientID:     "client-id",
	ClientSecret: "secret",
}

func TestResolveFlow_DelegationHeaderSelectsOnBehalfOf(t *testing.T) {
	h := http.Header{}
	h.Set(identity.HeaderDelegationToken, "user-assertion-jwt")

	flow, err := resolveFlow(testCreds, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := flow.(*auth.DelegatedFlow); !ok {
		t.Errorf("flow is %T, want *auth.DelegatedFlow", flow)
	}
}

func TestResolveFlow_NoHeaderSelectsServicePrincipal(t *testing.T) {
	tests := []struct {
		name    string
		headers http.Header
	}{
		{"nil headers", nil},
		{"empty headers", http.Header{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow, err := resolveFlow(testCreds, tt.headers)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, ok := flow.(*auth.ServicePrincipalFlow); !ok {
				t.Errorf("flow is %T, want *auth.ServicePrincipalFlow", flow)
			}
		})
	}
}

func TestResolveUser_LocalDevUsesMock(t *testing.T) {
	cfg := &config.Config{LocalDev: true, DevUserEmail: "dev@example.org"}

	// A delegation header present alongside local_dev must not win.
	h := http.Header{}
	h.Set(identity.HeaderPrincipalName, "real@example.org")
	h.Set(identity.HeaderPrincipalID, "oid-real")

	user, err := resolveUser(cfg, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "dev@example.org" {
		t.Errorf("user = %+v, want the mocked local-dev identity", user)
	}
}

func TestResolveUser_HeadersWhenNotLocalDev(t *testing.T) {
	h := http.Header{}
	h.Set(identity.HeaderPrincipalName, "nurse@example.org")
	h.Set(identity.HeaderPrincipalID, "oid-1")

	user, err := resolveUser(&config.Config{}, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil || user.OID != "oid-1" {
		t.Errorf("user = %+v, want the header identity", user)
	}
}

func TestResolveUser_NoHeadersNoUser(t *testing.T) {
	user, err := resolveUser(&config.Config{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil for service-principal operation", user)
	}
}
