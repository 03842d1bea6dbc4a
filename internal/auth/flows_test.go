package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/careops/callbell/pkg/callbell"
)

func TestNewServicePrincipalFlow_RequiresAllParams(t *testing.T) {
	tests := []struct {
		name    string
		creds   ClientCredentials
		wantErr bool
	}{
		{
			name:    "all params provided",
			creds:   ClientCredentials{TenantID: "tenant-id", ClientID: "client-id", ClientSecret: "secret"},
			wantErr: false,
		},
		{
			name:    "missing tenant ID",
			creds:   ClientCredentials{ClientID: "client-id", ClientSecret: "secret"},
			wantErr: true,
		},
		{
			name:    "missing client ID",
			creds:   ClientCredentials{TenantID: "tenant-id", ClientSecret: "secret"},
			wantErr: true,
		},
		{
			name:    "missing client secret",
			creds:   ClientCredentials{TenantID: "tenant-id", ClientID: "client-id"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow, err := NewServicePrincipalFlow(tt.creds)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, callbell.ErrInvalidConfig) {
					t.Errorf("error %v should wrap ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if flow == nil {
				t.Fatal("expected non-nil flow")
			}
		})
	}
}

func TestNewDelegatedFlow_RequiresAssertion(t *testing.T) {
	creds := ClientCredentials{TenantID: "tenant-id", ClientID: "client-id", ClientSecret: "secret"}

	if _, err := NewDelegatedFlow(creds, ""); !errors.Is(err, callbell.ErrInvalidConfig) {
		t.Errorf("empty assertion: got %v, want ErrInvalidConfig", err)
	}

	flow, err := NewDelegatedFlow(creds, "user-assertion-jwt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flow == nil {
		t.Fatal("expected non-nil flow")
	}
}

func TestFlowString_OmitsSecret(t *testing.T) {
	creds := ClientCredentials{TenantID: "tenant-id", ClientID: "client-id", ClientSecret: "super-secret-value"}

	sp, err := NewServicePrincipalFlow(creds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	del, err := NewDelegatedFlow(creds, "assertion")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, s := range []string{sp.String(), del.String()} {
		if strings.Contains(s, "super-secret-value") {
			t.Errorf("flow description %q leaks the client secret", s)
		}
		if strings.Contains(s, "assertion") {
			t.Errorf("flow description %q leaks the user assertion", s)
		}
		if !strings.Contains(s, "tenant-id") || !strings.Contains(s, "client-id") {
			t.Errorf("flow description %q should identify tenant and client", s)
		}
	}
}

func TestFlowCacheKey_SeparatesIdentities(t *testing.T) {
	creds := ClientCredentials{TenantID: "tenant-id", ClientID: "client-id", ClientSecret: "super-secret-value"}

	sp, err := NewServicePrincipalFlow(creds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	userA, err := NewDelegatedFlow(creds, "assertion-of-user-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	userB, err := NewDelegatedFlow(creds, "assertion-of-user-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	userARepeat, err := NewDelegatedFlow(creds, "assertion-of-user-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sp.CacheKey() == userA.CacheKey() {
		t.Error("service principal and delegated user share a cache key")
	}
	if userA.CacheKey() == userB.CacheKey() {
		t.Error("two delegated users share a cache key")
	}
	if userA.CacheKey() != userARepeat.CacheKey() {
		t.Error("same assertion should produce the same cache key")
	}

	for _, key := range []string{sp.CacheKey(), userA.CacheKey()} {
		if strings.Contains(key, "super-secret-value") || strings.Contains(key, "assertion-of-user-a") {
			t.Errorf("cache key %q leaks credential material", key)
		}
	}
}
