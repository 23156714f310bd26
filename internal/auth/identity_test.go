package auth

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kernfi/kernfi/internal/model"
	"github.com/kernfi/kernfi/internal/token"
)

func sampleClaims() *token.Claims {
	return &token.Claims{
		Subject: "user-1",
		Email:   "user@example.com",
		Role:    "client",
		Raw: map[string]any{
			"sub":   "user-1",
			"email": "user@example.com",
			"role":  "client",
		},
	}
}

func TestNewIdentity_Deterministic(t *testing.T) {
	first := NewIdentity(sampleClaims(), "org-1")
	second := NewIdentity(sampleClaims(), "org-1")

	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical claims produced different identities:\n%+v\n%+v", first, second)
	}

	if first.UserID != "user-1" {
		t.Errorf("expected UserID 'user-1', got %q", first.UserID)
	}
	if first.OrgID != "org-1" {
		t.Errorf("expected OrgID 'org-1', got %q", first.OrgID)
	}
	if first.Email != "user@example.com" {
		t.Errorf("expected email carried over, got %q", first.Email)
	}
}

func TestNewIdentity_NormalizesRole(t *testing.T) {
	testCases := []struct {
		raw  string
		want model.Role
	}{
		{raw: "admin", want: model.RoleAdmin},
		{raw: "client", want: model.RoleClient},
		{raw: "superuser", want: model.RoleClient},
		{raw: "Admin", want: model.RoleClient},
		{raw: "", want: model.RoleClient},
	}

	for _, tc := range testCases {
		t.Run("role "+tc.raw, func(t *testing.T) {
			claims := sampleClaims()
			claims.Role = tc.raw
			claims.Raw["role"] = tc.raw

			id := NewIdentity(claims, "org-1")
			if id.Role != tc.want {
				t.Errorf("role %q: expected %q, got %q", tc.raw, tc.want, id.Role)
			}
			if id.RawClaims["role"] != tc.raw {
				t.Errorf("expected original role %q preserved in RawClaims, got %v", tc.raw, id.RawClaims["role"])
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	admin := &Identity{UserID: "u1", Role: model.RoleAdmin}
	client := &Identity{UserID: "u2", Role: model.RoleClient}

	testCases := []struct {
		name    string
		id      *Identity
		role    model.Role
		wantErr bool
	}{
		{name: "admin satisfies admin", id: admin, role: model.RoleAdmin},
		{name: "client satisfies client", id: client, role: model.RoleClient},
		{name: "client lacks admin", id: client, role: model.RoleAdmin, wantErr: true},
		{name: "admin does not stand in for client", id: admin, role: model.RoleClient, wantErr: true},
		{name: "nil identity", id: nil, role: model.RoleClient, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := RequireRole(tc.id, tc.role)
			if tc.wantErr {
				if !errors.Is(err, ErrForbidden) {
					t.Fatalf("expected ErrForbidden, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestIsAdmin(t *testing.T) {
	if !(&Identity{Role: model.RoleAdmin}).IsAdmin() {
		t.Error("expected admin identity to report IsAdmin")
	}
	if (&Identity{Role: model.RoleClient}).IsAdmin() {
		t.Error("expected client identity to not report IsAdmin")
	}
}

func TestScopeFilter(t *testing.T) {
	id := NewIdentity(sampleClaims(), "org-42")
	if got := ScopeFilter(id); got != "org-42" {
		t.Errorf("expected scope 'org-42', got %q", got)
	}
}
