package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kernfi/kernfi/internal/model"
	"github.com/kernfi/kernfi/internal/repository"
	"github.com/kernfi/kernfi/internal/token"
)

const signingSecret = token.Secret("auth-test-secret")

// stubUsers resolves subjects from an in-memory map.
type stubUsers struct {
	users map[string]*model.User
	err   error
}

func (s *stubUsers) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func mintToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func bearerClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "user-1",
		"aud":   "authenticated",
		"email": "user@example.com",
		"role":  "admin",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func newTestAuthenticator(users UserResolver) *Authenticator {
	return NewAuthenticator(token.NewVerifier(signingSecret, ""), users)
}

func TestExtractBearer(t *testing.T) {
	testCases := []struct {
		name   string
		header string
		want   string
	}{
		{name: "empty header", header: "", want: ""},
		{name: "no scheme", header: "abc.def.ghi", want: ""},
		{name: "other scheme", header: "Basic dXNlcjpwYXNz", want: ""},
		{name: "lowercase scheme", header: "bearer abc.def.ghi", want: ""},
		{name: "scheme without credential", header: "Bearer", want: ""},
		{name: "scheme with empty credential", header: "Bearer ", want: ""},
		{name: "scheme with spaces only", header: "Bearer    ", want: ""},
		{name: "well formed", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "extra padding", header: "Bearer   abc.def.ghi  ", want: "abc.def.ghi"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractBearer(tc.header); got != tc.want {
				t.Errorf("ExtractBearer(%q) = %q, want %q", tc.header, got, tc.want)
			}
		})
	}
}

func TestAuthenticate_Success(t *testing.T) {
	users := &stubUsers{users: map[string]*model.User{
		"user-1": {ID: "user-1", OrganizationID: "org-1", Email: "user@example.com", Role: model.RoleAdmin},
	}}
	a := newTestAuthenticator(users)

	header := "Bearer " + mintToken(t, signingSecret.Value(), bearerClaims())

	id, err := a.Authenticate(context.Background(), header)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if id.UserID != "user-1" {
		t.Errorf("expected UserID 'user-1', got %q", id.UserID)
	}
	if id.OrgID != "org-1" {
		t.Errorf("expected OrgID resolved from the user record, got %q", id.OrgID)
	}
	if id.Role != model.RoleAdmin {
		t.Errorf("expected admin role, got %q", id.Role)
	}
	if id.RawClaims["email"] != "user@example.com" {
		t.Errorf("expected raw claims preserved, got %v", id.RawClaims["email"])
	}
}

func TestAuthenticate_ErrorTaxonomy(t *testing.T) {
	users := &stubUsers{users: map[string]*model.User{
		"user-1": {ID: "user-1", OrganizationID: "org-1"},
	}}
	a := newTestAuthenticator(users)

	wrongAudience := bearerClaims()
	wrongAudience["aud"] = "other-service"

	noSubject := bearerClaims()
	delete(noSubject, "sub")

	unknownSubject := bearerClaims()
	unknownSubject["sub"] = "ghost"

	testCases := []struct {
		name    string
		header  string
		wantErr error
	}{
		{name: "missing header", header: "", wantErr: ErrMissingCredential},
		{name: "non-bearer header", header: "Basic dXNlcjpwYXNz", wantErr: ErrMissingCredential},
		{name: "wrong secret", header: "Bearer " + mintToken(t, "another-secret", bearerClaims()), wantErr: token.ErrInvalidToken},
		{name: "wrong audience", header: "Bearer " + mintToken(t, signingSecret.Value(), wrongAudience), wantErr: token.ErrInvalidToken},
		{name: "missing subject", header: "Bearer " + mintToken(t, signingSecret.Value(), noSubject), wantErr: token.ErrMissingSubject},
		{name: "unknown subject", header: "Bearer " + mintToken(t, signingSecret.Value(), unknownSubject), wantErr: ErrUnknownSubject},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := a.Authenticate(context.Background(), tc.header)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if id != nil {
				t.Error("expected nil identity on failure")
			}
		})
	}
}

func TestAuthenticate_ResolverFailurePassesThrough(t *testing.T) {
	resolverErr := errors.New("connection reset")
	a := newTestAuthenticator(&stubUsers{err: resolverErr})

	header := "Bearer " + mintToken(t, signingSecret.Value(), bearerClaims())

	_, err := a.Authenticate(context.Background(), header)
	if !errors.Is(err, resolverErr) {
		t.Fatalf("expected resolver error surfaced, got %v", err)
	}
}
