package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kernfi/kernfi/internal/auth"
	"github.com/kernfi/kernfi/internal/metrics"
	"github.com/kernfi/kernfi/internal/model"
	"github.com/kernfi/kernfi/internal/repository"
	"github.com/kernfi/kernfi/internal/token"
)

const testSecret = token.Secret("middleware-test-secret")

// fakeUserResolver serves user lookups from a map.
type fakeUserResolver struct {
	users map[string]*model.User
}

func (f *fakeUserResolver) GetUserByID(_ context.Context, id string) (*model.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func newTestAuthMiddleware(t *testing.T, rec metrics.Recorder) func(http.Handler) http.Handler {
	t.Helper()

	resolver := &fakeUserResolver{users: map[string]*model.User{
		"user-1": {
			ID:             "user-1",
			OrganizationID: "org-1",
			Email:          "user@example.com",
			Role:           model.RoleClient,
		},
	}}

	verifier := token.NewVerifier(testSecret, token.DefaultAudience)
	authenticator := auth.NewAuthenticator(verifier, resolver)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return Auth(AuthConfig{
		Logger:        logger,
		Authenticator: authenticator,
		Metrics:       rec,
	})
}

func signTestToken(t *testing.T, secret token.Secret, subject string) string {
	t.Helper()

	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   subject,
		"aud":   token.DefaultAudience,
		"email": "user@example.com",
		"role":  "client",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})

	signed, err := tok.SignedString([]byte(secret.Value()))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAuth_ValidToken(t *testing.T) {
	rec := metrics.NewInMemory()
	mw := newTestAuthMiddleware(t, rec)

	var captured *auth.Identity
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = auth.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, testSecret, "user-1"))
	res := httptest.NewRecorder()

	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.Code)
	}
	if captured == nil {
		t.Fatal("identity not injected into context")
	}
	if captured.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", captured.UserID)
	}
	if captured.OrgID != "org-1" {
		t.Errorf("OrgID = %q, want org-1", captured.OrgID)
	}
	if got := rec.Snapshot().AuthSuccesses; got != 1 {
		t.Errorf("auth successes = %d, want 1", got)
	}
}

func TestAuth_Failures(t *testing.T) {
	testCases := []struct {
		name       string
		header     string
		wantReason string
	}{
		{
			name:       "missing header",
			header:     "",
			wantReason: "missing_credential",
		},
		{
			name:       "not a bearer credential",
			header:     "Basic dXNlcjpwYXNz",
			wantReason: "missing_credential",
		},
		{
			name:       "garbage token",
			header:     "Bearer not.a.token",
			wantReason: "invalid_token",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := metrics.NewInMemory()
			mw := newTestAuthMiddleware(t, rec)

			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler should not be reached")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			res := httptest.NewRecorder()

			handler.ServeHTTP(res, req)

			if res.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", res.Code)
			}
			if got := rec.Snapshot().AuthFailures[tc.wantReason]; got != 1 {
				t.Errorf("failure count for %q = %d, want 1", tc.wantReason, got)
			}
		})
	}
}

func TestAuth_WrongSecret(t *testing.T) {
	rec := metrics.NewInMemory()
	mw := newTestAuthMiddleware(t, rec)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, token.Secret("other-secret"), "user-1"))
	res := httptest.NewRecorder()

	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.Code)
	}
	if got := rec.Snapshot().AuthFailures["invalid_token"]; got != 1 {
		t.Errorf("invalid_token failures = %d, want 1", got)
	}
}

func TestAuth_UnknownSubject(t *testing.T) {
	rec := metrics.NewInMemory()
	mw := newTestAuthMiddleware(t, rec)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	// Token verifies but no user row exists for the subject.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, testSecret, "ghost-user"))
	res := httptest.NewRecorder()

	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.Code)
	}
	if got := rec.Snapshot().AuthFailures["unknown_subject"]; got != 1 {
		t.Errorf("unknown_subject failures = %d, want 1", got)
	}
}

func TestAuth_UniformErrorBody(t *testing.T) {
	mw := newTestAuthMiddleware(t, metrics.NewNoop())

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	var bodies []string
	for _, header := range []string{
		"",
		"Bearer not.a.token",
		"Bearer " + signTestToken(t, token.Secret("other-secret"), "user-1"),
		"Bearer " + signTestToken(t, testSecret, "ghost-user"),
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		bodies = append(bodies, res.Body.String())
	}

	// Every failure mode returns the same body so callers cannot probe
	// which stage rejected them.
	for i := 1; i < len(bodies); i++ {
		if bodies[i] != bodies[0] {
			t.Errorf("body %d differs: %q vs %q", i, bodies[i], bodies[0])
		}
	}
	if !strings.Contains(bodies[0], `"UNAUTHORIZED"`) {
		t.Errorf("body missing UNAUTHORIZED code: %s", bodies[0])
	}
}
