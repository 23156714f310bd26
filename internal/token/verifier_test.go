package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = Secret("test-signing-secret")

// signToken builds a signed HS256 token for tests.
func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "user-1",
		"aud":   "authenticated",
		"email": "user@example.com",
		"role":  "client",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func TestVerify_ValidToken(t *testing.T) {
	v := NewVerifier(testSecret, "")

	credential := signToken(t, testSecret.Value(), validClaims())

	claims, err := v.Verify(credential)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if claims.Subject != "user-1" {
		t.Errorf("expected subject 'user-1', got %q", claims.Subject)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("expected email to be extracted, got %q", claims.Email)
	}
	if claims.Role != "client" {
		t.Errorf("expected role 'client', got %q", claims.Role)
	}
}

func TestVerify_PreservesRawClaims(t *testing.T) {
	v := NewVerifier(testSecret, "")

	payload := validClaims()
	payload["org_hint"] = "acme"

	claims, err := v.Verify(signToken(t, testSecret.Value(), payload))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if claims.Raw["org_hint"] != "acme" {
		t.Errorf("expected unrecognized claim to survive in Raw, got %v", claims.Raw["org_hint"])
	}
	if claims.Raw["sub"] != "user-1" {
		t.Errorf("expected sub in Raw, got %v", claims.Raw["sub"])
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	v := NewVerifier(testSecret, "")

	credential := signToken(t, "a-different-secret", validClaims())

	_, err := v.Verify(credential)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_AudienceMismatch(t *testing.T) {
	testCases := []struct {
		name string
		aud  any
	}{
		{name: "wrong audience", aud: "other"},
		{name: "missing audience", aud: nil},
		{name: "wrong audience in list", aud: []string{"other", "service"}},
	}

	v := NewVerifier(testSecret, "")

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			claims := validClaims()
			delete(claims, "aud")
			if tc.aud != nil {
				claims["aud"] = tc.aud
			}

			_, err := v.Verify(signToken(t, testSecret.Value(), claims))
			if !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestVerify_MissingSubject(t *testing.T) {
	testCases := []struct {
		name string
		mod  func(jwt.MapClaims)
	}{
		{name: "absent sub", mod: func(c jwt.MapClaims) { delete(c, "sub") }},
		{name: "empty sub", mod: func(c jwt.MapClaims) { c["sub"] = "" }},
	}

	v := NewVerifier(testSecret, "")

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			claims := validClaims()
			tc.mod(claims)

			_, err := v.Verify(signToken(t, testSecret.Value(), claims))
			if !errors.Is(err, ErrMissingSubject) {
				t.Fatalf("expected ErrMissingSubject, got %v", err)
			}
			if errors.Is(err, ErrInvalidToken) {
				t.Error("missing subject must be distinct from ErrInvalidToken")
			}
		})
	}
}

func TestVerify_Expired(t *testing.T) {
	claims := validClaims()
	claims["exp"] = time.Now().Add(-time.Minute).Unix()
	credential := signToken(t, testSecret.Value(), claims)

	v := NewVerifier(testSecret, "")
	if _, err := v.Verify(credential); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}

	// Same token passes under a clock set before expiry.
	past := NewVerifier(testSecret, "", WithClock(func() time.Time {
		return time.Now().Add(-2 * time.Minute)
	}))
	if _, err := past.Verify(credential); err != nil {
		t.Fatalf("expected token valid under earlier clock, got %v", err)
	}
}

func TestVerify_RejectsUnexpectedAlgorithm(t *testing.T) {
	// HS384 signed with the correct secret is still rejected.
	tok := jwt.NewWithClaims(jwt.SigningMethodHS384, validClaims())
	signed, err := tok.SignedString([]byte(testSecret.Value()))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	v := NewVerifier(testSecret, "")
	if _, err := v.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	testCases := []struct {
		name       string
		credential string
	}{
		{name: "empty", credential: ""},
		{name: "garbage", credential: "not-a-token"},
		{name: "truncated", credential: "eyJhbGciOiJIUzI1NiJ9"},
	}

	v := NewVerifier(testSecret, "")

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(tc.credential)
			if !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestVerify_ErrorNeverLeaksSecretOrToken(t *testing.T) {
	v := NewVerifier(testSecret, "")
	credential := signToken(t, "a-different-secret", validClaims())

	_, err := v.Verify(credential)
	if err == nil {
		t.Fatal("expected error")
	}

	msg := err.Error()
	if strings.Contains(msg, testSecret.Value()) {
		t.Error("error text contains the signing secret")
	}
	if strings.Contains(msg, credential) {
		t.Error("error text contains the raw credential")
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("super-secret")

	if s.String() != "[REDACTED]" {
		t.Errorf("String() leaked value: %q", s.String())
	}
	if s.GoString() != "[REDACTED]" {
		t.Errorf("GoString() leaked value: %q", s.GoString())
	}
	text, err := s.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if string(text) != "[REDACTED]" {
		t.Errorf("MarshalText() leaked value: %q", text)
	}
	if s.Value() != "super-secret" {
		t.Errorf("Value() must return the raw secret, got %q", s.Value())
	}
}
