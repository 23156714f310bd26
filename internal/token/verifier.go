// Package token verifies externally issued bearer credentials and extracts
// identity claims from them. Verification is a pure function of the
// credential, the configured signing secret, and the clock.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification errors.
var (
	// ErrInvalidToken covers signature, format, audience, and expiry
	// failures. The wrapped cause never contains the secret or the
	// raw credential.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMissingSubject is returned for a signature-valid token that
	// carries no subject claim. Reported separately from signature
	// failures so operators can tell the two apart.
	ErrMissingSubject = errors.New("token missing subject claim")
)

// DefaultAudience is the audience claim expected on every credential.
const DefaultAudience = "authenticated"

// Claims holds the decoded payload of a verified credential.
// Subject is always non-empty; Raw preserves the full claim set for
// forward compatibility with fields this service does not recognize.
type Claims struct {
	Subject string
	Email   string
	Role    string
	Raw     map[string]any
}

// Verifier validates bearer credentials against a shared HMAC secret.
// It is safe for concurrent use; all fields are set once at construction.
type Verifier struct {
	secret   Secret
	audience string
	now      func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithClock overrides the time source used for expiry checks. For tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// NewVerifier creates a Verifier for the given secret and expected audience.
// An empty audience falls back to DefaultAudience.
func NewVerifier(secret Secret, audience string, opts ...Option) *Verifier {
	if audience == "" {
		audience = DefaultAudience
	}
	v := &Verifier{
		secret:   secret,
		audience: audience,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify validates the credential and returns its claims.
//
// It checks, in order: HS256 signature against the configured secret,
// standard time claims, exact audience match, and subject presence.
// Every failure is terminal for the request; there is no partial success.
func (v *Verifier) Verify(credential string) (*Claims, error) {
	if credential == "" {
		return nil, fmt.Errorf("%w: empty credential", ErrInvalidToken)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithTimeFunc(v.now),
	)

	mapClaims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(credential, mapClaims, func(t *jwt.Token) (any, error) {
		return []byte(v.secret.Value()), nil
	})
	if err != nil {
		// The jwt library's error text describes the failure mode
		// without echoing the credential.
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	sub, err := mapClaims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrMissingSubject
	}

	return &Claims{
		Subject: sub,
		Email:   stringClaim(mapClaims, "email"),
		Role:    stringClaim(mapClaims, "role"),
		Raw:     map[string]any(mapClaims),
	}, nil
}

// stringClaim returns the named claim if it is a string, else "".
func stringClaim(claims jwt.MapClaims, name string) string {
	if s, ok := claims[name].(string); ok {
		return s
	}
	return ""
}
