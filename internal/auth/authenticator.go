package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/kernfi/kernfi/internal/model"
	"github.com/kernfi/kernfi/internal/repository"
	"github.com/kernfi/kernfi/internal/token"
)

// Authentication errors.
var (
	// ErrMissingCredential is returned when the Authorization header is
	// absent or not a bearer credential.
	ErrMissingCredential = errors.New("missing bearer credential")

	// ErrUnknownSubject is returned when a verified subject has no user
	// record, so no organization can be resolved for it.
	ErrUnknownSubject = errors.New("subject has no user record")
)

// UserResolver looks up the user record for a verified subject. The user
// row carries the organization the identity is scoped to.
type UserResolver interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// Authenticator is the single entry point that turns a raw Authorization
// header into an Identity. It composes credential verification, claim
// extraction, and organization resolution; handlers never re-derive any
// of this.
type Authenticator struct {
	verifier *token.Verifier
	users    UserResolver
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(verifier *token.Verifier, users UserResolver) *Authenticator {
	return &Authenticator{
		verifier: verifier,
		users:    users,
	}
}

// Authenticate verifies the bearer credential in rawHeader and returns the
// resulting Identity. Failures are terminal for the request:
//
//   - ErrMissingCredential: no bearer credential present
//   - token.ErrInvalidToken: signature, format, audience, or expiry failure
//   - token.ErrMissingSubject: signature-valid token without a subject
//   - ErrUnknownSubject: no user record for the subject
func (a *Authenticator) Authenticate(ctx context.Context, rawHeader string) (*Identity, error) {
	credential := ExtractBearer(rawHeader)
	if credential == "" {
		return nil, ErrMissingCredential
	}

	claims, err := a.verifier.Verify(credential)
	if err != nil {
		return nil, err
	}

	user, err := a.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnknownSubject
		}
		return nil, err
	}

	return NewIdentity(claims, user.OrganizationID), nil
}

// ExtractBearer returns the credential from an Authorization header value,
// or "" when the header does not carry a bearer credential.
func ExtractBearer(header string) string {
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
