// Package auth provides the per-request identity model and access policy:
// role gating and tenant scoping derived from verified token claims.
package auth

import (
	"errors"
	"fmt"

	"github.com/kernfi/kernfi/internal/model"
	"github.com/kernfi/kernfi/internal/token"
)

// ErrForbidden is returned when a valid identity lacks the required role.
var ErrForbidden = errors.New("insufficient role")

// Identity is the canonical representation of the current actor.
// It is constructed once per request from verified claims and read-only
// afterwards. UserID is always non-empty: the only constructor requires a
// subject-bearing Claims value.
type Identity struct {
	UserID    string
	Email     string
	Role      model.Role
	OrgID     string
	RawClaims map[string]any
}

// NewIdentity builds an Identity from verified claims and the resolved
// organization. The role claim is normalized: anything outside the
// recognized set collapses to client privilege, never to admin. The
// original role string survives in RawClaims.
func NewIdentity(claims *token.Claims, orgID string) *Identity {
	return &Identity{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Role:      model.NormalizeRole(claims.Role),
		OrgID:     orgID,
		RawClaims: claims.Raw,
	}
}

// IsAdmin reports whether the identity carries the admin role.
func (id *Identity) IsAdmin() bool {
	return id.Role == model.RoleAdmin
}

// RequireRole enforces an exact match on the normalized role. The model is
// flat: admin satisfies only admin, client satisfies only client.
func RequireRole(id *Identity, role model.Role) error {
	if id == nil {
		return ErrForbidden
	}
	if id.Role != role {
		return fmt.Errorf("%w: %s required", ErrForbidden, role)
	}
	return nil
}

// ScopeFilter returns the organization ID that every tenant-owned data
// access must filter or assign by. It is the only sanctioned source of a
// scoping organization ID; request-supplied values are never used.
func ScopeFilter(id *Identity) string {
	return id.OrgID
}
