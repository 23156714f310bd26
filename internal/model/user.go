// Package model defines domain entities for the application.
package model

import "time"

// Role represents a user's privilege level. The model is flat: two
// recognized roles, no hierarchy.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// NormalizeRole maps a raw role claim to a recognized Role. Anything
// outside the recognized set, including an absent claim, collapses to
// client privilege. Unrecognized values are never treated as admin.
func NormalizeRole(raw string) Role {
	switch Role(raw) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleClient
	}
}

// IsValid reports whether the role is one of the recognized values.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleClient
}

// User represents a user record synced from the external identity
// provider. The ID equals the provider's subject claim.
type User struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	FullName       string    `json:"full_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
