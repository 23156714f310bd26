package dto

import "github.com/kernfi/kernfi/internal/model"

// CreateOrganizationRequest is the body of POST /api/v1/admin/organizations.
type CreateOrganizationRequest struct {
	Name string `json:"name"`
}

// OrganizationListResponse is the body of GET /api/v1/admin/organizations.
type OrganizationListResponse struct {
	Organizations []*model.Organization `json:"organizations"`
}

// CreateUserRequest is the body of POST /api/v1/admin/users. The ID is
// the identity provider's subject for the user.
type CreateUserRequest struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Email          string `json:"email"`
	Role           string `json:"role,omitempty"`
	FullName       string `json:"full_name,omitempty"`
}

// UserListResponse is the body of GET /api/v1/admin/users.
type UserListResponse struct {
	Users []*model.User `json:"users"`
}

// AuditEventListResponse is the body of GET /api/v1/admin/audit-events.
type AuditEventListResponse struct {
	Events []*model.AuditEvent `json:"events"`
}
