package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kernfi/kernfi/internal/auth"
	"github.com/kernfi/kernfi/internal/handler/dto"
	"github.com/kernfi/kernfi/internal/model"
	"github.com/kernfi/kernfi/internal/repository"
)

// AdminHandler serves administration endpoints. All routes are mounted
// behind the admin role middleware.
type AdminHandler struct {
	repo      *repository.Repository
	auditRepo *repository.AuditEventRepository
	logger    *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(repo *repository.Repository, auditRepo *repository.AuditEventRepository, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		repo:      repo,
		auditRepo: auditRepo,
		logger:    logger.With("handler", "admin"),
	}
}

// ListOrganizations handles GET /api/v1/admin/organizations.
func (h *AdminHandler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.repo.ListOrganizations(r.Context())
	if err != nil {
		h.logger.Error("failed to list organizations", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, dto.OrganizationListResponse{Organizations: orgs})
}

// CreateOrganization handles POST /api/v1/admin/organizations.
func (h *AdminHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "NAME_REQUIRED", "Organization name is required")
		return
	}

	now := time.Now().UTC()
	org := &model.Organization{
		ID:        uuid.NewString(),
		Name:      req.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.repo.CreateOrganization(r.Context(), org); err != nil {
		if errors.Is(err, repository.ErrOrgExists) {
			writeError(w, http.StatusConflict, "NAME_TAKEN", "Organization name already exists")
			return
		}
		h.logger.Error("failed to create organization", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	h.logger.Info("organization_created", "org_id", org.ID, "name", org.Name)

	writeJSON(w, http.StatusCreated, org)
}

// ListUsers handles GET /api/v1/admin/users. The organization_id query
// parameter is required; users are always listed per tenant.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("organization_id")
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "ORG_REQUIRED", "organization_id query parameter is required")
		return
	}

	users, err := h.repo.ListUsersByOrg(r.Context(), orgID)
	if err != nil {
		h.logger.Error("failed to list users", "org_id", orgID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, dto.UserListResponse{Users: users})
}

// CreateUser handles POST /api/v1/admin/users. It registers an
// identity-provider subject with an organization and role.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.ID == "" || req.OrganizationID == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "MISSING_FIELDS", "id, organization_id and email are required")
		return
	}

	if _, err := h.repo.GetOrganizationByID(r.Context(), req.OrganizationID); err != nil {
		if errors.Is(err, repository.ErrOrgNotFound) {
			writeError(w, http.StatusUnprocessableEntity, "UNKNOWN_ORG", "Organization does not exist")
			return
		}
		h.logger.Error("failed to resolve organization", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:             req.ID,
		OrganizationID: req.OrganizationID,
		Email:          req.Email,
		Role:           model.NormalizeRole(req.Role),
		FullName:       req.FullName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.repo.CreateUser(r.Context(), user); err != nil {
		h.logger.Error("failed to create user", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	h.logger.Info("user_created",
		"user_id", user.ID,
		"org_id", user.OrganizationID,
		"role", user.Role,
	)

	writeJSON(w, http.StatusCreated, user)
}

// AuditEvents handles GET /api/v1/admin/audit-events. Admins inspect
// one organization's trail at a time; the caller's own organization is
// the default.
func (h *AdminHandler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	query := r.URL.Query()

	orgID := query.Get("organization_id")
	if orgID == "" {
		orgID = auth.ScopeFilter(identity)
	}

	limit := 50
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	events, err := h.auditRepo.ListAuditEvents(r.Context(), orgID, query.Get("entity_type"), limit)
	if err != nil {
		h.logger.Error("failed to list audit events", "org_id", orgID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, dto.AuditEventListResponse{Events: events})
}
