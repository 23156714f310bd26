package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kernfi/kernfi/internal/auth"
	"github.com/kernfi/kernfi/internal/repository"
)

// AuthHandler serves identity introspection endpoints.
type AuthHandler struct {
	repo   *repository.Repository
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(repo *repository.Repository, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		repo:   repo,
		logger: logger.With("handler", "auth"),
	}
}

// Verify handles GET /api/v1/auth/verify. Reaching this handler means
// the auth middleware accepted the token; it echoes the resolved
// identity back.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":         identity.UserID,
		"organization_id": identity.OrgID,
		"role":            identity.Role,
	})
}

// Me handles GET /api/v1/auth/me and returns the caller's user record.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	user, err := h.repo.GetUserByID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User record not found")
			return
		}
		h.logger.Error("failed to load user", "user_id", identity.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, user)
}
