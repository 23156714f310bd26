package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kernfi/kernfi/internal/auth"
	"github.com/kernfi/kernfi/internal/handler/dto"
	"github.com/kernfi/kernfi/internal/model"
	"github.com/kernfi/kernfi/internal/repository"
)

// CategoryHandler handles HTTP requests for category operations.
type CategoryHandler struct {
	repo   *repository.Repository
	logger *slog.Logger
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(repo *repository.Repository, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{
		repo:   repo,
		logger: logger.With("handler", "category"),
	}
}

// List handles GET /api/v1/categories. Global categories appear next
// to the organization's own.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	categoryType := model.CategoryType(r.URL.Query().Get("type"))
	if categoryType != "" && !categoryType.IsValid() {
		writeError(w, http.StatusBadRequest, "INVALID_TYPE", "Unknown category type")
		return
	}

	categories, err := h.repo.ListCategories(r.Context(), auth.ScopeFilter(identity), categoryType)
	if err != nil {
		h.logger.Error("failed to list categories", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, dto.CategoryListResponse{Categories: categories})
}

// Create handles POST /api/v1/categories. Handler-created categories
// are always org-owned; global rows are seeded by migration.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	var req dto.CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "NAME_REQUIRED", "Category name is required")
		return
	}
	categoryType := model.CategoryType(req.Type)
	if !categoryType.IsValid() {
		writeError(w, http.StatusBadRequest, "INVALID_TYPE", "Unknown category type")
		return
	}

	orgID := auth.ScopeFilter(identity)
	if req.ParentCategoryID != nil {
		if _, err := h.repo.GetCategoryByID(r.Context(), orgID, *req.ParentCategoryID); err != nil {
			if errors.Is(err, repository.ErrCategoryNotFound) {
				writeError(w, http.StatusUnprocessableEntity, "UNKNOWN_PARENT", "Parent category does not exist")
				return
			}
			h.logger.Error("failed to resolve parent category", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
			return
		}
	}

	cat := &model.Category{
		ID:               uuid.NewString(),
		OrganizationID:   &orgID,
		Code:             req.Code,
		Name:             req.Name,
		Type:             categoryType,
		ParentCategoryID: req.ParentCategoryID,
		IsActive:         true,
		CreatedAt:        time.Now().UTC(),
	}

	if err := h.repo.CreateCategory(r.Context(), cat); err != nil {
		if errors.Is(err, repository.ErrCategoryExists) {
			writeError(w, http.StatusConflict, "CODE_TAKEN", "Category code already exists")
			return
		}
		h.logger.Error("failed to create category", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	h.logger.Info("category_created",
		"category_id", cat.ID,
		"org_id", orgID,
	)

	writeJSON(w, http.StatusCreated, cat)
}

// Deactivate handles DELETE /api/v1/categories/{id}. Categories are
// never hard-deleted so historical transactions keep their references.
func (h *CategoryHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.repo.DeactivateCategory(r.Context(), auth.ScopeFilter(identity), id); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Category not found")
			return
		}
		h.logger.Error("failed to deactivate category", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	h.logger.Info("category_deactivated", "category_id", id)

	w.WriteHeader(http.StatusNoContent)
}
