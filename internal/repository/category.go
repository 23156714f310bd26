package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kernfi/kernfi/internal/model"
)

// Common errors for category repository operations.
var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("category code already exists")
)

// CreateCategory inserts a new category. A nil OrganizationID creates a
// global category shared by every tenant.
func (r *Repository) CreateCategory(ctx context.Context, cat *model.Category) error {
	query := `
		INSERT INTO categories (id, organization_id, code, name, type, parent_category_id, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		cat.ID,
		cat.OrganizationID,
		cat.Code,
		cat.Name,
		cat.Type,
		cat.ParentCategoryID,
		cat.IsActive,
		cat.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrCategoryExists
		}
		return fmt.Errorf("failed to create category: %w", err)
	}

	return nil
}

// GetCategoryByID retrieves a category visible to an organization. Both
// the org's own categories and global rows resolve; another org's
// categories do not.
func (r *Repository) GetCategoryByID(ctx context.Context, orgID, id string) (*model.Category, error) {
	query := `
		SELECT id, organization_id, code, name, type, parent_category_id, is_active, created_at
		FROM categories
		WHERE id = $1 AND (organization_id = $2 OR organization_id IS NULL)
	`

	cat, err := scanCategory(r.pool.QueryRow(ctx, query, id, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get category by ID: %w", err)
	}

	return cat, nil
}

// ListCategories retrieves the categories visible to an organization:
// global rows plus the org's own, active ones first.
func (r *Repository) ListCategories(ctx context.Context, orgID string, categoryType model.CategoryType) ([]*model.Category, error) {
	query := `
		SELECT id, organization_id, code, name, type, parent_category_id, is_active, created_at
		FROM categories
		WHERE (organization_id = $1 OR organization_id IS NULL)
	`
	args := []any{orgID}

	if categoryType != "" {
		query += " AND type = $2"
		args = append(args, categoryType)
	}

	query += " ORDER BY is_active DESC, code, name"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var cats []*model.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cats = append(cats, cat)
	}

	return cats, rows.Err()
}

// UpdateCategory updates an org-owned category's mutable fields.
// Global categories are immutable through this path.
func (r *Repository) UpdateCategory(ctx context.Context, orgID string, cat *model.Category) error {
	query := `
		UPDATE categories
		SET name = $3, type = $4, parent_category_id = $5, is_active = $6
		WHERE id = $1 AND organization_id = $2
	`

	result, err := r.pool.Exec(ctx, query,
		cat.ID,
		orgID,
		cat.Name,
		cat.Type,
		cat.ParentCategoryID,
		cat.IsActive,
	)

	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}

	return nil
}

// DeactivateCategory marks an org-owned category inactive. Rows are
// kept so historical transactions stay resolvable.
func (r *Repository) DeactivateCategory(ctx context.Context, orgID, id string) error {
	query := `
		UPDATE categories
		SET is_active = FALSE
		WHERE id = $1 AND organization_id = $2
	`

	result, err := r.pool.Exec(ctx, query, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to deactivate category: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}

	return nil
}

// scanCategory scans a single row into a Category model.
func scanCategory(row pgx.Row) (*model.Category, error) {
	var cat model.Category
	err := row.Scan(
		&cat.ID,
		&cat.OrganizationID,
		&cat.Code,
		&cat.Name,
		&cat.Type,
		&cat.ParentCategoryID,
		&cat.IsActive,
		&cat.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cat, nil
}
