package dto

import "github.com/kernfi/kernfi/internal/model"

// CreateCategoryRequest is the body of POST /api/v1/categories.
type CreateCategoryRequest struct {
	Code             string  `json:"code,omitempty"`
	Name             string  `json:"name"`
	Type             string  `json:"type"`
	ParentCategoryID *string `json:"parent_category_id,omitempty"`
}

// CategoryListResponse is the body of GET /api/v1/categories.
type CategoryListResponse struct {
	Categories []*model.Category `json:"categories"`
}
