package dto

import "github.com/kernfi/kernfi/internal/model"

// DocumentListResponse is the body of GET /api/v1/documents.
type DocumentListResponse struct {
	Documents  []*model.Document `json:"documents"`
	Pagination Pagination        `json:"pagination"`
}
