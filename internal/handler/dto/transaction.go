package dto

import (
	"time"

	"github.com/kernfi/kernfi/internal/model"
)

// CreateTransactionRequest is the body of POST /api/v1/transactions.
type CreateTransactionRequest struct {
	Date          string   `json:"date"` // YYYY-MM-DD
	Amount        float64  `json:"amount"`
	Description   string   `json:"description,omitempty"`
	Merchant      string   `json:"merchant,omitempty"`
	CategoryID    *string  `json:"category_id,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	IsTransfer    bool     `json:"is_transfer,omitempty"`
	IsOwnerDraw   bool     `json:"is_owner_draw,omitempty"`
	PaymentMethod string   `json:"payment_method,omitempty"`
}

// UpdateTransactionRequest is the body of PATCH /api/v1/transactions/{id}.
// Absent fields are left untouched; an explicit null category clears it.
type UpdateTransactionRequest struct {
	Date          *string  `json:"date,omitempty"`
	Amount        *float64 `json:"amount,omitempty"`
	Description   *string  `json:"description,omitempty"`
	Merchant      *string  `json:"merchant,omitempty"`
	CategoryID    *string  `json:"category_id,omitempty"`
	ClearCategory bool     `json:"clear_category,omitempty"`
	Notes         *string  `json:"notes,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	IsTransfer    *bool    `json:"is_transfer,omitempty"`
	IsOwnerDraw   *bool    `json:"is_owner_draw,omitempty"`
	PaymentMethod *string  `json:"payment_method,omitempty"`
}

// ReviewTransactionRequest is the body of POST /api/v1/transactions/{id}/review.
type ReviewTransactionRequest struct {
	Status     string  `json:"status"` // "reviewed" or "flagged"
	CategoryID *string `json:"category_id,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

// TransactionListResponse is the body of GET /api/v1/transactions.
type TransactionListResponse struct {
	Transactions []*model.Transaction `json:"transactions"`
	Pagination   Pagination           `json:"pagination"`
}

// ParseDate parses a YYYY-MM-DD value, falling back to RFC 3339.
func ParseDate(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
