package model

import "time"

// ClassificationRecord captures one automated categorization suggestion
// for a transaction, together with the human outcome. The suggestion
// pipeline itself is an external collaborator; this record exists so
// overrides can feed future classification.
type ClassificationRecord struct {
	ID                  string    `json:"id"`
	TransactionID       string    `json:"transaction_id"`
	SuggestedCategoryID *string   `json:"suggested_category_id,omitempty"`
	ConfidenceScore     *float64  `json:"confidence_score,omitempty"`
	Rationale           string    `json:"rationale,omitempty"`
	WasAccepted         *bool     `json:"was_accepted,omitempty"`
	ActualCategoryID    *string   `json:"actual_category_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}
