package model

import "time"

// TransactionStatus represents the review state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusReviewed TransactionStatus = "reviewed"
	TransactionStatusFlagged  TransactionStatus = "flagged"
)

// IsValid checks if the status is a recognized transaction status.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusReviewed, TransactionStatusFlagged:
		return true
	}
	return false
}

// PaymentMethod values accepted on transactions.
const (
	PaymentMethodCash  = "cash"
	PaymentMethodCard  = "card"
	PaymentMethodACH   = "ach"
	PaymentMethodCheck = "check"
)

// ValidPaymentMethods contains all accepted payment method values.
var ValidPaymentMethods = []string{
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodACH,
	PaymentMethodCheck,
}

// Transaction represents a financial transaction. Amounts follow the
// source convention: positive for income, negative for expenses.
type Transaction struct {
	ID               string            `json:"id"`
	OrganizationID   string            `json:"organization_id"`
	SourceDocumentID *string           `json:"source_document_id,omitempty"`
	Date             time.Time         `json:"date"`
	Amount           float64           `json:"amount"`
	Description      string            `json:"description,omitempty"`
	Merchant         string            `json:"merchant,omitempty"`
	CategoryID       *string           `json:"category_id,omitempty"`
	ConfidenceScore  *float64          `json:"confidence_score,omitempty"`
	Status           TransactionStatus `json:"status"`
	ReviewedBy       *string           `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time        `json:"reviewed_at,omitempty"`
	Notes            string            `json:"notes,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	IsTransfer       bool              `json:"is_transfer"`
	IsOwnerDraw      bool              `json:"is_owner_draw"`
	PaymentMethod    string            `json:"payment_method,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// IsIncome returns true for positive amounts.
func (t *Transaction) IsIncome() bool {
	return t.Amount > 0
}

// IsExpense returns true for negative amounts.
func (t *Transaction) IsExpense() bool {
	return t.Amount < 0
}

// TransactionSummary aggregates an organization's transactions over a
// date range.
type TransactionSummary struct {
	TotalTransactions int64   `json:"total_transactions"`
	TotalIncome       float64 `json:"total_income"`
	TotalExpenses     float64 `json:"total_expenses"`
	NetAmount         float64 `json:"net_amount"`
	PendingReview     int64   `json:"pending_review"`
}
