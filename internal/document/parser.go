// Package document runs uploaded documents through a parser and turns
// the extracted rows into pending transactions.
package document

import (
	"context"
	"errors"
	"time"

	"github.com/kernfi/kernfi/internal/model"
)

// ErrParserUnavailable is returned when no parser backend is
// configured or the backend cannot be reached.
var ErrParserUnavailable = errors.New("document parser unavailable")

// ExtractedTransaction is one transaction row a parser pulled out of a
// document. Category suggestions are optional and always reviewed by a
// human before they count.
type ExtractedTransaction struct {
	Date                time.Time
	Amount              float64
	Description         string
	Merchant            string
	PaymentMethod       string
	SuggestedCategoryID *string
	ConfidenceScore     *float64
	Rationale           string
}

// Parser extracts transactions from an uploaded document. Parsing
// backends (OCR, statement format readers) are external collaborators
// behind this interface.
type Parser interface {
	Parse(ctx context.Context, doc *model.Document) ([]ExtractedTransaction, error)
}
