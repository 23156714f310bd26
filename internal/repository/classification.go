package repository

import (
	"context"
	"fmt"

	"github.com/kernfi/kernfi/internal/model"
)

// CreateClassificationRecord stores a categorization suggestion for a
// transaction.
func (r *Repository) CreateClassificationRecord(ctx context.Context, rec *model.ClassificationRecord) error {
	query := `
		INSERT INTO classification_history (id, transaction_id, suggested_category_id, confidence_score, rationale, was_accepted, actual_category_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.TransactionID,
		rec.SuggestedCategoryID,
		rec.ConfidenceScore,
		rec.Rationale,
		rec.WasAccepted,
		rec.ActualCategoryID,
		rec.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create classification record: %w", err)
	}

	return nil
}

// RecordClassificationOutcome marks the latest suggestion for a
// transaction with the human decision. A matching category means the
// suggestion was accepted.
func (r *Repository) RecordClassificationOutcome(ctx context.Context, transactionID string, actualCategoryID *string) error {
	query := `
		UPDATE classification_history
		SET was_accepted = (suggested_category_id IS NOT DISTINCT FROM $2),
			actual_category_id = $2
		WHERE id = (
			SELECT id FROM classification_history
			WHERE transaction_id = $1
			ORDER BY created_at DESC
			LIMIT 1
		)
	`

	_, err := r.pool.Exec(ctx, query, transactionID, actualCategoryID)
	if err != nil {
		return fmt.Errorf("failed to record classification outcome: %w", err)
	}

	return nil
}

// ListClassificationHistory returns the suggestion history for a
// transaction, newest first.
func (r *Repository) ListClassificationHistory(ctx context.Context, transactionID string) ([]*model.ClassificationRecord, error) {
	query := `
		SELECT id, transaction_id, suggested_category_id, confidence_score, rationale, was_accepted, actual_category_id, created_at
		FROM classification_history
		WHERE transaction_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list classification history: %w", err)
	}
	defer rows.Close()

	var records []*model.ClassificationRecord
	for rows.Next() {
		var rec model.ClassificationRecord
		err := rows.Scan(
			&rec.ID,
			&rec.TransactionID,
			&rec.SuggestedCategoryID,
			&rec.ConfidenceScore,
			&rec.Rationale,
			&rec.WasAccepted,
			&rec.ActualCategoryID,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan classification record: %w", err)
		}
		records = append(records, &rec)
	}

	return records, rows.Err()
}
