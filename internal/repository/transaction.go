package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kernfi/kernfi/internal/model"
)

// Common errors for transaction repository operations.
var ErrTransactionNotFound = errors.New("transaction not found")

// TransactionFilter defines filters for listing transactions. OrgID is
// mandatory; every query carries the organization predicate.
type TransactionFilter struct {
	OrgID         string
	Status        model.TransactionStatus
	CategoryID    string
	PaymentMethod string
	DateFrom      *time.Time
	DateTo        *time.Time
	MinAmount     *float64
	MaxAmount     *float64
}

// CreateTransaction inserts a new transaction into the database.
func (r *Repository) CreateTransaction(ctx context.Context, tx *model.Transaction) error {
	query := `
		INSERT INTO transactions (id, organization_id, source_document_id, date, amount, description, merchant,
			category_id, confidence_score, status, reviewed_by, reviewed_at, notes, tags,
			is_transfer, is_owner_draw, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.pool.Exec(ctx, query,
		tx.ID,
		tx.OrganizationID,
		tx.SourceDocumentID,
		tx.Date,
		tx.Amount,
		tx.Description,
		tx.Merchant,
		tx.CategoryID,
		tx.ConfidenceScore,
		tx.Status,
		tx.ReviewedBy,
		tx.ReviewedAt,
		tx.Notes,
		tx.Tags,
		tx.IsTransfer,
		tx.IsOwnerDraw,
		tx.PaymentMethod,
		tx.CreatedAt,
		tx.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// GetTransactionByID retrieves a transaction scoped to an organization.
// A transaction belonging to another organization is reported as not
// found, never as a permission error.
func (r *Repository) GetTransactionByID(ctx context.Context, orgID, id string) (*model.Transaction, error) {
	query := transactionColumns + `
		FROM transactions
		WHERE id = $1 AND organization_id = $2
	`

	tx, err := scanTransaction(r.pool.QueryRow(ctx, query, id, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction by ID: %w", err)
	}

	return tx, nil
}

// ListTransactions retrieves a paginated list of transactions matching
// the filter, newest first with keyset pagination.
func (r *Repository) ListTransactions(ctx context.Context, filter TransactionFilter, cursor string, limit int) ([]*model.Transaction, string, error) {
	var cursorData *PaginationCursor
	if cursor != "" {
		var err error
		cursorData, err = decodeCursor(cursor)
		if err != nil {
			return nil, "", ErrInvalidCursor
		}
	}

	query := transactionColumns + `
		FROM transactions
		WHERE organization_id = $1
	`
	args := []any{filter.OrgID}
	argIndex := 2

	if cursorData != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, cursorData.CreatedAt, cursorData.ID)
		argIndex += 2
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, filter.Status)
		argIndex++
	}

	if filter.CategoryID != "" {
		query += fmt.Sprintf(" AND category_id = $%d", argIndex)
		args = append(args, filter.CategoryID)
		argIndex++
	}

	if filter.PaymentMethod != "" {
		query += fmt.Sprintf(" AND payment_method = $%d", argIndex)
		args = append(args, filter.PaymentMethod)
		argIndex++
	}

	if filter.DateFrom != nil {
		query += fmt.Sprintf(" AND date >= $%d", argIndex)
		args = append(args, *filter.DateFrom)
		argIndex++
	}

	if filter.DateTo != nil {
		query += fmt.Sprintf(" AND date <= $%d", argIndex)
		args = append(args, *filter.DateTo)
		argIndex++
	}

	if filter.MinAmount != nil {
		query += fmt.Sprintf(" AND amount >= $%d", argIndex)
		args = append(args, *filter.MinAmount)
		argIndex++
	}

	if filter.MaxAmount != nil {
		query += fmt.Sprintf(" AND amount <= $%d", argIndex)
		args = append(args, *filter.MaxAmount)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argIndex)
	args = append(args, limit+1) // Fetch one extra to determine hasMore

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating transactions: %w", err)
	}

	var nextCursor string
	if len(txs) > limit {
		txs = txs[:limit]
		last := txs[len(txs)-1]
		nextCursor = encodeCursor(&PaginationCursor{
			ID:        last.ID,
			CreatedAt: last.CreatedAt,
		})
	}

	return txs, nextCursor, nil
}

// UpdateTransaction updates a transaction's mutable fields within the
// organization scope.
func (r *Repository) UpdateTransaction(ctx context.Context, tx *model.Transaction) error {
	query := `
		UPDATE transactions
		SET date = $3, amount = $4, description = $5, merchant = $6, category_id = $7,
			status = $8, reviewed_by = $9, reviewed_at = $10, notes = $11, tags = $12,
			is_transfer = $13, is_owner_draw = $14, payment_method = $15, updated_at = $16
		WHERE id = $1 AND organization_id = $2
	`

	result, err := r.pool.Exec(ctx, query,
		tx.ID,
		tx.OrganizationID,
		tx.Date,
		tx.Amount,
		tx.Description,
		tx.Merchant,
		tx.CategoryID,
		tx.Status,
		tx.ReviewedBy,
		tx.ReviewedAt,
		tx.Notes,
		tx.Tags,
		tx.IsTransfer,
		tx.IsOwnerDraw,
		tx.PaymentMethod,
		tx.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}

	return nil
}

// DeleteTransaction removes a transaction within the organization scope.
func (r *Repository) DeleteTransaction(ctx context.Context, orgID, id string) error {
	query := `
		DELETE FROM transactions
		WHERE id = $1 AND organization_id = $2
	`

	result, err := r.pool.Exec(ctx, query, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}

	return nil
}

// GetTransactionSummary computes aggregate totals for an organization
// over an optional date range. Aggregation happens in SQL so the full
// row set never crosses the wire.
func (r *Repository) GetTransactionSummary(ctx context.Context, orgID string, dateFrom, dateTo *time.Time) (*model.TransactionSummary, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(amount) FILTER (WHERE amount > 0), 0),
			COALESCE(SUM(amount) FILTER (WHERE amount < 0), 0),
			COALESCE(SUM(amount), 0),
			COUNT(*) FILTER (WHERE status = 'pending')
		FROM transactions
		WHERE organization_id = $1
	`
	args := []any{orgID}
	argIndex := 2

	if dateFrom != nil {
		query += fmt.Sprintf(" AND date >= $%d", argIndex)
		args = append(args, *dateFrom)
		argIndex++
	}

	if dateTo != nil {
		query += fmt.Sprintf(" AND date <= $%d", argIndex)
		args = append(args, *dateTo)
	}

	var summary model.TransactionSummary
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&summary.TotalTransactions,
		&summary.TotalIncome,
		&summary.TotalExpenses,
		&summary.NetAmount,
		&summary.PendingReview,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute transaction summary: %w", err)
	}

	return &summary, nil
}

// CategoryTotal is one row of a per-category aggregate.
type CategoryTotal struct {
	CategoryID *string
	Total      float64
	Count      int64
}

// GetCategoryTotals computes per-category amount totals for an
// organization over an optional date range. Uncategorized transactions
// appear as a single row with a nil category. Transfers can be excluded
// so statement-style reports do not double count money moved between
// accounts.
func (r *Repository) GetCategoryTotals(ctx context.Context, orgID string, dateFrom, dateTo *time.Time, excludeTransfers bool) ([]CategoryTotal, error) {
	query := `
		SELECT category_id, COALESCE(SUM(amount), 0), COUNT(*)
		FROM transactions
		WHERE organization_id = $1
	`
	if excludeTransfers {
		query += " AND is_transfer = FALSE"
	}
	args := []any{orgID}
	argIndex := 2

	if dateFrom != nil {
		query += fmt.Sprintf(" AND date >= $%d", argIndex)
		args = append(args, *dateFrom)
		argIndex++
	}

	if dateTo != nil {
		query += fmt.Sprintf(" AND date <= $%d", argIndex)
		args = append(args, *dateTo)
	}

	query += " GROUP BY category_id ORDER BY 2"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to compute category totals: %w", err)
	}
	defer rows.Close()

	var totals []CategoryTotal
	for rows.Next() {
		var ct CategoryTotal
		if err := rows.Scan(&ct.CategoryID, &ct.Total, &ct.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category total: %w", err)
		}
		totals = append(totals, ct)
	}

	return totals, rows.Err()
}

const transactionColumns = `
		SELECT id, organization_id, source_document_id, date, amount, description, merchant,
			category_id, confidence_score, status, reviewed_by, reviewed_at, notes, tags,
			is_transfer, is_owner_draw, payment_method, created_at, updated_at`

// scanTransaction scans a single row into a Transaction model.
func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var tx model.Transaction
	err := row.Scan(
		&tx.ID,
		&tx.OrganizationID,
		&tx.SourceDocumentID,
		&tx.Date,
		&tx.Amount,
		&tx.Description,
		&tx.Merchant,
		&tx.CategoryID,
		&tx.ConfidenceScore,
		&tx.Status,
		&tx.ReviewedBy,
		&tx.ReviewedAt,
		&tx.Notes,
		&tx.Tags,
		&tx.IsTransfer,
		&tx.IsOwnerDraw,
		&tx.PaymentMethod,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
