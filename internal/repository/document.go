package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kernfi/kernfi/internal/model"
)

// Common errors for document repository operations.
var ErrDocumentNotFound = errors.New("document not found")

// CreateDocument inserts a new document record.
func (r *Repository) CreateDocument(ctx context.Context, doc *model.Document) error {
	query := `
		INSERT INTO documents (id, organization_id, filename, file_type, file_size, storage_path, status, error_message, uploaded_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		doc.ID,
		doc.OrganizationID,
		doc.Filename,
		doc.FileType,
		doc.FileSize,
		doc.StoragePath,
		doc.Status,
		doc.ErrorMessage,
		doc.UploadedAt,
		doc.ProcessedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

// GetDocumentByID retrieves a document scoped to an organization.
func (r *Repository) GetDocumentByID(ctx context.Context, orgID, id string) (*model.Document, error) {
	query := `
		SELECT id, organization_id, filename, file_type, file_size, storage_path, status, error_message, uploaded_at, processed_at
		FROM documents
		WHERE id = $1 AND organization_id = $2
	`

	doc, err := scanDocument(r.pool.QueryRow(ctx, query, id, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document by ID: %w", err)
	}

	return doc, nil
}

// ListDocuments retrieves a paginated list of an organization's
// documents, newest first. Status narrows the list when set.
func (r *Repository) ListDocuments(ctx context.Context, orgID string, status model.DocumentStatus, cursor string, limit int) ([]*model.Document, string, error) {
	var cursorData *PaginationCursor
	if cursor != "" {
		var err error
		cursorData, err = decodeCursor(cursor)
		if err != nil {
			return nil, "", ErrInvalidCursor
		}
	}

	query := `
		SELECT id, organization_id, filename, file_type, file_size, storage_path, status, error_message, uploaded_at, processed_at
		FROM documents
		WHERE organization_id = $1
	`
	args := []any{orgID}
	argIndex := 2

	if cursorData != nil {
		query += fmt.Sprintf(" AND (uploaded_at, id) < ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, cursorData.CreatedAt, cursorData.ID)
		argIndex += 2
	}

	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, status)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY uploaded_at DESC, id DESC LIMIT $%d", argIndex)
	args = append(args, limit+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating documents: %w", err)
	}

	var nextCursor string
	if len(docs) > limit {
		docs = docs[:limit]
		last := docs[len(docs)-1]
		nextCursor = encodeCursor(&PaginationCursor{
			ID:        last.ID,
			CreatedAt: last.UploadedAt,
		})
	}

	return docs, nextCursor, nil
}

// UpdateDocumentStatus transitions a document's processing state. The
// organization predicate keeps the write tenant-scoped.
func (r *Repository) UpdateDocumentStatus(ctx context.Context, orgID, id string, status model.DocumentStatus, errorMessage string) error {
	query := `
		UPDATE documents
		SET status = $3, error_message = $4, processed_at = $5
		WHERE id = $1 AND organization_id = $2
	`

	var processedAt *time.Time
	if status.IsTerminal() {
		now := time.Now()
		processedAt = &now
	}

	result, err := r.pool.Exec(ctx, query, id, orgID, status, errorMessage, processedAt)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}

	return nil
}

// DeleteDocument removes a document record within the organization scope.
func (r *Repository) DeleteDocument(ctx context.Context, orgID, id string) error {
	query := `
		DELETE FROM documents
		WHERE id = $1 AND organization_id = $2
	`

	result, err := r.pool.Exec(ctx, query, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}

	return nil
}

// ListQueuedDocuments returns up to limit documents waiting in the
// processing state, oldest first. Documents enter that state through
// the process endpoint; the worker moves them to a terminal state, so
// anything still processing is queued work. SKIP LOCKED keeps
// concurrent pollers off rows another poller is reading.
func (r *Repository) ListQueuedDocuments(ctx context.Context, limit int) ([]*model.Document, error) {
	query := `
		SELECT id, organization_id, filename, file_type, file_size, storage_path, status, error_message, uploaded_at, processed_at
		FROM documents
		WHERE status = 'processing'
		ORDER BY uploaded_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued documents: %w", err)
	}
	defer rows.Close()

	var docs []*model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queued document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queued documents: %w", err)
	}

	return docs, nil
}

// scanDocument scans a single row into a Document model.
func scanDocument(row pgx.Row) (*model.Document, error) {
	var doc model.Document
	err := row.Scan(
		&doc.ID,
		&doc.OrganizationID,
		&doc.Filename,
		&doc.FileType,
		&doc.FileSize,
		&doc.StoragePath,
		&doc.Status,
		&doc.ErrorMessage,
		&doc.UploadedAt,
		&doc.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
