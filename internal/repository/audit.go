package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kernfi/kernfi/internal/model"
)

// AuditEventRepository provides database access for audit events.
type AuditEventRepository struct {
	repo *Repository
}

// NewAuditEventRepository creates a new AuditEventRepository.
func NewAuditEventRepository(repo *Repository) *AuditEventRepository {
	return &AuditEventRepository{repo: repo}
}

// BulkInsert inserts multiple audit events. Replayed stream messages
// are dropped via ON CONFLICT on the event ID.
func (r *AuditEventRepository) BulkInsert(ctx context.Context, events []*model.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	query := `
		INSERT INTO audit_events (
			event_id, organization_id, actor_id, action,
			entity_type, entity_id, detail, occurred_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`

	for _, event := range events {
		var detail []byte
		if event.Detail != nil {
			encoded, err := json.Marshal(event.Detail)
			if err != nil {
				return fmt.Errorf("marshal audit detail: %w", err)
			}
			detail = encoded
		}

		batch.Queue(query,
			event.EventID,
			event.OrganizationID,
			event.ActorID,
			string(event.Action),
			string(event.EntityType),
			event.EntityID,
			detail,
			event.OccurredAt,
		)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(events); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert audit event %d: %w", i, err)
		}
	}

	return nil
}

// ListAuditEvents returns recent audit events for an organization,
// newest first. Optional entityType narrows the result.
func (r *AuditEventRepository) ListAuditEvents(ctx context.Context, orgID string, entityType string, limit int) ([]*model.AuditEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, event_id, organization_id, actor_id, action,
			   entity_type, entity_id, detail, occurred_at
		FROM audit_events
		WHERE organization_id = $1
	`
	args := []any{orgID}
	argIndex := 2

	if entityType != "" {
		query += fmt.Sprintf(" AND entity_type = $%d", argIndex)
		args = append(args, entityType)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := r.repo.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*model.AuditEvent
	for rows.Next() {
		var event model.AuditEvent
		var action, entityType string
		var detail []byte

		if err := rows.Scan(
			&event.ID,
			&event.EventID,
			&event.OrganizationID,
			&event.ActorID,
			&action,
			&entityType,
			&detail,
			&event.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}

		event.Action = model.AuditAction(action)
		event.EntityType = model.AuditEntityType(entityType)
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &event.Detail); err != nil {
				return nil, fmt.Errorf("failed to decode audit detail: %w", err)
			}
		}

		events = append(events, &event)
	}

	return events, rows.Err()
}
