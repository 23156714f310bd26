// Package audit captures mutation events and persists the audit trail.
package audit

import (
	"fmt"

	"github.com/kernfi/kernfi/internal/model"
)

const (
	maxEntityIDLength = 128
	maxActorIDLength  = 128
	orgIDLength       = 36
)

// ValidateEventPayload validates audit event payload fields before
// they are written to the database.
func ValidateEventPayload(payload EventPayload) error {
	if payload.OrganizationID == "" {
		return fmt.Errorf("organization id is required")
	}
	if len(payload.OrganizationID) != orgIDLength {
		return fmt.Errorf("organization id must be a UUID")
	}
	if payload.ActorID == "" {
		return fmt.Errorf("actor id is required")
	}
	if len(payload.ActorID) > maxActorIDLength {
		return fmt.Errorf("actor id too long")
	}
	if payload.Action == "" {
		return fmt.Errorf("action is required")
	}
	switch model.AuditAction(payload.Action) {
	case model.AuditActionCreate, model.AuditActionUpdate, model.AuditActionReview,
		model.AuditActionDelete, model.AuditActionUpload:
	default:
		return fmt.Errorf("unknown action %q", payload.Action)
	}
	switch model.AuditEntityType(payload.EntityType) {
	case model.AuditEntityTransaction, model.AuditEntityDocument,
		model.AuditEntityCategory, model.AuditEntityWebhook:
	default:
		return fmt.Errorf("unknown entity type %q", payload.EntityType)
	}
	if payload.EntityID == "" {
		return fmt.Errorf("entity id is required")
	}
	if len(payload.EntityID) > maxEntityIDLength {
		return fmt.Errorf("entity id too long")
	}
	if payload.OccurredAt <= 0 {
		return fmt.Errorf("occurred_at must be set")
	}
	return nil
}
