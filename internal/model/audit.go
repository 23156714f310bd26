package model

import "time"

// AuditAction identifies what a user did to an entity.
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionReview AuditAction = "review"
	AuditActionDelete AuditAction = "delete"
	AuditActionUpload AuditAction = "upload"
)

// AuditEntityType names the kind of entity an audit event refers to.
type AuditEntityType string

const (
	AuditEntityTransaction AuditEntityType = "transaction"
	AuditEntityDocument    AuditEntityType = "document"
	AuditEntityCategory    AuditEntityType = "category"
	AuditEntityWebhook     AuditEntityType = "webhook_endpoint"
)

// AuditEvent is an immutable record of a mutation performed by a user.
// Events are captured asynchronously; EventID carries the stream
// message ID and deduplicates replays.
type AuditEvent struct {
	ID             int64           `json:"id"`
	EventID        string          `json:"-"`
	OrganizationID string          `json:"organization_id"`
	ActorID        string          `json:"actor_id"`
	Action         AuditAction     `json:"action"`
	EntityType     AuditEntityType `json:"entity_type"`
	EntityID       string          `json:"entity_id"`
	Detail         map[string]any  `json:"detail,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}
