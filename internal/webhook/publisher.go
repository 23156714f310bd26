package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kernfi/kernfi/internal/model"
)

// Publisher creates webhook delivery records when events occur.
type Publisher struct {
	repo   *Repository
	logger *slog.Logger
}

// NewPublisher creates a new webhook publisher.
func NewPublisher(repo *Repository, logger *slog.Logger) *Publisher {
	return &Publisher{
		repo:   repo,
		logger: logger.With("component", "webhook.publisher"),
	}
}

// PublishDocumentEvent creates webhook deliveries for a document
// lifecycle event. It fans out to all active endpoints of the
// document's organization that subscribe to the event type.
func (p *Publisher) PublishDocumentEvent(ctx context.Context, eventType model.EventType, doc *model.Document) error {
	data := map[string]any{
		"document_id": doc.ID,
		"filename":    doc.Filename,
		"status":      string(doc.Status),
		"uploaded_at": doc.UploadedAt,
	}
	if doc.ErrorMessage != "" {
		data["error_message"] = doc.ErrorMessage
	}
	if doc.ProcessedAt != nil {
		data["processed_at"] = doc.ProcessedAt
	}

	eventID := fmt.Sprintf("%s:%s", doc.ID, eventType)
	return p.publish(ctx, doc.OrganizationID, eventType, eventID, data)
}

// PublishTransactionEvent creates webhook deliveries for a transaction
// event.
func (p *Publisher) PublishTransactionEvent(ctx context.Context, eventType model.EventType, tx *model.Transaction) error {
	data := map[string]any{
		"transaction_id": tx.ID,
		"date":           tx.Date.Format("2006-01-02"),
		"amount":         tx.Amount,
		"merchant":       tx.Merchant,
		"status":         string(tx.Status),
	}
	if tx.CategoryID != nil {
		data["category_id"] = *tx.CategoryID
	}
	if tx.SourceDocumentID != nil {
		data["source_document_id"] = *tx.SourceDocumentID
	}

	eventID := fmt.Sprintf("%s:%s", tx.ID, eventType)
	return p.publish(ctx, tx.OrganizationID, eventType, eventID, data)
}

// publish fans an event out to every subscribed endpoint. Creation
// failures for one endpoint never block the others; the delivery
// insert is idempotent on (event_id, endpoint_id).
func (p *Publisher) publish(ctx context.Context, orgID string, eventType model.EventType, eventID string, data map[string]any) error {
	endpoints, err := p.repo.ListActiveEndpointsByOrgAndEvent(ctx, orgID, eventType)
	if err != nil {
		return fmt.Errorf("list active endpoints: %w", err)
	}

	if len(endpoints) == 0 {
		return nil // No webhooks configured
	}

	now := time.Now()

	// Build payload once, reuse for all endpoints
	payload := model.WebhookPayload{
		EventType: string(eventType),
		EventID:   eventID,
		Timestamp: now,
		Data:      data,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	for _, endpoint := range endpoints {
		delivery := &model.WebhookDelivery{
			ID:           ulid.Make().String(),
			EndpointID:   endpoint.ID,
			EventID:      eventID,
			EventType:    eventType,
			PayloadJSON:  string(payloadJSON),
			Status:       model.DeliveryStatusPending,
			AttemptCount: 0,
			MaxAttempts:  DefaultMaxAttempts,
			NextRetryAt:  now, // Immediate delivery
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := p.repo.CreateDelivery(ctx, delivery); err != nil {
			p.logger.Warn("failed to create delivery",
				"endpoint_id", endpoint.ID,
				"event_id", eventID,
				"error", err,
			)
			// Continue with other endpoints
			continue
		}

		p.logger.Debug("webhook delivery created",
			"delivery_id", delivery.ID,
			"endpoint_id", endpoint.ID,
			"event_id", eventID,
		)
	}

	return nil
}
