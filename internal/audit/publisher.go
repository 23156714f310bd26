// Package audit captures mutation events and persists the audit trail.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kernfi/kernfi/internal/metrics"
	"github.com/kernfi/kernfi/internal/model"
)

const (
	// StreamKey is the Redis stream for audit events.
	StreamKey = "stream:audit_events"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:audit_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// EventPayload is the compact audit event format for the Redis stream.
type EventPayload struct {
	OrganizationID string         `json:"org"`
	ActorID        string         `json:"actor"`
	Action         string         `json:"a"`
	EntityType     string         `json:"et"`
	EntityID       string         `json:"eid"`
	Detail         map[string]any `json:"d,omitempty"`
	OccurredAt     int64          `json:"t"` // Unix milliseconds
}

// Publisher enqueues audit events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new audit event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "audit.publisher"),
		metrics: recorder,
	}
}

// Publish adds an audit event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event EventPayload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",  // Auto-generate ID
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()

	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned (fire-and-forget). A dropped
// audit event never fails the mutation it describes.
func (p *Publisher) PublishAsync(event EventPayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish audit event",
				"entity_type", event.EntityType,
				"entity_id", event.EntityID,
				"error", err,
			)
			p.metrics.IncAuditEventPublished("dropped")
			return
		}

		p.logger.Debug("audit event published",
			"entity_type", event.EntityType,
			"entity_id", event.EntityID,
			"stream_id", streamID,
		)
		p.metrics.IncAuditEventPublished("success")
	}()
}

// Record builds a payload from a mutation and publishes it
// asynchronously.
func (p *Publisher) Record(orgID, actorID string, action model.AuditAction, entityType model.AuditEntityType, entityID string, detail map[string]any) {
	p.PublishAsync(EventPayload{
		OrganizationID: orgID,
		ActorID:        actorID,
		Action:         string(action),
		EntityType:     string(entityType),
		EntityID:       entityID,
		Detail:         detail,
		OccurredAt:     time.Now().UnixMilli(),
	})
}
