// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Authentication metrics
	IncAuthSuccess()
	IncAuthFailure(reason string) // reason: "invalid_token", "unknown_subject", "missing_credential"

	// Transaction metrics
	IncTransactionCreated()
	IncTransactionReviewed()
	IncTransactionDeleted()

	// Report metrics
	IncSummaryCacheHit()
	IncSummaryCacheMiss()

	// Document pipeline metrics
	IncDocumentUploaded()
	IncDocumentProcessed(status string) // status: "completed" or "failed"
	ObserveDocumentProcessingDuration(duration time.Duration)

	// Webhook delivery metrics
	IncWebhookDelivery(status string) // status: "success", "failed", "exhausted"
	ObserveWebhookDeliveryDuration(duration time.Duration)
	SetWebhookQueueDepth(depth int64)

	// Audit pipeline metrics
	IncAuditEventPublished(status string) // status: "success" or "dropped"
	IncAuditEventProcessed(status string) // status: "success", "failed", "skipped"
	SetAuditQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
