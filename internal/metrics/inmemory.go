package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	AuthSuccesses uint64
	AuthFailures  map[string]uint64

	TransactionsCreated  uint64
	TransactionsReviewed uint64
	TransactionsDeleted  uint64

	SummaryCacheHits   uint64
	SummaryCacheMisses uint64

	DocumentsUploaded            uint64
	DocumentsProcessed           map[string]uint64
	DocumentProcessingCount      uint64
	DocumentProcessingTotalNs    int64
	WebhookDeliveries            map[string]uint64
	WebhookDeliveryDurationCount uint64
	WebhookDeliveryTotalNs       int64
	WebhookQueueDepth            int64

	AuditEventsPublished map[string]uint64
	AuditEventsProcessed map[string]uint64
	AuditQueueDepth      int64
}

// InMemoryRecorder stores metrics in memory for tests and the metrics
// endpoint.
type InMemoryRecorder struct {
	authSuccesses uint64

	transactionsCreated  uint64
	transactionsReviewed uint64
	transactionsDeleted  uint64

	summaryCacheHits   uint64
	summaryCacheMisses uint64

	documentsUploaded         uint64
	documentProcessingCount   uint64
	documentProcessingTotalNs int64

	webhookDeliveryCount   uint64
	webhookDeliveryTotalNs int64
	webhookQueueDepth      int64

	auditQueueDepth int64

	mu                   sync.Mutex
	authFailures         map[string]uint64
	documentsProcessed   map[string]uint64
	webhookDeliveries    map[string]uint64
	auditEventsPublished map[string]uint64
	auditEventsProcessed map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		authFailures:         make(map[string]uint64),
		documentsProcessed:   make(map[string]uint64),
		webhookDeliveries:    make(map[string]uint64),
		auditEventsPublished: make(map[string]uint64),
		auditEventsProcessed: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		AuthSuccesses:                atomic.LoadUint64(&m.authSuccesses),
		AuthFailures:                 copyCounters(m.authFailures),
		TransactionsCreated:          atomic.LoadUint64(&m.transactionsCreated),
		TransactionsReviewed:         atomic.LoadUint64(&m.transactionsReviewed),
		TransactionsDeleted:          atomic.LoadUint64(&m.transactionsDeleted),
		SummaryCacheHits:             atomic.LoadUint64(&m.summaryCacheHits),
		SummaryCacheMisses:           atomic.LoadUint64(&m.summaryCacheMisses),
		DocumentsUploaded:            atomic.LoadUint64(&m.documentsUploaded),
		DocumentsProcessed:           copyCounters(m.documentsProcessed),
		DocumentProcessingCount:      atomic.LoadUint64(&m.documentProcessingCount),
		DocumentProcessingTotalNs:    atomic.LoadInt64(&m.documentProcessingTotalNs),
		WebhookDeliveries:            copyCounters(m.webhookDeliveries),
		WebhookDeliveryDurationCount: atomic.LoadUint64(&m.webhookDeliveryCount),
		WebhookDeliveryTotalNs:       atomic.LoadInt64(&m.webhookDeliveryTotalNs),
		WebhookQueueDepth:            atomic.LoadInt64(&m.webhookQueueDepth),
		AuditEventsPublished:         copyCounters(m.auditEventsPublished),
		AuditEventsProcessed:         copyCounters(m.auditEventsProcessed),
		AuditQueueDepth:              atomic.LoadInt64(&m.auditQueueDepth),
	}
}

// IncAuthSuccess increments the successful authentication counter.
func (m *InMemoryRecorder) IncAuthSuccess() {
	atomic.AddUint64(&m.authSuccesses, 1)
}

// IncAuthFailure increments the failure counter for a reason.
func (m *InMemoryRecorder) IncAuthFailure(reason string) {
	m.mu.Lock()
	m.authFailures[reason]++
	m.mu.Unlock()
}

// IncTransactionCreated increments the transaction created counter.
func (m *InMemoryRecorder) IncTransactionCreated() {
	atomic.AddUint64(&m.transactionsCreated, 1)
}

// IncTransactionReviewed increments the transaction reviewed counter.
func (m *InMemoryRecorder) IncTransactionReviewed() {
	atomic.AddUint64(&m.transactionsReviewed, 1)
}

// IncTransactionDeleted increments the transaction deleted counter.
func (m *InMemoryRecorder) IncTransactionDeleted() {
	atomic.AddUint64(&m.transactionsDeleted, 1)
}

// IncSummaryCacheHit increments the summary cache hit counter.
func (m *InMemoryRecorder) IncSummaryCacheHit() {
	atomic.AddUint64(&m.summaryCacheHits, 1)
}

// IncSummaryCacheMiss increments the summary cache miss counter.
func (m *InMemoryRecorder) IncSummaryCacheMiss() {
	atomic.AddUint64(&m.summaryCacheMisses, 1)
}

// IncDocumentUploaded increments the document upload counter.
func (m *InMemoryRecorder) IncDocumentUploaded() {
	atomic.AddUint64(&m.documentsUploaded, 1)
}

// IncDocumentProcessed increments the processed counter for a status.
func (m *InMemoryRecorder) IncDocumentProcessed(status string) {
	m.mu.Lock()
	m.documentsProcessed[status]++
	m.mu.Unlock()
}

// ObserveDocumentProcessingDuration records document processing time.
func (m *InMemoryRecorder) ObserveDocumentProcessingDuration(duration time.Duration) {
	atomic.AddUint64(&m.documentProcessingCount, 1)
	atomic.AddInt64(&m.documentProcessingTotalNs, duration.Nanoseconds())
}

// IncWebhookDelivery increments the delivery counter for a status.
func (m *InMemoryRecorder) IncWebhookDelivery(status string) {
	m.mu.Lock()
	m.webhookDeliveries[status]++
	m.mu.Unlock()
}

// ObserveWebhookDeliveryDuration records webhook delivery time.
func (m *InMemoryRecorder) ObserveWebhookDeliveryDuration(duration time.Duration) {
	atomic.AddUint64(&m.webhookDeliveryCount, 1)
	atomic.AddInt64(&m.webhookDeliveryTotalNs, duration.Nanoseconds())
}

// SetWebhookQueueDepth records the current pending delivery backlog.
func (m *InMemoryRecorder) SetWebhookQueueDepth(depth int64) {
	atomic.StoreInt64(&m.webhookQueueDepth, depth)
}

// IncAuditEventPublished increments the publish counter for a status.
func (m *InMemoryRecorder) IncAuditEventPublished(status string) {
	m.mu.Lock()
	m.auditEventsPublished[status]++
	m.mu.Unlock()
}

// IncAuditEventProcessed increments the processed counter for a status.
func (m *InMemoryRecorder) IncAuditEventProcessed(status string) {
	m.mu.Lock()
	m.auditEventsProcessed[status]++
	m.mu.Unlock()
}

// SetAuditQueueDepth records the current audit stream depth.
func (m *InMemoryRecorder) SetAuditQueueDepth(depth int64) {
	atomic.StoreInt64(&m.auditQueueDepth, depth)
}

func copyCounters(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
