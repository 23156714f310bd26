package handler

import (
	"fmt"
	"net/http"

	"github.com/kernfi/kernfi/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "kernfi_auth_success_total %d\n", snap.AuthSuccesses)
	for reason, count := range snap.AuthFailures {
		writeMetric(w, "kernfi_auth_failure_total{reason=%q} %d\n", reason, count)
	}

	writeMetric(w, "kernfi_transactions_created_total %d\n", snap.TransactionsCreated)
	writeMetric(w, "kernfi_transactions_reviewed_total %d\n", snap.TransactionsReviewed)
	writeMetric(w, "kernfi_transactions_deleted_total %d\n", snap.TransactionsDeleted)

	writeMetric(w, "kernfi_summary_cache_hits_total %d\n", snap.SummaryCacheHits)
	writeMetric(w, "kernfi_summary_cache_misses_total %d\n", snap.SummaryCacheMisses)

	writeMetric(w, "kernfi_documents_uploaded_total %d\n", snap.DocumentsUploaded)
	for status, count := range snap.DocumentsProcessed {
		writeMetric(w, "kernfi_documents_processed_total{status=%q} %d\n", status, count)
	}
	writeMetric(w, "kernfi_document_processing_duration_seconds_count %d\n", snap.DocumentProcessingCount)
	writeMetric(w, "kernfi_document_processing_duration_seconds_sum %.6f\n", float64(snap.DocumentProcessingTotalNs)/1e9)

	for status, count := range snap.WebhookDeliveries {
		writeMetric(w, "kernfi_webhook_deliveries_total{status=%q} %d\n", status, count)
	}
	writeMetric(w, "kernfi_webhook_delivery_duration_seconds_count %d\n", snap.WebhookDeliveryDurationCount)
	writeMetric(w, "kernfi_webhook_delivery_duration_seconds_sum %.6f\n", float64(snap.WebhookDeliveryTotalNs)/1e9)
	writeMetric(w, "kernfi_webhook_queue_depth %d\n", snap.WebhookQueueDepth)

	for status, count := range snap.AuditEventsPublished {
		writeMetric(w, "kernfi_audit_events_published_total{status=%q} %d\n", status, count)
	}
	for status, count := range snap.AuditEventsProcessed {
		writeMetric(w, "kernfi_audit_events_processed_total{status=%q} %d\n", status, count)
	}
	writeMetric(w, "kernfi_audit_queue_depth %d\n", snap.AuditQueueDepth)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
