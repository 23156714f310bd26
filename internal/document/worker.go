package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kernfi/kernfi/internal/metrics"
	"github.com/kernfi/kernfi/internal/model"
	"github.com/kernfi/kernfi/internal/webhook"
)

const (
	// DefaultPollInterval is the time between polls for queued documents.
	DefaultPollInterval = 3 * time.Second
	// DefaultBatchSize is the number of documents fetched per poll.
	DefaultBatchSize = 10
	// DefaultParseTimeout bounds a single parser invocation.
	DefaultParseTimeout = 2 * time.Minute
)

// Store is the slice of the repository the worker operates on.
type Store interface {
	ListQueuedDocuments(ctx context.Context, limit int) ([]*model.Document, error)
	UpdateDocumentStatus(ctx context.Context, orgID, id string, status model.DocumentStatus, errorMessage string) error
	CreateTransaction(ctx context.Context, tx *model.Transaction) error
	CreateClassificationRecord(ctx context.Context, rec *model.ClassificationRecord) error
}

// Worker polls documents queued for processing, parses them and
// records the extracted transactions. Documents are queued by the
// process endpoint, which moves them from pending to processing; the
// worker owns the transition out of processing.
type Worker struct {
	store        Store
	parser       Parser
	webhooks     *webhook.Publisher
	logger       *slog.Logger
	metrics      metrics.Recorder
	pollInterval time.Duration
	parseTimeout time.Duration
	batchSize    int
	started      bool
}

// NewWorker creates a new document processing worker.
func NewWorker(store Store, parser Parser, webhooks *webhook.Publisher, logger *slog.Logger, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		store:        store,
		parser:       parser,
		webhooks:     webhooks,
		logger:       logger.With("component", "document.worker"),
		metrics:      recorder,
		pollInterval: DefaultPollInterval,
		parseTimeout: DefaultParseTimeout,
		batchSize:    DefaultBatchSize,
	}
}

// SetPollInterval overrides the poll interval. Call before Run.
func (w *Worker) SetPollInterval(d time.Duration) {
	if d > 0 {
		w.pollInterval = d
	}
}

// SetBatchSize overrides the per-poll batch size. Call before Run.
func (w *Worker) SetBatchSize(n int) {
	if n > 0 {
		w.batchSize = n
	}
}

// Run starts the worker loop. Blocks until context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.started {
		return errors.New("worker already started")
	}
	w.started = true

	if w.parser == nil {
		return ErrParserUnavailable
	}

	w.logger.Info("document worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("document worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := w.drainQueued(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("process error", "error", err)
			}
		}
	}
}

// drainQueued fetches one batch of queued documents and runs each
// through the parser. Documents that keep the processing status after
// a failed terminal write are picked up again on a later poll.
func (w *Worker) drainQueued(ctx context.Context) error {
	docs, err := w.store.ListQueuedDocuments(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list queued documents: %w", err)
	}

	for _, doc := range docs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.process(ctx, doc)
	}
	return nil
}

// process runs a queued document through the parser and records the
// outcome.
func (w *Worker) process(ctx context.Context, doc *model.Document) {
	start := time.Now()

	parseCtx, cancel := context.WithTimeout(ctx, w.parseTimeout)
	extracted, err := w.parser.Parse(parseCtx, doc)
	cancel()

	if err != nil {
		w.fail(ctx, doc, err)
		w.observe(start, "failed")
		return
	}

	inserted := 0
	for _, row := range extracted {
		if err := w.insertTransaction(ctx, doc, row); err != nil {
			w.logger.Warn("failed to insert extracted transaction",
				"document_id", doc.ID,
				"error", err,
			)
			continue
		}
		inserted++
	}

	if err := w.store.UpdateDocumentStatus(ctx, doc.OrganizationID, doc.ID, model.DocumentStatusCompleted, ""); err != nil {
		w.logger.Error("failed to mark document completed",
			"document_id", doc.ID,
			"error", err,
		)
		w.observe(start, "failed")
		return
	}
	doc.Status = model.DocumentStatusCompleted

	w.observe(start, "completed")
	w.publishEvent(ctx, model.EventTypeDocumentCompleted, doc)

	w.logger.Info("document processed",
		"document_id", doc.ID,
		"org_id", doc.OrganizationID,
		"extracted", len(extracted),
		"inserted", inserted,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// insertTransaction stores one extracted row as a pending transaction
// together with its classification suggestion.
func (w *Worker) insertTransaction(ctx context.Context, doc *model.Document, row ExtractedTransaction) error {
	now := time.Now().UTC()
	tx := &model.Transaction{
		ID:               uuid.NewString(),
		OrganizationID:   doc.OrganizationID,
		SourceDocumentID: &doc.ID,
		Date:             row.Date,
		Amount:           row.Amount,
		Description:      row.Description,
		Merchant:         row.Merchant,
		CategoryID:       row.SuggestedCategoryID,
		ConfidenceScore:  row.ConfidenceScore,
		Status:           model.TransactionStatusPending,
		PaymentMethod:    row.PaymentMethod,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := w.store.CreateTransaction(ctx, tx); err != nil {
		return err
	}

	if row.SuggestedCategoryID != nil {
		rec := &model.ClassificationRecord{
			ID:                  uuid.NewString(),
			TransactionID:       tx.ID,
			SuggestedCategoryID: row.SuggestedCategoryID,
			ConfidenceScore:     row.ConfidenceScore,
			Rationale:           row.Rationale,
			CreatedAt:           now,
		}
		if err := w.store.CreateClassificationRecord(ctx, rec); err != nil {
			w.logger.Warn("failed to record classification suggestion",
				"transaction_id", tx.ID,
				"error", err,
			)
		}
	}

	if w.webhooks != nil {
		if err := w.webhooks.PublishTransactionEvent(ctx, model.EventTypeTransactionCreated, tx); err != nil {
			w.logger.Warn("failed to publish transaction event",
				"transaction_id", tx.ID,
				"error", err,
			)
		}
	}
	return nil
}

// fail marks the document failed and publishes the failure event.
func (w *Worker) fail(ctx context.Context, doc *model.Document, cause error) {
	w.logger.Warn("document parse failed",
		"document_id", doc.ID,
		"org_id", doc.OrganizationID,
		"error", cause,
	)

	doc.ErrorMessage = cause.Error()
	if err := w.store.UpdateDocumentStatus(ctx, doc.OrganizationID, doc.ID, model.DocumentStatusFailed, doc.ErrorMessage); err != nil {
		w.logger.Error("failed to mark document failed",
			"document_id", doc.ID,
			"error", err,
		)
		return
	}
	doc.Status = model.DocumentStatusFailed

	w.publishEvent(ctx, model.EventTypeDocumentFailed, doc)
}

func (w *Worker) observe(start time.Time, status string) {
	w.metrics.IncDocumentProcessed(status)
	w.metrics.ObserveDocumentProcessingDuration(time.Since(start))
}

func (w *Worker) publishEvent(ctx context.Context, eventType model.EventType, doc *model.Document) {
	if w.webhooks == nil || doc == nil {
		return
	}
	if err := w.webhooks.PublishDocumentEvent(ctx, eventType, doc); err != nil {
		w.logger.Warn("failed to publish document event",
			"event_type", eventType,
			"document_id", doc.ID,
			"error", err,
		)
	}
}
