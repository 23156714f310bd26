// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kernfi/kernfi/internal/audit"
	"github.com/kernfi/kernfi/internal/cache"
	"github.com/kernfi/kernfi/internal/metrics"
	"github.com/kernfi/kernfi/internal/model"
	"github.com/kernfi/kernfi/internal/repository"
	"github.com/kernfi/kernfi/internal/webhook"
)

// Service errors.
var (
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrAmountZero           = errors.New("amount must be non-zero")
	ErrAmountOutOfRange     = errors.New("amount out of range")
	ErrDateRequired         = errors.New("date is required")
	ErrDateInFuture         = errors.New("date must not be in the future")
	ErrInvalidStatus        = errors.New("invalid transaction status")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrUnknownCategory      = errors.New("unknown category")
	ErrDescriptionTooLong   = errors.New("description too long")
	ErrTooManyTags          = errors.New("too many tags")
	ErrAlreadyReviewed      = errors.New("transaction already reviewed")
)

const (
	maxTransactionAmount = 1_000_000_000
	maxDescriptionLength = 2048
	maxTagCount          = 20
	futureDateSlack      = 24 * time.Hour
)

// TransactionService handles transaction business logic.
type TransactionService struct {
	repo     *repository.Repository
	cache    *cache.Cache
	webhooks *webhook.Publisher
	auditor  *audit.Publisher
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewTransactionService creates a new TransactionService. The webhook
// and audit publishers are optional; a nil publisher disables that
// side effect.
func NewTransactionService(repo *repository.Repository, cache *cache.Cache, webhooks *webhook.Publisher, auditor *audit.Publisher, logger *slog.Logger, recorder metrics.Recorder) *TransactionService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &TransactionService{
		repo:     repo,
		cache:    cache,
		webhooks: webhooks,
		auditor:  auditor,
		logger:   logger.With("component", "service.transaction"),
		metrics:  recorder,
	}
}

// CreateTransactionInput defines input for creating a transaction.
type CreateTransactionInput struct {
	OrgID         string
	ActorID       string
	Date          time.Time
	Amount        float64
	Description   string
	Merchant      string
	CategoryID    *string
	Notes         string
	Tags          []string
	IsTransfer    bool
	IsOwnerDraw   bool
	PaymentMethod string
}

// CreateTransaction records a new transaction for the actor's
// organization. New transactions always start pending review.
func (s *TransactionService) CreateTransaction(ctx context.Context, input CreateTransactionInput) (*model.Transaction, error) {
	if err := s.validateAmount(input.Amount); err != nil {
		return nil, err
	}
	if input.Date.IsZero() {
		return nil, ErrDateRequired
	}
	if input.Date.After(time.Now().Add(futureDateSlack)) {
		return nil, ErrDateInFuture
	}
	if len(input.Description) > maxDescriptionLength {
		return nil, ErrDescriptionTooLong
	}
	if len(input.Tags) > maxTagCount {
		return nil, ErrTooManyTags
	}
	if input.PaymentMethod != "" && !slices.Contains(model.ValidPaymentMethods, input.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}
	if err := s.resolveCategory(ctx, input.OrgID, input.CategoryID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tx := &model.Transaction{
		ID:             uuid.NewString(),
		OrganizationID: input.OrgID,
		Date:           input.Date,
		Amount:         input.Amount,
		Description:    input.Description,
		Merchant:       input.Merchant,
		CategoryID:     input.CategoryID,
		Status:         model.TransactionStatusPending,
		Notes:          input.Notes,
		Tags:           input.Tags,
		IsTransfer:     input.IsTransfer,
		IsOwnerDraw:    input.IsOwnerDraw,
		PaymentMethod:  input.PaymentMethod,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	s.metrics.IncTransactionCreated()
	s.invalidateSummaries(ctx, input.OrgID)
	s.publishEvent(ctx, model.EventTypeTransactionCreated, tx)
	s.recordAudit(input.OrgID, input.ActorID, model.AuditActionCreate, tx.ID, map[string]any{
		"amount": tx.Amount,
		"date":   tx.Date.Format("2006-01-02"),
	})

	return tx, nil
}

// GetTransaction retrieves a transaction within the organization.
func (s *TransactionService) GetTransaction(ctx context.Context, orgID, id string) (*model.Transaction, error) {
	tx, err := s.repo.GetTransactionByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	return tx, nil
}

// ListTransactionsInput defines input for listing transactions.
type ListTransactionsInput struct {
	OrgID         string
	Cursor        string
	Limit         int
	Status        string
	CategoryID    string
	PaymentMethod string
	DateFrom      *time.Time
	DateTo        *time.Time
	MinAmount     *float64
	MaxAmount     *float64
}

// ListTransactionsOutput defines output for listing transactions.
type ListTransactionsOutput struct {
	Transactions []*model.Transaction
	NextCursor   string
	HasMore      bool
}

// ListTransactions retrieves a paginated, filtered list of the
// organization's transactions.
func (s *TransactionService) ListTransactions(ctx context.Context, input ListTransactionsInput) (*ListTransactionsOutput, error) {
	// Set defaults
	if input.Limit <= 0 || input.Limit > 100 {
		input.Limit = 20
	}
	if input.Status != "" && !model.TransactionStatus(input.Status).IsValid() {
		return nil, ErrInvalidStatus
	}

	filter := repository.TransactionFilter{
		OrgID:         input.OrgID,
		Status:        model.TransactionStatus(input.Status),
		CategoryID:    input.CategoryID,
		PaymentMethod: input.PaymentMethod,
		DateFrom:      input.DateFrom,
		DateTo:        input.DateTo,
		MinAmount:     input.MinAmount,
		MaxAmount:     input.MaxAmount,
	}

	transactions, nextCursor, err := s.repo.ListTransactions(ctx, filter, input.Cursor, input.Limit)
	if err != nil {
		return nil, err
	}

	return &ListTransactionsOutput{
		Transactions: transactions,
		NextCursor:   nextCursor,
		HasMore:      nextCursor != "",
	}, nil
}

// UpdateTransactionInput defines input for updating a transaction.
type UpdateTransactionInput struct {
	OrgID         string
	ActorID       string
	ID            string
	Date          *time.Time
	Amount        *float64
	Description   *string
	Merchant      *string
	CategoryID    *string
	ClearCategory bool // If true, set category_id to nil
	Notes         *string
	Tags          []string
	IsTransfer    *bool
	IsOwnerDraw   *bool
	PaymentMethod *string
}

// UpdateTransaction updates a transaction's mutable fields.
func (s *TransactionService) UpdateTransaction(ctx context.Context, input UpdateTransactionInput) (*model.Transaction, error) {
	tx, err := s.repo.GetTransactionByID(ctx, input.OrgID, input.ID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	// Apply updates
	if input.Date != nil {
		if input.Date.IsZero() {
			return nil, ErrDateRequired
		}
		if input.Date.After(time.Now().Add(futureDateSlack)) {
			return nil, ErrDateInFuture
		}
		tx.Date = *input.Date
	}

	if input.Amount != nil {
		if err := s.validateAmount(*input.Amount); err != nil {
			return nil, err
		}
		tx.Amount = *input.Amount
	}

	if input.Description != nil {
		if len(*input.Description) > maxDescriptionLength {
			return nil, ErrDescriptionTooLong
		}
		tx.Description = *input.Description
	}

	if input.Merchant != nil {
		tx.Merchant = *input.Merchant
	}

	if input.ClearCategory {
		tx.CategoryID = nil
	} else if input.CategoryID != nil {
		if err := s.resolveCategory(ctx, input.OrgID, input.CategoryID); err != nil {
			return nil, err
		}
		tx.CategoryID = input.CategoryID
	}

	if input.Notes != nil {
		tx.Notes = *input.Notes
	}

	if input.Tags != nil {
		if len(input.Tags) > maxTagCount {
			return nil, ErrTooManyTags
		}
		tx.Tags = input.Tags
	}

	if input.IsTransfer != nil {
		tx.IsTransfer = *input.IsTransfer
	}

	if input.IsOwnerDraw != nil {
		tx.IsOwnerDraw = *input.IsOwnerDraw
	}

	if input.PaymentMethod != nil {
		if *input.PaymentMethod != "" && !slices.Contains(model.ValidPaymentMethods, *input.PaymentMethod) {
			return nil, ErrInvalidPaymentMethod
		}
		tx.PaymentMethod = *input.PaymentMethod
	}

	if err := s.repo.UpdateTransaction(ctx, tx); err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	s.invalidateSummaries(ctx, input.OrgID)
	s.recordAudit(input.OrgID, input.ActorID, model.AuditActionUpdate, tx.ID, nil)

	return tx, nil
}

// ReviewTransactionInput defines input for reviewing a transaction.
type ReviewTransactionInput struct {
	OrgID      string
	ActorID    string
	ID         string
	Status     string  // "reviewed" or "flagged"
	CategoryID *string // Final category assigned by the reviewer
	Notes      *string
}

// ReviewTransaction marks a transaction reviewed or flagged and
// records the classification outcome when the transaction carried a
// suggestion.
func (s *TransactionService) ReviewTransaction(ctx context.Context, input ReviewTransactionInput) (*model.Transaction, error) {
	status := model.TransactionStatus(input.Status)
	if status != model.TransactionStatusReviewed && status != model.TransactionStatusFlagged {
		return nil, ErrInvalidStatus
	}

	tx, err := s.repo.GetTransactionByID(ctx, input.OrgID, input.ID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	if tx.Status == model.TransactionStatusReviewed {
		return nil, ErrAlreadyReviewed
	}

	if input.CategoryID != nil {
		if err := s.resolveCategory(ctx, input.OrgID, input.CategoryID); err != nil {
			return nil, err
		}
		tx.CategoryID = input.CategoryID
	}
	if input.Notes != nil {
		tx.Notes = *input.Notes
	}

	now := time.Now().UTC()
	tx.Status = status
	tx.ReviewedBy = &input.ActorID
	tx.ReviewedAt = &now

	if err := s.repo.UpdateTransaction(ctx, tx); err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	// Close the loop on the classifier's suggestion, if there was one.
	if err := s.repo.RecordClassificationOutcome(ctx, tx.ID, tx.CategoryID); err != nil {
		s.logger.Warn("failed to record classification outcome",
			"transaction_id", tx.ID,
			"error", err,
		)
	}

	s.metrics.IncTransactionReviewed()
	s.invalidateSummaries(ctx, input.OrgID)
	s.publishEvent(ctx, model.EventTypeTransactionReviewed, tx)
	s.recordAudit(input.OrgID, input.ActorID, model.AuditActionReview, tx.ID, map[string]any{
		"status": string(status),
	})

	return tx, nil
}

// DeleteTransaction removes a transaction from the organization.
func (s *TransactionService) DeleteTransaction(ctx context.Context, orgID, actorID, id string) error {
	if err := s.repo.DeleteTransaction(ctx, orgID, id); err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return ErrTransactionNotFound
		}
		return err
	}

	s.metrics.IncTransactionDeleted()
	s.invalidateSummaries(ctx, orgID)
	s.recordAudit(orgID, actorID, model.AuditActionDelete, id, nil)

	return nil
}

// GetSummary returns aggregate figures for the organization over an
// optional date range, cache-first.
func (s *TransactionService) GetSummary(ctx context.Context, orgID string, dateFrom, dateTo *time.Time) (*model.TransactionSummary, error) {
	if s.cache != nil {
		cached, err := s.cache.GetSummary(ctx, orgID, dateFrom, dateTo)
		if err == nil {
			s.metrics.IncSummaryCacheHit()
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("summary cache read failed", "error", err)
		}
		s.metrics.IncSummaryCacheMiss()
	}

	summary, err := s.repo.GetTransactionSummary(ctx, orgID, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetSummary(ctx, orgID, dateFrom, dateTo, summary); err != nil {
			s.logger.Warn("summary cache write failed", "error", err)
		}
	}

	return summary, nil
}

func (s *TransactionService) validateAmount(amount float64) error {
	if amount == 0 {
		return ErrAmountZero
	}
	if amount > maxTransactionAmount || amount < -maxTransactionAmount {
		return ErrAmountOutOfRange
	}
	return nil
}

// resolveCategory confirms a category reference is visible to the
// organization. Global categories resolve for every tenant.
func (s *TransactionService) resolveCategory(ctx context.Context, orgID string, categoryID *string) error {
	if categoryID == nil {
		return nil
	}
	_, err := s.repo.GetCategoryByID(ctx, orgID, *categoryID)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return ErrUnknownCategory
		}
		return err
	}
	return nil
}

func (s *TransactionService) invalidateSummaries(ctx context.Context, orgID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSummaries(ctx, orgID); err != nil {
		// Stale summaries expire within the TTL anyway.
		s.logger.Warn("summary invalidation failed", "org_id", orgID, "error", err)
	}
}

func (s *TransactionService) publishEvent(ctx context.Context, eventType model.EventType, tx *model.Transaction) {
	if s.webhooks == nil {
		return
	}
	if err := s.webhooks.PublishTransactionEvent(ctx, eventType, tx); err != nil {
		s.logger.Warn("failed to publish transaction event",
			"event_type", eventType,
			"transaction_id", tx.ID,
			"error", err,
		)
	}
}

func (s *TransactionService) recordAudit(orgID, actorID string, action model.AuditAction, entityID string, detail map[string]any) {
	if s.auditor == nil || actorID == "" {
		return
	}
	s.auditor.Record(orgID, actorID, action, model.AuditEntityTransaction, entityID, detail)
}
