package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kernfi/kernfi/internal/auth"
	"github.com/kernfi/kernfi/internal/handler/dto"
	"github.com/kernfi/kernfi/internal/service"
)

// TransactionHandler handles HTTP requests for transaction operations.
type TransactionHandler struct {
	svc    *service.TransactionService
	logger *slog.Logger
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(svc *service.TransactionService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		svc:    svc,
		logger: logger.With("handler", "transaction"),
	}
}

// Create handles POST /api/v1/transactions.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	var req dto.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	date, err := dto.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DATE", "Date must be YYYY-MM-DD")
		return
	}

	input := service.CreateTransactionInput{
		OrgID:         auth.ScopeFilter(identity),
		ActorID:       identity.UserID,
		Date:          date,
		Amount:        req.Amount,
		Description:   req.Description,
		Merchant:      req.Merchant,
		CategoryID:    req.CategoryID,
		Notes:         req.Notes,
		Tags:          req.Tags,
		IsTransfer:    req.IsTransfer,
		IsOwnerDraw:   req.IsOwnerDraw,
		PaymentMethod: req.PaymentMethod,
	}

	tx, err := h.svc.CreateTransaction(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("transaction_created",
		"transaction_id", tx.ID,
		"org_id", tx.OrganizationID,
	)

	writeJSON(w, http.StatusCreated, tx)
}

// Get handles GET /api/v1/transactions/{id}.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	tx, err := h.svc.GetTransaction(r.Context(), auth.ScopeFilter(identity), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// List handles GET /api/v1/transactions.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	query := r.URL.Query()

	limit := 20
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	input := service.ListTransactionsInput{
		OrgID:         auth.ScopeFilter(identity),
		Cursor:        query.Get("cursor"),
		Limit:         limit,
		Status:        query.Get("status"),
		CategoryID:    query.Get("category_id"),
		PaymentMethod: query.Get("payment_method"),
	}

	var err error
	if input.DateFrom, err = parseDateParam(query.Get("date_from")); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DATE", "date_from must be YYYY-MM-DD")
		return
	}
	if input.DateTo, err = parseDateParam(query.Get("date_to")); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DATE", "date_to must be YYYY-MM-DD")
		return
	}

	if v := query.Get("min_amount"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			input.MinAmount = &f
		}
	}
	if v := query.Get("max_amount"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			input.MaxAmount = &f
		}
	}

	result, err := h.svc.ListTransactions(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionListResponse{
		Transactions: result.Transactions,
		Pagination: dto.Pagination{
			NextCursor: result.NextCursor,
			HasMore:    result.HasMore,
		},
	})
}

// Update handles PATCH /api/v1/transactions/{id}.
func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req dto.UpdateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	input := service.UpdateTransactionInput{
		OrgID:         auth.ScopeFilter(identity),
		ActorID:       identity.UserID,
		ID:            id,
		Amount:        req.Amount,
		Description:   req.Description,
		Merchant:      req.Merchant,
		CategoryID:    req.CategoryID,
		ClearCategory: req.ClearCategory,
		Notes:         req.Notes,
		Tags:          req.Tags,
		IsTransfer:    req.IsTransfer,
		IsOwnerDraw:   req.IsOwnerDraw,
		PaymentMethod: req.PaymentMethod,
	}

	if req.Date != nil {
		date, err := dto.ParseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DATE", "Date must be YYYY-MM-DD")
			return
		}
		input.Date = &date
	}

	tx, err := h.svc.UpdateTransaction(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("transaction_updated", "transaction_id", tx.ID)

	writeJSON(w, http.StatusOK, tx)
}

// Review handles POST /api/v1/transactions/{id}/review.
func (h *TransactionHandler) Review(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req dto.ReviewTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	tx, err := h.svc.ReviewTransaction(r.Context(), service.ReviewTransactionInput{
		OrgID:      auth.ScopeFilter(identity),
		ActorID:    identity.UserID,
		ID:         id,
		Status:     req.Status,
		CategoryID: req.CategoryID,
		Notes:      req.Notes,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("transaction_reviewed",
		"transaction_id", tx.ID,
		"status", tx.Status,
		"reviewer", identity.UserID,
	)

	writeJSON(w, http.StatusOK, tx)
}

// Delete handles DELETE /api/v1/transactions/{id}.
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.svc.DeleteTransaction(r.Context(), auth.ScopeFilter(identity), identity.UserID, id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("transaction_deleted", "transaction_id", id)

	w.WriteHeader(http.StatusNoContent)
}

// Summary handles GET /api/v1/transactions/stats/summary.
func (h *TransactionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	query := r.URL.Query()

	dateFrom, err := parseDateParam(query.Get("date_from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DATE", "date_from must be YYYY-MM-DD")
		return
	}
	dateTo, err := parseDateParam(query.Get("date_to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DATE", "date_to must be YYYY-MM-DD")
		return
	}

	summary, err := h.svc.GetSummary(r.Context(), auth.ScopeFilter(identity), dateFrom, dateTo)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleServiceError maps service errors to HTTP responses.
func (h *TransactionHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Transaction not found")
	case errors.Is(err, service.ErrAmountZero):
		writeError(w, http.StatusUnprocessableEntity, "AMOUNT_ZERO", "Amount must be non-zero")
	case errors.Is(err, service.ErrAmountOutOfRange):
		writeError(w, http.StatusUnprocessableEntity, "AMOUNT_OUT_OF_RANGE", "Amount exceeds the supported range")
	case errors.Is(err, service.ErrDateRequired):
		writeError(w, http.StatusBadRequest, "DATE_REQUIRED", "Date is required")
	case errors.Is(err, service.ErrDateInFuture):
		writeError(w, http.StatusUnprocessableEntity, "DATE_IN_FUTURE", "Date must not be in the future")
	case errors.Is(err, service.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "INVALID_STATUS", "Unknown transaction status")
	case errors.Is(err, service.ErrInvalidPaymentMethod):
		writeError(w, http.StatusBadRequest, "INVALID_PAYMENT_METHOD", "Unknown payment method")
	case errors.Is(err, service.ErrUnknownCategory):
		writeError(w, http.StatusUnprocessableEntity, "UNKNOWN_CATEGORY", "Category does not exist")
	case errors.Is(err, service.ErrDescriptionTooLong):
		writeError(w, http.StatusUnprocessableEntity, "DESCRIPTION_TOO_LONG", "Description exceeds maximum length")
	case errors.Is(err, service.ErrTooManyTags):
		writeError(w, http.StatusUnprocessableEntity, "TOO_MANY_TAGS", "Too many tags")
	case errors.Is(err, service.ErrAlreadyReviewed):
		writeError(w, http.StatusConflict, "ALREADY_REVIEWED", "Transaction has already been reviewed")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// parseDateParam parses an optional date query parameter.
func parseDateParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := dto.ParseDate(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
