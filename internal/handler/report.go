package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/kernfi/kernfi/internal/auth"
	"github.com/kernfi/kernfi/internal/handler/dto"
	"github.com/kernfi/kernfi/internal/middleware"
	"github.com/kernfi/kernfi/internal/service"
)

// ReportHandler handles HTTP requests for financial reports.
type ReportHandler struct {
	svc    *service.ReportService
	logger *slog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(svc *service.ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		svc:    svc,
		logger: logger.With("handler", "report"),
	}
}

// IncomeStatement handles GET /api/v1/reports/income-statement.
func (h *ReportHandler) IncomeStatement(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	from, to, ok := h.parsePeriod(w, r)
	if !ok {
		return
	}

	stmt, err := h.svc.GetIncomeStatement(r.Context(), auth.ScopeFilter(identity), from, to)
	if err != nil {
		h.logger.Error("failed to build income statement", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, stmt)
}

// BalanceSheet handles GET /api/v1/reports/balance-sheet.
func (h *ReportHandler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	asOf := time.Now().UTC()
	if v := r.URL.Query().Get("as_of"); v != "" {
		parsed, err := dto.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DATE", "as_of must be YYYY-MM-DD")
			return
		}
		asOf = parsed
	}

	report, err := h.svc.GetBalanceSheet(r.Context(), auth.ScopeFilter(identity), asOf)
	if err != nil {
		h.logger.Error("failed to build balance sheet", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// CashFlow handles GET /api/v1/reports/cash-flow.
func (h *ReportHandler) CashFlow(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	from, to, ok := h.parsePeriod(w, r)
	if !ok {
		return
	}

	report, err := h.svc.GetCashFlow(r.Context(), auth.ScopeFilter(identity), from, to)
	if err != nil {
		h.logger.Error("failed to build cash flow", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// parsePeriod reads and validates the from/to query parameters. A
// false return means an error response has been written.
func (h *ReportHandler) parsePeriod(w http.ResponseWriter, r *http.Request) (*time.Time, *time.Time, bool) {
	query := r.URL.Query()

	from, err := parseDateParam(query.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DATE", "from must be YYYY-MM-DD")
		return nil, nil, false
	}
	to, err := parseDateParam(query.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DATE", "to must be YYYY-MM-DD")
		return nil, nil, false
	}
	if err := middleware.ValidateDateRange(from, to); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DATE_RANGE", "from must not be after to")
		return nil, nil, false
	}

	return from, to, true
}
