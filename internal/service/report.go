package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/kernfi/kernfi/internal/model"
	"github.com/kernfi/kernfi/internal/repository"
)

// ReportPeriod bounds a report's date range. Nil bounds are open.
type ReportPeriod struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// LineItem is one category row of a financial report.
type LineItem struct {
	CategoryID   *string `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Amount       float64 `json:"amount"`
	Count        int64   `json:"count"`
}

// IncomeStatement summarizes revenue and expenses over a period.
// Transfers between accounts are excluded from every line.
type IncomeStatement struct {
	Period        ReportPeriod `json:"period"`
	Revenue       []LineItem   `json:"revenue"`
	Expenses      []LineItem   `json:"expenses"`
	Uncategorized []LineItem   `json:"uncategorized,omitempty"`
	TotalRevenue  float64      `json:"total_revenue"`
	TotalExpenses float64      `json:"total_expenses"`
	NetIncome     float64      `json:"net_income"`
}

// BalanceSheet reports assets, liabilities and equity at a point in
// time. Computation is performed by an external accounting engine;
// the report shape is served with empty sections until one is wired.
type BalanceSheet struct {
	AsOf        time.Time  `json:"as_of"`
	Assets      []LineItem `json:"assets"`
	Liabilities []LineItem `json:"liabilities"`
	Equity      []LineItem `json:"equity"`
	Complete    bool       `json:"complete"`
}

// CashFlow reports cash movement over a period. As with the balance
// sheet, the figures come from an external engine.
type CashFlow struct {
	Period    ReportPeriod `json:"period"`
	Operating []LineItem   `json:"operating"`
	Investing []LineItem   `json:"investing"`
	Financing []LineItem   `json:"financing"`
	NetChange float64      `json:"net_change"`
	Complete  bool         `json:"complete"`
}

// ReportService assembles financial reports from transaction
// aggregates.
type ReportService struct {
	repo   *repository.Repository
	logger *slog.Logger
}

// NewReportService creates a new ReportService.
func NewReportService(repo *repository.Repository, logger *slog.Logger) *ReportService {
	return &ReportService{
		repo:   repo,
		logger: logger.With("component", "service.report"),
	}
}

// GetIncomeStatement computes an income statement for the organization
// over an optional date range. Positive totals are reported as
// revenue, negative totals as expenses; categorized rows follow the
// category's declared type instead of the sign.
func (s *ReportService) GetIncomeStatement(ctx context.Context, orgID string, from, to *time.Time) (*IncomeStatement, error) {
	totals, err := s.repo.GetCategoryTotals(ctx, orgID, from, to, true)
	if err != nil {
		return nil, err
	}

	categories, err := s.repo.ListCategories(ctx, orgID, "")
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	stmt := &IncomeStatement{
		Period: ReportPeriod{From: from, To: to},
	}

	for _, ct := range totals {
		item := LineItem{
			CategoryID: ct.CategoryID,
			Amount:     ct.Total,
			Count:      ct.Count,
		}

		var catType model.CategoryType
		if ct.CategoryID != nil {
			if cat, ok := byID[*ct.CategoryID]; ok {
				item.CategoryName = cat.Name
				catType = cat.Type
			}
		}

		switch {
		case catType == model.CategoryTypeRevenue:
			stmt.Revenue = append(stmt.Revenue, item)
			stmt.TotalRevenue += ct.Total
		case catType == model.CategoryTypeExpense:
			stmt.Expenses = append(stmt.Expenses, item)
			stmt.TotalExpenses += ct.Total
		case ct.CategoryID == nil:
			item.CategoryName = "Uncategorized"
			stmt.Uncategorized = append(stmt.Uncategorized, item)
			if ct.Total >= 0 {
				stmt.TotalRevenue += ct.Total
			} else {
				stmt.TotalExpenses += ct.Total
			}
		case ct.Total >= 0:
			// Balance-sheet category types fall back to the sign.
			stmt.Revenue = append(stmt.Revenue, item)
			stmt.TotalRevenue += ct.Total
		default:
			stmt.Expenses = append(stmt.Expenses, item)
			stmt.TotalExpenses += ct.Total
		}
	}

	sortLineItems(stmt.Revenue)
	sortLineItems(stmt.Expenses)
	stmt.NetIncome = stmt.TotalRevenue + stmt.TotalExpenses

	return stmt, nil
}

// GetBalanceSheet returns the balance sheet shape for the
// organization. The sections stay empty until an accounting engine is
// wired in.
func (s *ReportService) GetBalanceSheet(_ context.Context, orgID string, asOf time.Time) (*BalanceSheet, error) {
	s.logger.Debug("balance sheet requested without accounting engine", "org_id", orgID)
	return &BalanceSheet{
		AsOf:        asOf,
		Assets:      []LineItem{},
		Liabilities: []LineItem{},
		Equity:      []LineItem{},
		Complete:    false,
	}, nil
}

// GetCashFlow returns the cash flow report shape for the organization.
func (s *ReportService) GetCashFlow(_ context.Context, orgID string, from, to *time.Time) (*CashFlow, error) {
	s.logger.Debug("cash flow requested without accounting engine", "org_id", orgID)
	return &CashFlow{
		Period:    ReportPeriod{From: from, To: to},
		Operating: []LineItem{},
		Investing: []LineItem{},
		Financing: []LineItem{},
		Complete:  false,
	}, nil
}

// sortLineItems orders report lines by absolute amount, largest first.
func sortLineItems(items []LineItem) {
	sort.Slice(items, func(i, j int) bool {
		ai, aj := items[i].Amount, items[j].Amount
		if ai < 0 {
			ai = -ai
		}
		if aj < 0 {
			aj = -aj
		}
		return ai > aj
	})
}
