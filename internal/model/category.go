package model

import "time"

// CategoryType classifies a chart-of-accounts category.
type CategoryType string

const (
	CategoryTypeRevenue   CategoryType = "revenue"
	CategoryTypeExpense   CategoryType = "expense"
	CategoryTypeAsset     CategoryType = "asset"
	CategoryTypeLiability CategoryType = "liability"
	CategoryTypeEquity    CategoryType = "equity"
)

// IsValid checks if the category type is recognized.
func (t CategoryType) IsValid() bool {
	switch t {
	case CategoryTypeRevenue, CategoryTypeExpense, CategoryTypeAsset,
		CategoryTypeLiability, CategoryTypeEquity:
		return true
	}
	return false
}

// Category is a chart-of-accounts entry. A nil OrganizationID marks a
// global category visible to every tenant; org-owned categories are
// visible only within their organization.
type Category struct {
	ID               string       `json:"id"`
	OrganizationID   *string      `json:"organization_id,omitempty"`
	Code             string       `json:"code,omitempty"`
	Name             string       `json:"name"`
	Type             CategoryType `json:"type"`
	ParentCategoryID *string      `json:"parent_category_id,omitempty"`
	IsActive         bool         `json:"is_active"`
	CreatedAt        time.Time    `json:"created_at"`
}

// IsGlobal returns true for categories shared across all organizations.
func (c *Category) IsGlobal() bool {
	return c.OrganizationID == nil
}
