// Package reporting computes the dashboard overview and reacts to committed
// stock movements.
package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultLowStockThreshold is the stock level at or below which a product counts as low.
const DefaultLowStockThreshold = 5

// Overview is the dashboard summary. Revenue and profit only count completed sales.
type Overview struct {
	ProductsCount  int64           `json:"products_count"`
	PurchasesCount int64           `json:"purchases_count"`
	SalesCount     int64           `json:"sales_count"`
	RevenueMonth   decimal.Decimal `json:"revenue_month"`
	ProfitMonth    decimal.Decimal `json:"profit_month"`
	RevenueTotal   decimal.Decimal `json:"revenue_total"`
	ProfitTotal    decimal.Decimal `json:"profit_total"`
	LowStock       int64           `json:"low_stock"`
	MonthLabel     string          `json:"month_label"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// SalesTotals sums completed sales.
type SalesTotals struct {
	Revenue decimal.Decimal
	Profit  decimal.Decimal
}

// LowStockProduct is a product at or below the threshold.
type LowStockProduct struct {
	ID    int64
	Name  string
	Stock int64
}

// Period bounds a half-open time range [From, To).
type Period struct {
	From time.Time
	To   time.Time
}

// MonthOf returns the calendar month containing t in t's location.
func MonthOf(t time.Time) Period {
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return Period{From: from, To: from.AddDate(0, 1, 0)}
}
