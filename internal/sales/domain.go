// Package sales records stock outbound and its reversal. A sale snapshots the
// weighted-average cost of each product at the time it is issued.
package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Status of a sale.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// Sale is a stored sale header with its raw line items.
type Sale struct {
	ID         int64
	Customer   string
	Total      decimal.Decimal
	Profit     decimal.Decimal
	Status     Status
	CanceledAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Items      []Item
}

// Item is one sale line exactly as submitted, with the cost frozen at sale time.
type Item struct {
	ID           int64
	SaleID       int64
	ProductID    int64
	Quantity     int64
	UnitPrice    decimal.Decimal
	CostSnapshot decimal.Decimal
	Subtotal     decimal.Decimal
	ItemProfit   decimal.Decimal
	CreatedAt    time.Time
}

// ItemInput is one requested sale line.
type ItemInput struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  int64           `json:"quantity" validate:"min=1,max=1000000"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"dmin=0.01,dmax=100000000,cents"`
}

// CreateInput is the sale request.
type CreateInput struct {
	Customer string      `json:"customer" validate:"required,min=2,max=150"`
	Items    []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// ListFilter selects a page of sales.
type ListFilter struct {
	Customer string
	Status   Status
	Page     shared.PageRequest
}

// ListResult is a page of sale headers.
type ListResult struct {
	Items      []Sale
	Pagination shared.Pagination
}
