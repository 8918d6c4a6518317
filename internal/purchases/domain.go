// Package purchases records stock inbound: each purchase receives its items
// into the ledger and recomputes weighted-average costs.
package purchases

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Purchase is a stored purchase header with its raw line items.
type Purchase struct {
	ID        int64
	Supplier  string
	Total     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
	Items     []Item
}

// Item is one purchase line exactly as submitted.
type Item struct {
	ID         int64
	PurchaseID int64
	ProductID  int64
	Quantity   int64
	UnitPrice  decimal.Decimal
	Subtotal   decimal.Decimal
	CreatedAt  time.Time
}

// ItemInput is one requested purchase line.
type ItemInput struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  int64           `json:"quantity" validate:"min=1,max=1000000"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"dmin=0.01,dmax=100000000,cents"`
}

// CreateInput is the purchase request.
type CreateInput struct {
	Supplier string      `json:"supplier" validate:"required,min=2,max=150"`
	Items    []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// UpdatedProduct is the ledger state of a product after the purchase.
type UpdatedProduct struct {
	ID      int64
	Stock   int64
	AvgCost decimal.Decimal
}

// CreateResult is returned by Create.
type CreateResult struct {
	Purchase        Purchase
	UpdatedProducts []UpdatedProduct
}

// ListFilter selects a page of purchases.
type ListFilter struct {
	Supplier string
	Page     shared.PageRequest
}

// ListResult is a page of purchase headers.
type ListResult struct {
	Items      []Purchase
	Pagination shared.Pagination
}
