// Package ledger owns per-product stock and weighted-average cost. Every
// mutation of a product's stock goes through a Ledger bound to one unit of work.
package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Product is the authoritative stock row of a product.
type Product struct {
	ID        int64
	Name      string
	Stock     int64
	AvgCost   decimal.Decimal
	SalePrice decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LineItem is one raw request line as submitted by the caller.
type LineItem struct {
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
}

// ProductTotal is the per-product sum of raw line items.
type ProductTotal struct {
	Quantity int64
	Cost     decimal.Decimal
}

// Aggregation keeps the raw lines for storage next to the per-product sums
// that drive ledger updates.
type Aggregation struct {
	Items      []LineItem
	ByProduct  map[int64]ProductTotal
	ProductIDs []int64
}

// MovementKind names a ledger operation.
type MovementKind string

const (
	// MovementReceive is stock inbound from a purchase.
	MovementReceive MovementKind = "receive"
	// MovementIssue is stock outbound from a sale.
	MovementIssue MovementKind = "issue"
	// MovementReverse returns stock of a canceled sale.
	MovementReverse MovementKind = "reverse"
)

// ErrEmptyItems is returned when a request carries no line items.
var ErrEmptyItems = &shared.ValidationError{Fields: map[string]string{"items": "at least one item is required"}}

// ErrProductNotLocked guards ledger calls for ids outside the locked set.
var ErrProductNotLocked = errors.New("ledger: product not locked in this unit of work")
