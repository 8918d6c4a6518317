// Package products registers products and exposes read-only stock accessors.
// Stock and average cost are written only by the ledger after registration.
package products

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/ledger"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// DefaultStock is applied when a product is registered without a stock figure.
const DefaultStock int64 = 1

// Product is the ledger row.
type Product = ledger.Product

// ErrDuplicateName signals that another product already uses the name.
var ErrDuplicateName = fmt.Errorf("%w: product name already registered", shared.ErrConflict)

// RegisterInput carries a new product.
type RegisterInput struct {
	Name      string           `json:"name" validate:"required,min=3,max=255"`
	SalePrice decimal.Decimal  `json:"sale_price" validate:"dmin=0.01,dmax=100000000,cents"`
	Stock     *int64           `json:"stock" validate:"omitempty,gte=0,lte=1000000000"`
	AvgCost   *decimal.Decimal `json:"avg_cost" validate:"omitempty,dmin=0,dmax=100000000,cents"`
}

// RegisterResult reports the stored product and whether DefaultStock was used.
type RegisterResult struct {
	Product             Product
	DefaultStockApplied bool
}

// StockLevel is the read-only view used by reporting collaborators.
type StockLevel struct {
	ProductID int64
	Stock     int64
	AvgCost   decimal.Decimal
}
