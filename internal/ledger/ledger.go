package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/money"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// StockTx is the slice of a unit of work the ledger needs. LockProducts must
// take exclusive row locks on the requested ids, which are always passed in
// ascending order, and hold them until the unit of work ends.
type StockTx interface {
	LockProducts(ctx context.Context, ids []int64) ([]Product, error)
	SaveStock(ctx context.Context, id int64, stock int64, avgCost decimal.Decimal) error
}

// Ledger applies stock movements to the products locked by one unit of work.
type Ledger struct {
	tx       StockTx
	ids      []int64
	products map[int64]*Product
}

// Lock acquires the row locks for ids in one ascending request and returns a
// ledger scoped to them. Ids without a product row are tolerated here so that
// callers can report them; any later operation on them fails with ErrNotFound.
func Lock(ctx context.Context, tx StockTx, ids []int64) (*Ledger, error) {
	sorted := SortedIDs(ids)
	l := &Ledger{tx: tx, ids: sorted, products: make(map[int64]*Product, len(sorted))}
	if len(sorted) == 0 {
		return l, nil
	}
	rows, err := tx.LockProducts(ctx, sorted)
	if err != nil {
		return nil, fmt.Errorf("ledger: lock products: %w", err)
	}
	for i := range rows {
		p := rows[i]
		l.products[p.ID] = &p
	}
	return l, nil
}

// Product returns the current in-transaction state of a locked product.
func (l *Ledger) Product(id int64) (Product, bool) {
	p, ok := l.products[id]
	if !ok {
		return Product{}, false
	}
	return *p, true
}

// Missing lists locked ids that have no product row.
func (l *Ledger) Missing() []int64 {
	var out []int64
	for _, id := range l.ids {
		if _, ok := l.products[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// CheckAvailability verifies every requested quantity against current stock
// and returns all shortages ordered by product id.
func (l *Ledger) CheckAvailability(requested map[int64]int64) []shared.StockShortage {
	var shortages []shared.StockShortage
	for _, id := range SortedIDs(keys(requested)) {
		qty := requested[id]
		p, ok := l.products[id]
		if !ok {
			shortages = append(shortages, shared.StockShortage{ProductID: id, Requested: qty, Missing: true})
			continue
		}
		if p.Stock < qty {
			shortages = append(shortages, shared.StockShortage{ProductID: id, Available: p.Stock, Requested: qty})
		}
	}
	return shortages
}

// ReceiveStock adds inbound quantity and recomputes the weighted-average cost.
func (l *Ledger) ReceiveStock(ctx context.Context, id int64, qty int64, contribution decimal.Decimal) (Product, error) {
	p, err := l.locked(id)
	if err != nil {
		return Product{}, err
	}
	if qty <= 0 {
		return Product{}, shared.NewValidationError("quantity", "must be positive")
	}
	newStock := p.Stock + qty
	newAvg := money.WeightedAverage(p.Stock, p.AvgCost, qty, contribution)
	return l.save(ctx, p, newStock, newAvg)
}

// IssueStock removes outbound quantity. Cost is left untouched.
func (l *Ledger) IssueStock(ctx context.Context, id int64, qty int64) (Product, error) {
	p, err := l.locked(id)
	if err != nil {
		return Product{}, err
	}
	if qty <= 0 {
		return Product{}, shared.NewValidationError("quantity", "must be positive")
	}
	if qty > p.Stock {
		return Product{}, &shared.InsufficientStockError{Shortages: []shared.StockShortage{{ProductID: id, Available: p.Stock, Requested: qty}}}
	}
	return l.save(ctx, p, p.Stock-qty, p.AvgCost)
}

// ReverseIssue returns previously issued quantity. Cost is left untouched.
func (l *Ledger) ReverseIssue(ctx context.Context, id int64, qty int64) (Product, error) {
	p, err := l.locked(id)
	if err != nil {
		return Product{}, err
	}
	if qty <= 0 {
		return Product{}, shared.NewValidationError("quantity", "must be positive")
	}
	return l.save(ctx, p, p.Stock+qty, p.AvgCost)
}

func (l *Ledger) locked(id int64) (*Product, error) {
	if p, ok := l.products[id]; ok {
		return p, nil
	}
	for _, lockedID := range l.ids {
		if lockedID == id {
			return nil, fmt.Errorf("ledger: product %d: %w", id, shared.ErrNotFound)
		}
	}
	return nil, fmt.Errorf("ledger: product %d: %w", id, ErrProductNotLocked)
}

func (l *Ledger) save(ctx context.Context, p *Product, stock int64, avg decimal.Decimal) (Product, error) {
	if err := l.tx.SaveStock(ctx, p.ID, stock, avg); err != nil {
		return Product{}, fmt.Errorf("ledger: save product %d: %w", p.ID, err)
	}
	p.Stock = stock
	p.AvgCost = avg
	return *p, nil
}

func keys(m map[int64]int64) []int64 {
	out := make([]int64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
