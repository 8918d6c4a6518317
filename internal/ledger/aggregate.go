package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/money"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Aggregate groups raw line items by product. The raw slice is returned
// untouched for storage; ByProduct sums quantity and qty × unit price.
func Aggregate(items []LineItem) (Aggregation, error) {
	if len(items) == 0 {
		return Aggregation{}, ErrEmptyItems
	}
	byProduct := make(map[int64]ProductTotal, len(items))
	for _, item := range items {
		agg, ok := byProduct[item.ProductID]
		if !ok {
			agg = ProductTotal{Cost: decimal.Zero}
		}
		agg.Quantity += item.Quantity
		agg.Cost = agg.Cost.Add(money.Line(item.Quantity, item.UnitPrice))
		byProduct[item.ProductID] = agg
	}
	ids := make([]int64, 0, len(byProduct))
	for id := range byProduct {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return Aggregation{Items: items, ByProduct: byProduct, ProductIDs: ids}, nil
}

// Quantities returns the requested quantity per product.
func (a Aggregation) Quantities() map[int64]int64 {
	out := make(map[int64]int64, len(a.ByProduct))
	for id, agg := range a.ByProduct {
		out[id] = agg.Quantity
	}
	return out
}

// SortedIDs returns the distinct ids in ascending order, the global lock order.
func SortedIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MissingProducts reports every raw line whose product id is in missing as an
// `items[i].product_id` field error. Nil when missing is empty.
func (a Aggregation) MissingProducts(missing []int64) error {
	if len(missing) == 0 {
		return nil
	}
	absent := make(map[int64]struct{}, len(missing))
	for _, id := range missing {
		absent[id] = struct{}{}
	}
	fields := make(map[string]string)
	for i, line := range a.Items {
		if _, ok := absent[line.ProductID]; ok {
			fields[fmt.Sprintf("items[%d].product_id", i)] = fmt.Sprintf("product %d does not exist", line.ProductID)
		}
	}
	return &shared.ValidationError{Fields: fields}
}
