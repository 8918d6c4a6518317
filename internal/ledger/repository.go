package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

type pgStockTx struct {
	tx pgx.Tx
}

// NewStockTx adapts a pgx transaction to StockTx.
func NewStockTx(tx pgx.Tx) StockTx {
	return &pgStockTx{tx: tx}
}

func (r *pgStockTx) LockProducts(ctx context.Context, ids []int64) ([]Product, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, name, stock, avg_cost, sale_price, created_at, updated_at
FROM products
WHERE id = ANY($1)
ORDER BY id
FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := make([]Product, 0, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Stock, &p.AvgCost, &p.SalePrice, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *pgStockTx) SaveStock(ctx context.Context, id int64, stock int64, avgCost decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET stock=$2, avg_cost=$3, updated_at=NOW() WHERE id=$1`, id, stock, avgCost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
