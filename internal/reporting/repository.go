package reporting

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the overview aggregates against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) CountProducts(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM products`)
}

func (r *Repository) CountPurchases(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM purchases`)
}

func (r *Repository) CountCompletedSales(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM sales WHERE status = 'completed'`)
}

func (r *Repository) CountLowStock(ctx context.Context, threshold int64) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM products WHERE stock <= $1`, threshold)
}

// SalesTotals sums completed sales, restricted to period when it is non-nil.
func (r *Repository) SalesTotals(ctx context.Context, period *Period) (SalesTotals, error) {
	var totals SalesTotals
	var err error
	if period == nil {
		err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total), 0), COALESCE(SUM(profit), 0)
FROM sales WHERE status = 'completed'`).Scan(&totals.Revenue, &totals.Profit)
	} else {
		err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total), 0), COALESCE(SUM(profit), 0)
FROM sales WHERE status = 'completed' AND created_at >= $1 AND created_at < $2`, period.From, period.To).
			Scan(&totals.Revenue, &totals.Profit)
	}
	return totals, err
}

// LowStockProducts returns the products among ids at or below threshold.
func (r *Repository) LowStockProducts(ctx context.Context, ids []int64, threshold int64) ([]LowStockProduct, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, stock FROM products
WHERE id = ANY($1) AND stock <= $2 ORDER BY id`, ids, threshold)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (LowStockProduct, error) {
		var p LowStockProduct
		err := row.Scan(&p.ID, &p.Name, &p.Stock)
		return p, err
	})
}

func (r *Repository) count(ctx context.Context, sql string, args ...any) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, sql, args...).Scan(&n)
	return n, err
}
