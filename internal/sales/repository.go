package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/ledger"
	"github.com/odyssey-erp/stockledger/internal/platform/db"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type txRepo struct {
	ledger.StockTx
	tx pgx.Tx
}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{StockTx: ledger.NewStockTx(tx), tx: tx})
	})
}

func (r *txRepo) InsertSale(ctx context.Context, customer string) (Sale, error) {
	s := Sale{Customer: customer, Status: StatusCompleted, Total: decimal.Zero, Profit: decimal.Zero}
	err := r.tx.QueryRow(ctx, `INSERT INTO sales (customer, total, profit, status) VALUES ($1, 0, 0, $2)
RETURNING id, created_at, updated_at`, customer, string(StatusCompleted)).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *txRepo) InsertItem(ctx context.Context, item Item) (Item, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, cost_snapshot, subtotal, item_profit)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at`, item.SaleID, item.ProductID, item.Quantity, item.UnitPrice, item.CostSnapshot, item.Subtotal, item.ItemProfit).
		Scan(&item.ID, &item.CreatedAt)
	return item, err
}

func (r *txRepo) SetTotals(ctx context.Context, saleID int64, total, profit decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sales SET total=$2, profit=$3, updated_at=NOW() WHERE id=$1`, saleID, total, profit)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) LockSale(ctx context.Context, id int64) (Sale, error) {
	return loadSale(ctx, r.tx, id, " FOR UPDATE")
}

func (r *txRepo) MarkCanceled(ctx context.Context, saleID int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sales SET status=$2, canceled_at=$3, updated_at=$3 WHERE id=$1 AND status=$4`,
		saleID, string(StatusCanceled), at, string(StatusCompleted))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyCanceled
	}
	return nil
}

// Get loads a sale and its items.
func (r *Repository) Get(ctx context.Context, id int64) (Sale, error) {
	return loadSale(ctx, r.pool, id, "")
}

func loadSale(ctx context.Context, q querier, id int64, lock string) (Sale, error) {
	var s Sale
	err := q.QueryRow(ctx, `SELECT id, customer, total, profit, status, canceled_at, created_at, updated_at
FROM sales WHERE id=$1`+lock, id).
		Scan(&s.ID, &s.Customer, &s.Total, &s.Profit, &s.Status, &s.CanceledAt, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, fmt.Errorf("sales: sale %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Sale{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, sale_id, product_id, quantity, unit_price, cost_snapshot, subtotal, item_profit, created_at
FROM sale_items WHERE sale_id=$1 ORDER BY id`, id)
	if err != nil {
		return Sale{}, err
	}
	s.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var it Item
		err := row.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.CostSnapshot, &it.Subtotal, &it.ItemProfit, &it.CreatedAt)
		return it, err
	})
	if err != nil {
		return Sale{}, err
	}
	return s, nil
}

// List returns a page of sale headers, newest first, with the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Sale, int, error) {
	pattern := ""
	if filter.Customer != "" {
		pattern = db.ContainsPattern(filter.Customer)
	}
	const where = `WHERE ($1 = '' OR customer ILIKE $1) AND ($2 = '' OR status = $2)`
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales `+where, pattern, string(filter.Status)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, customer, total, profit, status, canceled_at, created_at, updated_at
FROM sales `+where+`
ORDER BY id DESC
LIMIT $3 OFFSET $4`, pattern, string(filter.Status), filter.Page.PerPage, filter.Page.Offset())
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Sale, error) {
		var s Sale
		err := row.Scan(&s.ID, &s.Customer, &s.Total, &s.Profit, &s.Status, &s.CanceledAt, &s.CreatedAt, &s.UpdatedAt)
		return s, err
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
