package purchases

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/ledger"
	"github.com/odyssey-erp/stockledger/internal/platform/db"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Repository persists purchases in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
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

func (r *txRepo) InsertPurchase(ctx context.Context, supplier string) (Purchase, error) {
	p := Purchase{Supplier: supplier, Total: decimal.Zero}
	err := r.tx.QueryRow(ctx, `INSERT INTO purchases (supplier, total) VALUES ($1, 0)
RETURNING id, created_at, updated_at`, supplier).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *txRepo) InsertItem(ctx context.Context, item Item) (Item, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_items (purchase_id, product_id, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at`, item.PurchaseID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal).Scan(&item.ID, &item.CreatedAt)
	return item, err
}

func (r *txRepo) SetTotal(ctx context.Context, purchaseID int64, total decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchases SET total=$2, updated_at=NOW() WHERE id=$1`, purchaseID, total)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Get loads a purchase and its items.
func (r *Repository) Get(ctx context.Context, id int64) (Purchase, error) {
	var p Purchase
	err := r.pool.QueryRow(ctx, `SELECT id, supplier, total, created_at, updated_at FROM purchases WHERE id=$1`, id).
		Scan(&p.ID, &p.Supplier, &p.Total, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Purchase{}, fmt.Errorf("purchases: purchase %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Purchase{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, purchase_id, product_id, quantity, unit_price, subtotal, created_at
FROM purchase_items WHERE purchase_id=$1 ORDER BY id`, id)
	if err != nil {
		return Purchase{}, err
	}
	p.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var it Item
		err := row.Scan(&it.ID, &it.PurchaseID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal, &it.CreatedAt)
		return it, err
	})
	if err != nil {
		return Purchase{}, err
	}
	return p, nil
}

// List returns a page of purchase headers, newest first, with the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Purchase, int, error) {
	pattern := ""
	if filter.Supplier != "" {
		pattern = db.ContainsPattern(filter.Supplier)
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchases WHERE ($1 = '' OR supplier ILIKE $1)`, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, supplier, total, created_at, updated_at
FROM purchases
WHERE ($1 = '' OR supplier ILIKE $1)
ORDER BY id DESC
LIMIT $2 OFFSET $3`, pattern, filter.Page.PerPage, filter.Page.Offset())
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Purchase, error) {
		var p Purchase
		err := row.Scan(&p.ID, &p.Supplier, &p.Total, &p.CreatedAt, &p.UpdatedAt)
		return p, err
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
