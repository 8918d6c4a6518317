package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

const productColumns = `id, name, stock, avg_cost, sale_price, created_at, updated_at`

// Repository persists products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a new product row.
func (r *Repository) Insert(ctx context.Context, p Product) (Product, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO products (name, stock, avg_cost, sale_price)
VALUES ($1, $2, $3, $4)
RETURNING `+productColumns, p.Name, p.Stock, p.AvgCost, p.SalePrice)
	created, err := scanProduct(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Product{}, ErrDuplicateName
		}
		return Product{}, err
	}
	return created, nil
}

// Upsert inserts p or, when the name already exists, overwrites its price,
// stock and average cost. Used by the seeder only.
func (r *Repository) Upsert(ctx context.Context, p Product) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `INSERT INTO products (name, stock, avg_cost, sale_price)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO UPDATE
SET stock = EXCLUDED.stock, avg_cost = EXCLUDED.avg_cost, sale_price = EXCLUDED.sale_price, updated_at = NOW()
RETURNING `+productColumns, p.Name, p.Stock, p.AvgCost, p.SalePrice))
}

// Get loads one product.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("products: product %d: %w", id, shared.ErrNotFound)
	}
	return p, err
}

// List returns every product, newest first.
func (r *Repository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		return scanProduct(row)
	})
}

// ExistingIDs returns the subset of ids that have a product row.
func (r *Repository) ExistingIDs(ctx context.Context, ids []int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Stock, &p.AvgCost, &p.SalePrice, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
