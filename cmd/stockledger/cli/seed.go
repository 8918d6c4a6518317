package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/odyssey-erp/stockledger/internal/money"
	"github.com/odyssey-erp/stockledger/internal/products"
)

// ProductUpserter stores seed products keyed by name.
type ProductUpserter interface {
	Upsert(ctx context.Context, p products.Product) (products.Product, error)
}

type seedRow struct {
	name      string
	salePrice string
	avgCost   string
	stock     int64
}

var seedCatalog = []seedRow{
	{"Basic T-Shirt", "79.90", "40.00", 10},
	{"Polo Shirt", "129.90", "60.00", 8},
	{"Slim Jeans", "199.90", "110.00", 12},
	{"Twill Shorts", "149.90", "70.00", 9},
	{"Denim Jacket", "249.90", "140.00", 5},
	{"Kangaroo Hoodie", "189.90", "95.00", 7},
	{"Casual Sneakers", "299.90", "160.00", 6},
	{"Crew Socks (pair)", "19.90", "6.50", 50},
	{"Trucker Cap", "69.90", "28.00", 15},
	{"Leather Belt", "89.90", "35.00", 10},
}

// SeedProducts returns the demo catalog.
func SeedProducts() []products.Product {
	out := make([]products.Product, 0, len(seedCatalog))
	for _, row := range seedCatalog {
		out = append(out, products.Product{
			Name:      row.name,
			SalePrice: money.MustParse(row.salePrice),
			AvgCost:   money.MustParse(row.avgCost),
			Stock:     row.stock,
		})
	}
	return out
}

// SeedCommand upserts the demo catalog and returns the exit code. Running it
// again resets price, stock and cost of the seeded names.
func SeedCommand(ctx context.Context, repo ProductUpserter, stdout, stderr io.Writer) int {
	for _, p := range SeedProducts() {
		stored, err := repo.Upsert(ctx, p)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "seed %q: %v\n", p.Name, err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "%4d  %-20s stock=%-3d avg_cost=%s sale_price=%s\n",
			stored.ID, stored.Name, stored.Stock, money.Format(stored.AvgCost), money.Format(stored.SalePrice))
	}
	return 0
}
