package perf

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/ledger"
	"github.com/odyssey-erp/stockledger/internal/ledger/ledgertest"
	"github.com/odyssey-erp/stockledger/internal/money"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

func seedStore(products int, stock int64) (*ledgertest.Store, []int64) {
	store := ledgertest.NewStore()
	ids := make([]int64, 0, products)
	for i := 0; i < products; i++ {
		p := store.Put(ledger.Product{Stock: stock, AvgCost: money.MustParse("10.00"), SalePrice: money.MustParse("15.00")})
		ids = append(ids, p.ID)
	}
	return store, ids
}

// issueBatch runs one sale-shaped unit of work against ids in the given order.
func issueBatch(ctx context.Context, store *ledgertest.Store, ids []int64) error {
	items := make([]ledger.LineItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, ledger.LineItem{ProductID: id, Quantity: 1, UnitPrice: decimal.NewFromInt(15)})
	}
	agg, err := ledger.Aggregate(items)
	if err != nil {
		return err
	}
	return store.WithTx(ctx, func(ctx context.Context, tx *ledgertest.Tx) error {
		l, err := ledger.Lock(ctx, tx, agg.ProductIDs)
		if err != nil {
			return err
		}
		if shortages := l.CheckAvailability(agg.Quantities()); len(shortages) > 0 {
			return &shared.InsufficientStockError{Shortages: shortages}
		}
		for _, id := range agg.ProductIDs {
			if _, err := l.IssueStock(ctx, id, agg.ByProduct[id].Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}

func TestContendedIssueLatency(t *testing.T) {
	const (
		workers = 40
		rounds  = 10
		stock   = 300
	)
	store, ids := seedStore(3, stock)
	ctx := context.Background()

	var (
		mu       sync.Mutex
		samples  []time.Duration
		rejected int
		wg       sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			order := append([]int64(nil), ids...)
			for r := 0; r < rounds; r++ {
				rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
				start := time.Now()
				err := issueBatch(ctx, store, order)
				elapsed := time.Since(start)
				mu.Lock()
				samples = append(samples, elapsed)
				if errors.Is(err, shared.ErrInsufficientStock) {
					rejected++
				} else if err != nil {
					mu.Unlock()
					t.Errorf("issue batch: %v", err)
					return
				}
				mu.Unlock()
			}
		}(int64(w))
	}
	wg.Wait()

	issued := int64(workers*rounds - rejected)
	for _, p := range store.Products() {
		if p.Stock != stock-issued {
			t.Fatalf("product %d stock = %d, want %d", p.ID, p.Stock, stock-issued)
		}
	}
	if p95 := percentile95(samples); p95 > 250*time.Millisecond {
		t.Fatalf("contended issue latency regression: p95=%s", p95)
	}
}

func BenchmarkAggregate(b *testing.B) {
	items := make([]ledger.LineItem, 0, 50)
	for i := 0; i < 50; i++ {
		items = append(items, ledger.LineItem{ProductID: int64(i%10 + 1), Quantity: 3, UnitPrice: money.MustParse("19.99")})
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ledger.Aggregate(items); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkIssueParallel(b *testing.B) {
	store, ids := seedStore(5, int64(b.N)*int64(5)+1)
	ctx := context.Background()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if err := issueBatch(ctx, store, ids); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := (len(sorted)*95 + 99) / 100
	if idx <= 0 {
		idx = 1
	}
	return sorted[idx-1]
}
