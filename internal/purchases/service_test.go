package purchases

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/internal/ledger"
	"github.com/odyssey-erp/stockledger/internal/ledger/ledgertest"
	"github.com/odyssey-erp/stockledger/internal/money"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

type memoryRepo struct {
	store *ledgertest.Store

	mu        sync.Mutex
	purchases map[int64]Purchase
	nextID    int64
	nextItem  int64
	// afterCommit runs once a unit of work has committed.
	afterCommit func()
	failItem  bool
}

func newMemoryRepo(store *ledgertest.Store) *memoryRepo {
	return &memoryRepo{store: store, purchases: make(map[int64]Purchase)}
}

type memoryTx struct {
	*ledgertest.Tx
	repo    *memoryRepo
	pending map[int64]*Purchase
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	mtx := &memoryTx{Tx: r.store.Begin(), repo: r, pending: make(map[int64]*Purchase)}
	if err := fn(ctx, mtx); err != nil {
		mtx.Rollback()
		return err
	}
	r.mu.Lock()
	for id, p := range mtx.pending {
		r.purchases[id] = *p
	}
	r.mu.Unlock()
	if err := mtx.Commit(); err != nil {
		return err
	}
	if r.afterCommit != nil {
		r.afterCommit()
	}
	return nil
}

func (tx *memoryTx) InsertPurchase(_ context.Context, supplier string) (Purchase, error) {
	tx.repo.mu.Lock()
	tx.repo.nextID++
	id := tx.repo.nextID
	tx.repo.mu.Unlock()
	now := time.Now().UTC()
	p := Purchase{ID: id, Supplier: supplier, Total: decimal.Zero, CreatedAt: now, UpdatedAt: now}
	tx.pending[id] = &p
	return p, nil
}

func (tx *memoryTx) InsertItem(_ context.Context, item Item) (Item, error) {
	if tx.repo.failItem {
		return Item{}, errors.New("disk full")
	}
	p, ok := tx.pending[item.PurchaseID]
	if !ok {
		return Item{}, shared.ErrNotFound
	}
	tx.repo.mu.Lock()
	tx.repo.nextItem++
	item.ID = tx.repo.nextItem
	tx.repo.mu.Unlock()
	item.CreatedAt = time.Now().UTC()
	p.Items = append(p.Items, item)
	return item, nil
}

func (tx *memoryTx) SetTotal(_ context.Context, purchaseID int64, total decimal.Decimal) error {
	p, ok := tx.pending[purchaseID]
	if !ok {
		return shared.ErrNotFound
	}
	p.Total = total
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[id]
	if !ok {
		return Purchase{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Purchase, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Purchase
	for _, p := range r.purchases {
		if filter.Supplier == "" || p.Supplier == filter.Supplier {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	start := filter.Page.Offset()
	if start > total {
		start = total
	}
	end := start + filter.Page.PerPage
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

type storeCatalog struct{ store *ledgertest.Store }

func (c storeCatalog) Missing(_ context.Context, ids []int64) ([]int64, error) {
	var out []int64
	for _, id := range ids {
		if _, ok := c.store.Product(id); !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
	// onClaim runs after a key is stored.
	onClaim func()
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = make(map[string]string)
	}
	if _, ok := m.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = module
	if m.onClaim != nil {
		m.onClaim()
	}
	return nil
}

func (m *memoryIdempotency) claimed(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key]
	return ok
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type recordingEvents struct {
	events []ledger.StockChangedEvent
}

func (r *recordingEvents) HandleStockChanged(ctx context.Context, evt ledger.StockChangedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.events = append(r.events, evt)
	return nil
}

type fixture struct {
	store  *ledgertest.Store
	repo   *memoryRepo
	idem   *memoryIdempotency
	events *recordingEvents
	svc    *Service
}

func newFixture() fixture {
	store := ledgertest.NewStore()
	repo := newMemoryRepo(store)
	idem := &memoryIdempotency{}
	events := &recordingEvents{}
	return fixture{
		store:  store,
		repo:   repo,
		idem:   idem,
		events: events,
		svc:    NewService(repo, storeCatalog{store: store}, idem, events, nil),
	}
}

func (f fixture) product(stock int64, avg string) ledger.Product {
	return f.store.Put(ledger.Product{Name: "Camiseta Básica", Stock: stock, AvgCost: money.MustParse(avg), SalePrice: money.MustParse("79.90")})
}

func line(productID, qty int64, price string) ItemInput {
	return ItemInput{ProductID: productID, Quantity: qty, UnitPrice: money.MustParse(price)}
}

func updatedSummary(res CreateResult) []string {
	out := make([]string, 0, len(res.UpdatedProducts))
	for _, p := range res.UpdatedProducts {
		out = append(out, fmt.Sprintf("%d:%d:%s", p.ID, p.Stock, money.Format(p.AvgCost)))
	}
	return out
}

func TestCreateRecomputesAverageCost(t *testing.T) {
	f := newFixture()
	p := f.product(10, "5.00")

	res, err := f.svc.Create(context.Background(), CreateInput{Supplier: "  Malharia   Sul ", Items: []ItemInput{line(p.ID, 5, "8.00")}})
	require.NoError(t, err)
	require.Equal(t, "Malharia Sul", res.Purchase.Supplier)
	require.Equal(t, "40.00", money.Format(res.Purchase.Total))
	require.Equal(t, []string{fmt.Sprintf("%d:15:6.00", p.ID)}, updatedSummary(res))

	got, _ := f.store.Product(p.ID)
	require.Equal(t, int64(15), got.Stock)
	require.Equal(t, "6.00", money.Format(got.AvgCost))

	stored, err := f.svc.Get(context.Background(), res.Purchase.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	require.Equal(t, "40.00", money.Format(stored.Items[0].Subtotal))

	require.Len(t, f.events.events, 1)
	require.Equal(t, ledger.MovementReceive, f.events.events[0].Kind)
	require.Equal(t, []int64{p.ID}, f.events.events[0].ProductIDs())
}

func TestCreateAggregatesDuplicateItems(t *testing.T) {
	f := newFixture()
	a := f.product(0, "0.00")
	b := f.product(4, "10.00")

	res, err := f.svc.Create(context.Background(), CreateInput{Supplier: "Atacado Centro", Items: []ItemInput{
		line(b.ID, 2, "13.00"),
		line(a.ID, 1, "3.00"),
		line(b.ID, 2, "7.00"),
		line(a.ID, 2, "6.00"),
	}})
	require.NoError(t, err)

	require.Len(t, res.Purchase.Items, 4)
	require.Equal(t, b.ID, res.Purchase.Items[0].ProductID)
	require.Equal(t, "55.00", money.Format(res.Purchase.Total))

	// a: (0*0 + 3 + 12) / 3 = 5.00; b: (4*10 + 26 + 14) / 8 = 10.00
	require.Equal(t, []string{
		fmt.Sprintf("%d:3:5.00", a.ID),
		fmt.Sprintf("%d:8:10.00", b.ID),
	}, updatedSummary(res))
}

func TestCreateRoundsAverageToCents(t *testing.T) {
	f := newFixture()
	p := f.product(2, "1.00")

	res, err := f.svc.Create(context.Background(), CreateInput{Supplier: "Fornecedor", Items: []ItemInput{line(p.ID, 1, "1.01")}})
	require.NoError(t, err)
	require.Equal(t, "1.00", money.Format(res.UpdatedProducts[0].AvgCost))
	require.Equal(t, int64(3), res.UpdatedProducts[0].Stock)
}

func TestCreateValidatesInput(t *testing.T) {
	f := newFixture()
	p := f.product(1, "1.00")

	_, err := f.svc.Create(context.Background(), CreateInput{Supplier: " ", Items: []ItemInput{line(p.ID, 0, "0.001")}})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "supplier")
	require.Contains(t, verr.Fields, "items[0].quantity")
	require.Contains(t, verr.Fields, "items[0].unit_price")

	_, err = f.svc.Create(context.Background(), CreateInput{Supplier: "Fornecedor"})
	require.ErrorIs(t, err, shared.ErrValidation)
	got, _ := f.store.Product(p.ID)
	require.Equal(t, int64(1), got.Stock)
}

func TestCreateRejectsUnknownProduct(t *testing.T) {
	f := newFixture()
	p := f.product(1, "1.00")

	_, err := f.svc.Create(context.Background(), CreateInput{Supplier: "Fornecedor", Items: []ItemInput{line(p.ID, 1, "1.00"), line(999, 1, "1.00")}})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "product 999 does not exist", verr.Fields["items[1].product_id"])

	got, _ := f.store.Product(p.ID)
	require.Equal(t, int64(1), got.Stock)
}

func TestCreateProductDeletedAfterPreflight(t *testing.T) {
	store := ledgertest.NewStore()
	repo := newMemoryRepo(store)
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateInput{Supplier: "Fornecedor", Items: []ItemInput{line(7, 1, "1.00")}})
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, total, _ := repo.List(context.Background(), ListFilter{Page: shared.NewPageRequest(1, 15)})
	require.Zero(t, total)
}

func TestCreateRollsBackAndReleasesKey(t *testing.T) {
	f := newFixture()
	p := f.product(3, "2.00")
	f.repo.failItem = true
	ctx := shared.ContextWithIdempotencyKey(context.Background(), "0b0c1d6e-6a3c-4a57-9f5e-3c1f0a0c9d11")

	_, err := f.svc.Create(ctx, CreateInput{Supplier: "Fornecedor", Items: []ItemInput{line(p.ID, 1, "4.00")}})
	require.Error(t, err)
	require.Empty(t, f.idem.keys)
	require.Empty(t, f.events.events)

	got, _ := f.store.Product(p.ID)
	require.Equal(t, int64(3), got.Stock)

	f.repo.failItem = false
	_, err = f.svc.Create(ctx, CreateInput{Supplier: "Fornecedor", Items: []ItemInput{line(p.ID, 1, "4.00")}})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, CreateInput{Supplier: "Fornecedor", Items: []ItemInput{line(p.ID, 1, "4.00")}})
	require.ErrorIs(t, err, shared.ErrConflict)
	got, _ = f.store.Product(p.ID)
	require.Equal(t, int64(4), got.Stock)
}

func TestCreateReleasesKeyWhenRequestCanceled(t *testing.T) {
	f := newFixture()
	p := f.product(3, "2.00")
	const key = "5d1f7a2e-0c4b-4e1d-8a8f-2b7d9c3e6f10"
	ctx, cancel := context.WithCancel(shared.ContextWithIdempotencyKey(context.Background(), key))
	defer cancel()
	f.idem.onClaim = cancel

	_, err := f.svc.Create(ctx, CreateInput{Supplier: "Fornecedor", Items: []ItemInput{line(p.ID, 1, "4.00")}})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, f.idem.claimed(key))
	got, _ := f.store.Product(p.ID)
	require.Equal(t, int64(3), got.Stock)

	f.idem.onClaim = nil
	retry := shared.ContextWithIdempotencyKey(context.Background(), key)
	_, err = f.svc.Create(retry, CreateInput{Supplier: "Fornecedor", Items: []ItemInput{line(p.ID, 1, "4.00")}})
	require.NoError(t, err)
	got, _ = f.store.Product(p.ID)
	require.Equal(t, int64(4), got.Stock)
}

func TestCreateNotifiesWhenRequestCanceledAfterCommit(t *testing.T) {
	f := newFixture()
	p := f.product(1, "1.00")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.repo.afterCommit = cancel

	_, err := f.svc.Create(ctx, CreateInput{Supplier: "Fornecedor", Items: []ItemInput{line(p.ID, 1, "1.00")}})
	require.NoError(t, err)
	require.Len(t, f.events.events, 1)
	require.Equal(t, ledger.MovementReceive, f.events.events[0].Kind)
}

func TestConcurrentPurchasesSerializePerProduct(t *testing.T) {
	f := newFixture()
	a := f.product(0, "0.00")
	b := f.product(0, "0.00")

	errs := make(chan error, 20)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			items := []ItemInput{line(a.ID, 1, "10.00"), line(b.ID, 1, "10.00")}
			if i%2 == 0 {
				items[0], items[1] = items[1], items[0]
			}
			_, err := f.svc.Create(context.Background(), CreateInput{Supplier: "Fornecedor", Items: items})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for _, id := range []int64{a.ID, b.ID} {
		got, _ := f.store.Product(id)
		require.Equal(t, int64(20), got.Stock)
		require.Equal(t, "10.00", money.Format(got.AvgCost))
	}
}

func TestListPaginatesNewestFirst(t *testing.T) {
	f := newFixture()
	p := f.product(0, "0.00")
	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(context.Background(), CreateInput{Supplier: "Fornecedor", Items: []ItemInput{line(p.ID, 1, "1.00")}})
		require.NoError(t, err)
	}

	res, err := f.svc.List(context.Background(), ListFilter{Page: shared.PageRequest{Page: 1, PerPage: 2}})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	require.Equal(t, int64(3), res.Items[0].ID)
	require.Equal(t, 3, res.Pagination.Total)
	require.Equal(t, 2, res.Pagination.TotalPages)
}
