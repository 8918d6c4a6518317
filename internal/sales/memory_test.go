package sales

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/ledger"
	"github.com/odyssey-erp/stockledger/internal/ledger/ledgertest"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

type memoryRepo struct {
	store *ledgertest.Store

	mu        sync.Mutex
	sales     map[int64]Sale
	saleLocks map[int64]*sync.Mutex
	nextID    int64
	nextItem  int64
	// afterCommit runs once a unit of work has committed.
	afterCommit func()
}

func newMemoryRepo(store *ledgertest.Store) *memoryRepo {
	return &memoryRepo{store: store, sales: make(map[int64]Sale), saleLocks: make(map[int64]*sync.Mutex)}
}

type memoryTx struct {
	*ledgertest.Tx
	repo    *memoryRepo
	pending map[int64]*Sale
	held    []*sync.Mutex
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	mtx := &memoryTx{Tx: r.store.Begin(), repo: r, pending: make(map[int64]*Sale)}
	defer func() {
		for _, m := range mtx.held {
			m.Unlock()
		}
	}()
	if err := fn(ctx, mtx); err != nil {
		mtx.Rollback()
		return err
	}
	r.mu.Lock()
	for id, s := range mtx.pending {
		r.sales[id] = *s
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

func (tx *memoryTx) InsertSale(_ context.Context, customer string) (Sale, error) {
	tx.repo.mu.Lock()
	tx.repo.nextID++
	id := tx.repo.nextID
	tx.repo.saleLocks[id] = &sync.Mutex{}
	tx.repo.mu.Unlock()
	now := time.Now().UTC()
	s := Sale{ID: id, Customer: customer, Status: StatusCompleted, Total: decimal.Zero, Profit: decimal.Zero, CreatedAt: now, UpdatedAt: now}
	tx.pending[id] = &s
	return s, nil
}

func (tx *memoryTx) InsertItem(_ context.Context, item Item) (Item, error) {
	s, ok := tx.pending[item.SaleID]
	if !ok {
		return Item{}, shared.ErrNotFound
	}
	tx.repo.mu.Lock()
	tx.repo.nextItem++
	item.ID = tx.repo.nextItem
	tx.repo.mu.Unlock()
	item.CreatedAt = time.Now().UTC()
	s.Items = append(s.Items, item)
	return item, nil
}

func (tx *memoryTx) SetTotals(_ context.Context, saleID int64, total, profit decimal.Decimal) error {
	s, ok := tx.pending[saleID]
	if !ok {
		return shared.ErrNotFound
	}
	s.Total = total
	s.Profit = profit
	return nil
}

func (tx *memoryTx) LockSale(ctx context.Context, id int64) (Sale, error) {
	tx.repo.mu.Lock()
	m, ok := tx.repo.saleLocks[id]
	tx.repo.mu.Unlock()
	if !ok {
		return Sale{}, shared.ErrNotFound
	}
	m.Lock()
	tx.held = append(tx.held, m)
	s, err := tx.repo.Get(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	tx.pending[id] = &s
	return s, nil
}

func (tx *memoryTx) MarkCanceled(_ context.Context, saleID int64, at time.Time) error {
	s, ok := tx.pending[saleID]
	if !ok {
		return shared.ErrNotFound
	}
	if s.Status == StatusCanceled {
		return ErrAlreadyCanceled
	}
	s.Status = StatusCanceled
	s.CanceledAt = &at
	s.UpdatedAt = at
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sales[id]
	if !ok {
		return Sale{}, shared.ErrNotFound
	}
	s.Items = append([]Item(nil), s.Items...)
	return s, nil
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Sale, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sale
	for _, s := range r.sales {
		if filter.Customer != "" && s.Customer != filter.Customer {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, s)
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

func (r *memoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sales)
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
	mu     sync.Mutex
	events []ledger.StockChangedEvent
}

func (r *recordingEvents) HandleStockChanged(ctx context.Context, evt ledger.StockChangedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}
