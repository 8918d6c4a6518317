// Package ledgertest provides an in-memory product table with real per-row
// exclusive locks, so services can be exercised concurrently without Postgres.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/ledger"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// ErrTxDone is returned when a finished Tx is used again.
var ErrTxDone = errors.New("ledgertest: transaction already finished")

type row struct {
	lock    sync.Mutex
	product ledger.Product
}

// Store is the committed product state.
type Store struct {
	mu     sync.Mutex
	rows   map[int64]*row
	nextID int64
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{rows: make(map[int64]*row)}
}

// Put inserts or replaces a product. A zero ID is assigned the next sequence value.
func (s *Store) Put(p ledger.Product) ledger.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		s.nextID++
		p.ID = s.nextID
	} else if p.ID > s.nextID {
		s.nextID = p.ID
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt
	if r, ok := s.rows[p.ID]; ok {
		r.product = p
		return p
	}
	s.rows[p.ID] = &row{product: p}
	return p
}

// Product returns the committed state of a product.
func (s *Store) Product(id int64) (ledger.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return ledger.Product{}, false
	}
	return r.product, true
}

// Products returns every committed product ordered by id.
func (s *Store) Products() []ledger.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.Product, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r.product)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Begin opens a unit of work.
func (s *Store) Begin() *Tx {
	return &Tx{store: s, held: make(map[int64]*row), writes: make(map[int64]ledger.Product)}
}

// WithTx runs fn in a unit of work, committing on success and rolling back on error.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, *Tx) error) error {
	tx := s.Begin()
	if err := fn(ctx, tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Tx buffers stock writes until Commit and holds row locks until it finishes.
type Tx struct {
	store  *Store
	mu     sync.Mutex
	held   map[int64]*row
	order  []int64
	writes map[int64]ledger.Product
	locks  [][]int64
	done   bool
}

var _ ledger.StockTx = (*Tx)(nil)

// LockProducts blocks until every existing row in ids is exclusively held.
func (tx *Tx) LockProducts(ctx context.Context, ids []int64) ([]ledger.Product, error) {
	tx.mu.Lock()
	if tx.done {
		tx.mu.Unlock()
		return nil, ErrTxDone
	}
	tx.locks = append(tx.locks, append([]int64(nil), ids...))
	tx.mu.Unlock()

	out := make([]ledger.Product, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tx.store.mu.Lock()
		r, ok := tx.store.rows[id]
		tx.store.mu.Unlock()
		if !ok {
			continue
		}
		tx.mu.Lock()
		_, already := tx.held[id]
		tx.mu.Unlock()
		if !already {
			r.lock.Lock()
			tx.mu.Lock()
			tx.held[id] = r
			tx.order = append(tx.order, id)
			tx.mu.Unlock()
		}
		out = append(out, tx.current(id, r))
	}
	return out, nil
}

// SaveStock records a write for a held row.
func (tx *Tx) SaveStock(_ context.Context, id int64, stock int64, avgCost decimal.Decimal) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return ErrTxDone
	}
	r, ok := tx.held[id]
	if !ok {
		return fmt.Errorf("ledgertest: product %d written without lock: %w", id, shared.ErrNotFound)
	}
	if stock < 0 {
		return fmt.Errorf("ledgertest: product %d stock would be %d", id, stock)
	}
	p, ok := tx.writes[id]
	if !ok {
		tx.store.mu.Lock()
		p = r.product
		tx.store.mu.Unlock()
	}
	p.Stock = stock
	p.AvgCost = avgCost
	p.UpdatedAt = time.Now().UTC()
	tx.writes[id] = p
	return nil
}

// Locks returns the id lists passed to LockProducts in call order.
func (tx *Tx) Locks() [][]int64 {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	out := make([][]int64, len(tx.locks))
	copy(out, tx.locks)
	return out
}

// Commit publishes buffered writes and releases every lock.
func (tx *Tx) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return ErrTxDone
	}
	tx.store.mu.Lock()
	for id, p := range tx.writes {
		tx.held[id].product = p
	}
	tx.store.mu.Unlock()
	tx.release()
	return nil
}

// Rollback discards buffered writes and releases every lock. It is a no-op
// after Commit.
func (tx *Tx) Rollback() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return
	}
	tx.release()
}

func (tx *Tx) release() {
	for i := len(tx.order) - 1; i >= 0; i-- {
		tx.held[tx.order[i]].lock.Unlock()
	}
	tx.writes = nil
	tx.done = true
}

func (tx *Tx) current(id int64, r *row) ledger.Product {
	tx.mu.Lock()
	p, ok := tx.writes[id]
	tx.mu.Unlock()
	if ok {
		return p
	}
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	return r.product
}
