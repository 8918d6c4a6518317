package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/ledger"
	"github.com/odyssey-erp/stockledger/internal/money"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

const idempotencyModule = "sales"

// ErrAlreadyCanceled is returned when canceling a canceled sale.
var ErrAlreadyCanceled = fmt.Errorf("%w: sale already canceled", shared.ErrConflict)

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	ledger.StockTx
	InsertSale(ctx context.Context, customer string) (Sale, error)
	InsertItem(ctx context.Context, item Item) (Item, error)
	SetTotals(ctx context.Context, saleID int64, total, profit decimal.Decimal) error
	// LockSale re-reads a sale and its items holding the header row lock.
	LockSale(ctx context.Context, id int64) (Sale, error)
	MarkCanceled(ctx context.Context, saleID int64, at time.Time) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Sale, error)
	List(ctx context.Context, filter ListFilter) ([]Sale, int, error)
}

// Catalog reports which product ids do not exist.
type Catalog interface {
	Missing(ctx context.Context, ids []int64) ([]int64, error)
}

// IdempotencyPort records client supplied request keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates sales and cancellations.
type Service struct {
	repo        RepositoryPort
	catalog     Catalog
	idempotency IdempotencyPort
	events      ledger.StockChangeHandler
	validator   *validator.Validate
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service. catalog, idem and events may be nil.
func NewService(repo RepositoryPort, catalog Catalog, idem IdempotencyPort, events ledger.StockChangeHandler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		catalog:     catalog,
		idempotency: idem,
		events:      events,
		validator:   shared.NewValidator(),
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create records a completed sale. Availability is checked for the aggregated
// quantity of every product before anything is written; a single shortage
// fails the whole sale.
func (s *Service) Create(ctx context.Context, input CreateInput) (Sale, error) {
	input.Customer = shared.NormalizeName(input.Customer)
	if err := shared.ValidateStruct(s.validator, input); err != nil {
		return Sale{}, err
	}
	lines := make([]ledger.LineItem, 0, len(input.Items))
	for _, it := range input.Items {
		lines = append(lines, ledger.LineItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	agg, err := ledger.Aggregate(lines)
	if err != nil {
		return Sale{}, err
	}
	if err := s.checkProducts(ctx, agg); err != nil {
		return Sale{}, err
	}

	key := shared.IdempotencyKeyFromContext(ctx)
	claimed := false
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			return Sale{}, err
		}
		claimed = true
	}

	var sale Sale
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		l, err := ledger.Lock(ctx, tx, agg.ProductIDs)
		if err != nil {
			return err
		}
		if shortages := l.CheckAvailability(agg.Quantities()); len(shortages) > 0 {
			return &shared.InsufficientStockError{Shortages: shortages}
		}

		costs := make(map[int64]decimal.Decimal, len(agg.ProductIDs))
		for _, id := range agg.ProductIDs {
			p, _ := l.Product(id)
			costs[id] = p.AvgCost
		}

		sale, err = tx.InsertSale(ctx, input.Customer)
		if err != nil {
			return fmt.Errorf("sales: insert header: %w", err)
		}
		total, profit := decimal.Zero, decimal.Zero
		sale.Items = make([]Item, 0, len(agg.Items))
		for _, line := range agg.Items {
			cost := costs[line.ProductID]
			subtotal := money.Line(line.Quantity, line.UnitPrice)
			itemProfit := money.Line(line.Quantity, line.UnitPrice.Sub(cost))
			stored, err := tx.InsertItem(ctx, Item{
				SaleID:       sale.ID,
				ProductID:    line.ProductID,
				Quantity:     line.Quantity,
				UnitPrice:    money.Round2(line.UnitPrice),
				CostSnapshot: money.Round2(cost),
				Subtotal:     money.Round2(subtotal),
				ItemProfit:   money.Round2(itemProfit),
			})
			if err != nil {
				return fmt.Errorf("sales: insert item: %w", err)
			}
			sale.Items = append(sale.Items, stored)
			total = total.Add(subtotal)
			profit = profit.Add(itemProfit)
		}
		for _, id := range agg.ProductIDs {
			if _, err := l.IssueStock(ctx, id, agg.ByProduct[id].Quantity); err != nil {
				return err
			}
		}
		sale.Total = money.Round2(total)
		sale.Profit = money.Round2(profit)
		if err := tx.SetTotals(ctx, sale.ID, sale.Total, sale.Profit); err != nil {
			return fmt.Errorf("sales: set totals: %w", err)
		}
		return nil
	})
	if err != nil {
		if claimed {
			if delErr := s.idempotency.Delete(context.WithoutCancel(ctx), key); delErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		return Sale{}, err
	}

	s.logger.Info("sale recorded",
		slog.Int64("sale_id", sale.ID),
		slog.Int("items", len(sale.Items)),
		slog.String("total", money.Format(sale.Total)),
		slog.String("profit", money.Format(sale.Profit)))
	s.publish(ctx, ledger.StockChangedEvent{
		Kind:       ledger.MovementIssue,
		Reference:  fmt.Sprintf("sale:%d", sale.ID),
		Movements:  agg.Movements(),
		OccurredAt: s.now(),
	})
	return sale, nil
}

// Cancel reverses a completed sale: every line item quantity goes back to
// stock and average costs stay as they are.
func (s *Service) Cancel(ctx context.Context, id int64) (Sale, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	if current.Status == StatusCanceled {
		return Sale{}, ErrAlreadyCanceled
	}

	var sale Sale
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.LockSale(ctx, id)
		if err != nil {
			return err
		}
		sale = locked
		if sale.Status == StatusCanceled {
			return ErrAlreadyCanceled
		}
		ids := make([]int64, 0, len(sale.Items))
		for _, it := range sale.Items {
			ids = append(ids, it.ProductID)
		}
		l, err := ledger.Lock(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, it := range sale.Items {
			if _, err := l.ReverseIssue(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		at := s.now()
		if err := tx.MarkCanceled(ctx, sale.ID, at); err != nil {
			return fmt.Errorf("sales: mark canceled: %w", err)
		}
		sale.Status = StatusCanceled
		sale.CanceledAt = &at
		sale.UpdatedAt = at
		return nil
	})
	if err != nil {
		return Sale{}, err
	}

	s.logger.Info("sale canceled", slog.Int64("sale_id", sale.ID), slog.Int("items", len(sale.Items)))
	s.publish(ctx, ledger.StockChangedEvent{
		Kind:       ledger.MovementReverse,
		Reference:  fmt.Sprintf("sale:%d", sale.ID),
		Movements:  itemMovements(sale.Items),
		OccurredAt: s.now(),
	})
	return sale, nil
}

// Get returns a sale with its items.
func (s *Service) Get(ctx context.Context, id int64) (Sale, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of sales, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) (ListResult, error) {
	filter.Customer = shared.NormalizeName(filter.Customer)
	if filter.Status != "" && !filter.Status.Valid() {
		return ListResult{}, shared.NewValidationError("status", "must be completed or canceled")
	}
	filter.Page = shared.NewPageRequest(filter.Page.Page, filter.Page.PerPage)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, Pagination: shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total)}, nil
}

func (s *Service) checkProducts(ctx context.Context, agg ledger.Aggregation) error {
	if s.catalog == nil {
		return nil
	}
	missing, err := s.catalog.Missing(ctx, agg.ProductIDs)
	if err != nil {
		return err
	}
	return agg.MissingProducts(missing)
}

func (s *Service) publish(ctx context.Context, evt ledger.StockChangedEvent) {
	ledger.Publish(ctx, s.events, evt, s.logger)
}
