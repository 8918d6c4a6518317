package purchases

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

const idempotencyModule = "purchases"

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	ledger.StockTx
	InsertPurchase(ctx context.Context, supplier string) (Purchase, error)
	InsertItem(ctx context.Context, item Item) (Item, error)
	SetTotal(ctx context.Context, purchaseID int64, total decimal.Decimal) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Purchase, error)
	List(ctx context.Context, filter ListFilter) ([]Purchase, int, error)
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

// Service coordinates purchase recording.
type Service struct {
	repo        RepositoryPort
	catalog     Catalog
	idempotency IdempotencyPort
	events      ledger.StockChangeHandler
	validator   *validator.Validate
	logger      *slog.Logger
}

// NewService builds Service. idem and events may be nil.
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
	}
}

// Create records a purchase: the raw items are stored in submission order and
// every distinct product receives its aggregated quantity and cost in one
// unit of work.
func (s *Service) Create(ctx context.Context, input CreateInput) (CreateResult, error) {
	input.Supplier = shared.NormalizeName(input.Supplier)
	if err := shared.ValidateStruct(s.validator, input); err != nil {
		return CreateResult{}, err
	}
	lines := make([]ledger.LineItem, 0, len(input.Items))
	for _, it := range input.Items {
		lines = append(lines, ledger.LineItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	agg, err := ledger.Aggregate(lines)
	if err != nil {
		return CreateResult{}, err
	}
	if err := s.checkProducts(ctx, agg); err != nil {
		return CreateResult{}, err
	}

	key := shared.IdempotencyKeyFromContext(ctx)
	claimed := false
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			return CreateResult{}, err
		}
		claimed = true
	}

	var result CreateResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		l, err := ledger.Lock(ctx, tx, agg.ProductIDs)
		if err != nil {
			return err
		}
		purchase, err := tx.InsertPurchase(ctx, input.Supplier)
		if err != nil {
			return fmt.Errorf("purchases: insert header: %w", err)
		}
		running := decimal.Zero
		purchase.Items = make([]Item, 0, len(agg.Items))
		for _, line := range agg.Items {
			subtotal := money.Line(line.Quantity, line.UnitPrice)
			stored, err := tx.InsertItem(ctx, Item{
				PurchaseID: purchase.ID,
				ProductID:  line.ProductID,
				Quantity:   line.Quantity,
				UnitPrice:  money.Round2(line.UnitPrice),
				Subtotal:   money.Round2(subtotal),
			})
			if err != nil {
				return fmt.Errorf("purchases: insert item: %w", err)
			}
			purchase.Items = append(purchase.Items, stored)
			running = running.Add(subtotal)
		}
		updated := make([]UpdatedProduct, 0, len(agg.ProductIDs))
		for _, id := range agg.ProductIDs {
			sum := agg.ByProduct[id]
			p, err := l.ReceiveStock(ctx, id, sum.Quantity, sum.Cost)
			if err != nil {
				return err
			}
			updated = append(updated, UpdatedProduct{ID: p.ID, Stock: p.Stock, AvgCost: p.AvgCost})
		}
		purchase.Total = money.Round2(running)
		if err := tx.SetTotal(ctx, purchase.ID, purchase.Total); err != nil {
			return fmt.Errorf("purchases: set total: %w", err)
		}
		result = CreateResult{Purchase: purchase, UpdatedProducts: updated}
		return nil
	})
	if err != nil {
		if claimed {
			if delErr := s.idempotency.Delete(context.WithoutCancel(ctx), key); delErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		return CreateResult{}, err
	}

	s.logger.Info("purchase recorded",
		slog.Int64("purchase_id", result.Purchase.ID),
		slog.Int("items", len(result.Purchase.Items)),
		slog.String("total", money.Format(result.Purchase.Total)))
	s.publish(ctx, ledger.StockChangedEvent{
		Kind:       ledger.MovementReceive,
		Reference:  fmt.Sprintf("purchase:%d", result.Purchase.ID),
		Movements:  agg.Movements(),
		OccurredAt: time.Now().UTC(),
	})
	return result, nil
}

// Get returns a purchase with its items.
func (s *Service) Get(ctx context.Context, id int64) (Purchase, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of purchases, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) (ListResult, error) {
	filter.Supplier = shared.NormalizeName(filter.Supplier)
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
