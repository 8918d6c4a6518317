package products

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/ledger"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Insert(ctx context.Context, p Product) (Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context) ([]Product, error)
	ExistingIDs(ctx context.Context, ids []int64) ([]int64, error)
}

// Service coordinates product registration and lookups.
type Service struct {
	repo      RepositoryPort
	validator *validator.Validate
	logger    *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, validator: shared.NewValidator(), logger: logger}
}

// Register stores a new product. Stock defaults to DefaultStock and average
// cost to zero when omitted.
func (s *Service) Register(ctx context.Context, input RegisterInput) (RegisterResult, error) {
	input.Name = shared.NormalizeName(input.Name)
	if err := shared.ValidateStruct(s.validator, input); err != nil {
		return RegisterResult{}, err
	}
	result := RegisterResult{}
	stock := DefaultStock
	if input.Stock != nil {
		stock = *input.Stock
	} else {
		result.DefaultStockApplied = true
	}
	avg := decimal.Zero
	if input.AvgCost != nil {
		avg = *input.AvgCost
	}
	created, err := s.repo.Insert(ctx, Product{
		Name:      input.Name,
		Stock:     stock,
		AvgCost:   avg,
		SalePrice: input.SalePrice,
	})
	if err != nil {
		return RegisterResult{}, fmt.Errorf("products: register: %w", err)
	}
	result.Product = created
	s.logger.Info("product registered",
		slog.Int64("product_id", created.ID),
		slog.Int64("stock", created.Stock),
		slog.Bool("default_stock", result.DefaultStockApplied))
	return result, nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

// List returns every product, newest first.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx)
}

// GetProductStock returns the committed stock and average cost of a product.
func (s *Service) GetProductStock(ctx context.Context, id int64) (StockLevel, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return StockLevel{}, err
	}
	return StockLevel{ProductID: p.ID, Stock: p.Stock, AvgCost: p.AvgCost}, nil
}

// Missing returns the requested ids that have no product, ascending.
func (s *Service) Missing(ctx context.Context, ids []int64) ([]int64, error) {
	wanted := ledger.SortedIDs(ids)
	if len(wanted) == 0 {
		return nil, nil
	}
	found, err := s.repo.ExistingIDs(ctx, wanted)
	if err != nil {
		return nil, fmt.Errorf("products: lookup: %w", err)
	}
	present := make(map[int64]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	var missing []int64
	for _, id := range wanted {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
