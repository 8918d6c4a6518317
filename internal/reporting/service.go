package reporting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/stockledger/internal/money"
	"github.com/odyssey-erp/stockledger/internal/platform/cache"
)

// RepositoryPort exposes the aggregate queries behind the overview.
type RepositoryPort interface {
	CountProducts(ctx context.Context) (int64, error)
	CountPurchases(ctx context.Context) (int64, error)
	CountCompletedSales(ctx context.Context) (int64, error)
	CountLowStock(ctx context.Context, threshold int64) (int64, error)
	SalesTotals(ctx context.Context, period *Period) (SalesTotals, error)
	LowStockProducts(ctx context.Context, ids []int64, threshold int64) ([]LowStockProduct, error)
}

// Service builds the overview, cached per calendar month and cache version.
type Service struct {
	repo      RepositoryPort
	cache     *cache.Versioned
	threshold int64
	logger    *slog.Logger
	now       func() time.Time
	group     singleflight.Group
}

// NewService constructs Service. cache may be nil; threshold <= 0 selects the default.
func NewService(repo RepositoryPort, c *cache.Versioned, threshold int64, logger *slog.Logger) *Service {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		cache:     c,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

// Threshold reports the configured low-stock level.
func (s *Service) Threshold() int64 {
	return s.threshold
}

// Overview returns the dashboard summary, from cache when the version matches.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	now := s.now()
	key, err := s.cacheKey(ctx, now)
	if err != nil {
		s.logger.Warn("reporting cache unavailable", slog.Any("error", err))
		return s.compute(ctx, now)
	}
	ch := s.group.DoChan(key, func() (any, error) {
		var out Overview
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			return s.compute(ctx, now)
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return Overview{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Overview{}, res.Err
		}
		return res.Val.(Overview), nil
	}
}

// Refresh recomputes the overview and overwrites the cached copy.
func (s *Service) Refresh(ctx context.Context) (Overview, error) {
	now := s.now()
	key, err := s.cacheKey(ctx, now)
	if err != nil {
		return Overview{}, err
	}
	var out Overview
	err = s.cache.Store(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.compute(ctx, now)
	})
	return out, err
}

// Invalidate drops every cached overview.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// LowStock returns the products among ids at or below the threshold.
func (s *Service) LowStock(ctx context.Context, ids []int64) ([]LowStockProduct, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.repo.LowStockProducts(ctx, ids, s.threshold)
}

func (s *Service) cacheKey(ctx context.Context, now time.Time) (string, error) {
	return s.cache.BuildKey(ctx, "reporting", "overview", now.Format("2006-01"), fmt.Sprint(s.threshold))
}

func (s *Service) compute(ctx context.Context, now time.Time) (Overview, error) {
	var out Overview
	month := MonthOf(now)
	var monthTotals, allTotals SalesTotals

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.ProductsCount, err = s.repo.CountProducts(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.PurchasesCount, err = s.repo.CountPurchases(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.SalesCount, err = s.repo.CountCompletedSales(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.LowStock, err = s.repo.CountLowStock(gctx, s.threshold)
		return err
	})
	g.Go(func() (err error) {
		monthTotals, err = s.repo.SalesTotals(gctx, &month)
		return err
	})
	g.Go(func() (err error) {
		allTotals, err = s.repo.SalesTotals(gctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, fmt.Errorf("reporting: overview: %w", err)
	}

	out.RevenueMonth = money.Round2(monthTotals.Revenue)
	out.ProfitMonth = money.Round2(monthTotals.Profit)
	out.RevenueTotal = money.Round2(allTotals.Revenue)
	out.ProfitTotal = money.Round2(allTotals.Profit)
	out.MonthLabel = now.Format("January/2006")
	out.GeneratedAt = now.UTC()
	return out, nil
}
