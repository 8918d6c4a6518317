package reporting

import (
	"context"
	"errors"
	"log/slog"

	"github.com/odyssey-erp/stockledger/internal/ledger"
)

// Invalidator drops cached reports.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// LowStockEnqueuer schedules a low-stock check for products.
type LowStockEnqueuer interface {
	EnqueueLowStockCheck(ctx context.Context, productIDs []int64) error
}

// MovementRecorder counts committed ledger movements.
type MovementRecorder interface {
	RecordMovement(kind string, units int64)
}

// Notifier fans a committed stock change out to the cache, the job queue and
// metrics. Any collaborator may be nil.
type Notifier struct {
	cache   Invalidator
	jobs    LowStockEnqueuer
	metrics MovementRecorder
	logger  *slog.Logger
}

var _ ledger.StockChangeHandler = (*Notifier)(nil)

// NewNotifier constructs Notifier.
func NewNotifier(cache Invalidator, jobs LowStockEnqueuer, metrics MovementRecorder, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{cache: cache, jobs: jobs, metrics: metrics, logger: logger}
}

// HandleStockChanged implements ledger.StockChangeHandler.
func (n *Notifier) HandleStockChanged(ctx context.Context, evt ledger.StockChangedEvent) error {
	if n.metrics != nil {
		var units int64
		for _, m := range evt.Movements {
			units += m.Quantity
		}
		n.metrics.RecordMovement(string(evt.Kind), units)
	}

	var errs []error
	if n.cache != nil {
		if err := n.cache.Invalidate(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if n.jobs != nil && evt.Kind == ledger.MovementIssue {
		if err := n.jobs.EnqueueLowStockCheck(ctx, evt.ProductIDs()); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if err == nil {
		n.logger.Debug("stock change handled", slog.String("reference", evt.Reference), slog.String("kind", string(evt.Kind)))
	}
	return err
}
