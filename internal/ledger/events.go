package ledger

import (
	"context"
	"log/slog"
	"time"
)

// Movement is the net quantity applied to one product by a committed operation.
type Movement struct {
	ProductID int64
	Quantity  int64
}

// StockChangedEvent is published after a unit of work that moved stock commits.
type StockChangedEvent struct {
	Kind       MovementKind
	Reference  string
	Movements  []Movement
	OccurredAt time.Time
}

// ProductIDs returns the ids touched by the event in ascending order.
func (e StockChangedEvent) ProductIDs() []int64 {
	ids := make([]int64, 0, len(e.Movements))
	for _, m := range e.Movements {
		ids = append(ids, m.ProductID)
	}
	return SortedIDs(ids)
}

// StockChangeHandler receives post-commit stock events. Failures are reported
// to the caller's logger and never undo the committed operation.
type StockChangeHandler interface {
	HandleStockChanged(ctx context.Context, evt StockChangedEvent) error
}

// Publish hands a committed event to h. The handler sees ctx values but not
// its cancellation, since the unit of work has already committed. Failures are
// logged only.
func Publish(ctx context.Context, h StockChangeHandler, evt StockChangedEvent, logger *slog.Logger) {
	if h == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := h.HandleStockChanged(context.WithoutCancel(ctx), evt); err != nil {
		logger.Warn("stock change notification", slog.String("reference", evt.Reference), slog.Any("error", err))
	}
}

// Movements converts aggregated quantities into ordered movements.
func (a Aggregation) Movements() []Movement {
	out := make([]Movement, 0, len(a.ProductIDs))
	for _, id := range a.ProductIDs {
		out = append(out, Movement{ProductID: id, Quantity: a.ByProduct[id].Quantity})
	}
	return out
}
