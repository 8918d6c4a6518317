package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/stockledger/internal/jobs"
	"github.com/odyssey-erp/stockledger/internal/reporting"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// LowStockChecker resolves which products are at or below the threshold.
type LowStockChecker interface {
	LowStock(ctx context.Context, ids []int64) ([]reporting.LowStockProduct, error)
	Threshold() int64
}

// LowStockGauge publishes the size of the last low-stock result.
type LowStockGauge interface {
	SetLowStock(count int)
}

// LowStockCheckJob logs products whose stock dropped to the threshold.
type LowStockCheckJob struct {
	Checker LowStockChecker
	Gauge   LowStockGauge
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockCheckJob wires dependencies for the low-stock handler.
func NewLowStockCheckJob(checker LowStockChecker, gauge LowStockGauge, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockCheckJob {
	return &LowStockCheckJob{Checker: checker, Gauge: gauge, Logger: logger, Metrics: metrics}
}

// Handle processes low-stock tasks.
func (j *LowStockCheckJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Checker == nil {
		return errors.New("low stock check: handler not configured")
	}
	var payload LowStockCheckPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || len(payload.ProductIDs) == 0 {
		return asynq.SkipRetry
	}

	tracker := metricsOrDefault(j.Metrics).Track(TaskLowStockCheck)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := jobLogger(j.Logger, TaskLowStockCheck)
	products, err := j.Checker.LowStock(ctx, payload.ProductIDs)
	if err != nil {
		logger.Error("load low stock products", slog.Any("error", err))
		return err
	}
	for _, p := range products {
		logger.Warn("product stock low",
			slog.Int64("product_id", p.ID),
			slog.String("name", p.Name),
			slog.Int64("stock", p.Stock),
			slog.Int64("threshold", j.Checker.Threshold()))
	}
	if j.Gauge != nil {
		j.Gauge.SetLowStock(len(products))
	}
	metricsOrDefault(j.Metrics).AddLowStockAlerts(len(products))
	logger.Info("completed low stock check", slog.Int("checked", len(payload.ProductIDs)), slog.Int("low", len(products)))
	return nil
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger != nil {
		return logger.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}
