package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/stockledger/internal/jobs"
	"github.com/odyssey-erp/stockledger/internal/reporting"
)

// OverviewRefresher recomputes and stores the metrics overview.
type OverviewRefresher interface {
	Refresh(ctx context.Context) (reporting.Overview, error)
}

// OverviewWarmupJob keeps the cached overview populated.
type OverviewWarmupJob struct {
	Reporting OverviewRefresher
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewOverviewWarmupJob wires dependencies for the warmup handler.
func NewOverviewWarmupJob(reportingSvc OverviewRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverviewWarmupJob {
	return &OverviewWarmupJob{
		Reporting: reportingSvc,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes overview warmup tasks.
func (j *OverviewWarmupJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Reporting == nil {
		return errors.New("overview warmup: handler not configured")
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskOverviewWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := jobLogger(j.Logger, TaskOverviewWarmup)
	start := j.now()
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	overview, err := j.Reporting.Refresh(ctx)
	if err != nil {
		logger.Error("refresh overview", slog.Any("error", err))
		return err
	}
	logger.Info("completed overview warmup",
		slog.String("month", overview.MonthLabel),
		slog.Int64("low_stock", overview.LowStock),
		slog.Duration("duration", j.now().Sub(start)))
	return nil
}

func (j *OverviewWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
