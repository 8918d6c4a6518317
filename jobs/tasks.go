package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockCheck inspects products whose stock just went down.
	TaskLowStockCheck = "inventory:low_stock_check"
	// TaskOverviewWarmup recomputes the cached metrics overview.
	TaskOverviewWarmup = "reporting:overview_warmup"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// DefaultIdempotencyRetention is how long request keys are kept.
const DefaultIdempotencyRetention = 24 * time.Hour

// LowStockCheckPayload lists the products to inspect.
type LowStockCheckPayload struct {
	ProductIDs []int64 `json:"product_ids"`
}

// OverviewWarmupPayload is intentionally empty; the overview has no scope.
type OverviewWarmupPayload struct{}

// IdempotencyCleanupPayload configures the retention window.
type IdempotencyCleanupPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewLowStockCheckTask constructs the low-stock task.
func NewLowStockCheckTask(productIDs []int64) (*asynq.Task, error) {
	if len(productIDs) == 0 {
		return nil, fmt.Errorf("jobs: %s requires product ids", TaskLowStockCheck)
	}
	return newTask(TaskLowStockCheck, LowStockCheckPayload{ProductIDs: productIDs})
}

// NewOverviewWarmupTask constructs the overview warmup task.
func NewOverviewWarmupTask() (*asynq.Task, error) {
	return newTask(TaskOverviewWarmup, OverviewWarmupPayload{})
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	if olderThan <= 0 {
		olderThan = DefaultIdempotencyRetention
	}
	return newTask(TaskIdempotencyCleanup, IdempotencyCleanupPayload{OlderThan: olderThan})
}

// NewTaskByName builds a task from its type for manual triggering. Low-stock
// checks need explicit product ids.
func NewTaskByName(name string, productIDs []int64) (*asynq.Task, error) {
	switch name {
	case TaskLowStockCheck:
		return NewLowStockCheckTask(productIDs)
	case TaskOverviewWarmup:
		return NewOverviewWarmupTask()
	case TaskIdempotencyCleanup:
		return NewIdempotencyCleanupTask(0)
	default:
		return nil, fmt.Errorf("jobs: unknown task %q", name)
	}
}

func newTask(typ string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, data), nil
}
