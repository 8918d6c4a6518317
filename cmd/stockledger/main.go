package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stockledger/cmd/stockledger/cli"
	"github.com/odyssey-erp/stockledger/internal/app"
	"github.com/odyssey-erp/stockledger/internal/observability"
	"github.com/odyssey-erp/stockledger/internal/platform/cache"
	"github.com/odyssey-erp/stockledger/internal/platform/db"
	"github.com/odyssey-erp/stockledger/internal/products"
	"github.com/odyssey-erp/stockledger/internal/purchases"
	"github.com/odyssey-erp/stockledger/internal/reporting"
	"github.com/odyssey-erp/stockledger/internal/sales"
	"github.com/odyssey-erp/stockledger/internal/shared"
	"github.com/odyssey-erp/stockledger/jobs"
)

const usage = `usage: stockledger [command]

commands:
  serve                          run the HTTP API (default)
  migrate up|down|version        apply or inspect schema migrations
  seed                           upsert the demo product catalog
  jobs trigger <task> [ids...]   enqueue a background job
  jobs queue                     print queue statistics`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		if err := serve(ctx, stop, cfg, logger); err != nil {
			logger.Error("serve", slog.Any("error", err))
			os.Exit(1)
		}
	case "migrate":
		migrator, err := db.NewMigrator(cfg.PGDSN, logger)
		if err != nil {
			logger.Error("init migrator", slog.Any("error", err))
			os.Exit(1)
		}
		code := cli.MigrateCommand(migrator, args, os.Stdout, os.Stderr)
		if err := migrator.Close(); err != nil {
			logger.Warn("close migrator", slog.Any("error", err))
		}
		os.Exit(code)
	case "seed":
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		code := cli.SeedCommand(ctx, products.NewRepository(pool), os.Stdout, os.Stderr)
		pool.Close()
		os.Exit(code)
	case "jobs":
		jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
		if err != nil {
			logger.Error("init jobs cli", slog.Any("error", err))
			os.Exit(1)
		}
		code := cli.JobsCommand(ctx, jobsCLI, args, os.Stdout, os.Stderr)
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("close jobs cli", slog.Any("error", err))
		}
		os.Exit(code)
	default:
		_, _ = fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	if cfg.PGMigrateOnStart {
		migrator, err := db.NewMigrator(cfg.PGDSN, logger)
		if err != nil {
			return fmt.Errorf("init migrator: %w", err)
		}
		upErr := migrator.Up()
		if err := migrator.Close(); err != nil {
			logger.Warn("close migrator", slog.Any("error", err))
		}
		if upErr != nil {
			return fmt.Errorf("migrate on start: %w", upErr)
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()

	// Redis backs the overview cache and the job queue; the ledger keeps
	// working without it.
	var overviewCache *cache.Versioned
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, reporting cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		overviewCache = cache.NewVersioned(redisClient, "reporting", cfg.ReportingCacheTTL)
		if err := overviewCache.ListenForInvalidation(ctx, func(version int64) {
			logger.Debug("reporting cache invalidated", slog.Int64("version", version))
		}); err != nil {
			logger.Warn("subscribe cache invalidation", slog.Any("error", err))
		}
	}

	metrics := observability.NewMetrics()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		return fmt.Errorf("init job client: %w", err)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	reportingService := reporting.NewService(reporting.NewRepository(dbpool), overviewCache, cfg.LowStockThreshold, logger)
	notifier := reporting.NewNotifier(reportingService, jobClient, metrics, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	productService := products.NewService(products.NewRepository(dbpool), logger)
	purchaseService := purchases.NewService(purchases.NewRepository(dbpool), productService, idempotencyStore, notifier, logger)
	saleService := sales.NewService(sales.NewRepository(dbpool), productService, idempotencyStore, notifier, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		ProductsHandler:  products.NewHandler(logger, productService),
		PurchasesHandler: purchases.NewHandler(logger, purchaseService),
		SalesHandler:     sales.NewHandler(logger, saleService),
		ReportingHandler: reporting.NewHandler(logger, reportingService),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
