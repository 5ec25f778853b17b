package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/timosh-design/blankstock/internal/app"
	"github.com/timosh-design/blankstock/internal/catalog"
	"github.com/timosh-design/blankstock/internal/intake"
	"github.com/timosh-design/blankstock/internal/ledger"
	"github.com/timosh-design/blankstock/internal/platform/db"
	"github.com/timosh-design/blankstock/internal/replenish"
	"github.com/timosh-design/blankstock/internal/shared"
	"github.com/timosh-design/blankstock/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	auditLogger := shared.NewAuditLogger(pool)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, auditLogger)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, auditLogger, logger, nil)

	replenishEngine := replenish.NewEngine(catalogService, ledgerService, replenish.Params{
		ScrapPct:     cfg.ScrapPct,
		LeadTimeDays: cfg.LeadTimeDays,
	})

	runner := &jobs.Runner{
		Ledger:        ledgerService,
		Replenish:     replenishEngine,
		Unmapped:      intake.NewRepository(pool),
		Logger:        logger,
		LeadTimeDays:  cfg.LeadTimeDays,
		RetentionDays: cfg.UnmappedRetentionDays,
	}

	cron, err := runner.CronEntries()
	if err != nil {
		logger.Error("build cron entries", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  runner.Handlers(),
		Cron:      cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
