package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/timosh-design/blankstock/internal/app"
	"github.com/timosh-design/blankstock/internal/catalog"
	"github.com/timosh-design/blankstock/internal/intake"
	"github.com/timosh-design/blankstock/internal/ledger"
	"github.com/timosh-design/blankstock/internal/mapping"
	"github.com/timosh-design/blankstock/internal/observability"
	"github.com/timosh-design/blankstock/internal/platform/db"
	"github.com/timosh-design/blankstock/internal/replenish"
	"github.com/timosh-design/blankstock/internal/shared"
	"github.com/timosh-design/blankstock/internal/webhook"
	"github.com/timosh-design/blankstock/jobs"
)

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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, auditLogger)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	mappingRepo := mapping.NewRepository(dbpool)
	mappingCache := mapping.NewCache(redisClient, cfg.MappingCacheTTL, mappingRepo.ListActive)
	mappingService := mapping.NewService(mappingRepo, mappingCache, auditLogger)
	mappingHandler := mapping.NewHandler(logger, mappingService)

	ledgerRepo := ledger.NewRepository(dbpool)
	ledgerService := ledger.NewService(ledgerRepo, auditLogger, logger, metrics)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	unmappedRepo := intake.NewRepository(dbpool)
	pipeline := intake.NewPipeline(mappingCache, ledgerService, unmappedRepo, logger, metrics)
	intakeHandler := intake.NewHandler(logger, unmappedRepo)

	replenishEngine := replenish.NewEngine(catalogService, ledgerService, replenish.Params{
		ScrapPct:     cfg.ScrapPct,
		LeadTimeDays: cfg.LeadTimeDays,
	})
	replenishHandler := replenish.NewHandler(logger, replenishEngine)

	webhookHandler := webhook.NewHandler(pipeline, cfg.WebhookSecret, cfg.WebhookStatuses, logger, metrics)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(asynq.NewInspector(redisOpts), jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		CatalogHandler:   catalogHandler,
		MappingHandler:   mappingHandler,
		LedgerHandler:    ledgerHandler,
		IntakeHandler:    intakeHandler,
		ReplenishHandler: replenishHandler,
		WebhookHandler:   webhookHandler,
		JobsHandler:      jobsHandler,
		Pool:             dbpool,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
