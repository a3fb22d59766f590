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
	"golang.org/x/sync/errgroup"

	"github.com/nhatro-erp/nhatro-erp/internal/app"
	"github.com/nhatro-erp/nhatro-erp/internal/billing"
	"github.com/nhatro-erp/nhatro-erp/internal/ledger"
	"github.com/nhatro-erp/nhatro-erp/internal/notify"
	"github.com/nhatro-erp/nhatro-erp/internal/observability"
	"github.com/nhatro-erp/nhatro-erp/internal/platform/cache"
	"github.com/nhatro-erp/nhatro-erp/internal/platform/db"
	"github.com/nhatro-erp/nhatro-erp/internal/shared"
	"github.com/nhatro-erp/nhatro-erp/internal/tenancy"
	"github.com/nhatro-erp/nhatro-erp/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("connect job queue", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	notifyRepo := notify.NewRepository(pool)
	notifyService := notify.NewService(notifyRepo, jobClient, logger)

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, ledgerService, notifyService, billing.ServiceConfig{
		MinPaymentAmount: cfg.MinPaymentAmount,
	}, logger)
	billingService.SetAuditRecorder(auditLogger)
	billingService.SetIdempotencyGuard(idempotencyStore)
	billingService.SetMirror(billing.NewCache(redisClient, cfg.BillCacheTTL))

	tenancyRepo := tenancy.NewRepository(pool)
	tenancyService := tenancy.NewService(tenancyRepo, billingService, tenancy.ServiceConfig{
		ExpiringWindowDays: cfg.LeaseExpiringWindowDays,
	}, logger)
	billingService.SetMasterData(tenancyService)

	billingHandler := billing.NewHandler(logger, billingService, metrics)
	tenancyHandler := tenancy.NewHandler(logger, tenancyService)
	jobsHandler := jobs.NewHandler(asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr}), logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		BillingHandler: billingHandler,
		LedgerHandler:  ledgerHandler,
		TenancyHandler: tenancyHandler,
		JobsHandler:    jobsHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
