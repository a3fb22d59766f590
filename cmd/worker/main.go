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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nhatro-erp/nhatro-erp/internal/app"
	"github.com/nhatro-erp/nhatro-erp/internal/billing"
	jobmetrics "github.com/nhatro-erp/nhatro-erp/internal/jobs"
	"github.com/nhatro-erp/nhatro-erp/internal/ledger"
	"github.com/nhatro-erp/nhatro-erp/internal/notify"
	"github.com/nhatro-erp/nhatro-erp/internal/platform/db"
	"github.com/nhatro-erp/nhatro-erp/internal/tenancy"
	"github.com/nhatro-erp/nhatro-erp/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)

	ledgerService := ledger.NewService(ledger.NewRepository(pool))
	notifyService := notify.NewService(notify.NewRepository(pool), nil, logger)
	billingService := billing.NewService(billing.NewRepository(pool), ledgerService, notifyService, billing.ServiceConfig{
		MinPaymentAmount: cfg.MinPaymentAmount,
	}, logger)
	tenancyService := tenancy.NewService(tenancy.NewRepository(pool), billingService, tenancy.ServiceConfig{
		ExpiringWindowDays: cfg.LeaseExpiringWindowDays,
	}, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeLeaseRefresh, Handler: jobs.NewLeaseRefreshHandler(tenancyService, metrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.LeaseRefreshCron, Task: jobs.NewLeaseRefreshTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metricsMux()}
	go func() {
		logger.Info("worker metrics listening", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker starting", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker exited", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
