package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/falconrep/falconrep/internal/app"
	"github.com/falconrep/falconrep/internal/billing"
	"github.com/falconrep/falconrep/internal/catalog"
	"github.com/falconrep/falconrep/internal/customers"
	"github.com/falconrep/falconrep/internal/images"
	"github.com/falconrep/falconrep/internal/platform/cache"
	"github.com/falconrep/falconrep/internal/platform/db"
	"github.com/falconrep/falconrep/internal/remote"
	"github.com/falconrep/falconrep/internal/session"
	"github.com/falconrep/falconrep/internal/syncer"
	"github.com/falconrep/falconrep/internal/uploader"
	"github.com/falconrep/falconrep/jobs"
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

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

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

	sessions := session.NewStore(redisClient, cfg.SessionTTL)
	api := remote.NewClient(cfg.APIBaseURL, cfg.APITimeout)

	imageStore, err := images.NewStore(cfg.ImageDir)
	if err != nil {
		logger.Error("init image store", slog.Any("error", err))
		os.Exit(1)
	}

	catalogRepo := catalog.NewRepository(pool)
	customersRepo := customers.NewRepository(pool)
	billingRepo := billing.NewRepository(pool)

	customersService := customers.NewService(logger, customersRepo, api)
	uploadService := uploader.NewService(logger, api, billingRepo, sessions)
	downloader := images.NewDownloader(logger, imageStore, catalogRepo, cfg.ImageDownloadWorkers)
	orchestrator := syncer.NewOrchestrator(logger, api, catalogRepo, customersRepo, imageStore, sessions, cfg.SyncFanout)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	handlers := jobs.NewHandlers(logger, orchestrator, downloader, customersService, uploadService, api.Online, jobClient.Enqueue)

	syncTask, err := jobs.NewCatalogSyncTask("cron")
	if err != nil {
		logger.Error("build sync task", slog.Any("error", err))
		os.Exit(1)
	}
	customerTask, err := jobs.NewUploadCustomersTask("cron")
	if err != nil {
		logger.Error("build customer upload task", slog.Any("error", err))
		os.Exit(1)
	}
	billsTask, err := jobs.NewUploadBillsTask("cron")
	if err != nil {
		logger.Error("build bills upload task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers:  handlers.TaskHandlers(),
		Cron: []jobs.CronRegistration{
			{Spec: "0 5 * * *", Task: syncTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/30 * * * *", Task: customerTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/30 * * * *", Task: billsTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
