package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KotFed0t/copytrade_backoffice/config"
	"github.com/KotFed0t/copytrade_backoffice/data"
	"github.com/KotFed0t/copytrade_backoffice/data/cache"
	"github.com/KotFed0t/copytrade_backoffice/data/repository/postgres"
	"github.com/KotFed0t/copytrade_backoffice/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/KotFed0t/copytrade_backoffice/internal/externalApi/copytradeApi"
	"github.com/KotFed0t/copytrade_backoffice/internal/reportGenerator/xslsxGenerator"
	"github.com/KotFed0t/copytrade_backoffice/internal/scheduler"
	"github.com/KotFed0t/copytrade_backoffice/internal/service/optionService"
	"github.com/KotFed0t/copytrade_backoffice/internal/service/purchaseService"
	"github.com/KotFed0t/copytrade_backoffice/internal/service/purchaseWorkflow"
	"github.com/KotFed0t/copytrade_backoffice/internal/service/reportService"
	"github.com/KotFed0t/copytrade_backoffice/internal/service/sideEffectNotifier"
	"github.com/KotFed0t/copytrade_backoffice/internal/tgbot"
	"github.com/KotFed0t/copytrade_backoffice/internal/transport/httpApi"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgClient := data.NewPostgresClient(ctx, cfg)
	defer pgClient.Close()

	pgRepo := postgres.NewPostgres(pgClient)

	redisClient := data.NewRedisClient(ctx, cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg)

	// nil интерфейс, а не nil указатель: notifier и reportService проверяют на nil
	var adminChannel sideEffectNotifier.AdminChannel
	if cfg.Telegram.Enabled {
		adminChannel = tgbot.New(cfg)
	}

	var cloudStorage reportService.CloudStorage
	if cfg.GoogleDrive.Enabled {
		cloudStorage = googleDriveApi.New(ctx, cfg)
	}

	notifier := sideEffectNotifier.New(pgRepo, redisCache, adminChannel)
	workflow := purchaseWorkflow.New(pgRepo, pgRepo, pgRepo, pgRepo)

	purchaseSrv := purchaseService.New(cfg, pgRepo, workflow, pgRepo, redisCache, notifier)
	optionSrv := optionService.New(pgRepo, redisCache, copytradeApi.New(cfg))
	reportSrv := reportService.New(pgRepo, xslsxGenerator.New(), cloudStorage)

	jobs := []scheduler.Job{
		{
			Name:             "fill options cache",
			Task:             optionSrv.FillOptionsCache,
			Every:            cfg.Jobs.FillOptionsCacheInterval,
			StartImmediately: true,
		},
		{
			Name: "refresh purchase metrics",
			Task: func(ctx context.Context) error {
				if err := optionSrv.SyncOptionsStats(ctx); err != nil {
					return err
				}
				return purchaseSrv.RefreshActivePurchaseMetrics(ctx)
			},
			Every: cfg.Jobs.RefreshPurchaseMetricsInterval,
		},
	}
	if cloudStorage != nil {
		jobs = append(jobs,
			scheduler.Job{Name: "upload purchases report", Task: reportSrv.UploadDailyReport, Crontab: cfg.Jobs.PurchasesReportCrontab},
			scheduler.Job{Name: "delete old reports", Task: reportSrv.DeleteOldReports, Crontab: cfg.Jobs.PurchasesReportCrontab},
		)
	}

	sched := scheduler.New(cfg.Jobs.JobTimeout)
	if err := sched.Register(jobs...); err != nil {
		slog.Error("can't register jobs", slog.String("err", err.Error()))
		panic(err)
	}
	sched.Start()
	defer sched.Stop()

	ctrl := httpApi.NewController(purchaseSrv, optionSrv, reportSrv, pgClient)
	server := httpApi.NewServer(cfg, ctrl)
	server.Start()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt

	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	server.Stop(shutdownCtx)
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
