package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"budgetbuddy/internal/config"
	"budgetbuddy/internal/database"
	"budgetbuddy/internal/logger"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/services"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Report worker error: %v", err)
	}
}

func run() error {
	log := logger.Named("report-worker")

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	notifier, closeNotifier, err := notify.FromConfig(appConfig)
	if err != nil {
		return fmt.Errorf("failed to create report notifier: %w", err)
	}
	defer func() {
		if err := closeNotifier(); err != nil {
			log.Warnf("notifier close error: %v", err)
		}
	}()

	db := dbManager.DB()
	categoryService := services.NewCategoryService(db)
	reportService := services.NewReportService(
		services.NewUserService(db, categoryService),
		services.NewAnalyticsService(db),
		notifier,
		appConfig.ReportConcurrency,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	job := func() {
		started := time.Now()
		result, err := reportService.SendMonthlyReports(ctx, started)
		if err != nil {
			log.Errorw("monthly report run failed", "error", err)
			return
		}
		log.Infow("monthly report run complete",
			"year", result.Year,
			"month", result.Month,
			"sent", result.Sent,
			"failed", result.Failed,
			"duration", time.Since(started).String(),
		)
	}

	// "once" runs a single pass and exits, for manual backfills.
	if len(os.Args) > 1 && os.Args[1] == "once" {
		job()
		return nil
	}

	scheduler := cron.New(cron.WithLocation(time.UTC))
	if _, err := scheduler.AddFunc(appConfig.ReportSchedule, job); err != nil {
		return fmt.Errorf("invalid REPORT_SCHEDULE %q: %w", appConfig.ReportSchedule, err)
	}
	scheduler.Start()
	log.Infow("report worker started", "schedule", appConfig.ReportSchedule, "sink", appConfig.ReportSink)

	<-ctx.Done()
	log.Info("shutdown signal received, waiting for running jobs")
	<-scheduler.Stop().Done()
	return nil
}
