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

	"github.com/robfig/cron/v3"

	"github.com/kirillkom/docverify/internal/bootstrap"
	"github.com/kirillkom/docverify/internal/config"
	"github.com/kirillkom/docverify/internal/core/domain"
	"github.com/kirillkom/docverify/internal/observability/logging"
	"github.com/kirillkom/docverify/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewJSONLogger(service, "info").Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.New(service, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(service)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	scheduler, err := startRetention(ctx, app, workerMetrics)
	if err != nil {
		logger.Error("retention_schedule_invalid", "schedule", cfg.RetentionSchedule, "error", err)
		os.Exit(1)
	}
	if scheduler != nil {
		defer func() { <-scheduler.Stop().Done() }()
	}

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeAnalysisRequested(ctx, func(handlerCtx context.Context, req domain.AnalysisRequest) error {
		if !req.RequestedAt.IsZero() {
			workerMetrics.ObserveQueueLag(service, time.Since(req.RequestedAt))
		}
		processCtx, cancel := withProcessTimeout(handlerCtx, cfg.ProcessTimeout)
		defer cancel()

		workerMetrics.StartAnalysis()
		start := time.Now()
		rec, err := app.ProcessUC.Process(processCtx, req)
		outcome := domain.KindOf(err)
		if err == nil {
			outcome = string(rec.Status)
		}
		workerMetrics.FinishAnalysis(service, outcome, time.Since(start), err)
		if err != nil {
			return err
		}
		logger.Info("analysis_completed",
			"document_id", rec.DocumentID,
			"user_id", rec.UserID,
			"record_id", rec.ID,
			"status", rec.Status,
		)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

// startRetention schedules periodic cleanup. An empty schedule disables it.
// withProcessTimeout bounds one message's processing. A non-positive timeout
// leaves it unbounded.
func withProcessTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func startRetention(ctx context.Context, app *bootstrap.App, workerMetrics *metrics.WorkerMetrics) (*cron.Cron, error) {
	if app.Config.RetentionSchedule == "" {
		app.Logger.Info("retention_disabled")
		return nil, nil
	}

	scheduler := cron.New()
	_, err := scheduler.AddFunc(app.Config.RetentionSchedule, func() {
		report, err := app.RetentionUC.RunOnce(ctx)
		workerMetrics.RecordRetention(service, report.ScratchRemoved, report.RecordsRemoved)
		if err != nil {
			app.Logger.Warn("retention_failed",
				"scratch_removed", report.ScratchRemoved,
				"records_removed", report.RecordsRemoved,
				"error_kind", domain.KindOf(err),
				"error", err,
			)
			return
		}
		app.Logger.Info("retention_completed",
			"scratch_removed", report.ScratchRemoved,
			"records_removed", report.RecordsRemoved,
		)
	})
	if err != nil {
		return nil, err
	}
	scheduler.Start()
	return scheduler, nil
}
