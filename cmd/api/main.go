package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/docverify/internal/adapters/http"
	"github.com/kirillkom/docverify/internal/bootstrap"
	"github.com/kirillkom/docverify/internal/config"
	"github.com/kirillkom/docverify/internal/observability/logging"
	"github.com/kirillkom/docverify/internal/observability/metrics"
)

const service = "api"

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

	if _, err := httpadapter.LoadOpenAPI(ctx); err != nil {
		logger.Error("openapi_invalid", "error", err)
		os.Exit(1)
	}

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(httpadapter.Dependencies{
		Submitter:  app.IngestUC,
		Stager:     app.IngestUC,
		Processor:  app.ProcessUC,
		Reader:     app.Records,
		Downloader: app.DownloadUC,
		Metrics:    metrics.NewHTTPServerMetrics(service),
		Logger:     logger,
	}, httpadapter.Options{
		Service:            service,
		RateLimitRPS:       cfg.APIRateLimitRPS,
		RateLimitBurst:     cfg.APIRateLimitBurst,
		MaxInFlight:        cfg.APIMaxInFlight,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MaxUploadBytes:     cfg.MaxUploadBytes,
	})

	server := &http.Server{
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout(cfg.ProcessTimeout),
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		logger.Error("listen_failed", "port", cfg.APIPort, "error", err)
		os.Exit(1)
	}
	if cfg.APIMaxConns > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConns)
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "max_conns", cfg.APIMaxConns)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}

// writeTimeout leaves room past the processing bound for writing the response.
// An unbounded processing timeout disables the write deadline.
func writeTimeout(processTimeout time.Duration) time.Duration {
	if processTimeout <= 0 {
		return 0
	}
	return processTimeout + 30*time.Second
}
