package main

import (
	"os"
	"time"

	"moneyviz/internal/apiclient"
	"moneyviz/internal/cli"
	apphttp "moneyviz/internal/http"
	applog "moneyviz/internal/log"
	"moneyviz/internal/metrics"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	backend, err := apiclient.New(cfg.BackendURL, cfg.RequestTimeout)
	if err != nil {
		logger.Error("Failed to create backend client", applog.FieldError, err, "backend_url", cfg.BackendURL)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, backend, apphttp.Options{
		Logger:             logger,
		Metrics:            metrics.New(),
		SessionTTL:         cfg.SessionTTL,
		MaxSessions:        cfg.MaxSessions,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RequestTimeout:     cfg.RequestTimeout,
	})
	if err != nil {
		logger.Error("Failed to create view server", applog.FieldError, err)
		os.Exit(1)
	}

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.RequestTimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	logger.Info("Starting moneyviz view server", "port", cfg.Port, "backend_url", cfg.BackendURL)
	if err := cli.Serve(ctx, logger, srv, 30*time.Second); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
}
