package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"moneyviz/internal/amqp"
	"moneyviz/internal/cache"
	"moneyviz/internal/cli"
	"moneyviz/internal/httpapi"
	applog "moneyviz/internal/log"
	"moneyviz/internal/metrics"
	"moneyviz/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	m := metrics.New()
	series := services.NewSeriesService(repo, cfg.SeriesCacheSize, cfg.SeriesCacheTTL,
		services.WithCacheRecorder(m),
		services.WithLogger(logger))

	api, err := httpapi.New(series, repo, httpapi.Options{
		Logger:             logger,
		Metrics:            m,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RequestTimeout:     cfg.RequestTimeout,
	})
	if err != nil {
		logger.Error("Failed to create API server", applog.FieldError, err)
		os.Exit(1)
	}

	caches := cache.NewManager(logger)
	caches.OnSweep(m.RecordCacheSweep)
	caches.Register("series", series.Cleaner())
	caches.Register("rate_limit", api.Limiter().Cleaner())
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting moneyviz API", "port", cfg.APIPort, "db", cfg.SQLiteDBPath)
		return cli.Serve(gctx, logger, srv, 30*time.Second)
	})

	// Import notifications drop cached series; without a broker the cache
	// only ages out through its TTL.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			err := amqpClient.ConsumeImportCompleted(gctx, series.HandleImportCompleted)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled - series cache relies on TTL expiry")
	}

	if err := g.Wait(); err != nil {
		logger.Error("API stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
}
