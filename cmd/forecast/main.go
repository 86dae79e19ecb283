package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/marweda/water-level-forecast/internal/adapter/archive"
	"github.com/marweda/water-level-forecast/internal/adapter/fetch"
	"github.com/marweda/water-level-forecast/internal/adapter/geostore"
	"github.com/marweda/water-level-forecast/internal/adapter/httpadapter"
	kafkaadapter "github.com/marweda/water-level-forecast/internal/adapter/kafka"
	"github.com/marweda/water-level-forecast/internal/adapter/postgres"
	redisadapter "github.com/marweda/water-level-forecast/internal/adapter/redis"
	"github.com/marweda/water-level-forecast/internal/config"
	"github.com/marweda/water-level-forecast/internal/domain"
	"github.com/marweda/water-level-forecast/internal/observability"
	"github.com/marweda/water-level-forecast/internal/parser"
	"github.com/marweda/water-level-forecast/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	cat, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Error("failed to load catalog", "error", err)
		return 1
	}
	logger.Info("catalog loaded", "sources", len(cat.Sources), "gauges", len(cat.Gauges))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher := fetch.NewClient(cfg.FetchTimeout, logger)
	registry := parser.NewRegistry()

	// Station metadata: PostGIS when configured, else the catalog's stations
	// merged with any station listings it names.
	var lookup domain.StationLookup
	switch {
	case cfg.GeoDatabaseURL != "":
		geo, err := geostore.NewPostgres(ctx, cfg.GeoDatabaseURL)
		if err != nil {
			logger.Error("failed to connect geospatial store", "error", err)
			return 1
		}
		defer geo.Close()
		lookup = geostore.NewCached(geo, cfg.GeoCacheSize, metrics)
		logger.Info("station lookup enabled", "store", "postgres", "cache_size", cfg.GeoCacheSize)
	case len(cat.Stations) > 0 || len(cat.StationSources) > 0:
		stations, err := pipeline.LoadStations(ctx, cat, fetcher, registry, cfg.FetchTimeout, logger)
		if err != nil {
			logger.Error("failed to load station listings", "error", err)
			return 1
		}
		lookup = geostore.NewStatic(stations)
		logger.Info("station lookup enabled", "store", "catalog", "stations", len(stations))
	default:
		logger.Info("station lookup disabled, using all configured regressors")
	}

	store, err := archive.Open(cfg.ArchivePath, cfg.ArchiveCompressionLevel, logger)
	if err != nil {
		logger.Error("failed to open forecast archive", "error", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("archive close error", "error", err)
		}
	}()

	sinks := []pipeline.Sink{store}

	if cfg.DatabaseURL != "" {
		pg, err := postgres.NewWriter(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("failed to connect time-series store", "error", err)
			return 1
		}
		defer pg.Close()
		sinks = append(sinks, pg)
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sinks = append(sinks, writer)
	}

	if cfg.RedisURL != "" {
		pub, err := redisadapter.NewPublisher(ctx, cfg.RedisURL, cfg.RedisChannel, logger)
		if err != nil {
			logger.Error("failed to connect redis", "error", err)
			return 1
		}
		defer func() {
			if err := pub.Close(); err != nil {
				logger.Error("redis close error", "error", err)
			}
		}()
		sinks = append(sinks, pub)
	}

	names := make([]string, len(sinks))
	for i, s := range sinks {
		names[i] = s.Name()
	}
	logger.Info("sinks configured", "sinks", names)

	p := pipeline.New(cat, fetcher, registry, lookup, sinks,
		pipeline.Options{
			WorkerCount:  cfg.WorkerCount,
			FetchTimeout: cfg.FetchTimeout,
			FitTimeout:   cfg.FitTimeout,
		}, logger, metrics)

	// One-shot mode: a single run, exit status reflects gauge failures.
	if cfg.RunInterval == 0 {
		report, err := p.RunOnce(ctx)
		if err != nil {
			logger.Error("run aborted", "error", err)
			return 1
		}
		if report.GaugeFailures() > 0 {
			return 2
		}
		return 0
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, store, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start scheduled runs.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx, cfg.RunInterval); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}

	logger.Info("shutdown complete")
	return 0
}
