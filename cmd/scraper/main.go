package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/vmgd-scraper-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/vmgd-scraper-service/internal/adapter/kafka"
	"github.com/couchcryptid/vmgd-scraper-service/internal/adapter/sqlite"
	"github.com/couchcryptid/vmgd-scraper-service/internal/adapter/vmgd"
	"github.com/couchcryptid/vmgd-scraper-service/internal/config"
	"github.com/couchcryptid/vmgd-scraper-service/internal/domain"
	"github.com/couchcryptid/vmgd-scraper-service/internal/observability"
	"github.com/couchcryptid/vmgd-scraper-service/internal/pipeline"
	"github.com/couchcryptid/vmgd-scraper-service/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	db, err := sqlite.Open(cfg.DatabaseDSN, cfg.SQLDebug)
	if err != nil {
		logger.Error("failed to open database", "dsn", cfg.DatabaseDSN, "error", err)
		os.Exit(1)
	}
	store := sqlite.NewStore(db, logger)
	if err := store.Init(context.Background()); err != nil {
		logger.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	fetcher := vmgd.NewFetcher(cfg, logger, metrics)
	extractor := vmgd.NewExtractor(logger)
	validator := domain.NewValidator(cfg.KnownLocations)

	// Record feed is feature-flagged via KAFKA_ENABLED.
	var feed pipeline.Feed
	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg, logger)
		feed = publisher
		logger.Info("kafka record feed enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka record feed disabled")
	}

	p := pipeline.New(fetcher, extractor, validator, store, feed, cfg, logger, metrics)
	sched := scheduler.New(p, cfg, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, store, sched, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the scrape cadence; Run returns after any in-flight run finishes.
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(ctx)
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout before in-flight run finished")
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
