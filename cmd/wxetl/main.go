package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/wx-radar-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/wx-radar-etl/internal/adapter/kafka"
	"github.com/couchcryptid/wx-radar-etl/internal/config"
	"github.com/couchcryptid/wx-radar-etl/internal/domain"
	"github.com/couchcryptid/wx-radar-etl/internal/gridcache"
	"github.com/couchcryptid/wx-radar-etl/internal/observability"
	"github.com/couchcryptid/wx-radar-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Both the ingest endpoint and the pipeline normalize through one cache,
	// so a payload forwarded to Kafka is decoded only once.
	normalizer, err := gridcache.New(domain.NewNormalizer(logger), cfg.GridCacheSize, metrics)
	if err != nil {
		logger.Error("failed to create grid cache", "error", err)
		os.Exit(1)
	}
	latest := &gridcache.Latest{}
	center := domain.LatLon{Lat: cfg.DefaultLat, Lon: cfg.DefaultLon}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(normalizer, latest,
		pipeline.Defaults{Center: center, RadiusNm: cfg.DefaultRadiusNm}, metrics, logger)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	var publisher httpadapter.Publisher
	var source *kafkaadapter.Writer
	if cfg.IngestToKafka {
		source = kafkaadapter.NewSourceWriter(cfg, logger)
		publisher = source
		logger.Info("forwarding ingested payloads", "topic", cfg.KafkaSourceTopic)
	}

	radar := httpadapter.NewRadarHandler(httpadapter.RadarConfig{
		Token:           cfg.IngestToken,
		MaxBytes:        cfg.PostMaxBytes,
		DefaultCenter:   center,
		DefaultRadiusNm: cfg.DefaultRadiusNm,
	}, normalizer, latest, publisher, metrics, logger)
	if cfg.IngestToken == "" {
		logger.Warn("WX_INGEST_TOKEN not set, radar ingest is unauthenticated")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, radar, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
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
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if source != nil {
		if err := source.Close(); err != nil {
			logger.Error("kafka source writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
