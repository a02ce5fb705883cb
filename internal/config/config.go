package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Defaults applied when a payload carries no usable position.
	DefaultLat      float64
	DefaultLon      float64
	DefaultRadiusNm float64

	// Radar ingest endpoint.
	IngestToken   string
	PostMaxBytes  int64
	GridCacheSize int
	IngestToKafka bool
}

const (
	defaultPostMaxBytes  = 40_000_000
	defaultGridCacheSize = 128
)

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	lat, err := parseFloatEnv("WX_DEFAULT_LAT", 0)
	if err != nil {
		return nil, err
	}
	lon, err := parseFloatEnv("WX_DEFAULT_LON", 0)
	if err != nil {
		return nil, err
	}
	radius, err := parseFloatEnv("WX_DEFAULT_RADIUS_NM", 80)
	if err != nil {
		return nil, err
	}

	postMax, err := parsePositiveIntEnv("WX_POST_MAX_BYTES", defaultPostMaxBytes)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveIntEnv("WX_CACHE_SIZE", defaultGridCacheSize)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-radar-payloads"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "canonical-radar-grids"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "wx-radar-etl"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		DefaultLat:      lat,
		DefaultLon:      lon,
		DefaultRadiusNm: radius,

		IngestToken:   os.Getenv("WX_INGEST_TOKEN"),
		PostMaxBytes:  int64(postMax),
		GridCacheSize: cacheSize,
		IngestToKafka: sharedcfg.EnvOrDefault("WX_INGEST_TO_KAFKA", "true") == "true",
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.DefaultLat < -90 || cfg.DefaultLat > 90 {
		return nil, errors.New("WX_DEFAULT_LAT must be within [-90, 90]")
	}
	if cfg.DefaultLon < -180 || cfg.DefaultLon > 180 {
		return nil, errors.New("WX_DEFAULT_LON must be within [-180, 180]")
	}
	if cfg.DefaultRadiusNm <= 0 {
		return nil, errors.New("WX_DEFAULT_RADIUS_NM must be positive")
	}

	return cfg, nil
}

func parseFloatEnv(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parsePositiveIntEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}
