package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "raw-radar-payloads", cfg.KafkaSourceTopic)
	assert.Equal(t, "canonical-radar-grids", cfg.KafkaSinkTopic)
	assert.Equal(t, "wx-radar-etl", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
	assert.Zero(t, cfg.DefaultLat)
	assert.Zero(t, cfg.DefaultLon)
	assert.Equal(t, 80.0, cfg.DefaultRadiusNm)
	assert.Empty(t, cfg.IngestToken)
	assert.Equal(t, int64(40_000_000), cfg.PostMaxBytes)
	assert.Equal(t, 128, cfg.GridCacheSize)
	assert.True(t, cfg.IngestToKafka)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("WX_DEFAULT_LAT", "40.64")
	t.Setenv("WX_DEFAULT_LON", "-73.78")
	t.Setenv("WX_DEFAULT_RADIUS_NM", "120")
	t.Setenv("WX_INGEST_TOKEN", "s3cret")
	t.Setenv("WX_POST_MAX_BYTES", "1024")
	t.Setenv("WX_CACHE_SIZE", "16")
	t.Setenv("WX_INGEST_TO_KAFKA", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, 40.64, cfg.DefaultLat)
	assert.Equal(t, -73.78, cfg.DefaultLon)
	assert.Equal(t, 120.0, cfg.DefaultRadiusNm)
	assert.Equal(t, "s3cret", cfg.IngestToken)
	assert.Equal(t, int64(1024), cfg.PostMaxBytes)
	assert.Equal(t, 16, cfg.GridCacheSize)
	assert.False(t, cfg.IngestToKafka)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidBatchFlushInterval(t *testing.T) {
	t.Setenv("BATCH_FLUSH_INTERVAL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_FLUSH_INTERVAL")
}

func TestLoad_InvalidDefaults(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"WX_DEFAULT_LAT", "north"},
		{"WX_DEFAULT_LAT", "91"},
		{"WX_DEFAULT_LON", "-181"},
		{"WX_DEFAULT_RADIUS_NM", "0"},
		{"WX_POST_MAX_BYTES", "-5"},
		{"WX_CACHE_SIZE", "many"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
