package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/couchcryptid/wx-radar-etl/internal/config"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Level(t *testing.T) {
	ctx := context.Background()

	debug := NewLogger(&config.Config{LogLevel: "debug", LogFormat: "text"})
	require.NotNil(t, debug)
	assert.True(t, debug.Enabled(ctx, slog.LevelDebug))

	info := NewLogger(&config.Config{LogLevel: "info", LogFormat: "json"})
	assert.False(t, info.Enabled(ctx, slog.LevelDebug))
	assert.True(t, info.Enabled(ctx, slog.LevelInfo))

	errOnly := NewLogger(&config.Config{LogLevel: "error", LogFormat: "json"})
	assert.False(t, errOnly.Enabled(ctx, slog.LevelWarn))
}

func TestMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()
	m.GridsNormalized.WithLabelValues("legacy").Inc()
	m.GridCache.WithLabelValues("hit").Add(2)

	assert.InDelta(t, 1, testutil.ToFloat64(m.GridsNormalized.WithLabelValues("legacy")), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(m.GridCache.WithLabelValues("hit")), 1e-9)
}
