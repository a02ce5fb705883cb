package kafka

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/wx-radar-etl/internal/config"
	"github.com/couchcryptid/wx-radar-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("ZDFW"),
		Value:     []byte(`{"levels":[0,1]}`),
		Topic:     "raw-radar-payloads",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "lat", Value: []byte("32.9")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("ZDFW"), raw.Key)
	assert.JSONEq(t, `{"levels":[0,1]}`, string(raw.Value))
	assert.Equal(t, "raw-radar-payloads", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "32.9", raw.Headers["lat"])
	assert.Nil(t, raw.Commit)
}

func TestToMessage(t *testing.T) {
	g := domain.Grid{
		Width: 1, Height: 1, Levels: []int{3},
		RadiusNm: 80, CellSizeNm: 0.5,
		Region:      domain.RegionCONUS,
		UpdatedAtMs: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).UnixMilli(),
		Variant:     domain.VariantLegacy,
	}
	event, err := domain.SerializeGrid(g, []byte("ZDFW"))
	require.NoError(t, err)

	msg := toMessage(event)

	assert.Equal(t, []byte("ZDFW"), msg.Key)
	assert.Contains(t, string(msg.Value), `"variant":"legacy"`)
	require.Len(t, msg.Headers, 4)
	keys := make([]string, len(msg.Headers))
	for i, h := range msg.Headers {
		keys[i] = h.Key
	}
	assert.Equal(t, []string{"filled_cells", "region", "updated_at", "variant"}, keys)
	assert.Equal(t, []byte("2024-06-01T12:00:00Z"), msg.Headers[2].Value)
}

func TestNewWriterTopics(t *testing.T) {
	cfg := &config.Config{
		KafkaBrokers:     []string{"localhost:9092"},
		KafkaSourceTopic: "raw-radar-payloads",
		KafkaSinkTopic:   "canonical-radar-grids",
		PostMaxBytes:     40_000_000,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sink := NewWriter(cfg, logger)
	source := NewSourceWriter(cfg, logger)
	t.Cleanup(func() {
		_ = sink.Close()
		_ = source.Close()
	})

	assert.Equal(t, "canonical-radar-grids", sink.writer.Topic)
	assert.Equal(t, "raw-radar-payloads", source.writer.Topic)
	assert.Greater(t, source.writer.BatchBytes, int64(40_000_000))
}
