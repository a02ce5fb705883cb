//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/wx-radar-etl/internal/adapter/kafka"
	"github.com/couchcryptid/wx-radar-etl/internal/config"
	"github.com/couchcryptid/wx-radar-etl/internal/domain"
	"github.com/couchcryptid/wx-radar-etl/internal/gridcache"
	"github.com/couchcryptid/wx-radar-etl/internal/observability"
	"github.com/couchcryptid/wx-radar-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSourceTopic = "test-source"
	testSinkTopic   = "test-sink"
)

var baseTime = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

// normalizedMessage holds a grid read back from the sink topic.
type normalizedMessage struct {
	Grid    domain.Grid
	Key     string
	Headers map[string]string
}

func readNormalized(ctx context.Context, t *testing.T, consumer *kafkago.Reader) normalizedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var g domain.Grid
	require.NoError(t, json.Unmarshal(msg.Value, &g), "unmarshal sink message")

	return normalizedMessage{Grid: g, Key: string(msg.Key), Headers: headers}
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
		DefaultRadiusNm:    80,
	}
}

// radarPayloads returns one payload per upstream schema.
func radarPayloads(t *testing.T) map[string][]byte {
	t.Helper()
	levels := []int{0, 0, 2, 2, 0, 5}

	data, err := domain.EncodeCompressedFrame(levels)
	require.NoError(t, err)

	multi := map[string]any{
		"site":   "DFW",
		"region": "CONUS",
		"levels": []int{2, 5},
		"frames": []any{map[string]any{
			"receiverMs": baseTime.UnixMilli(),
			"grid": map[string]any{
				"rows":     2,
				"cols":     3,
				"cellsRle": domain.EncodeRLE(levels),
				"trp":      map[string]any{"latDeg": 32.9, "lonDeg": -97.04},
				"geom":     map[string]any{"xOffsetM": 0, "yOffsetM": 0, "dxM": 926, "dyM": 926, "rotationDeg": 0},
			},
		}},
	}
	single := map[string]any{
		"site":        "ORD",
		"updatedAtMs": baseTime.UnixMilli(),
		"grid":        map[string]any{"rows": 2, "cols": 3},
		"frames":      []any{map[string]any{"tEpochMs": baseTime.UnixMilli(), "data": data}},
	}
	legacy := map[string]any{
		"site":        "MIA",
		"center":      map[string]any{"lat": 25.8, "lon": -80.3},
		"width":       3,
		"height":      2,
		"levels":      levels,
		"updatedAtMs": baseTime.UnixMilli(),
	}

	out := map[string][]byte{}
	for name, v := range map[string]any{"multi-frame": multi, "single-grid": single, "legacy": legacy} {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		out[name] = b
	}
	return out
}

// TestKafkaReaderWriter verifies that kafka.Reader and kafka.Writer round-trip
// a radar payload through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-reader")

	payload := radarPayloads(t)["legacy"]
	source := kafka.NewSourceWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = source.Close() })
	require.NoError(t, source.Publish(ctx, []byte("MIA"), payload, map[string]string{pipeline.HeaderRadiusNm: "40"}))

	// The consumer group may need time to rebalance before partitions are assigned.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawEvent
	for {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("MIA"), raw.Key)
	assert.Equal(t, payload, raw.Value)
	assert.Equal(t, "40", raw.Headers[pipeline.HeaderRadiusNm])
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	metrics := observability.NewMetricsForTesting()
	transformer := pipeline.NewTransformer(domain.NewNormalizer(discardLogger()), nil,
		pipeline.Defaults{RadiusNm: cfg.DefaultRadiusNm}, metrics, discardLogger())
	event, err := transformer.Transform(ctx, raw)
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []domain.OutputEvent{event}))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	nm := readNormalized(ctx, t, consumer)
	assert.Equal(t, "MIA", nm.Key)
	assert.Equal(t, "legacy", nm.Headers[domain.HeaderVariant])
	assert.Equal(t, "3", nm.Headers[domain.HeaderFilled])
	_, err = time.Parse(time.RFC3339Nano, nm.Headers[domain.HeaderUpdatedAt])
	assert.NoError(t, err, "updated_at should be valid RFC3339")

	assert.Equal(t, []int{0, 0, 2, 2, 0, 5}, nm.Grid.Levels)
	assert.InDelta(t, 40, nm.Grid.RadiusNm, 1e-9)
	assert.InDelta(t, 25.8, nm.Grid.Center.Lat, 1e-9)
}

// TestPipelineEndToEnd runs Reader, RadarTransformer, and Writer against a
// real broker with one payload of each schema.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	payloads := radarPayloads(t)
	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	msgs := make([]kafkago.Message, 0, len(payloads))
	for name, p := range payloads {
		msgs = append(msgs, kafkago.Message{Key: []byte(name), Value: p, Time: baseTime})
	}
	require.NoError(t, producer.WriteMessages(ctx, msgs...))

	metrics := observability.NewMetricsForTesting()
	cache, err := gridcache.New(domain.NewNormalizer(discardLogger()), 16, metrics)
	require.NoError(t, err)
	latest := &gridcache.Latest{}

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	transformer := pipeline.NewTransformer(cache, latest, pipeline.Defaults{RadiusNm: cfg.DefaultRadiusNm}, metrics, discardLogger())

	p := pipeline.New(reader, transformer, writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := map[string]normalizedMessage{}
	for len(received) < len(payloads) {
		nm := readNormalized(ctx, t, consumer)
		received[nm.Key] = nm
	}

	pipelineCancel()
	require.NoError(t, <-errCh)

	for name, nm := range received {
		assert.Equal(t, name, nm.Headers[domain.HeaderVariant], "variant header for %s", name)
		assert.Equal(t, domain.Variant(name), nm.Grid.Variant)
		require.NoError(t, nm.Grid.Validate(), name)
		assert.Equal(t, 6, nm.Grid.Width*nm.Grid.Height, name)
		assert.Equal(t, 3, nm.Grid.FilledCount(), name)
		assert.Equal(t, baseTime.UnixMilli(), nm.Grid.UpdatedAtMs, name)
	}
	assert.Equal(t, []int{2, 5}, received["multi-frame"].Grid.ObservedLevels)

	snap, ok := latest.Get()
	require.True(t, ok, "pipeline should store the latest grid")
	assert.Equal(t, baseTime.UnixMilli(), snap.Grid.UpdatedAtMs)
}

// TestPipelineTransformError verifies that an unrecognized payload is skipped
// and the pipeline keeps processing valid ones.
func TestPipelineTransformError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-poison")

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{"), Time: baseTime},
		kafkago.Message{Key: []byte("good"), Value: radarPayloads(t)["legacy"], Time: baseTime},
	))

	metrics := observability.NewMetricsForTesting()
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	transformer := pipeline.NewTransformer(domain.NewNormalizer(discardLogger()), nil,
		pipeline.Defaults{RadiusNm: cfg.DefaultRadiusNm}, metrics, discardLogger())

	p := pipeline.New(reader, transformer, writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	nm := readNormalized(ctx, t, consumer)
	assert.Equal(t, "good", nm.Key)
	assert.Equal(t, domain.VariantLegacy, nm.Grid.Variant)

	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
}
