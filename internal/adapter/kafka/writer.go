package kafka

import (
	"context"
	"log/slog"
	"sort"

	"github.com/couchcryptid/wx-radar-etl/internal/config"
	"github.com/couchcryptid/wx-radar-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces messages to a Kafka topic.
// It implements pipeline.BatchLoader when pointed at the sink topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	return newWriter(cfg, cfg.KafkaSinkTopic, logger)
}

// NewSourceWriter creates a producer for the source topic, used to forward
// payloads received over HTTP into the pipeline.
func NewSourceWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	return newWriter(cfg, cfg.KafkaSourceTopic, logger)
}

func newWriter(cfg *config.Config, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchBytes:   max(cfg.PostMaxBytes, 1<<20) + 1<<16,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch publishes serialized grids in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, events []domain.OutputEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msgs[i] = toMessage(events[i])
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	w.logger.Debug("published radar batch", "topic", w.writer.Topic, "size", len(msgs))
	return nil
}

// Publish writes a single raw payload.
func (w *Writer) Publish(ctx context.Context, key, value []byte, headers map[string]string) error {
	return w.LoadBatch(ctx, []domain.OutputEvent{{Key: key, Value: value, Headers: headers}})
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// toMessage converts an OutputEvent into a Kafka message. Headers are sorted
// by key so message bytes are deterministic.
func toMessage(event domain.OutputEvent) kafkago.Message {
	keys := make([]string, 0, len(event.Headers))
	for k := range event.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]kafkago.Header, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(event.Headers[k])})
	}
	return kafkago.Message{
		Key:     event.Key,
		Value:   event.Value,
		Headers: headers,
	}
}
