package audithook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaRecorder.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaRecorder publishes audit events as JSON, keyed by run ID so all
// events of one run land on the same partition.
type KafkaRecorder struct {
	writer MessageWriter
}

// NewKafkaRecorder creates a recorder writing synchronously to topic.
func NewKafkaRecorder(brokers []string, topic string) *KafkaRecorder {
	return NewKafkaRecorderWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	})
}

// NewKafkaRecorderWithWriter creates a recorder over an existing writer.
func NewKafkaRecorderWithWriter(w MessageWriter) *KafkaRecorder {
	return &KafkaRecorder{writer: w}
}

// Record implements Recorder.
func (k *KafkaRecorder) Record(ctx context.Context, event *AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit_hook: marshal event: %w", err)
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ResourceID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "severity", Value: []byte(event.Severity)},
		},
		Time: event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("audit_hook: publish %s: %w", event.Action, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaRecorder) Close() error { return k.writer.Close() }

// LogRecorder writes audit events to a structured logger.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder creates a LogRecorder.
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

// Record implements Recorder.
func (l *LogRecorder) Record(ctx context.Context, event *AuditEvent) error {
	level := slog.LevelInfo
	switch event.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityCritical:
		level = slog.LevelError
	}
	l.logger.Log(ctx, level, "audit",
		slog.String("action", event.Action),
		slog.String("resource_id", event.ResourceID),
		slog.String("outcome", event.Outcome),
		slog.Any("metadata", event.Metadata),
	)
	return nil
}
