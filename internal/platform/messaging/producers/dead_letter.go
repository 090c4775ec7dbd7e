package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cashflow-consolidation/internal/config"
	"github.com/cashflow-consolidation/internal/platform/messaging"
	"github.com/segmentio/kafka-go"
)

// DeadLetterMessage describes a delivery that is being given up on
type DeadLetterMessage struct {
	Key         string
	Value       []byte
	Reason      string
	Attempts    int
	SourceTopic string
	Partition   int
	Offset      int64
	Headers     map[string]string
}

type dlqPayload struct {
	OriginalKey     string            `json:"original_key"`
	OriginalValue   string            `json:"original_value"`
	OriginalHeaders map[string]string `json:"original_headers,omitempty"`
	SourceTopic     string            `json:"source_topic"`
	Partition       int               `json:"partition"`
	Offset          int64             `json:"offset"`
	Attempts        int               `json:"attempts"`
	DLQReason       string            `json:"dlq_reason"`
	Timestamp       string            `json:"timestamp"`
}

type DLQProducer struct {
	logger   *slog.Logger
	writer   KafkaWriter
	dlqTopic string
}

func NewDLQProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*DLQProducer, error) {
	if cfg.DLQTopic == "" {
		return nil, fmt.Errorf("kafka DLQ topic is not configured")
	}

	err := messaging.EnsureTopic(ctx, logger, cfg.Brokers, messaging.TopicSpec{
		Name:              cfg.DLQTopic,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure DLQ topic %s exists: %w", cfg.DLQTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.DLQTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return newDLQProducer(logger, writer, cfg.DLQTopic), nil
}

func newDLQProducer(logger *slog.Logger, writer KafkaWriter, topic string) *DLQProducer {
	return &DLQProducer{
		logger:   logger,
		writer:   writer,
		dlqTopic: topic,
	}
}

// PublishToDLQ wraps the original body with its provenance and writes it to the DLQ topic
func (p *DLQProducer) PublishToDLQ(ctx context.Context, m DeadLetterMessage) error {
	if p.writer == nil {
		return fmt.Errorf("DLQ producer not initialized")
	}

	value, err := json.Marshal(dlqPayload{
		OriginalKey:     m.Key,
		OriginalValue:   string(m.Value),
		OriginalHeaders: m.Headers,
		SourceTopic:     m.SourceTopic,
		Partition:       m.Partition,
		Offset:          m.Offset,
		Attempts:        m.Attempts,
		DLQReason:       m.Reason,
		Timestamp:       time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(m.Key),
		Value: value,
		Headers: messaging.ToKafkaHeaders(map[string]string{
			messaging.HeaderDLQReason:       m.Reason,
			messaging.HeaderDeliveryAttempt: strconv.Itoa(m.Attempts),
		}),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message to DLQ",
			"topic", p.dlqTopic,
			"key", m.Key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to DLQ %s: %w", p.dlqTopic, err)
	}

	p.logger.Info("Published message to DLQ",
		"topic", p.dlqTopic,
		"key", m.Key,
		"reason", m.Reason,
		"attempts", m.Attempts,
	)
	return nil
}

func (p *DLQProducer) Close() error {
	if p.writer == nil {
		return nil
	}
	p.logger.Info("Closing DLQ Kafka message producer", "topic", p.dlqTopic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close dlq kafka writer for topic %s: %w", p.dlqTopic, err)
	}
	return nil
}
