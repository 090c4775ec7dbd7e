package producers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cashflow-consolidation/internal/config"
	"github.com/cashflow-consolidation/internal/platform/messaging"
	"github.com/segmentio/kafka-go"
)

// EventProducer writes events synchronously and waits for every in-sync
// replica, so a nil error means the event is durably stored by the broker.
type EventProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewEventProducer ensures the topic exists and builds a producer for it
func NewEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig, topic string) (*EventProducer, error) {
	if topic == "" {
		return nil, fmt.Errorf("kafka event topic is not configured")
	}

	err := messaging.EnsureTopic(ctx, logger, cfg.Brokers, messaging.TopicSpec{
		Name:              topic,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure topic %s exists for event producer: %w", topic, err)
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		WriteTimeout:           cfg.MaxWait,
		AllowAutoTopicCreation: false,
	}

	return newEventProducer(logger, writer, topic), nil
}

func newEventProducer(logger *slog.Logger, writer KafkaWriter, topic string) *EventProducer {
	return &EventProducer{
		logger: logger,
		writer: writer,
		topic:  topic,
	}
}

// Publish writes value under key. Keys hash to partitions, so every delivery
// of the same event lands on the same partition.
func (p *EventProducer) Publish(ctx context.Context, key string, value []byte, headers map[string]string) error {
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: messaging.ToKafkaHeaders(headers),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published event",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *EventProducer) Close() error {
	p.logger.Info("Closing Kafka event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
