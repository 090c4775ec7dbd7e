package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	partitionReadAttempts = 5
	partitionReadBackoff  = 2 * time.Second
)

// TopicSpec describes a topic that must exist before producing or consuming
type TopicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
}

// EnsureTopic dials the broker and creates the topic on the controller when it
// is missing. A broker that cannot be dialled is reported as an error.
func EnsureTopic(ctx context.Context, logger *slog.Logger, brokers string, spec TopicSpec) error {
	dialer := &kafka.Dialer{Timeout: 10 * time.Second}

	conn, err := dialer.DialContext(ctx, "tcp", brokers)
	if err != nil {
		return fmt.Errorf("failed to dial kafka at %s: %w", brokers, err)
	}
	defer conn.Close()

	exists, err := topicExists(ctx, logger, conn, spec.Name)
	if err != nil {
		return err
	}
	if exists {
		logger.Info("Kafka topic already exists", "topic", spec.Name)
		return nil
	}

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to find kafka controller: %w", err)
	}
	controllerConn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	topicConfig := kafka.TopicConfig{
		Topic:             spec.Name,
		NumPartitions:     spec.NumPartitions,
		ReplicationFactor: spec.ReplicationFactor,
	}
	if topicConfig.NumPartitions <= 0 {
		topicConfig.NumPartitions = 1
	}
	if topicConfig.ReplicationFactor <= 0 {
		topicConfig.ReplicationFactor = 1
	}

	if err := controllerConn.CreateTopics(topicConfig); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", spec.Name, err)
	}

	logger.Info("Created Kafka topic",
		"topic", spec.Name,
		"partitions", topicConfig.NumPartitions,
		"replication_factor", topicConfig.ReplicationFactor,
	)
	return nil
}

// topicExists retries partition reads since metadata can lag right after broker start
func topicExists(ctx context.Context, logger *slog.Logger, conn *kafka.Conn, topic string) (bool, error) {
	var lastErr error
	for attempt := 1; attempt <= partitionReadAttempts; attempt++ {
		partitions, err := conn.ReadPartitions(topic)
		if err == nil {
			return len(partitions) > 0, nil
		}
		lastErr = err
		logger.Warn("Failed to read topic partitions, retrying",
			"topic", topic,
			"attempt", attempt,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(partitionReadBackoff):
		}
	}

	logger.Info("Treating topic as missing after failed partition reads", "topic", topic, "last_error", lastErr)
	return false, nil
}
