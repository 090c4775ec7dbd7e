package consumers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cashflow-consolidation/internal/config"
	"github.com/cashflow-consolidation/internal/platform/messaging"
	"github.com/panjf2000/ants/v2"
	"github.com/segmentio/kafka-go"
)

const (
	fetchRetryDelay       = time.Second
	defaultReleaseTimeout = 30 * time.Second
)

// MessageHandler processes one delivery. A nil error acknowledges it, an error
// wrapped with Permanent dead-letters it, and any other error requeues it.
type MessageHandler func(ctx context.Context, d *Delivery) error

// KafkaReader wraps the kafka.Reader methods the consumer uses
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Republisher puts a delivery back on its topic for another attempt
type Republisher interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
}

// DeadLetterSink takes ownership of deliveries the consumer gives up on
type DeadLetterSink interface {
	DeadLetter(ctx context.Context, d *Delivery, reason string) error
}

// Settings bounds the consumer's concurrency and retry behaviour
type Settings struct {
	MaxInFlight       int
	MaxDeliveries     int
	ProcessingTimeout time.Duration
	ReleaseTimeout    time.Duration
}

// KafkaConsumer fetches messages in a single loop and processes them on a
// bounded worker pool. An offset is committed only after its delivery is
// settled and every earlier offset of the partition is settled too.
type KafkaConsumer struct {
	reader      KafkaReader
	republisher Republisher
	deadLetters DeadLetterSink
	pool        *ants.Pool
	settings    Settings
	logger      *slog.Logger

	commitMu sync.Mutex
	tracker  *offsetTracker

	startOnce sync.Once
	done      chan struct{}

	errMu  sync.Mutex
	runErr error
}

// NewKafkaConsumer verifies the broker is reachable and joins the consumer
// group for the event topic. An unreachable broker is returned as an error.
func NewKafkaConsumer(
	ctx context.Context,
	logger *slog.Logger,
	kafkaCfg *config.KafkaConfig,
	consumerCfg *config.ConsumerConfig,
	republisher Republisher,
	deadLetters DeadLetterSink,
) (*KafkaConsumer, error) {
	err := messaging.EnsureTopic(ctx, logger, kafkaCfg.Brokers, messaging.TopicSpec{
		Name:              kafkaCfg.EventTopic,
		NumPartitions:     kafkaCfg.NumPartitions,
		ReplicationFactor: kafkaCfg.ReplicationFactor,
	})
	if err != nil {
		return nil, fmt.Errorf("event channel unavailable: %w", err)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{kafkaCfg.Brokers},
		Topic:          kafkaCfg.EventTopic,
		GroupID:        kafkaCfg.ConsumerGroup,
		MinBytes:       kafkaCfg.MinBytes,
		MaxBytes:       kafkaCfg.MaxBytes,
		MaxWait:        kafkaCfg.MaxWait,
		StartOffset:    kafkaCfg.StartOffset,
		CommitInterval: 0, // commits are synchronous
	})

	consumer, err := newKafkaConsumer(logger, reader, republisher, deadLetters, Settings{
		MaxInFlight:       consumerCfg.MaxInFlight,
		MaxDeliveries:     consumerCfg.MaxDeliveries,
		ProcessingTimeout: consumerCfg.ProcessingTimeout,
		ReleaseTimeout:    defaultReleaseTimeout,
	})
	if err != nil {
		_ = reader.Close()
		return nil, err
	}
	return consumer, nil
}

func newKafkaConsumer(logger *slog.Logger, reader KafkaReader, republisher Republisher, deadLetters DeadLetterSink, settings Settings) (*KafkaConsumer, error) {
	if settings.MaxInFlight <= 0 {
		return nil, errors.New("max in-flight deliveries must be greater than 0")
	}
	if settings.MaxDeliveries <= 0 {
		return nil, errors.New("max deliveries must be greater than 0")
	}
	if settings.ReleaseTimeout <= 0 {
		settings.ReleaseTimeout = defaultReleaseTimeout
	}

	// Submit blocks while all workers are busy, which stops the fetch loop
	pool, err := ants.NewPool(settings.MaxInFlight)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer worker pool: %w", err)
	}

	return &KafkaConsumer{
		reader:      reader,
		republisher: republisher,
		deadLetters: deadLetters,
		pool:        pool,
		settings:    settings,
		logger:      logger.With("component", "KafkaConsumer"),
		tracker:     newOffsetTracker(),
		done:        make(chan struct{}),
	}, nil
}

// Subscribe starts the fetch loop. It returns immediately; cancel ctx to stop
// fetching, then call Close to drain in-flight deliveries.
func (c *KafkaConsumer) Subscribe(ctx context.Context, handler MessageHandler) error {
	started := false
	c.startOnce.Do(func() {
		started = true
		go c.run(ctx, handler)
	})
	if !started {
		return errors.New("consumer already subscribed")
	}

	c.logger.Info("Subscribed to Kafka topic",
		"max_in_flight", c.settings.MaxInFlight,
		"max_deliveries", c.settings.MaxDeliveries,
	)
	return nil
}

func (c *KafkaConsumer) run(ctx context.Context, handler MessageHandler) {
	defer close(c.done)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.logger.Info("Stopping fetch loop", "reason", err)
				return
			}
			c.logger.Error("Failed to fetch message from Kafka", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(fetchRetryDelay):
			}
			continue
		}

		c.commitMu.Lock()
		c.tracker.track(msg)
		c.commitMu.Unlock()

		delivery := newDelivery(msg)
		c.logger.Debug("Received message from Kafka",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"attempt", delivery.Attempt,
		)

		if err := c.pool.Submit(func() {
			c.process(ctx, handler, delivery, msg)
		}); err != nil {
			// the message stays uncommitted and is redelivered after restart
			c.logger.Error("Failed to submit delivery to worker pool, stopping consumer",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			c.fail(fmt.Errorf("failed to submit delivery at offset %d: %w", msg.Offset, err))
			return
		}
	}
}

func (c *KafkaConsumer) fail(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.runErr = err
}

// Done is closed once the fetch loop has stopped, either because the
// Subscribe context was cancelled or because the consumer failed.
func (c *KafkaConsumer) Done() <-chan struct{} {
	return c.done
}

// Err returns the failure that stopped the fetch loop. It is nil while the
// loop runs and after a stop caused by cancellation.
func (c *KafkaConsumer) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.runErr
}

// process runs detached from ctx cancellation so a shutdown lets in-flight
// deliveries settle within the processing timeout.
func (c *KafkaConsumer) process(ctx context.Context, handler MessageHandler, d *Delivery, msg kafka.Message) {
	base := context.WithoutCancel(ctx)

	handleCtx, cancel := context.WithTimeout(base, c.settings.ProcessingTimeout)
	err := c.safeHandle(handleCtx, handler, d)
	cancel()

	settleCtx, cancelSettle := context.WithTimeout(base, c.settings.ProcessingTimeout)
	defer cancelSettle()
	c.settle(settleCtx, d, msg, err)
}

func (c *KafkaConsumer) safeHandle(ctx context.Context, handler MessageHandler, d *Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, d)
}

func (c *KafkaConsumer) settle(ctx context.Context, d *Delivery, msg kafka.Message, handleErr error) {
	logger := c.logger.With(
		"topic", d.Topic,
		"partition", d.Partition,
		"offset", d.Offset,
		"attempt", d.Attempt,
		"key", string(d.Key),
	)

	if handleErr == nil {
		c.ack(ctx, msg, logger)
		return
	}

	if IsPermanent(handleErr) || d.Attempt >= c.settings.MaxDeliveries {
		reason := handleErr.Error()
		if !IsPermanent(handleErr) {
			reason = fmt.Sprintf("max deliveries (%d) exceeded: %s", c.settings.MaxDeliveries, reason)
		}
		logger.Warn("Dead-lettering delivery", "reason", reason)

		err := c.deadLetters.DeadLetter(ctx, d, reason)
		if err == nil {
			c.ack(ctx, msg, logger)
			return
		}
		logger.Error("Failed to dead-letter delivery, requeueing instead", "error", err)
	} else {
		logger.Warn("Delivery failed, requeueing", "error", handleErr)
	}

	if err := c.republisher.Publish(ctx, string(d.Key), d.Value, d.nextAttemptHeaders()); err != nil {
		logger.Error("Failed to requeue delivery, leaving it unacknowledged",
			"error", err,
			"handler_error", handleErr,
		)
		return
	}
	c.ack(ctx, msg, logger)
}

func (c *KafkaConsumer) ack(ctx context.Context, msg kafka.Message, logger *slog.Logger) {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	commit, ok := c.tracker.settle(msg)
	if !ok {
		logger.Debug("Delivery settled, waiting for earlier offsets before committing")
		return
	}

	if err := c.reader.CommitMessages(ctx, commit); err != nil {
		logger.Error("Failed to commit offset", "commit_offset", commit.Offset, "error", err)
		return
	}
	logger.Debug("Committed offset", "commit_offset", commit.Offset)
}

// Close waits for the fetch loop to stop, drains the worker pool and closes
// the reader. Cancel the Subscribe context before calling it.
func (c *KafkaConsumer) Close() error {
	subscribed := true
	c.startOnce.Do(func() {
		subscribed = false
		close(c.done)
	})
	if subscribed {
		<-c.done
	}

	var errs []error
	if err := c.pool.ReleaseTimeout(c.settings.ReleaseTimeout); err != nil {
		c.logger.Warn("Worker pool did not drain before timeout", "error", err, "running", c.pool.Running())
		errs = append(errs, fmt.Errorf("failed to drain worker pool: %w", err))
	}

	c.commitMu.Lock()
	pending := c.tracker.pending()
	c.commitMu.Unlock()
	if pending > 0 {
		c.logger.Warn("Closing with uncommitted deliveries; they will be redelivered", "pending", pending)
	}

	if c.reader != nil {
		if err := c.reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close kafka reader: %w", err))
		}
	}
	return errors.Join(errs...)
}
