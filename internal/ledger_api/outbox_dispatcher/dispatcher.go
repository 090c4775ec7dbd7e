// Package outbox_dispatcher publishes committed outbox messages to the event topic.
package outbox_dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cashflow-consolidation/internal/config"
	"github.com/cashflow-consolidation/internal/domain/event"
	"github.com/cashflow-consolidation/internal/domain/outbox"
	"github.com/cashflow-consolidation/internal/domain/shared"
	"github.com/cashflow-consolidation/internal/platform/messaging"
	"github.com/cashflow-consolidation/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// Publisher sends an encoded event to the event channel
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
}

// Dispatcher claims pending outbox messages and publishes them. It runs on a
// poll interval and can be woken early with Notify.
type Dispatcher struct {
	db               persistence.TxRunner
	outboxRepo       outbox.Repository
	publisher        Publisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
	wake             chan struct{}
}

func NewDispatcher(
	cfg *config.OutboxConfig,
	db persistence.TxRunner,
	outboxRepo outbox.Repository,
	publisher Publisher,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		db:               db,
		outboxRepo:       outboxRepo,
		publisher:        publisher,
		logger:           logger.With("component", "OutboxDispatcher"),
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
		wake:             make(chan struct{}, 1),
	}
}

// Notify asks for a dispatch round without waiting for the next tick. It never blocks.
func (d *Dispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Start dispatches until ctx is canceled
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting outbox dispatcher",
		"poll_interval", d.pollInterval.String(),
		"batch_size", d.batchSize,
		"max_retry_attempts", d.maxRetryAttempts,
	)
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox dispatcher stopping due to context cancellation")
			return
		case <-ticker.C:
		case <-d.wake:
		}

		claimed, err := d.dispatchPending(ctx)
		if err != nil {
			d.logger.Error("Error during outbox dispatch round", "error", err)
			continue
		}
		// a full batch likely means more is waiting
		if claimed == d.batchSize {
			d.Notify()
		}
	}
}

// dispatchPending claims one batch inside a transaction so concurrent
// dispatchers skip the locked rows. It returns how many messages were claimed.
func (d *Dispatcher) dispatchPending(ctx context.Context) (int, error) {
	claimed := 0
	err := d.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := d.outboxRepo.WithTx(tx)

		messages, err := repo.GetPending(ctx, d.batchSize)
		if err != nil {
			return fmt.Errorf("failed to get pending outbox messages: %w", err)
		}
		claimed = len(messages)
		if claimed == 0 {
			d.logger.Debug("No pending outbox messages found")
			return nil
		}

		d.logger.Info("Claimed pending outbox messages", "count", claimed)
		for _, msg := range messages {
			if err := d.dispatchMessage(ctx, repo, msg); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

// dispatchMessage publishes one message and records the outcome. A publish
// failure is absorbed here; only bookkeeping failures are returned.
func (d *Dispatcher) dispatchMessage(ctx context.Context, repo outbox.Repository, msg *outbox.Message) error {
	logger := d.logger.With("outbox_id", msg.ID, "transaction_id", msg.TransactionID)
	if msg.CorrelationID != "" {
		logger = logger.With("correlation_id", msg.CorrelationID)
	}

	headers := map[string]string{messaging.HeaderEventType: event.TypeTransactionCreated}
	if msg.CorrelationID != "" {
		headers[messaging.HeaderCorrelationID] = msg.CorrelationID
	}

	pubErr := d.publisher.Publish(ctx, msg.TransactionID.String(), msg.Payload, headers)
	if pubErr == nil {
		if err := repo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusProcessed); err != nil {
			logger.Error("Published but failed to mark outbox message as PROCESSED", "error", err)
			return fmt.Errorf("failed to mark outbox message %d as processed: %w", msg.ID, err)
		}
		logger.Info("Published TransactionCreated event")
		return nil
	}

	logger.Error("Failed to publish outbox message", "current_attempts", msg.Attempts, "error", pubErr)

	attempts, err := repo.IncrementAttempts(ctx, msg.ID)
	if err != nil {
		logger.Error("Failed to increment attempts for outbox message", "error", err)
		return fmt.Errorf("failed to increment attempts for outbox message %d: %w", msg.ID, err)
	}
	msg.Attempts = attempts

	if msg.Exhausted(d.maxRetryAttempts) {
		logger.Error("Max publish attempts reached, marking outbox message as FAILED_TO_PUBLISH",
			"attempts_made", attempts,
			"error", pubErr,
		)
		if err := repo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); err != nil {
			return fmt.Errorf("failed to mark outbox message %d as failed: %w", msg.ID, err)
		}
	}
	return nil
}
