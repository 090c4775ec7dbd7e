package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cashflow-consolidation/internal/consolidation/service"
	"github.com/cashflow-consolidation/internal/domain/event"
	"github.com/cashflow-consolidation/internal/platform/messaging"
	"github.com/cashflow-consolidation/internal/platform/messaging/consumers"
)

// TransactionEventHandler applies TransactionCreated deliveries to the daily summary
type TransactionEventHandler struct {
	consolidationService service.ConsolidationService
	logger               *slog.Logger
}

// NewTransactionEventHandler creates a new handler
func NewTransactionEventHandler(logger *slog.Logger, consolidationService service.ConsolidationService) *TransactionEventHandler {
	return &TransactionEventHandler{
		consolidationService: consolidationService,
		logger:               logger,
	}
}

// HandleMessage returns nil to acknowledge, a permanent error for deliveries
// that can never be applied, and any other error to have the delivery retried.
func (h *TransactionEventHandler) HandleMessage(ctx context.Context, d *consumers.Delivery) error {
	logger := h.logger.With(
		"topic", d.Topic,
		"partition", d.Partition,
		"offset", d.Offset,
		"attempt", d.Attempt,
	)
	if correlationID := d.CorrelationID(); correlationID != "" {
		logger = logger.With("correlation_id", correlationID)
	}

	if eventType, ok := d.Headers[messaging.HeaderEventType]; ok && eventType != event.TypeTransactionCreated {
		logger.Error("Unsupported event type", "event_type", eventType)
		return consumers.Permanent(fmt.Errorf("unsupported event type %q", eventType))
	}

	ev, err := event.Decode(d.Value)
	if err != nil {
		logger.Error("Failed to decode TransactionCreated event", "message_key", string(d.Key), "error", err)
		return consumers.Permanent(err)
	}
	logger = logger.With("event_id", ev.ID.String())

	outcome, err := h.consolidationService.Apply(ctx, ev)
	if err != nil {
		if errors.Is(err, service.ErrInvalidEvent) {
			logger.Error("Rejected invalid TransactionCreated event", "error", err)
			return consumers.Permanent(err)
		}
		logger.Error("Failed to consolidate event", "error", err)
		return fmt.Errorf("consolidating event %s failed: %w", ev.ID, err)
	}

	logger.Debug("Consolidated event", "outcome", string(outcome))
	return nil
}
