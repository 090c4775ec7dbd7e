package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cashflow-consolidation/internal/domain/deadletter"
	"github.com/cashflow-consolidation/internal/platform/messaging/consumers"
	"github.com/cashflow-consolidation/internal/platform/messaging/producers"
)

type DeadLetterServiceImpl struct {
	publisher producers.DeadLetterPublisher
	repo      deadletter.Repository
	logger    *slog.Logger
}

func NewDeadLetterService(logger *slog.Logger, publisher producers.DeadLetterPublisher, repo deadletter.Repository) DeadLetterService {
	return &DeadLetterServiceImpl{
		publisher: publisher,
		repo:      repo,
		logger:    logger,
	}
}

// DeadLetter publishes the delivery to the DLQ topic and archives a copy.
// Only a failed DLQ publish is returned; the archive is best effort.
func (s *DeadLetterServiceImpl) DeadLetter(ctx context.Context, d *consumers.Delivery, reason string) error {
	logger := s.logger.With(
		"topic", d.Topic,
		"partition", d.Partition,
		"offset", d.Offset,
		"attempt", d.Attempt,
		"key", string(d.Key),
	)

	err := s.publisher.PublishToDLQ(ctx, producers.DeadLetterMessage{
		Key:         string(d.Key),
		Value:       d.Value,
		Reason:      reason,
		Attempts:    d.Attempt,
		SourceTopic: d.Topic,
		Partition:   d.Partition,
		Offset:      d.Offset,
		Headers:     d.Headers,
	})
	if err != nil {
		return fmt.Errorf("failed to dead-letter %s/%d/%d: %w", d.Topic, d.Partition, d.Offset, err)
	}

	record := &deadletter.Record{
		ID:             fmt.Sprintf("%s-%d-%d", d.Topic, d.Partition, d.Offset),
		MessageKey:     string(d.Key),
		Payload:        string(d.Value),
		Reason:         reason,
		Attempts:       d.Attempt,
		Topic:          d.Topic,
		Partition:      d.Partition,
		Offset:         d.Offset,
		DeadLetteredAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		logger.Error("Dead letter published but not archived", "error", err)
		return nil
	}

	logger.Info("Dead-lettered delivery", "reason", reason)
	return nil
}

// ListDeadLetters returns the newest archived dead letters. A non-positive
// limit selects deadletter.DefaultListLimit.
func (s *DeadLetterServiceImpl) ListDeadLetters(ctx context.Context, limit int) ([]*deadletter.Record, error) {
	switch {
	case limit <= 0:
		limit = deadletter.DefaultListLimit
	case limit > deadletter.MaxListLimit:
		limit = deadletter.MaxListLimit
	}

	records, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		s.logger.Error("Failed to list dead letters", "limit", limit, "error", err)
		return nil, err
	}
	return records, nil
}
