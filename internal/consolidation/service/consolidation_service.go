package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cashflow-consolidation/internal/domain/event"
	"github.com/cashflow-consolidation/internal/domain/shared"
	"github.com/cashflow-consolidation/internal/domain/summary"
	"github.com/cashflow-consolidation/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// ErrInvalidEvent marks events that can never be applied
var ErrInvalidEvent = errors.New("invalid TransactionCreated event")

type ConsolidationServiceImpl struct {
	db          persistence.TxRunner
	summaryRepo summary.Repository
	seen        SeenCache
	logger      *slog.Logger
}

func NewConsolidationService(
	logger *slog.Logger,
	db persistence.TxRunner,
	summaryRepo summary.Repository,
	seen SeenCache,
) ConsolidationService {
	return &ConsolidationServiceImpl{
		db:          db,
		summaryRepo: summaryRepo,
		seen:        seen,
		logger:      logger,
	}
}

// Apply records the event id and adds its delta in one database transaction,
// so a redelivered event finds its id already recorded and is skipped.
func (s *ConsolidationServiceImpl) Apply(ctx context.Context, ev event.TransactionCreated) (Outcome, error) {
	if err := ev.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	eventID := ev.ID.String()
	logger := s.logger.With("event_id", eventID, "business_date", ev.Date.String())

	seen, err := s.seen.Seen(ctx, eventID)
	if err != nil {
		logger.Warn("Seen cache lookup failed, falling back to the applied-event ledger", "error", err)
	} else if seen {
		logger.Info("Event already applied, skipping", "source", "cache")
		return OutcomeDuplicate, nil
	}

	delta := summary.NewDelta(ev)
	outcome := OutcomeDuplicate
	var updated *summary.DailySummary

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := s.summaryRepo.WithTx(tx)

		recorded, err := repo.RecordAppliedEvent(ctx, delta)
		if err != nil {
			return fmt.Errorf("failed to record applied event %s: %w", eventID, err)
		}
		if !recorded {
			return nil
		}

		updated, err = repo.AddToDay(ctx, delta)
		if err != nil {
			return fmt.Errorf("failed to add event %s to %s: %w", eventID, ev.Date, err)
		}
		outcome = OutcomeApplied
		return nil
	})
	if err != nil {
		logger.Error("Failed to apply event to daily summary", "error", err)
		return "", err
	}

	if err := s.seen.MarkSeen(ctx, eventID); err != nil {
		logger.Warn("Failed to mark event as seen", "error", err)
	}

	if outcome == OutcomeDuplicate {
		logger.Info("Event already applied, skipping", "source", "ledger")
		return outcome, nil
	}

	logger.Info("Applied event to daily summary",
		"transaction_type", string(ev.Type),
		"amount", ev.Amount.String(),
		"total_credit", updated.TotalCredit.String(),
		"total_debit", updated.TotalDebit.String(),
		"balance", updated.Balance.String(),
	)
	return outcome, nil
}

func (s *ConsolidationServiceImpl) GetDailySummary(ctx context.Context, date shared.Date) (*summary.DailySummary, error) {
	ds, err := s.summaryRepo.GetByDate(ctx, date)
	if err != nil {
		if errors.Is(err, summary.ErrSummaryNotFound{}) {
			return nil, err
		}
		s.logger.Error("Failed to get daily summary", "business_date", date.String(), "error", err)
		return nil, fmt.Errorf("failed to get daily summary for %s: %w", date, err)
	}
	return ds, nil
}
