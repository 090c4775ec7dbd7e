package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cashflow-consolidation/internal/domain/shared"
	"github.com/cashflow-consolidation/internal/domain/summary"
	"github.com/cashflow-consolidation/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// SummaryRepository implements the summary.Repository interface for PostgreSQL
type SummaryRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewSummaryRepository creates a new PostgreSQL daily summary repository
func NewSummaryRepository(logger *slog.Logger, db *persistence.PostgresDB) summary.Repository {
	return &SummaryRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx binds the repository to tx. Recording an event and adding its delta
// must happen in the same transaction.
func (r *SummaryRepository) WithTx(tx pgx.Tx) summary.Repository {
	return &SummaryRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// RecordAppliedEvent inserts the event into the applied-event ledger. A
// conflicting event id affects no rows, which reports a duplicate.
func (r *SummaryRepository) RecordAppliedEvent(ctx context.Context, delta summary.Delta) (bool, error) {
	query := `
		INSERT INTO applied_events (event_id, business_date, credit, debit, applied_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5)
		ON CONFLICT (event_id) DO NOTHING
	`

	result, err := r.querier.Exec(ctx, query,
		delta.EventID,
		delta.Date.Time(),
		delta.Credit.String(),
		delta.Debit.String(),
		time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to record applied event",
			"event_id", delta.EventID.String(),
			"error", err,
		)
		return false, fmt.Errorf("failed to record applied event: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// AddToDay adds the delta in a single upsert so concurrent events for the
// same day serialize on the row lock and never lose an update.
func (r *SummaryRepository) AddToDay(ctx context.Context, delta summary.Delta) (*summary.DailySummary, error) {
	query := `
		INSERT INTO daily_summary (business_date, total_credit, total_debit, balance, updated_at)
		VALUES ($1, $2::numeric, $3::numeric, $2::numeric - $3::numeric, $4)
		ON CONFLICT (business_date) DO UPDATE SET
			total_credit = daily_summary.total_credit + EXCLUDED.total_credit,
			total_debit = daily_summary.total_debit + EXCLUDED.total_debit,
			balance = (daily_summary.total_credit + EXCLUDED.total_credit) - (daily_summary.total_debit + EXCLUDED.total_debit),
			updated_at = EXCLUDED.updated_at
		RETURNING business_date, total_credit::text, total_debit::text, balance::text, updated_at
	`

	s, err := scanSummary(r.querier.QueryRow(ctx, query,
		delta.Date.Time(),
		delta.Credit.String(),
		delta.Debit.String(),
		time.Now().UTC(),
	))
	if err != nil {
		r.logger.Error("Failed to add delta to daily summary",
			"event_id", delta.EventID.String(),
			"date", delta.Date.String(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to add delta to daily summary: %w", err)
	}

	return s, nil
}

// GetByDate returns ErrSummaryNotFound when nothing was applied to the day
func (r *SummaryRepository) GetByDate(ctx context.Context, date shared.Date) (*summary.DailySummary, error) {
	query := `
		SELECT business_date, total_credit::text, total_debit::text, balance::text, updated_at
		FROM daily_summary
		WHERE business_date = $1
	`

	s, err := scanSummary(r.querier.QueryRow(ctx, query, date.Time()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, summary.ErrSummaryNotFound{Date: date}
		}
		r.logger.Error("Failed to get daily summary",
			"date", date.String(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to get daily summary: %w", err)
	}

	return s, nil
}

func scanSummary(row pgx.Row) (*summary.DailySummary, error) {
	var (
		businessDate           time.Time
		credit, debit, balance string
		s                      summary.DailySummary
	)
	if err := row.Scan(&businessDate, &credit, &debit, &balance, &s.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if s.TotalCredit, err = decimal.NewFromString(credit); err != nil {
		return nil, fmt.Errorf("invalid total_credit %q: %w", credit, err)
	}
	if s.TotalDebit, err = decimal.NewFromString(debit); err != nil {
		return nil, fmt.Errorf("invalid total_debit %q: %w", debit, err)
	}
	if s.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("invalid balance %q: %w", balance, err)
	}
	s.Date = shared.NewDate(businessDate)

	return &s, nil
}
