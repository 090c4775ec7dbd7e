package summary

import (
	"context"

	"github.com/cashflow-consolidation/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// Repository persists daily summaries and the set of events already applied to them
type Repository interface {
	// RecordAppliedEvent registers the event as applied. It returns false when
	// the event was recorded before, in which case its delta must not be applied again.
	RecordAppliedEvent(ctx context.Context, delta Delta) (bool, error)

	// AddToDay atomically adds the delta to its day, creating the row if needed
	AddToDay(ctx context.Context, delta Delta) (*DailySummary, error)
	GetByDate(ctx context.Context, date shared.Date) (*DailySummary, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrSummaryNotFound indicates no event has been applied to the day yet
type ErrSummaryNotFound struct {
	Date shared.Date
}

func (e ErrSummaryNotFound) Error() string {
	return "daily summary not found: " + e.Date.String()
}

func (e ErrSummaryNotFound) Is(target error) bool {
	_, ok := target.(ErrSummaryNotFound)
	return ok
}
