package service

import (
	"context"

	"github.com/cashflow-consolidation/internal/domain/deadletter"
	"github.com/cashflow-consolidation/internal/domain/event"
	"github.com/cashflow-consolidation/internal/domain/shared"
	"github.com/cashflow-consolidation/internal/domain/summary"
	"github.com/cashflow-consolidation/internal/platform/messaging/consumers"
)

// Outcome describes what applying an event did to the aggregate
type Outcome string

const (
	OutcomeApplied   Outcome = "APPLIED"
	OutcomeDuplicate Outcome = "DUPLICATE"
)

// ConsolidationService folds TransactionCreated events into daily summaries
type ConsolidationService interface {
	// Apply adds the event to its day exactly once. Replays of an event that
	// was already applied return OutcomeDuplicate and change nothing.
	// Errors wrapping ErrInvalidEvent will never succeed on retry.
	Apply(ctx context.Context, ev event.TransactionCreated) (Outcome, error)

	// GetDailySummary returns summary.ErrSummaryNotFound for days with no events
	GetDailySummary(ctx context.Context, date shared.Date) (*summary.DailySummary, error)
}

// DeadLetterService takes over deliveries the consumer gives up on and lists
// them back for inspection
type DeadLetterService interface {
	consumers.DeadLetterSink
	ListDeadLetters(ctx context.Context, limit int) ([]*deadletter.Record, error)
}

// SeenCache is a best-effort record of recently applied event ids
type SeenCache interface {
	Seen(ctx context.Context, id string) (bool, error)
	MarkSeen(ctx context.Context, id string) error
}
