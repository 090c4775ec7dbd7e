// Package summary holds the per-day consolidated cash position.
package summary

import (
	"time"

	"github.com/cashflow-consolidation/internal/domain/event"
	"github.com/cashflow-consolidation/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DailySummary is the running aggregate for one calendar day.
// Balance always equals TotalCredit minus TotalDebit.
type DailySummary struct {
	Date        shared.Date     `json:"date"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	Balance     decimal.Decimal `json:"balance"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Delta is the contribution of a single event to its day
type Delta struct {
	EventID uuid.UUID
	Date    shared.Date
	Credit  decimal.Decimal
	Debit   decimal.Decimal
}

// NewDelta maps a validated event onto the credit or debit side of its day
func NewDelta(ev event.TransactionCreated) Delta {
	d := Delta{
		EventID: ev.ID,
		Date:    ev.Date,
		Credit:  decimal.Zero,
		Debit:   decimal.Zero,
	}
	switch ev.Type {
	case shared.TransactionTypeCredit:
		d.Credit = ev.Amount
	case shared.TransactionTypeDebit:
		d.Debit = ev.Amount
	}
	return d
}
