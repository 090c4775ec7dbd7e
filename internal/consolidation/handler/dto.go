package handler

import (
	"time"

	"github.com/cashflow-consolidation/internal/domain/deadletter"
	"github.com/cashflow-consolidation/internal/domain/summary"
)

// SummaryQuery represents the query parameters of the daily summary endpoint
type SummaryQuery struct {
	Date string `form:"date" binding:"required"`
}

// DeadLetterQuery represents the query parameters of the dead-letter listing
type DeadLetterQuery struct {
	Limit int `form:"limit"`
}

// DailySummaryResponse represents a day's consolidated position
type DailySummaryResponse struct {
	Date        string `json:"date"`
	TotalCredit string `json:"total_credit"`
	TotalDebit  string `json:"total_debit"`
	Balance     string `json:"balance"`
	UpdatedAt   string `json:"updated_at"`
}

// DeadLetterResponse represents an archived dead letter
type DeadLetterResponse struct {
	ID             string `json:"id"`
	MessageKey     string `json:"message_key"`
	Payload        string `json:"payload"`
	Reason         string `json:"reason"`
	Attempts       int    `json:"attempts"`
	Topic          string `json:"topic"`
	Partition      int    `json:"partition"`
	Offset         int64  `json:"offset"`
	DeadLetteredAt string `json:"dead_lettered_at"`
}

func mapSummaryToResponse(ds *summary.DailySummary) DailySummaryResponse {
	return DailySummaryResponse{
		Date:        ds.Date.String(),
		TotalCredit: ds.TotalCredit.String(),
		TotalDebit:  ds.TotalDebit.String(),
		Balance:     ds.Balance.String(),
		UpdatedAt:   ds.UpdatedAt.Format(time.RFC3339),
	}
}

func mapDeadLetterToResponse(r *deadletter.Record) DeadLetterResponse {
	return DeadLetterResponse{
		ID:             r.ID,
		MessageKey:     r.MessageKey,
		Payload:        r.Payload,
		Reason:         r.Reason,
		Attempts:       r.Attempts,
		Topic:          r.Topic,
		Partition:      r.Partition,
		Offset:         r.Offset,
		DeadLetteredAt: r.DeadLetteredAt.Format(time.RFC3339),
	}
}
