package handler

import (
	"time"

	"github.com/cashflow-consolidation/internal/domain/shared"
	"github.com/cashflow-consolidation/internal/domain/transaction"
	"github.com/shopspring/decimal"
)

// CreateTransactionRequest represents a request to record a transaction.
// Amount accepts a JSON string or number; a string keeps full precision.
type CreateTransactionRequest struct {
	Date        shared.Date     `json:"date"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description *string         `json:"description,omitempty"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Type        string  `json:"type"`
	Amount      string  `json:"amount"`
	Description *string `json:"description,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// ListParams represents the query parameters of the listing endpoint
type ListParams struct {
	Limit int `form:"limit,default=100"`
}

// RequeueResponse reports how many outbox messages went back to pending
type RequeueResponse struct {
	Requeued int64 `json:"requeued"`
}

func mapTransactionToResponse(tx *transaction.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:          tx.ID.String(),
		Date:        tx.Date.String(),
		Type:        string(tx.Type),
		Amount:      tx.Amount.String(),
		Description: tx.Description,
		CreatedAt:   tx.CreatedAt.Format(time.RFC3339Nano),
	}
}
