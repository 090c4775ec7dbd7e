package service

import (
	"context"

	"github.com/cashflow-consolidation/internal/domain/shared"
	"github.com/cashflow-consolidation/internal/domain/transaction"
	"github.com/shopspring/decimal"
)

// SubmitCommand carries a client's request to record a transaction
type SubmitCommand struct {
	Date          shared.Date
	Type          shared.TransactionType
	Amount        decimal.Decimal
	Description   *string
	CorrelationID string
}

// TransactionService defines the ingestion operations
type TransactionService interface {
	// Submit validates and durably records a transaction together with its
	// TransactionCreated outbox message. Returns *transaction.ValidationError
	// for rejected input and *PersistenceError when storage fails.
	Submit(ctx context.Context, cmd SubmitCommand) (*transaction.Transaction, error)

	// ListRecent returns at most NormalizeLimit(limit) transactions, newest first
	ListRecent(ctx context.Context, limit int) ([]*transaction.Transaction, error)

	// RequeueFailed moves outbox messages that exhausted their publish
	// attempts back to pending and returns how many were moved.
	RequeueFailed(ctx context.Context) (int64, error)
}

// Notifier is told that new outbox messages are ready to publish
type Notifier interface {
	Notify()
}
