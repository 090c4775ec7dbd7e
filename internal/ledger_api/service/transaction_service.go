package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cashflow-consolidation/internal/domain/event"
	"github.com/cashflow-consolidation/internal/domain/outbox"
	"github.com/cashflow-consolidation/internal/domain/transaction"
	"github.com/cashflow-consolidation/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// PersistenceError wraps a storage failure surfaced to the caller
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "persistence failure during " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NormalizeLimit clamps a requested listing size to [1, transaction.MaxListLimit].
// Zero or negative values select the maximum.
func NormalizeLimit(limit int) int {
	if limit <= 0 || limit > transaction.MaxListLimit {
		return transaction.MaxListLimit
	}
	return limit
}

// TransactionServiceImpl implements the TransactionService interface
type TransactionServiceImpl struct {
	db              persistence.TxRunner
	transactionRepo transaction.Repository
	outboxRepo      outbox.Repository
	notifier        Notifier
	logger          *slog.Logger
}

// NewTransactionService creates a new transaction service. notifier may be nil,
// in which case published events wait for the next dispatcher poll.
func NewTransactionService(
	logger *slog.Logger,
	db persistence.TxRunner,
	transactionRepo transaction.Repository,
	outboxRepo outbox.Repository,
	notifier Notifier,
) TransactionService {
	return &TransactionServiceImpl{
		db:              db,
		transactionRepo: transactionRepo,
		outboxRepo:      outboxRepo,
		notifier:        notifier,
		logger:          logger,
	}
}

// Submit records the transaction and its outbox message in one database
// transaction. Nothing is published before the commit succeeds.
func (s *TransactionServiceImpl) Submit(ctx context.Context, cmd SubmitCommand) (*transaction.Transaction, error) {
	logger := s.logger
	if cmd.CorrelationID != "" {
		logger = s.logger.With("correlation_id", cmd.CorrelationID)
	}

	tx, err := transaction.New(cmd.Date, cmd.Type, cmd.Amount, cmd.Description)
	if err != nil {
		logger.Warn("Rejected transaction submission",
			"transaction_type", string(cmd.Type),
			"amount", cmd.Amount.String(),
			"error", err,
		)
		return nil, err
	}

	message, err := outbox.NewMessage(event.FromTransaction(tx), cmd.CorrelationID)
	if err != nil {
		logger.Error("Failed to encode TransactionCreated event", "transaction_id", tx.ID, "error", err)
		return nil, &PersistenceError{Op: "encode event", Err: err}
	}

	err = s.db.ExecuteTx(ctx, func(dbTx pgx.Tx) error {
		if err := s.transactionRepo.WithTx(dbTx).Create(ctx, tx); err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", tx.ID, err)
		}
		if err := s.outboxRepo.WithTx(dbTx).Create(ctx, message); err != nil {
			return fmt.Errorf("failed to insert outbox message for transaction %s: %w", tx.ID, err)
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to record transaction",
			"transaction_id", tx.ID,
			"error", err,
		)
		return nil, &PersistenceError{Op: "record transaction", Err: err}
	}

	logger.Info("Transaction recorded",
		"transaction_id", tx.ID,
		"business_date", tx.Date.String(),
		"transaction_type", string(tx.Type),
		"amount", tx.Amount.String(),
		"outbox_id", message.ID,
	)

	if s.notifier != nil {
		s.notifier.Notify()
	}
	return tx, nil
}

// ListRecent returns the newest transactions first
func (s *TransactionServiceImpl) ListRecent(ctx context.Context, limit int) ([]*transaction.Transaction, error) {
	limit = NormalizeLimit(limit)

	transactions, err := s.transactionRepo.ListRecent(ctx, limit)
	if err != nil {
		s.logger.Error("Failed to list recent transactions", "limit", limit, "error", err)
		return nil, &PersistenceError{Op: "list transactions", Err: err}
	}
	return transactions, nil
}

func (s *TransactionServiceImpl) RequeueFailed(ctx context.Context) (int64, error) {
	n, err := s.outboxRepo.RequeueFailed(ctx)
	if err != nil {
		s.logger.Error("Failed to requeue failed outbox messages", "error", err)
		return 0, &PersistenceError{Op: "requeue outbox messages", Err: err}
	}

	s.logger.Info("Requeued failed outbox messages", "count", n)
	if n > 0 && s.notifier != nil {
		s.notifier.Notify()
	}
	return n, nil
}
