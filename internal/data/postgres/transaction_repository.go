// Package postgres provides PostgreSQL implementations of the domain repositories.
// Amounts cross the driver boundary as decimal text so no precision is lost.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cashflow-consolidation/internal/domain/shared"
	"github.com/cashflow-consolidation/internal/domain/transaction"
	"github.com/cashflow-consolidation/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransactionRepository implements the transaction.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) transaction.Repository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx, so the insert can share a
// transaction with the outbox write.
func (r *TransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new transaction. Rows are never updated afterwards.
func (r *TransactionRepository) Create(ctx context.Context, tx *transaction.Transaction) error {
	query := `
		INSERT INTO transactions (id, business_date, type, amount, description, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
	`

	_, err := r.querier.Exec(ctx, query,
		tx.ID,
		tx.Date.Time(),
		string(tx.Type),
		tx.Amount.String(),
		tx.Description,
		tx.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create transaction",
			"transaction_id", tx.ID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// ListRecent returns the newest transactions first
func (r *TransactionRepository) ListRecent(ctx context.Context, limit int) ([]*transaction.Transaction, error) {
	query := `
		SELECT id, business_date, type, amount::text, description, created_at
		FROM transactions
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.querier.Query(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to list transactions", "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]*transaction.Transaction, 0, limit)
	for rows.Next() {
		var (
			t            transaction.Transaction
			businessDate time.Time
			txType       string
			amount       string
		)
		if err := rows.Scan(&t.ID, &businessDate, &txType, &amount, &t.Description, &t.CreatedAt); err != nil {
			r.logger.Error("Failed to scan transaction", "error", err)
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount of transaction %s: %w", t.ID, err)
		}
		t.Date = shared.NewDate(businessDate)
		t.Type = shared.TransactionType(txType)

		transactions = append(transactions, &t)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over transactions", "error", err)
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}

	return transactions, nil
}
