package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cashflow-consolidation/internal/domain/outbox"
	"github.com/cashflow-consolidation/internal/domain/shared"
	"github.com/cashflow-consolidation/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

const outboxColumns = `id, transaction_id, payload, correlation_id, status, attempts, created_at, last_attempt_at`

// OutboxRepository implements the outbox.Repository interface for PostgreSQL
type OutboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewOutboxRepository creates a new PostgreSQL outbox repository
func NewOutboxRepository(logger *slog.Logger, db *persistence.PostgresDB) outbox.Repository {
	return &OutboxRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations.
func (r *OutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	return &OutboxRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new outbox message in pending status.
func (r *OutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	query := `
		INSERT INTO transaction_outbox (transaction_id, payload, correlation_id, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		message.TransactionID,
		[]byte(message.Payload),
		message.CorrelationID,
		string(message.Status),
		message.Attempts,
		message.CreatedAt,
	).Scan(&message.ID)

	if err != nil {
		r.logger.Error("Failed to create outbox message",
			"transaction_id", message.TransactionID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message: %w", err)
	}

	return nil
}

// GetPending claims pending messages in FIFO order. Call it inside a
// transaction: the row locks are what keep two dispatchers apart.
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM transaction_outbox
		WHERE status = $1
		ORDER BY id ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	rows, err := r.querier.Query(ctx, query, string(shared.OutboxStatusPending), limit)
	if err != nil {
		r.logger.Error("Failed to get pending outbox messages", "error", err)
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*outbox.Message
	for rows.Next() {
		message, err := scanOutboxMessage(rows)
		if err != nil {
			r.logger.Error("Failed to scan outbox message", "error", err)
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over outbox messages", "error", err)
		return nil, fmt.Errorf("error iterating over outbox messages: %w", err)
	}

	return messages, nil
}

// UpdateStatus updates the message status and last attempt timestamp.
// Returns ErrMessageNotFound if the message doesn't exist.
func (r *OutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	query := `
		UPDATE transaction_outbox
		SET status = $1, last_attempt_at = $2
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, string(status), time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update outbox message status",
			"id", id,
			"status", string(status),
			"error", err,
		)
		return fmt.Errorf("failed to update outbox message status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return outbox.ErrMessageNotFound{ID: id}
	}

	return nil
}

// IncrementAttempts bumps the retry counter and returns its new value
func (r *OutboxRepository) IncrementAttempts(ctx context.Context, id int64) (int, error) {
	query := `
		UPDATE transaction_outbox
		SET attempts = attempts + 1, last_attempt_at = $1
		WHERE id = $2
		RETURNING attempts
	`

	var attempts int
	err := r.querier.QueryRow(ctx, query, time.Now().UTC(), id).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, outbox.ErrMessageNotFound{ID: id}
		}
		r.logger.Error("Failed to increment outbox message attempts",
			"id", id,
			"error", err,
		)
		return 0, fmt.Errorf("failed to increment outbox message attempts: %w", err)
	}

	return attempts, nil
}

// RequeueFailed moves every FAILED_TO_PUBLISH message back to pending with a
// fresh attempt budget and returns how many were moved.
func (r *OutboxRepository) RequeueFailed(ctx context.Context) (int64, error) {
	query := `
		UPDATE transaction_outbox
		SET status = $1, attempts = 0
		WHERE status = $2
	`

	result, err := r.querier.Exec(ctx, query, string(shared.OutboxStatusPending), string(shared.OutboxStatusFailedToPublish))
	if err != nil {
		r.logger.Error("Failed to requeue failed outbox messages", "error", err)
		return 0, fmt.Errorf("failed to requeue failed outbox messages: %w", err)
	}

	return result.RowsAffected(), nil
}

func scanOutboxMessage(row pgx.Row) (*outbox.Message, error) {
	var (
		message       outbox.Message
		payload       []byte
		correlationID *string
		status        string
	)
	err := row.Scan(
		&message.ID,
		&message.TransactionID,
		&payload,
		&correlationID,
		&status,
		&message.Attempts,
		&message.CreatedAt,
		&message.LastAttemptAt,
	)
	if err != nil {
		return nil, err
	}

	message.Payload = payload
	message.Status = shared.OutboxStatus(status)
	if correlationID != nil {
		message.CorrelationID = *correlationID
	}

	return &message, nil
}
