package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cashflow-consolidation/internal/domain/outbox"
	"github.com/cashflow-consolidation/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var outboxColumnNames = []string{"id", "transaction_id", "payload", "correlation_id", "status", "attempts", "created_at", "last_attempt_at"}

func TestOutboxRepository_WithTx(t *testing.T) {
	repo := &OutboxRepository{querier: nil, logger: newTestLogger()}

	mockTx := pgx.Tx(nil)
	txRepo := repo.WithTx(mockTx)

	assert.IsType(t, &OutboxRepository{}, txRepo)
	outboxRepo, ok := txRepo.(*OutboxRepository)
	assert.True(t, ok)
	assert.Equal(t, mockTx, outboxRepo.querier)
}

func TestOutboxRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: newTestLogger()}
	message := &outbox.Message{
		TransactionID: uuid.New(),
		Payload:       []byte(`{"id":"x"}`),
		CorrelationID: "corr-1",
		Status:        shared.OutboxStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	query := `INSERT INTO transaction_outbox .+ RETURNING id`

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(message.TransactionID, []byte(`{"id":"x"}`), "corr-1", "PENDING", 0, message.CreatedAt).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

		err := repo.Create(ctx, message)
		require.NoError(t, err)
		assert.Equal(t, int64(42), message.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		dbErr := errors.New("unique violation")
		mock.ExpectQuery(query).WillReturnError(dbErr)

		err := repo.Create(ctx, message)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to create outbox message")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_GetPending(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: newTestLogger()}
	query := `FROM transaction_outbox WHERE status = \$1 ORDER BY id ASC LIMIT \$2 FOR UPDATE SKIP LOCKED`
	now := time.Now().UTC()

	t.Run("success", func(t *testing.T) {
		first, second := uuid.New(), uuid.New()
		rows := pgxmock.NewRows(outboxColumnNames).
			AddRow(int64(1), first, []byte(`{"a":1}`), strPtr("corr-a"), "PENDING", 0, now, (*time.Time)(nil)).
			AddRow(int64(2), second, []byte(`{"b":2}`), (*string)(nil), "PENDING", 3, now, &now)
		mock.ExpectQuery(query).WithArgs("PENDING", 10).WillReturnRows(rows)

		messages, err := repo.GetPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, messages, 2)

		assert.Equal(t, int64(1), messages[0].ID)
		assert.Equal(t, first, messages[0].TransactionID)
		assert.Equal(t, "corr-a", messages[0].CorrelationID)
		assert.Equal(t, shared.OutboxStatusPending, messages[0].Status)
		assert.Nil(t, messages[0].LastAttemptAt)

		assert.Equal(t, "", messages[1].CorrelationID)
		assert.Equal(t, 3, messages[1].Attempts)
		assert.JSONEq(t, `{"b":2}`, string(messages[1].Payload))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("PENDING", 10).WillReturnError(errors.New("timeout"))

		messages, err := repo.GetPending(ctx, 10)
		assert.Nil(t, messages)
		assert.Contains(t, err.Error(), "failed to get pending outbox messages")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: newTestLogger()}
	query := `UPDATE transaction_outbox SET status = \$1, last_attempt_at = \$2 WHERE id = \$3`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs("PROCESSED", pgxmock.AnyArg(), int64(7)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.UpdateStatus(ctx, 7, shared.OutboxStatusProcessed))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs("FAILED_TO_PUBLISH", pgxmock.AnyArg(), int64(8)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateStatus(ctx, 8, shared.OutboxStatusFailedToPublish)
		assert.ErrorIs(t, err, outbox.ErrMessageNotFound{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_IncrementAttempts(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: newTestLogger()}
	query := `SET attempts = attempts \+ 1, last_attempt_at = \$1 WHERE id = \$2 RETURNING attempts`

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(pgxmock.AnyArg(), int64(5)).
			WillReturnRows(pgxmock.NewRows([]string{"attempts"}).AddRow(4))

		attempts, err := repo.IncrementAttempts(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, 4, attempts)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(pgxmock.AnyArg(), int64(6)).
			WillReturnRows(pgxmock.NewRows([]string{"attempts"}))

		_, err := repo.IncrementAttempts(ctx, 6)
		var notFound outbox.ErrMessageNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, int64(6), notFound.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_RequeueFailed(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: newTestLogger()}
	query := `UPDATE transaction_outbox SET status = \$1, attempts = 0 WHERE status = \$2`

	mock.ExpectExec(query).
		WithArgs("PENDING", "FAILED_TO_PUBLISH").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := repo.RequeueFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

