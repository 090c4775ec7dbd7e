package outbox_dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/cashflow-consolidation/internal/config"
	"github.com/cashflow-consolidation/internal/domain/outbox"
	"github.com/cashflow-consolidation/internal/domain/shared"
	"github.com/cashflow-consolidation/internal/platform/messaging"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *MockOutboxRepo) RequeueFailed(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	return m
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key string, value []byte, headers map[string]string) error {
	args := m.Called(ctx, key, value, headers)
	return args.Error(0)
}

type fakeTxRunner struct {
	rolledBack int
}

func (f *fakeTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if err := fn(nil); err != nil {
		f.rolledBack++
		return err
	}
	return nil
}

func newTestMessage(id int64, attempts int, correlationID string) *outbox.Message {
	return &outbox.Message{
		ID:            id,
		TransactionID: uuid.New(),
		Payload:       json.RawMessage(`{"id":"x"}`),
		CorrelationID: correlationID,
		Status:        shared.OutboxStatusPending,
		Attempts:      attempts,
		CreatedAt:     time.Now(),
	}
}

func TestDispatcher_DispatchPending(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := &config.OutboxConfig{
		PollingInterval:  time.Second,
		BatchSize:        10,
		MaxRetryAttempts: 3,
	}

	message1 := newTestMessage(1, 0, "corr-1")
	message2 := newTestMessage(2, 0, "")

	tests := []struct {
		name            string
		setupMocks      func(repo *MockOutboxRepo, pub *MockPublisher, msgs []*outbox.Message)
		messages        func() []*outbox.Message
		expectedClaimed int
		expectedError   string
		rolledBack      int
	}{
		{
			name:     "publishes and marks processed",
			messages: func() []*outbox.Message { return []*outbox.Message{message1, message2} },
			setupMocks: func(repo *MockOutboxRepo, pub *MockPublisher, msgs []*outbox.Message) {
				repo.On("GetPending", mock.Anything, 10).Return(msgs, nil).Once()

				pub.On("Publish", mock.Anything, msgs[0].TransactionID.String(), []byte(msgs[0].Payload), map[string]string{
					messaging.HeaderEventType:     "TransactionCreated",
					messaging.HeaderCorrelationID: "corr-1",
				}).Return(nil).Once()
				pub.On("Publish", mock.Anything, msgs[1].TransactionID.String(), []byte(msgs[1].Payload), map[string]string{
					messaging.HeaderEventType: "TransactionCreated",
				}).Return(nil).Once()

				repo.On("UpdateStatus", mock.Anything, int64(1), shared.OutboxStatusProcessed).Return(nil).Once()
				repo.On("UpdateStatus", mock.Anything, int64(2), shared.OutboxStatusProcessed).Return(nil).Once()
			},
			expectedClaimed: 2,
		},
		{
			name:     "error getting pending messages",
			messages: func() []*outbox.Message { return nil },
			setupMocks: func(repo *MockOutboxRepo, pub *MockPublisher, msgs []*outbox.Message) {
				repo.On("GetPending", mock.Anything, 10).Return(nil, errors.New("db error")).Once()
			},
			expectedError: "failed to get pending outbox messages",
			rolledBack:    1,
		},
		{
			name:     "no pending messages",
			messages: func() []*outbox.Message { return []*outbox.Message{} },
			setupMocks: func(repo *MockOutboxRepo, pub *MockPublisher, msgs []*outbox.Message) {
				repo.On("GetPending", mock.Anything, 10).Return(msgs, nil).Once()
			},
		},
		{
			name: "publish failure increments attempts and continues",
			messages: func() []*outbox.Message {
				return []*outbox.Message{newTestMessage(1, 0, ""), newTestMessage(2, 0, "")}
			},
			setupMocks: func(repo *MockOutboxRepo, pub *MockPublisher, msgs []*outbox.Message) {
				repo.On("GetPending", mock.Anything, 10).Return(msgs, nil).Once()

				pub.On("Publish", mock.Anything, msgs[0].TransactionID.String(), mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
				repo.On("IncrementAttempts", mock.Anything, int64(1)).Return(1, nil).Once()

				pub.On("Publish", mock.Anything, msgs[1].TransactionID.String(), mock.Anything, mock.Anything).Return(nil).Once()
				repo.On("UpdateStatus", mock.Anything, int64(2), shared.OutboxStatusProcessed).Return(nil).Once()
			},
			expectedClaimed: 2,
		},
		{
			name:     "max retry attempts reached",
			messages: func() []*outbox.Message { return []*outbox.Message{newTestMessage(3, 2, "")} },
			setupMocks: func(repo *MockOutboxRepo, pub *MockPublisher, msgs []*outbox.Message) {
				repo.On("GetPending", mock.Anything, 10).Return(msgs, nil).Once()
				pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
				repo.On("IncrementAttempts", mock.Anything, int64(3)).Return(3, nil).Once()
				repo.On("UpdateStatus", mock.Anything, int64(3), shared.OutboxStatusFailedToPublish).Return(nil).Once()
			},
			expectedClaimed: 1,
		},
		{
			name:     "bookkeeping failure aborts the batch",
			messages: func() []*outbox.Message { return []*outbox.Message{newTestMessage(4, 0, "")} },
			setupMocks: func(repo *MockOutboxRepo, pub *MockPublisher, msgs []*outbox.Message) {
				repo.On("GetPending", mock.Anything, 10).Return(msgs, nil).Once()
				pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
				repo.On("UpdateStatus", mock.Anything, int64(4), shared.OutboxStatusProcessed).Return(errors.New("conn lost")).Once()
			},
			expectedClaimed: 1,
			expectedError:   "failed to mark outbox message 4 as processed",
			rolledBack:      1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockOutboxRepo{}
			pub := &MockPublisher{}
			db := &fakeTxRunner{}
			dispatcher := NewDispatcher(cfg, db, repo, pub, logger)

			tt.setupMocks(repo, pub, tt.messages())

			claimed, err := dispatcher.dispatchPending(context.Background())

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedClaimed, claimed)
			assert.Equal(t, tt.rolledBack, db.rolledBack)

			repo.AssertExpectations(t)
			pub.AssertExpectations(t)
		})
	}
}

func TestDispatcher_NotifyNeverBlocks(t *testing.T) {
	dispatcher := NewDispatcher(&config.OutboxConfig{PollingInterval: time.Hour, BatchSize: 1, MaxRetryAttempts: 1},
		&fakeTxRunner{}, &MockOutboxRepo{}, &MockPublisher{}, slog.Default())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			dispatcher.Notify()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked")
	}
}

func TestDispatcher_StartWakesOnNotify(t *testing.T) {
	repo := &MockOutboxRepo{}
	pub := &MockPublisher{}
	cfg := &config.OutboxConfig{PollingInterval: time.Hour, BatchSize: 10, MaxRetryAttempts: 3}
	dispatcher := NewDispatcher(cfg, &fakeTxRunner{}, repo, pub, slog.Default())

	polled := make(chan struct{}, 1)
	repo.On("GetPending", mock.Anything, 10).
		Run(func(args mock.Arguments) {
			select {
			case polled <- struct{}{}:
			default:
			}
		}).
		Return([]*outbox.Message{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		dispatcher.Start(ctx)
		close(stopped)
	}()

	dispatcher.Notify()

	select {
	case <-polled:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not poll after Notify")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop after cancellation")
	}
}
