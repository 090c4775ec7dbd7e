package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/cashflow-consolidation/internal/domain/shared"
	"github.com/cashflow-consolidation/internal/domain/transaction"
	"github.com/cashflow-consolidation/internal/ledger_api/service"
	"github.com/cashflow-consolidation/internal/platform/httpserver/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) Submit(ctx context.Context, cmd service.SubmitCommand) (*transaction.Transaction, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionService) ListRecent(ctx context.Context, limit int) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionService) RequeueFailed(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	CorrelationID string `json:"correlation_id"`
	Meta          *struct {
		Count int `json:"count"`
		Limit int `json:"limit"`
	} `json:"meta"`
}

func newTestRouter(h *TransactionHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CorrelationID())
	r.POST("/transactions", h.Create)
	r.GET("/transactions", h.List)
	r.POST("/outbox/requeue-failed", h.RequeueFailed)
	return r
}

func perform(r http.Handler, method, path string, body []byte) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.CorrelationIDHeader, "corr-42")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	var env envelope
	_ = json.Unmarshal(rr.Body.Bytes(), &env)
	return rr, env
}

func sampleTransaction() *transaction.Transaction {
	desc := "sale"
	return &transaction.Transaction{
		ID:          uuid.New(),
		CreatedAt:   time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
		Date:        mustDate("2024-01-05"),
		Type:        shared.TransactionTypeCredit,
		Amount:      decimal.RequireFromString("100.25"),
		Description: &desc,
	}
}

func TestTransactionHandler_Create(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockTransactionService)
		r := newTestRouter(NewTransactionHandler(logger, mockService))
		tx := sampleTransaction()

		mockService.On("Submit", mock.Anything, mock.MatchedBy(func(cmd service.SubmitCommand) bool {
			return cmd.Type == shared.TransactionTypeCredit &&
				cmd.Amount.Equal(decimal.RequireFromString("100.25")) &&
				cmd.Date.String() == "2024-01-05" &&
				cmd.Description != nil && *cmd.Description == "sale" &&
				cmd.CorrelationID == "corr-42"
		})).Return(tx, nil).Once()

		rr, env := perform(r, http.MethodPost, "/transactions",
			[]byte(`{"date":"2024-01-05","type":"credit","amount":"100.25","description":"sale"}`))

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "corr-42", env.CorrelationID)

		var data TransactionResponse
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, tx.ID.String(), data.ID)
		assert.Equal(t, "2024-01-05", data.Date)
		assert.Equal(t, "CREDIT", data.Type)
		assert.Equal(t, "100.25", data.Amount)
		mockService.AssertExpectations(t)
	})

	t.Run("NumericAmountAccepted", func(t *testing.T) {
		mockService := new(MockTransactionService)
		r := newTestRouter(NewTransactionHandler(logger, mockService))

		mockService.On("Submit", mock.Anything, mock.MatchedBy(func(cmd service.SubmitCommand) bool {
			return cmd.Amount.Equal(decimal.NewFromInt(40)) && cmd.Type == shared.TransactionTypeDebit
		})).Return(sampleTransaction(), nil).Once()

		rr, _ := perform(r, http.MethodPost, "/transactions", []byte(`{"date":"2024-01-05","type":"DEBIT","amount":40}`))

		assert.Equal(t, http.StatusCreated, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidRequestBody", func(t *testing.T) {
		mockService := new(MockTransactionService)
		r := newTestRouter(NewTransactionHandler(logger, mockService))

		rr, env := perform(r, http.MethodPost, "/transactions", []byte(`{"invalid`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "BAD_REQUEST", env.Error.Code)
		mockService.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	t.Run("InvalidDate", func(t *testing.T) {
		mockService := new(MockTransactionService)
		r := newTestRouter(NewTransactionHandler(logger, mockService))

		rr, _ := perform(r, http.MethodPost, "/transactions", []byte(`{"date":"tomorrow","type":"CREDIT","amount":"1"}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	t.Run("ValidationError", func(t *testing.T) {
		mockService := new(MockTransactionService)
		r := newTestRouter(NewTransactionHandler(logger, mockService))

		mockService.On("Submit", mock.Anything, mock.Anything).
			Return(nil, &transaction.ValidationError{Field: "amount", Err: shared.ErrInvalidAmount}).Once()

		rr, env := perform(r, http.MethodPost, "/transactions", []byte(`{"date":"2024-01-05","type":"CREDIT","amount":"0"}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		assert.Contains(t, env.Error.Message, "amount")
	})

	t.Run("UnknownTypeRejectedBeforeService", func(t *testing.T) {
		mockService := new(MockTransactionService)
		r := newTestRouter(NewTransactionHandler(logger, mockService))

		rr, env := perform(r, http.MethodPost, "/transactions", []byte(`{"date":"2024-01-05","type":"REFUND","amount":"5"}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		mockService.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	t.Run("PersistenceError", func(t *testing.T) {
		mockService := new(MockTransactionService)
		r := newTestRouter(NewTransactionHandler(logger, mockService))

		mockService.On("Submit", mock.Anything, mock.Anything).
			Return(nil, &service.PersistenceError{Op: "record transaction", Err: errors.New("db down")}).Once()

		rr, env := perform(r, http.MethodPost, "/transactions", []byte(`{"date":"2024-01-05","type":"CREDIT","amount":"5"}`))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "INTERNAL_SERVER_ERROR", env.Error.Code)
		assert.NotContains(t, env.Error.Message, "db down")
	})
}

func TestTransactionHandler_List(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("DefaultLimit", func(t *testing.T) {
		mockService := new(MockTransactionService)
		r := newTestRouter(NewTransactionHandler(logger, mockService))

		txs := []*transaction.Transaction{sampleTransaction(), sampleTransaction()}
		mockService.On("ListRecent", mock.Anything, 100).Return(txs, nil).Once()

		rr, env := perform(r, http.MethodGet, "/transactions", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		require.NotNil(t, env.Meta)
		assert.Equal(t, 2, env.Meta.Count)
		assert.Equal(t, 100, env.Meta.Limit)

		var data []TransactionResponse
		require.NoError(t, json.Unmarshal(env.Data, &data))
		require.Len(t, data, 2)
		assert.Equal(t, txs[0].ID.String(), data[0].ID)
		mockService.AssertExpectations(t)
	})

	t.Run("LimitAboveMaximumIsClamped", func(t *testing.T) {
		mockService := new(MockTransactionService)
		r := newTestRouter(NewTransactionHandler(logger, mockService))

		mockService.On("ListRecent", mock.Anything, 100).Return([]*transaction.Transaction{}, nil).Once()

		rr, env := perform(r, http.MethodGet, "/transactions?limit=500", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, string(env.Data))
		mockService.AssertExpectations(t)
	})

	t.Run("ExplicitLimit", func(t *testing.T) {
		mockService := new(MockTransactionService)
		r := newTestRouter(NewTransactionHandler(logger, mockService))

		mockService.On("ListRecent", mock.Anything, 5).Return([]*transaction.Transaction{}, nil).Once()

		rr, _ := perform(r, http.MethodGet, "/transactions?limit=5", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("NonNumericLimit", func(t *testing.T) {
		mockService := new(MockTransactionService)
		r := newTestRouter(NewTransactionHandler(logger, mockService))

		rr, _ := perform(r, http.MethodGet, "/transactions?limit=abc", nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "ListRecent", mock.Anything, mock.Anything)
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockTransactionService)
		r := newTestRouter(NewTransactionHandler(logger, mockService))

		mockService.On("ListRecent", mock.Anything, 100).Return(nil, errors.New("boom")).Once()

		rr, _ := perform(r, http.MethodGet, "/transactions", nil)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestTransactionHandler_RequeueFailed(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockTransactionService)
		r := newTestRouter(NewTransactionHandler(logger, mockService))

		mockService.On("RequeueFailed", mock.Anything).Return(int64(3), nil).Once()

		rr, env := perform(r, http.MethodPost, "/outbox/requeue-failed", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"requeued":3}`, string(env.Data))
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockTransactionService)
		r := newTestRouter(NewTransactionHandler(logger, mockService))

		mockService.On("RequeueFailed", mock.Anything).Return(int64(0), errors.New("boom")).Once()

		rr, _ := perform(r, http.MethodPost, "/outbox/requeue-failed", nil)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

// mustDate parses a date literal known to be valid
func mustDate(raw string) shared.Date {
	d, err := shared.ParseDate(raw)
	if err != nil {
		panic(err)
	}
	return d
}
