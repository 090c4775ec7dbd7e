package handler

import (
	"log/slog"

	"github.com/cashflow-consolidation/internal/domain/shared"
	"github.com/cashflow-consolidation/internal/domain/transaction"
	"github.com/cashflow-consolidation/internal/ledger_api/service"
	"github.com/cashflow-consolidation/internal/platform/httpserver/middleware"
	"github.com/cashflow-consolidation/internal/platform/httpserver/response"
	"github.com/gin-gonic/gin"
)

// TransactionHandler handles HTTP requests for transaction ingestion
type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// Create records a credit or debit and answers 201 once it is durable
func (h *TransactionHandler) Create(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		response.RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	txType, err := shared.ParseTransactionType(req.Type)
	if err != nil {
		response.RespondValidationError(c, (&transaction.ValidationError{Field: "type", Err: err}).Error())
		return
	}

	tx, err := h.transactionService.Submit(c.Request.Context(), service.SubmitCommand{
		Date:          req.Date,
		Type:          txType,
		Amount:        req.Amount,
		Description:   req.Description,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		if transaction.IsValidationError(err) {
			response.RespondValidationError(c, err.Error())
			return
		}
		h.logger.Error("Failed to record transaction", "error", err)
		response.RespondInternalError(c)
		return
	}

	response.RespondCreated(c, mapTransactionToResponse(tx))
}

// List returns the most recently created transactions, newest first
func (h *TransactionHandler) List(c *gin.Context) {
	var params ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.logger.Warn("Invalid listing parameters", "error", err)
		response.RespondBadRequest(c, "Invalid limit parameter")
		return
	}

	limit := service.NormalizeLimit(params.Limit)
	transactions, err := h.transactionService.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list transactions", "limit", limit, "error", err)
		response.RespondInternalError(c)
		return
	}

	out := make([]TransactionResponse, 0, len(transactions))
	for _, tx := range transactions {
		out = append(out, mapTransactionToResponse(tx))
	}
	response.RespondWithList(c, out, len(out), limit)
}

// RequeueFailed resets outbox messages that exhausted their publish attempts
func (h *TransactionHandler) RequeueFailed(c *gin.Context) {
	n, err := h.transactionService.RequeueFailed(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to requeue outbox messages", "error", err)
		response.RespondInternalError(c)
		return
	}
	response.RespondOK(c, RequeueResponse{Requeued: n})
}
