// Package ledger_api wires the ingestion HTTP surface.
package ledger_api

import (
	"log/slog"

	"github.com/cashflow-consolidation/internal/ledger_api/handler"
	"github.com/cashflow-consolidation/internal/platform/httpserver"
	"github.com/gin-gonic/gin"
)

// NewRouter configures the ingestion API routes on top of the shared engine
func NewRouter(logger *slog.Logger, env string, transactionHandler *handler.TransactionHandler) *gin.Engine {
	r := httpserver.NewEngine(logger, env)

	v1 := r.Group("/api/v1")
	{
		transactions := v1.Group("/transactions")
		{
			transactions.POST("", transactionHandler.Create)
			transactions.GET("", transactionHandler.List)
		}

		v1.POST("/outbox/requeue-failed", transactionHandler.RequeueFailed)
	}

	return r
}
