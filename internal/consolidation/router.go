// Package consolidation wires the worker's read-only HTTP surface.
package consolidation

import (
	"log/slog"

	"github.com/cashflow-consolidation/internal/consolidation/handler"
	"github.com/cashflow-consolidation/internal/platform/httpserver"
	"github.com/gin-gonic/gin"
)

// NewRouter configures the summary and dead-letter routes on top of the shared engine
func NewRouter(
	logger *slog.Logger,
	env string,
	summaryHandler *handler.SummaryHandler,
	deadLetterHandler *handler.DeadLetterHandler,
) *gin.Engine {
	r := httpserver.NewEngine(logger, env)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/daily-summary", summaryHandler.GetByDate)
		v1.GET("/dead-letters", deadLetterHandler.List)
	}

	return r
}
