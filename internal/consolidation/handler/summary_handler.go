package handler

import (
	"errors"
	"log/slog"

	"github.com/cashflow-consolidation/internal/consolidation/service"
	"github.com/cashflow-consolidation/internal/domain/shared"
	"github.com/cashflow-consolidation/internal/domain/summary"
	"github.com/cashflow-consolidation/internal/platform/httpserver/response"
	"github.com/gin-gonic/gin"
)

// SummaryHandler serves consolidated daily summaries
type SummaryHandler struct {
	consolidationService service.ConsolidationService
	logger               *slog.Logger
}

func NewSummaryHandler(logger *slog.Logger, consolidationService service.ConsolidationService) *SummaryHandler {
	return &SummaryHandler{
		consolidationService: consolidationService,
		logger:               logger,
	}
}

// GetByDate returns the summary of ?date=YYYY-MM-DD, or 404 when nothing was recorded that day
func (h *SummaryHandler) GetByDate(c *gin.Context) {
	var query SummaryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondBadRequest(c, "date query parameter is required")
		return
	}

	date, err := shared.ParseDate(query.Date)
	if err != nil {
		h.logger.Warn("Invalid summary date", "date", query.Date, "error", err)
		response.RespondBadRequest(c, "Invalid date, expected YYYY-MM-DD")
		return
	}

	ds, err := h.consolidationService.GetDailySummary(c.Request.Context(), date)
	if err != nil {
		if errors.Is(err, summary.ErrSummaryNotFound{}) {
			response.RespondNotFound(c, "No transactions consolidated for "+date.String())
			return
		}
		h.logger.Error("Failed to get daily summary", "date", date.String(), "error", err)
		response.RespondInternalError(c)
		return
	}

	response.RespondOK(c, mapSummaryToResponse(ds))
}
