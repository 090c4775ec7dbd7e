package handler

import (
	"log/slog"

	"github.com/cashflow-consolidation/internal/consolidation/service"
	"github.com/cashflow-consolidation/internal/platform/httpserver/response"
	"github.com/gin-gonic/gin"
)

// DeadLetterHandler exposes archived dead letters to operators
type DeadLetterHandler struct {
	deadLetterService service.DeadLetterService
	logger            *slog.Logger
}

func NewDeadLetterHandler(logger *slog.Logger, deadLetterService service.DeadLetterService) *DeadLetterHandler {
	return &DeadLetterHandler{
		deadLetterService: deadLetterService,
		logger:            logger,
	}
}

func (h *DeadLetterHandler) List(c *gin.Context) {
	var query DeadLetterQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondBadRequest(c, "Invalid limit parameter")
		return
	}

	records, err := h.deadLetterService.ListDeadLetters(c.Request.Context(), query.Limit)
	if err != nil {
		h.logger.Error("Failed to list dead letters", "error", err)
		response.RespondInternalError(c)
		return
	}

	out := make([]DeadLetterResponse, 0, len(records))
	for _, r := range records {
		out = append(out, mapDeadLetterToResponse(r))
	}
	response.RespondOK(c, out)
}
