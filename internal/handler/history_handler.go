package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wifiticket/guestpass/internal/service"
	"wifiticket/guestpass/pkg/response"
)

type HistoryHandler struct {
	generator service.GeneratorService
	logger    *zap.Logger
}

func NewHistoryHandler(generator service.GeneratorService, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{generator: generator, logger: logger}
}

// Capacity reports how many guest identifiers can still be issued.
func (h *HistoryHandler) Capacity(c *gin.Context) {
	report, err := h.generator.Remaining(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "failed to read identifier history")
		return
	}
	response.Success(c, report)
}
