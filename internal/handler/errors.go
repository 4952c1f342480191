package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wifiticket/guestpass/internal/service"
	"wifiticket/guestpass/pkg/response"
)

// respondError maps service errors onto the response envelope. fallback is
// the message for errors that carry no client-facing meaning.
func respondError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrInvalidCount):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrPoolExhausted), errors.Is(err, service.ErrPasswordExhausted):
		response.ServiceUnavailable(c, err.Error())
	case errors.Is(err, service.ErrNoDocument):
		response.NotFound(c, "no PDF found, generate a Wi-Fi ticket first")
	case errors.Is(err, service.ErrPrint):
		logger.Error(fallback, zap.Error(err))
		response.InternalError(c, "failed to print PDF: "+err.Error())
	default:
		logger.Error(fallback, zap.Error(err))
		response.InternalError(c, fallback)
	}
	_ = c.Error(err)
}
