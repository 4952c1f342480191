package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wifiticket/guestpass/pkg/response"
)

// Recovery turns a handler panic into a 500 envelope. A panic after the PDF
// body started streaming can only abort the connection.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error("panic recovered",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", rec),
				zap.Bool("response_started", c.Writer.Written()),
				zap.Stack("stack"),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.InternalError(c, "internal server error")
			c.Abort()
		}()
		c.Next()
	}
}
