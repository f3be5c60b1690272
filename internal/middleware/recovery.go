package middleware

import (
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Parthmh361/pure-harvest/pkg/errors"
	"github.com/Parthmh361/pure-harvest/pkg/logger"
	"github.com/Parthmh361/pure-harvest/pkg/response"
)

// Recovery turns a handler panic into the standard 500 envelope. gin's own
// writer output is discarded; the panic is logged through zap instead.
func Recovery() gin.HandlerFunc {
	log := logger.WithModule("http")

	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		log.Error("handler panic",
			zap.String("request_id", c.GetString(CtxRequestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("route", routeLabel(c)),
			zap.Any("panic", recovered),
			zap.Stack("stack"),
		)
		response.Error(c, errors.ErrInternalServer)
		c.Abort()
	})
}

// NotFoundHandler answers unknown routes with the JSON error envelope.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, errors.NewNotFound(errors.ErrNotFound.Code, fmt.Sprintf("route %s not found", c.Request.URL.Path)))
}
