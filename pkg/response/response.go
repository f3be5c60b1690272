// Package response writes the JSON envelope shared by every API endpoint:
// {"success": bool, "data": ..., "error": {...}, "meta": {...}}.
package response

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/Parthmh361/pure-harvest/pkg/errors"
	"github.com/Parthmh361/pure-harvest/pkg/logger"
)

// RequestIDKey is the gin context key holding the request ID echoed in errors.
const RequestIDKey = "requestID"

type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Meta carries pagination for list endpoints. UnreadCount is the caller's
// unread total, independent of the page.
type Meta struct {
	Page        int   `json:"page,omitempty"`
	PerPage     int   `json:"per_page,omitempty"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"total_pages"`
	HasMore     bool  `json:"has_more"`
	UnreadCount int64 `json:"unread_count"`
}

func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Response{Success: true, Data: data})
}

func SuccessWithMeta(c *gin.Context, statusCode int, data any, meta *Meta) {
	c.JSON(statusCode, Response{Success: true, Data: data, Meta: meta})
}

// Error renders err through ErrorWithDetails.
func Error(c *gin.Context, err error) {
	ErrorWithDetails(c, err, nil)
}

// ErrorWithDetails renders err as an error envelope. Errors without an
// AppError in their chain become a 500, and the cause of any 5xx is logged
// since it never reaches the client.
func ErrorWithDetails(c *gin.Context, err error, details any) {
	appErr := appErrors.FromError(err)
	if appErr == nil {
		appErr = appErrors.ErrInternalServer
	}
	status := appErr.Status()
	requestID := c.GetString(RequestIDKey)

	if status >= 500 && appErr.Internal != nil {
		logger.WithModule("http").Error("request failed",
			zap.String("request_id", requestID),
			zap.String("code", appErr.Code),
			zap.Error(appErr.Internal),
		)
	}
	if appErr.Internal != nil {
		_ = c.Error(appErr.Internal)
	}

	c.JSON(status, Response{
		Error: &ErrorInfo{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Details:   details,
			RequestID: requestID,
		},
	})
}
