package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Parthmh361/pure-harvest/pkg/response"
)

func decodeFailure(t *testing.T, w *httptest.ResponseRecorder) *response.ErrorInfo {
	t.Helper()
	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.False(t, payload.Success)
	require.NotNil(t, payload.Error)
	return payload.Error
}

func TestRecoveryConvertsPanicToInternalError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logs := observeLogs(t)

	r := gin.New()
	r.Use(Logger(), Recovery())
	r.POST("/api/notifications", func(c *gin.Context) {
		panic("template exploded")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/notifications", nil)
	req.Header.Set(RequestIDHeader, "req-panic-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	failure := decodeFailure(t, w)
	require.Equal(t, "INTERNAL_SERVER_ERROR", failure.Code)
	require.NotContains(t, failure.Message, "template exploded")

	entries := logs.FilterMessage("handler panic").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "template exploded", fields["panic"])
	require.Equal(t, "req-panic-1", fields["request_id"])

	completed := logs.FilterMessage("request").FilterField(zap.Int("status", http.StatusInternalServerError))
	require.Equal(t, 1, completed.Len())
}

func TestNotFoundHandlerNamesRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.NoRoute(NotFoundHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/unknown", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	failure := decodeFailure(t, w)
	require.Equal(t, "NOT_FOUND", failure.Code)
	require.Contains(t, failure.Message, "/api/unknown")
}
