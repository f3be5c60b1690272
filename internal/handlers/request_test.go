package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Parthmh361/pure-harvest/internal/middleware"
	appValidator "github.com/Parthmh361/pure-harvest/pkg/validator"
)

func TestFormatValidationError(t *testing.T) {
	err := appValidator.ValidationErrors{
		{Field: "recipient_id", Tag: "required"},
		{Field: "ids", Tag: "min", Param: "1"},
		{Field: "message", Tag: "max", Param: "2000"},
		{Field: "rating", Tag: "gte", Param: "1"},
		{Field: "email", Tag: "email"},
		{Field: "action_url", Tag: "action_url"},
	}

	require.Equal(t,
		"recipient id is required; ids must have at least 1 entries; message must be at most 2000 long; "+
			"rating is out of range (gte 1); email failed validation: email; action url must be a path or an http(s) link",
		formatValidationError(err),
	)
	require.Equal(t, "invalid request payload", formatValidationError(errors.New("boom")))
}

func TestQueryParam(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=3&limit=abc&unread_only=true&archived=maybe", nil)

	require.Equal(t, 3, queryParam(c, "page", 1, strconv.Atoi))
	require.Equal(t, 20, queryParam(c, "limit", 20, strconv.Atoi))
	require.Equal(t, 7, queryParam(c, "missing", 7, strconv.Atoi))
	require.True(t, queryParam(c, "unread_only", false, strconv.ParseBool))
	require.False(t, queryParam(c, "archived", false, strconv.ParseBool))
}

func TestCurrentUserIDWritesUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	_, ok := currentUserID(c)
	require.False(t, ok)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Set(middleware.CtxUserIDKey, "buyer-1")
	userID, ok := currentUserID(c)
	require.True(t, ok)
	require.Equal(t, "buyer-1", userID)
}
