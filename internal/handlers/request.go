package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Parthmh361/pure-harvest/internal/middleware"
	apperrors "github.com/Parthmh361/pure-harvest/pkg/errors"
	"github.com/Parthmh361/pure-harvest/pkg/response"
	"github.com/Parthmh361/pure-harvest/pkg/validator"
)

// bindAndValidate decodes the JSON body into dest and applies its validate
// tags. On failure the 400 envelope is already written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, apperrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	err := validator.ValidateStruct(dest)
	if err == nil {
		return true
	}
	var failures validator.ValidationErrors
	if errors.As(err, &failures) && len(failures) > 0 {
		response.ErrorWithDetails(c, apperrors.NewBadRequest(formatValidationError(failures)), failures)
	} else {
		response.Error(c, apperrors.NewBadRequest(formatValidationError(err)))
	}
	return false
}

// tag -> message; %[1]s is the field, %[2]s the tag parameter
var validationMessages = map[string]string{
	"required":          "%[1]s is required",
	"notblank":          "%[1]s is required",
	"min":               "%[1]s must have at least %[2]s entries",
	"max":               "%[1]s must be at most %[2]s long",
	"notification_type": "%[1]s must be lower snake case",
	"action_url":        "%[1]s must be a path or an http(s) link",
}

func formatValidationError(err error) string {
	var failures validator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return "invalid request payload"
	}

	parts := make([]string, len(failures))
	for i, failure := range failures {
		parts[i] = describeFailure(failure)
	}
	return strings.Join(parts, "; ")
}

func describeFailure(failure validator.ValidationError) string {
	field := "field"
	if failure.Field != "" {
		field = strings.ToLower(strings.ReplaceAll(failure.Field, "_", " "))
	}

	if format, ok := validationMessages[failure.Tag]; ok {
		return fmt.Sprintf(format, field, failure.Param)
	}
	switch {
	case failure.Tag == "gte" || failure.Tag == "lte":
		return fmt.Sprintf("%s is out of range (%s %s)", field, failure.Tag, failure.Param)
	case failure.Param != "":
		return fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, failure.Tag)
	}
}

// queryParam parses the trimmed query value with parse, returning fallback
// when the key is absent or unparsable.
func queryParam[T any](c *gin.Context, key string, fallback T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	value, err := parse(raw)
	if err != nil {
		return fallback
	}
	return value
}

// currentUserID reads the authenticated user, answering 401 when absent.
func currentUserID(c *gin.Context) (string, bool) {
	if userID := c.GetString(middleware.CtxUserIDKey); userID != "" {
		return userID, true
	}
	response.Error(c, apperrors.ErrUnauthorized)
	return "", false
}

func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}
