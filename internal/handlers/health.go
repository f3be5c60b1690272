package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Parthmh361/pure-harvest/pkg/errors"
	"github.com/Parthmh361/pure-harvest/pkg/response"
)

const healthCheckTimeout = 3 * time.Second

// HealthCheck probes one dependency, e.g. the database or the broker.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Health reports "ok" when every check passes and 503 otherwise.
func Health(checks ...HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(requestContext(c), healthCheckTimeout)
		defer cancel()

		results := make(map[string]string, len(checks))
		healthy := true
		for _, check := range checks {
			if check.Check == nil {
				continue
			}
			if err := check.Check(ctx); err != nil {
				results[check.Name] = err.Error()
				healthy = false
				continue
			}
			results[check.Name] = "ok"
		}

		if !healthy {
			response.ErrorWithDetails(c, errors.ErrServiceUnavailable, gin.H{"checks": results})
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok", "checks": results})
	}
}
