package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Parthmh361/pure-harvest/pkg/metrics"
)

// Metrics observes request latency per route pattern and tracks in-flight
// requests. Paths listed in skip (the scrape endpoint) are not observed.
func Metrics(skip ...string) gin.HandlerFunc {
	ignored := make(map[string]struct{}, len(skip))
	for _, path := range skip {
		ignored[path] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := ignored[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		metrics.HTTPInFlight.Inc()
		start := time.Now()
		defer func() {
			metrics.HTTPInFlight.Dec()
			metrics.APILatency.
				WithLabelValues(c.Request.Method, routeLabel(c), strconv.Itoa(c.Writer.Status())).
				Observe(time.Since(start).Seconds())
		}()
		c.Next()
	}
}
