package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Parthmh361/pure-harvest/internal/handlers"
)

func registerHealthRoutes(r *gin.Engine, checks []handlers.HealthCheck) {
	health := handlers.Health(checks...)
	r.GET("/health", health)
	r.GET("/api/health", health)
}
