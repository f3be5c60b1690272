package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Parthmh361/pure-harvest/internal/handlers"
	"github.com/Parthmh361/pure-harvest/internal/middleware"
	"github.com/Parthmh361/pure-harvest/internal/models"
)

// Marketplace services report order and product lifecycle changes here.
func registerEventRoutes(api *gin.RouterGroup, handler *handlers.EventHandler) {
	group := api.Group("/events", middleware.RequireRole(models.RoleAdmin))
	{
		group.POST("", handler.Ingest)
		group.POST("/orders", handler.Orders)
		group.POST("/products", handler.Products)
	}
}
