package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Parthmh361/pure-harvest/internal/handlers"
	"github.com/Parthmh361/pure-harvest/internal/middleware"
	"github.com/Parthmh361/pure-harvest/internal/models"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	group := api.Group("/notifications")
	{
		group.GET("", handler.List)
		group.GET("/unread-count", handler.UnreadCount)
		group.POST("/read", handler.MarkRead)
		group.POST("/read-all", handler.MarkAllRead)
		group.DELETE("/:id", handler.Delete)

		group.POST("", middleware.RequireRole(models.RoleAdmin), handler.Create)
		group.POST("/system", middleware.RequireRole(models.RoleAdmin), handler.Broadcast)
	}
}
