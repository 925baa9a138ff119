package api

import (
	"github.com/gin-gonic/gin"

	"github.com/estatevest/platform/internal/handlers"
	"github.com/estatevest/platform/internal/middleware"
	"github.com/estatevest/platform/internal/models"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	group := api.Group("/notifications")
	{
		group.GET("", handler.List)
		group.GET("/unread-count", handler.UnreadCount)
		group.POST("/read-all", handler.MarkAllRead)
		group.POST("/:id/read", handler.MarkRead)

		group.POST("", middleware.RequireRole(models.RoleAdmin), handler.Send)
	}
}
