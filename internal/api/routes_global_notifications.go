package api

import (
	"github.com/gin-gonic/gin"

	"github.com/estatevest/platform/internal/handlers"
	"github.com/estatevest/platform/internal/middleware"
	"github.com/estatevest/platform/internal/models"
)

func registerGlobalNotificationRoutes(api *gin.RouterGroup, handler *handlers.GlobalNotificationHandler) {
	feed := api.Group("/global-notifications")
	{
		feed.GET("/active", handler.Active)
		feed.POST("/view-all", handler.ViewAll)
		feed.POST("/:id/view", handler.View)
		feed.POST("/:id/dismiss", handler.Dismiss)
	}

	admin := api.Group("/admin/global-notifications")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("", handler.List)
		admin.POST("", handler.Create)
		admin.GET("/:id", handler.Get)
		admin.PATCH("/:id", handler.Update)
		admin.DELETE("/:id", handler.Delete)
		admin.GET("/:id/stats", handler.Stats)
		admin.GET("/:id/analytics", handler.Analytics)
	}
}
