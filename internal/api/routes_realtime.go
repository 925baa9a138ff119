package api

import (
	"github.com/gin-gonic/gin"

	"github.com/estatevest/platform/internal/handlers"
)

func registerRealtimeRoutes(r *gin.Engine, handler *handlers.RealtimeHandler) {
	if handler == nil {
		return
	}
	r.GET("/ws", handler.Stream)
}
