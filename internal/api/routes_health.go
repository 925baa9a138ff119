package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/estatevest/platform/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, manager *monitoring.HealthManager) {
	if manager == nil {
		return
	}

	registerHealthEndpoints(r, manager)
	registerHealthEndpoints(r.Group("/api"), manager)
}

func registerHealthEndpoints(router gin.IRouter, manager *monitoring.HealthManager) {
	router.GET("/health", func(c *gin.Context) {
		writeHealthReport(c, manager.EvaluateReadiness(c.Request.Context()), false)
	})

	router.GET("/health/live", func(c *gin.Context) {
		writeHealthReport(c, manager.EvaluateLiveness(c.Request.Context()), true)
	})

	router.GET("/health/ready", func(c *gin.Context) {
		writeHealthReport(c, manager.EvaluateReadiness(c.Request.Context()), true)
	})
}

// writeHealthReport maps down to 503. Degraded dependencies still serve traffic.
func writeHealthReport(c *gin.Context, report monitoring.HealthReport, detailed bool) {
	status := http.StatusOK
	if report.Status == monitoring.StatusDown {
		status = http.StatusServiceUnavailable
	}

	body := gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checked_at": report.CheckedAt,
	}
	if detailed {
		body["checks"] = report.Checks
	}
	c.JSON(status, body)
}
