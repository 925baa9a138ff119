package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/estatevest/platform/internal/app"
)

func registerMonitoringRoutes(r *gin.Engine, cfg *app.Config) {
	if cfg == nil || !cfg.Monitoring.Prometheus.Enabled {
		return
	}

	endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}

	r.GET(endpoint, gin.WrapH(promhttp.Handler()))
}
