package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/estatevest/platform/internal/app"
	iauth "github.com/estatevest/platform/internal/auth"
	"github.com/estatevest/platform/internal/cache"
	"github.com/estatevest/platform/internal/handlers"
	"github.com/estatevest/platform/internal/middleware"
	"github.com/estatevest/platform/internal/monitoring"
	"github.com/estatevest/platform/internal/monitoring/checks"
	"github.com/estatevest/platform/internal/realtime"
	"github.com/estatevest/platform/internal/services"
)

// Dependencies bundles the collaborators the router wires into handlers.
type Dependencies struct {
	Config        *app.Config
	DB            *gorm.DB
	JWT           *iauth.JWTService
	Hub           *realtime.Hub
	Notifications *services.NotificationService
	Global        *services.GlobalNotificationService
	Directory     services.UserDirectory
	RateStore     cache.Store
	Health        *monitoring.HealthManager
}

func (d Dependencies) validate() error {
	switch {
	case d.Config == nil:
		return fmt.Errorf("config must be provided")
	case d.DB == nil:
		return fmt.Errorf("database handle must be provided")
	case d.JWT == nil:
		return fmt.Errorf("jwt service must be provided")
	case d.Notifications == nil || d.Global == nil:
		return fmt.Errorf("notification services must be provided")
	case d.Directory == nil:
		return fmt.Errorf("user directory must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers the notification routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	health := deps.Health
	if health == nil {
		health = monitoring.NewHealthManager(0)
		health.RegisterReadiness(checks.Database(deps.DB))
	}
	registerHealthRoutes(r, health)
	registerMonitoringRoutes(r, deps.Config)

	if deps.Hub != nil {
		registerRealtimeRoutes(r, handlers.NewRealtimeHandler(deps.Hub, deps.JWT))
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))
	// Limits run after Auth so callers are keyed by user id.
	if deps.RateStore != nil {
		limits := deps.Config.Server.RateLimit
		api.Use(middleware.RateLimit(deps.RateStore, limits.Requests, limits.Window))
	}

	registerNotificationRoutes(api, handlers.NewNotificationHandler(deps.Notifications, deps.Directory))
	registerGlobalNotificationRoutes(api, handlers.NewGlobalNotificationHandler(deps.Global))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
