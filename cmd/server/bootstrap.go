package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/estatevest/platform/internal/api"
	"github.com/estatevest/platform/internal/app"
	"github.com/estatevest/platform/internal/app/maintenance"
	iauth "github.com/estatevest/platform/internal/auth"
	"github.com/estatevest/platform/internal/cache"
	"github.com/estatevest/platform/internal/database"
	"github.com/estatevest/platform/internal/events"
	"github.com/estatevest/platform/internal/monitoring"
	"github.com/estatevest/platform/internal/monitoring/checks"
	"github.com/estatevest/platform/internal/realtime"
	"github.com/estatevest/platform/internal/services"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB            *gorm.DB
	Redis         redis.UniversalClient
	Hub           *realtime.Hub
	Relay         *realtime.RedisRelay
	Events        events.Publisher
	Notifications *services.NotificationService
	Global        *services.GlobalNotificationService
	Cleaner       *maintenance.Cleaner
	RateStore     cache.Store
	Health        *monitoring.HealthManager
	Router        *gin.Engine
}

// bootstrapRuntime initialises the database, caches, realtime fan-out, services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg, log)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisClient(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed operations", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	switch {
	case strings.EqualFold(cfg.Server.RateLimit.Store, "memory"):
		stack.RateStore = cache.NewMemoryStore()
	case stack.Redis != nil:
		stack.RateStore = cache.NewRedisStore(stack.Redis, cfg.Cache.Redis.KeyPrefix)
	default:
		stack.RateStore = dbStore
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	var opts []services.Option
	if cfg.Notifications.Realtime.Enabled {
		stack.Hub = realtime.NewHub()
		var broadcaster realtime.Broadcaster = stack.Hub
		if stack.Redis != nil {
			stack.Relay, err = realtime.NewRedisRelay(stack.Redis, cfg.Notifications.Realtime.RelayChannel, stack.Hub)
			if err != nil {
				return nil, fmt.Errorf("initialise realtime relay: %w", err)
			}
			if err := stack.Relay.Start(ctx); err != nil {
				return nil, fmt.Errorf("start realtime relay: %w", err)
			}
			broadcaster = stack.Relay
		}
		opts = append(opts, services.WithRealtime(broadcaster))
	}

	stack.Events, err = events.New(cfg.Events.PublisherConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise event publisher: %w", err)
	}
	opts = append(opts, services.WithEvents(stack.Events))

	directory, err := services.NewUserDirectory(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise user directory: %w", err)
	}

	globalCfg, err := cfg.Notifications.GlobalNotificationConfig()
	if err != nil {
		return nil, err
	}

	stack.Global, err = services.NewGlobalNotificationService(stack.DB, directory, globalCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise global notification service: %w", err)
	}

	stack.Notifications, err = services.NewNotificationService(stack.DB, stack.Global, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}

	stack.Cleaner = maintenance.NewCleaner(stack.Global,
		maintenance.WithSchedule(cfg.Maintenance.Schedule),
		maintenance.WithCacheStore(dbStore),
	)

	stack.Health = monitoring.NewHealthManager(0)
	stack.Health.RegisterReadiness(checks.Database(stack.DB))
	stack.Health.RegisterReadiness(checks.Redis(stack.Redis, cfg.Cache.Redis.Enabled))
	if stack.Cleaner.Enabled() {
		stack.Health.RegisterReadiness(checks.Maintenance(stack.Cleaner, 0, nil))
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:        cfg,
		DB:            stack.DB,
		JWT:           jwtSvc,
		Hub:           stack.Hub,
		Notifications: stack.Notifications,
		Global:        stack.Global,
		Directory:     directory,
		RateStore:     stack.RateStore,
		Health:        stack.Health,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs and releases resources in reverse start order.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
	}

	var errs error
	if s.Relay != nil {
		errs = multierr.Append(errs, s.Relay.Stop())
	}
	if s.Events != nil {
		errs = multierr.Append(errs, s.Events.Close())
	}
	if s.Redis != nil {
		errs = multierr.Append(errs, s.Redis.Close())
	}
	if s.DB != nil {
		errs = multierr.Append(errs, database.Close(s.DB))
	}

	for _, err := range multierr.Errors(errs) {
		log.Warn("shutdown", zap.Error(err))
	}
}

func initialiseDatabase(cfg *app.Config, log *zap.Logger) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseConnConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log.Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}
