package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/estatevest/platform/internal/cache"
	"github.com/estatevest/platform/internal/services"
	"github.com/estatevest/platform/pkg/logger"
)

// Cleaner coordinates background maintenance: deactivating expired global
// notifications, pruning view rows left behind by deleted notifications and
// purging expired cache entries.
type Cleaner struct {
	global   *services.GlobalNotificationService
	store    *cache.DatabaseStore
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	schedule string

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSchedule sets the cron specification. Without one, Start is a no-op.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		cleaner.schedule = spec
	}
}

// WithCacheStore enables purging expired rows from the database cache store.
func WithCacheStore(store *cache.DatabaseStore) Option {
	return func(cleaner *Cleaner) {
		cleaner.store = store
	}
}

// NewCleaner constructs a Cleaner. A nil global service skips the notification sweeps.
func NewCleaner(global *services.GlobalNotificationService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		global: global,
		now:    time.Now,
		log:    logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Enabled reports whether a schedule and at least one job are configured.
func (c *Cleaner) Enabled() bool {
	return c.schedule != "" && (c.global != nil || c.store != nil)
}

// Start registers the sweep with the cron scheduler and launches it when enabled.
func (c *Cleaner) Start() error {
	if !c.Enabled() {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("maintenance sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	c.log.Info("maintenance scheduled", zap.String("schedule", c.schedule))
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured sweep sequentially and joins their errors.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.global != nil {
		if _, err := c.global.DeactivateExpired(ctx, c.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
		removed, err := c.global.PruneOrphanViews(ctx)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else if removed > 0 {
			c.log.Info("pruned orphan views", zap.Int64("count", removed))
		}
	}

	if c.store != nil {
		if _, err := c.store.PurgeExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	c.mu.Lock()
	c.lastRun, c.lastErr = c.now(), errs
	c.mu.Unlock()

	return errs
}

// LastRun returns when the most recent sweep finished and its joined error.
func (c *Cleaner) LastRun() (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRun, c.lastErr
}
