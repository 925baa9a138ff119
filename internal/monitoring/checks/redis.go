package checks

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/estatevest/platform/internal/monitoring"
)

// Redis returns a readiness probe for the shared cache and realtime relay.
// When Redis is configured but the client could not be created, the instance
// runs on database fallbacks and the probe reports degraded.
func Redis(client redis.UniversalClient, enabled bool) monitoring.Check {
	return monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		switch {
		case !enabled:
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "redis disabled"}
		case client == nil:
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "redis unavailable; using database fallback"}
		}
		return monitoring.ResultFromError("redis", client.Ping(ctx).Err(), time.Since(start))
	})
}
