package checks

import (
	"context"
	"time"

	"github.com/estatevest/platform/internal/monitoring"
)

// SweepReporter exposes the outcome of the most recent maintenance sweep.
type SweepReporter interface {
	LastRun() (time.Time, error)
}

// Maintenance reports degraded when the last sweep failed or when no sweep
// finished within maxAge. A zero maxAge only checks the last outcome.
func Maintenance(reporter SweepReporter, maxAge time.Duration, now func() time.Time) monitoring.Check {
	if now == nil {
		now = time.Now
	}
	return monitoring.NewCheck("maintenance", func(context.Context) monitoring.ProbeResult {
		if reporter == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "maintenance disabled"}
		}

		at, err := reporter.LastRun()
		switch {
		case err != nil:
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: err.Error()}
		case at.IsZero():
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no sweep yet"}
		case maxAge > 0 && now().Sub(at) > maxAge:
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "last sweep at " + at.UTC().Format(time.RFC3339)}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	})
}
