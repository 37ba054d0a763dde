package tasks

import (
	"context"
	"errors"
)

// newRateLimitSweepTask drops limiter records whose events have all left
// their window, keeping memory bounded by recently active users.
func newRateLimitSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "ratelimit_sweep")

	return func(ctx context.Context) error {
		if deps.Limiter == nil {
			return errors.New("rate limiter not configured")
		}

		removed := deps.Limiter.Sweep()
		if deps.Metrics != nil {
			deps.Metrics.AddSweepRemoved(removed)
		}
		log.DebugContext(ctx, "Rate limit sweep finished", "removed", removed, "remaining", deps.Limiter.Len())
		return nil
	}
}
