package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/edgard/relaybot/internal/config"
)

// reminderRetention is how long delivered, failed and cancelled reminders
// are kept before maintenance deletes them.
const reminderRetention = 30 * 24 * time.Hour

// newSQLMaintenanceTask purges finished reminders and then compacts the
// database file.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", config.TaskSQLMaintenance)

	return func(ctx context.Context) error {
		clock := deps.clock()
		started := clock.Now()

		purged, err := deps.Store.PurgeReminders(ctx, started.Add(-reminderRetention))
		if err != nil {
			log.ErrorContext(ctx, "Reminder purge failed", "error", err)
			return fmt.Errorf("%s: purge reminders: %w", config.TaskSQLMaintenance, err)
		}

		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "Database compaction failed", "error", err, "elapsed", clock.Since(started))
			return fmt.Errorf("%s: vacuum: %w", config.TaskSQLMaintenance, err)
		}

		log.InfoContext(ctx, "Database maintenance done", "reminders_purged", purged, "elapsed", clock.Since(started))
		return nil
	}
}
