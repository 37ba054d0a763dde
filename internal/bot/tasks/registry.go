package tasks

import (
	"context"

	"github.com/edgard/relaybot/internal/config"
)

// ScheduledTaskFunc defines the standard signature for all scheduled tasks.
// The context provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks initializes and returns a map of all registered scheduled tasks.
// The keys match the task names in the scheduler section of the config.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		config.TaskSQLMaintenance:   newSQLMaintenanceTask(deps),
		config.TaskRateLimitSweep:   newRateLimitSweepTask(deps),
		config.TaskPollExpiry:       newPollExpiryTask(deps),
		config.TaskReminderDelivery: newReminderDeliveryTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
