package tasks

import (
	"context"
)

// ScheduledTaskFunc is the signature of every scheduled task. The context
// should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns the available tasks keyed by the name used in the
// scheduler.tasks configuration section.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := make(map[string]ScheduledTaskFunc)

	if deps.Store != nil {
		tasks["sql_maintenance"] = newSQLMaintenanceTask(deps)
	}
	if deps.Sessions != nil {
		tasks["session_health"] = newSessionHealthTask(deps)
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
