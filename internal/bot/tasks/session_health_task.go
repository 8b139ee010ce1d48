package tasks

import (
	"context"
	"fmt"
	"time"
)

const sessionPingTimeout = 5 * time.Second

// newSessionHealthTask pings the session backend so an outage shows up in
// the logs before users notice lost topics.
func newSessionHealthTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "session_health")

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, sessionPingTimeout)
		defer cancel()

		backend := deps.Sessions.BackendName()
		if err := deps.Sessions.Ping(ctx); err != nil {
			log.WarnContext(ctx, "Session backend ping failed", "backend", backend, "error", err)
			return fmt.Errorf("ping %s session backend: %w", backend, err)
		}
		log.DebugContext(ctx, "Session backend healthy", "backend", backend)
		return nil
	}
}
