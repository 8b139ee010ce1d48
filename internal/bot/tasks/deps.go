// Package tasks implements the scheduled maintenance tasks of HappyBot.
package tasks

import (
	"context"
	"log/slog"

	"github.com/edgard/happybot/internal/database"
)

// SessionPinger is the part of the session store the health task needs.
type SessionPinger interface {
	Ping(ctx context.Context) error
	BackendName() string
}

// TaskDeps contains the dependencies of scheduled tasks. Store is nil unless
// sessions are kept in SQLite.
type TaskDeps struct {
	Logger   *slog.Logger
	Store    database.Store
	Sessions SessionPinger
}
