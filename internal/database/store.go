package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the database operations used by the sqlite session backend
// and the maintenance task. Methods accept context.Context for cancellation
// and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// GetSession retrieves a session by key. Returns nil, nil if not found.
	GetSession(ctx context.Context, key string) (*Session, error)

	// SaveSession inserts or replaces the session for session.Key.
	SaveSession(ctx context.Context, session *Session) error

	// CountSessions returns the number of stored sessions.
	CountSessions(ctx context.Context) (int, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) GetSession(ctx context.Context, key string) (*Session, error) {
	if key == "" {
		return nil, fmt.Errorf("session key cannot be empty")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var session Session
	err := s.db.GetContext(ctx, &session,
		`SELECT key, topic, created_at, updated_at FROM sessions WHERE key = ?`, key)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No session found", "key", key)
		return nil, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching session", "key", key, "error", err)
		return nil, err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting session", "key", key, "error", err)
		return nil, fmt.Errorf("failed to get session %q: %w", key, err)
	}

	return &session, nil
}

// SaveSession upserts in a single statement so that concurrent writers for
// the same key never observe a half-written row.
func (s *sqlxStore) SaveSession(ctx context.Context, session *Session) error {
	if session == nil {
		return fmt.Errorf("cannot save nil session")
	}
	if session.Key == "" {
		return fmt.Errorf("session must have a non-empty key")
	}
	if session.Topic == "" {
		return fmt.Errorf("session must have a non-empty topic")
	}

	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	query := `
        INSERT INTO sessions (key, topic, created_at, updated_at)
        VALUES (:key, :topic, :created_at, :updated_at)
        ON CONFLICT(key) DO UPDATE SET
            topic = excluded.topic,
            updated_at = excluded.updated_at;
    `
	if _, err := s.db.NamedExecContext(ctx, query, session); err != nil {
		s.logger.ErrorContext(ctx, "Error saving session", "key", session.Key, "error", err)
		return fmt.Errorf("failed to save session %q: %w", session.Key, err)
	}

	s.logger.DebugContext(ctx, "Session saved", "key", session.Key, "topic", session.Topic)
	return nil
}

func (s *sqlxStore) CountSessions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sessions`); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// RunSQLMaintenance runs VACUUM followed by PRAGMA optimize. VACUUM cannot run
// inside a transaction.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")
	startTime := time.Now()

	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		s.logger.WarnContext(ctx, "Failed to set busy timeout", "error", err)
	}

	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		s.logger.ErrorContext(ctx, "VACUUM failed", "error", err)
		return fmt.Errorf("failed to vacuum database: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		s.logger.WarnContext(ctx, "PRAGMA optimize failed", "error", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance completed", "duration", time.Since(startTime))
	return nil
}

func (s *sqlxStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite database: %w", err)
	}
	return nil
}
