package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edgard/happybot/internal/database"
)

// SQLiteBackend stores sessions in the sessions table of a local SQLite file.
type SQLiteBackend struct {
	store database.Store
}

// NewSQLiteBackend opens (and migrates) the database at path.
func NewSQLiteBackend(path string, logger *slog.Logger) (*SQLiteBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite session store path is empty")
	}
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteBackend{store: database.NewStore(db, logger)}, nil
}

// NewSQLiteBackendFromStore wraps an existing database store.
func NewSQLiteBackendFromStore(store database.Store) *SQLiteBackend {
	return &SQLiteBackend{store: store}
}

func (s *SQLiteBackend) Get(ctx context.Context, key string) (string, bool, error) {
	sess, err := s.store.GetSession(ctx, key)
	if err != nil {
		return "", false, err
	}
	if sess == nil {
		return "", false, nil
	}
	return sess.Topic, true, nil
}

func (s *SQLiteBackend) Set(ctx context.Context, key, value string) error {
	return s.store.SaveSession(ctx, &database.Session{Key: key, Topic: value})
}

func (s *SQLiteBackend) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

func (s *SQLiteBackend) Close() error { return s.store.Close() }

func (s *SQLiteBackend) Name() string { return "sqlite" }

// Store exposes the underlying database store for maintenance.
func (s *SQLiteBackend) Store() database.Store { return s.store }
