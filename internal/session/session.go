// Package session keeps the most recently detected topic per user.
//
// A Store is built once at startup by Open. Open tries the durable backend
// named by the configured URL and, if it cannot be reached, permanently
// switches to a process-local map. Callers see the same Get/Set contract
// either way.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/edgard/happybot/internal/topic"
)

const keyPrefix = "context:"

const connectTimeout = 5 * time.Second

// Backend is a string key/value store with atomic per-key Get and Set.
type Backend interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
	Close() error
	// Name identifies the backend in logs and health output.
	Name() string
}

// Store maps user ids to topic labels on top of a Backend.
type Store struct {
	backend Backend
	logger  *slog.Logger
}

// NewStore wraps an already connected backend.
func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{backend: backend, logger: logger.With("component", "session_store", "backend", backend.Name())}
}

// Open selects the backend for rawURL. Supported schemes are redis, rediss
// and sqlite; an empty URL selects the in-memory backend. If the durable
// backend cannot be opened or pinged the in-memory backend is used instead
// and the failure is only logged.
func Open(ctx context.Context, rawURL string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "session_store")

	if strings.TrimSpace(rawURL) == "" {
		log.Info("No session store URL configured, using in-memory sessions")
		return NewStore(NewMemoryBackend(), logger)
	}

	backend, err := openDurable(ctx, rawURL, logger)
	if err != nil {
		log.Warn("Session store unavailable, falling back to in-memory sessions", "error", err)
		return NewStore(NewMemoryBackend(), logger)
	}

	log.Info("Session store connected", "backend", backend.Name())
	return NewStore(backend, logger)
}

func openDurable(ctx context.Context, rawURL string, logger *slog.Logger) (Backend, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	var (
		backend Backend
		err     error
	)
	switch {
	case strings.HasPrefix(rawURL, "redis://"), strings.HasPrefix(rawURL, "rediss://"):
		backend, err = NewRedisBackend(rawURL)
	case strings.HasPrefix(rawURL, "sqlite://"):
		backend, err = NewSQLiteBackend(strings.TrimPrefix(rawURL, "sqlite://"), logger)
	default:
		return nil, fmt.Errorf("unsupported session store URL scheme: %q", rawURL)
	}
	if err != nil {
		return nil, err
	}

	if err := backend.Ping(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("ping %s session store: %w", backend.Name(), err)
	}
	return backend, nil
}

// Key returns the backend key used for userID.
func Key(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}

// Get returns the stored topic for userID, or topic.Default when there is
// none or the backend fails.
func (s *Store) Get(ctx context.Context, userID int64) topic.Label {
	v, ok, err := s.backend.Get(ctx, Key(userID))
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read session, using default topic", "user_id", userID, "error", err)
		return topic.Default
	}
	if !ok {
		return topic.Default
	}
	label, valid := topic.ParseLabel(v)
	if !valid {
		s.logger.WarnContext(ctx, "Stored session has unknown topic, using default", "user_id", userID, "value", v)
		return topic.Default
	}
	return label
}

// Set overwrites the topic stored for userID.
func (s *Store) Set(ctx context.Context, userID int64, label topic.Label) error {
	if err := s.backend.Set(ctx, Key(userID), string(label)); err != nil {
		return fmt.Errorf("store session for user %d: %w", userID, err)
	}
	s.logger.DebugContext(ctx, "Session updated", "user_id", userID, "topic", label)
	return nil
}

// Ping checks the backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// BackendName reports which backend was selected at startup.
func (s *Store) BackendName() string {
	return s.backend.Name()
}

// Backend exposes the selected backend, mainly so maintenance tasks can reach
// the sqlite store.
func (s *Store) Backend() Backend {
	return s.backend
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
