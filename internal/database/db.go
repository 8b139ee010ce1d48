// Package database provides the SQLite connection, migrations and data access
// layer (Store) behind the durable sqlite session backend.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/happybot/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// Open opens the SQLite file at path, creating its directory if needed, and
// brings the schema up to date.
func Open(path string) (*sqlx.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite database path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", path, err)
	}
	// One writer at a time; the upsert relies on it.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Info("SQLite session database ready", "path", path)
	return db, nil
}

func migrateUp(db *sql.DB) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	target, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("init sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", target)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		return nil
	case err != nil:
		return fmt.Errorf("apply migrations: %w", err)
	}
	slog.Info("Applied session database migrations")
	return nil
}
