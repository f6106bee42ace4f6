package persistence

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/cc-sentinel/sentinel/internal/slog"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*
var migrationFiles embed.FS

const schemaVersion uint = 2

// applyMigrations brings db up to schemaVersion, applying any pending
// migrations under migrations/sqlite3. A version ahead of schemaVersion
// means a newer build wrote this file; that is a startup error rather
// than something this process can repair.
func applyMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return err
	}
	src, err := iofs.New(migrationFiles, "migrations/sqlite3")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	v, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return err
	}
	if dirty {
		slog.Warnf("persistence: database left dirty at version %d", v)
	}
	if uint(v) > schemaVersion {
		return fmt.Errorf("persistence: database schema version %d is newer than this build supports (%d)", v, schemaVersion)
	}

	return touchNamespaceBookkeeping(db)
}

// touchNamespaceBookkeeping records that the schema migration just ran,
// in the namespaces metadata table added by 0002_namespaces. This is
// pure bookkeeping — it never changes the logical namespace set the
// object store reads and writes.
func touchNamespaceBookkeeping(db *sql.DB) error {
	_, err := db.Exec(
		`INSERT INTO namespaces (key, updated_at) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET updated_at = excluded.updated_at`,
		"schema", time.Now().Unix(),
	)
	return err
}
