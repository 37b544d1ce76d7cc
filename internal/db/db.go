// Package db persists certificate batches and dispatch runs in SQLite.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/certmail/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// FileName is the database file inside the home directory.
const FileName = "certmail.db"

// Init initializes the SQLite database at baseDir/certmail.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.certmail.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	// Pragmas in the connection string apply to every pooled connection
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: batches and dispatch runs
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS batches (
		  id          TEXT PRIMARY KEY,
		  output_dir  TEXT NOT NULL,
		  format      TEXT NOT NULL,
		  count       INTEGER NOT NULL,
		  template    TEXT,
		  created_at  INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_batches_created
		ON batches(created_at DESC);

		CREATE TABLE IF NOT EXISTS dispatch_runs (
		  id            TEXT PRIMARY KEY,
		  batch_id      TEXT,
		  mode          TEXT NOT NULL,
		  transport     TEXT NOT NULL,
		  subject       TEXT NOT NULL,
		  recipients    TEXT NOT NULL,
		  total         INTEGER NOT NULL,
		  sent          INTEGER NOT NULL DEFAULT 0,
		  skipped       INTEGER NOT NULL DEFAULT 0,
		  failed        INTEGER NOT NULL DEFAULT 0,
		  aborted       INTEGER NOT NULL DEFAULT 0,
		  abort_reason  TEXT,
		  started_at    INTEGER NOT NULL,
		  finished_at   INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_dispatch_runs_started
		ON dispatch_runs(started_at DESC);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Migration 1 -> 2: per-row deliveries and unknown/not-attempted counts
	if version < 2 {
		schema := `
		ALTER TABLE dispatch_runs ADD COLUMN unknown INTEGER NOT NULL DEFAULT 0;
		ALTER TABLE dispatch_runs ADD COLUMN not_attempted INTEGER NOT NULL DEFAULT 0;

		CREATE TABLE IF NOT EXISTS deliveries (
		  run_id       TEXT NOT NULL REFERENCES dispatch_runs(id),
		  row          INTEGER NOT NULL,
		  line         INTEGER NOT NULL,
		  name         TEXT NOT NULL,
		  email        TEXT NOT NULL,
		  status       TEXT NOT NULL,
		  reason       TEXT,
		  attachments  TEXT,
		  recorded_at  INTEGER NOT NULL,
		  PRIMARY KEY (run_id, row)
		);

		CREATE INDEX IF NOT EXISTS idx_deliveries_status
		ON deliveries(run_id, status);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := SetUserVersion(db, 2); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
