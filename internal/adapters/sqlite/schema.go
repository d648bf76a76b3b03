package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// currentSchemaVersion is the latest migration applied by migrate.
const currentSchemaVersion = 2

var migrations = map[int][]string{
	1: {
		`CREATE TABLE IF NOT EXISTS samples (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			latitude    REAL    NOT NULL,
			longitude   REAL    NOT NULL,
			captured_at INTEGER NOT NULL,
			synced      INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_unsynced ON samples (synced, id)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	},
	2: {
		`CREATE TRIGGER IF NOT EXISTS samples_immutable
			BEFORE UPDATE OF latitude, longitude, captured_at ON samples
			BEGIN
				SELECT RAISE(ABORT, 'samples are immutable');
			END`,
		`CREATE TRIGGER IF NOT EXISTS samples_synced_monotonic
			BEFORE UPDATE OF synced ON samples
			WHEN OLD.synced = 1 AND NEW.synced = 0
			BEGIN
				SELECT RAISE(ABORT, 'synced cannot be reset');
			END`,
	},
}

// migrate brings the schema up to currentSchemaVersion, one transaction per step.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version    INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return fmt.Errorf("check schema version: %w", err)
	}

	for v := version + 1; v <= currentSchemaVersion; v++ {
		if err := s.applyMigration(ctx, v); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v, err)
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, version int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range migrations[version] {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if err := recordVersion(ctx, tx, version); err != nil {
		return err
	}
	return tx.Commit()
}

func recordVersion(ctx context.Context, tx *sql.Tx, version int) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
		version, time.Now().UTC().Format(time.RFC3339))
	return err
}
