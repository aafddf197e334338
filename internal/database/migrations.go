package database

import (
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations contains all SQLite migrations in order. The first one creates
// the schema_version table the others are recorded in.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_schema_version_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER PRIMARY KEY,
				applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
			);
		`,
	},
	{
		Version: 2,
		Name:    "create_jobs_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS jobs (
				id TEXT PRIMARY KEY,
				task_id TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				progress INTEGER NOT NULL DEFAULT 0,
				error TEXT NOT NULL DEFAULT '',
				review_count INTEGER NOT NULL DEFAULT 0,
				known_versions TEXT NOT NULL DEFAULT '[]',
				options TEXT NOT NULL DEFAULT '{}',
				cache_key TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				completed_at TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
			CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
		`,
	},
	{
		Version: 3,
		Name:    "create_job_reviews_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS job_reviews (
				job_id TEXT PRIMARY KEY,
				reviews TEXT NOT NULL,
				FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE
			);
		`,
	},
	{
		Version: 4,
		Name:    "add_result_columns",
		SQL: `
			ALTER TABLE jobs ADD COLUMN result TEXT;
			ALTER TABLE jobs ADD COLUMN narrative TEXT NOT NULL DEFAULT '';
		`,
	},
}

// Migrate runs all pending migrations
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(migrations[0].SQL); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var currentVersion int
	err := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	db.logger.Debug("checked schema version", "version", currentVersion)

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		db.logger.Info("applied migration", "version", migration.Version, "name", migration.Name)
	}

	return nil
}
