// Package migrations owns the run history schema. Each migration runs in
// its own transaction and is recorded in schema_version, so a failed
// upgrade leaves the database at the last good version.
package migrations

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// Migration is a single versioned schema change.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// All returns every migration in version order.
func All() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "Create runs table",
			Up: `
				CREATE TABLE IF NOT EXISTS runs (
					run_id TEXT PRIMARY KEY,
					status TEXT NOT NULL,
					cancelled INTEGER NOT NULL DEFAULT 0,
					started_at INTEGER NOT NULL,
					ended_at INTEGER NOT NULL,
					elapsed_ns INTEGER NOT NULL DEFAULT 0,
					total_executed INTEGER NOT NULL DEFAULT 0,
					total_success INTEGER NOT NULL DEFAULT 0,
					total_failure INTEGER NOT NULL DEFAULT 0,
					throughput REAL NOT NULL DEFAULT 0,
					min_latency_ns INTEGER NOT NULL DEFAULT 0,
					max_latency_ns INTEGER NOT NULL DEFAULT 0,
					mean_latency_ns INTEGER NOT NULL DEFAULT 0,
					p50_latency_ns INTEGER NOT NULL DEFAULT 0,
					p90_latency_ns INTEGER NOT NULL DEFAULT 0,
					p95_latency_ns INTEGER NOT NULL DEFAULT 0,
					p99_latency_ns INTEGER NOT NULL DEFAULT 0,
					workers_json TEXT NOT NULL DEFAULT '{}'
				);

				CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
			`,
			Down: `
				DROP INDEX IF EXISTS idx_runs_started_at;
				DROP TABLE IF EXISTS runs;
			`,
		},
		{
			Version: 2,
			Name:    "Add error breakdown column",
			Up: `
				ALTER TABLE runs ADD COLUMN errors_json TEXT;
			`,
			Down: `
				ALTER TABLE runs DROP COLUMN errors_json;
			`,
		},
		{
			Version: 3,
			Name:    "Add status index for run listings",
			Up: `
				CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
			`,
			Down: `
				DROP INDEX IF EXISTS idx_runs_status;
			`,
		},
	}
}

// Apply brings the database up to the latest version. Already applied
// migrations are skipped; each pending one runs in its own transaction.
func Apply(db *sql.DB, log *slog.Logger) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create version table: %w", err)
	}

	current, err := CurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range All() {
		if m.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_version (version, name) VALUES (?, ?)",
			m.Version, m.Name,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}

		if log != nil {
			log.Info("applied migration", "version", m.Version, "name", m.Name)
		}
	}

	return nil
}

// CurrentVersion returns the highest applied migration version, 0 for a
// fresh database.
func CurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	return version, nil
}
