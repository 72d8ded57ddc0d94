package sqlite

import (
	"database/sql"
	"fmt"
)

func migrate(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Runs
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS runs(
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			domain TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			finished_at TEXT,
			-- status: 'running' | 'ok' | 'failed' | 'interrupted'
			status TEXT NOT NULL DEFAULT 'running',
			error TEXT NOT NULL DEFAULT ''
		);
	`); err != nil {
		return err
	}

	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`); err != nil {
		return err
	}

	// Steps, one row per executed or skipped step
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS run_steps(
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY(run_id, seq),
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		);
	`); err != nil {
		return err
	}

	// Generated files and their render hashes
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS artifacts(
			run_id TEXT NOT NULL,
			path TEXT NOT NULL,
			sha256 TEXT NOT NULL,
			changed INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY(run_id, path),
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		);
	`); err != nil {
		return err
	}

	return tx.Commit()
}
