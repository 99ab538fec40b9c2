package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS runs (
					session_id TEXT PRIMARY KEY,
					phase TEXT NOT NULL,
					started_at DATETIME NOT NULL,
					completed_at DATETIME NOT NULL,
					narrative TEXT NOT NULL DEFAULT '',
					error TEXT,
					quality_score REAL NOT NULL DEFAULT 0,
					completeness REAL NOT NULL DEFAULT 0,
					categorization_rate REAL NOT NULL DEFAULT 0,
					transaction_count INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_runs_started_at ON runs(started_at)`,

				`CREATE TABLE IF NOT EXISTS stage_results (
					session_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					name TEXT NOT NULL,
					status TEXT NOT NULL,
					error TEXT,
					duration_ns INTEGER NOT NULL DEFAULT 0,
					metadata TEXT,
					insights TEXT NOT NULL,
					PRIMARY KEY (session_id, position),
					FOREIGN KEY (session_id) REFERENCES runs(session_id) ON DELETE CASCADE
				)`,

				`CREATE TABLE IF NOT EXISTS categorized_transactions (
					session_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					id TEXT NOT NULL,
					date DATETIME NOT NULL,
					description TEXT NOT NULL,
					amount REAL NOT NULL,
					category TEXT NOT NULL,
					merchant_key TEXT NOT NULL,
					confidence REAL NOT NULL,
					source TEXT NOT NULL,
					PRIMARY KEY (session_id, position),
					FOREIGN KEY (session_id) REFERENCES runs(session_id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_categorized_category ON categorized_transactions(session_id, category)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Add recurring patterns and anomaly flags",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS recurring_patterns (
					session_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					merchant TEXT NOT NULL,
					frequency TEXT NOT NULL DEFAULT '',
					description TEXT NOT NULL,
					confidence REAL NOT NULL,
					mean_amount REAL NOT NULL,
					transaction_count INTEGER NOT NULL,
					is_recurring BOOLEAN NOT NULL,
					PRIMARY KEY (session_id, position),
					FOREIGN KEY (session_id) REFERENCES runs(session_id) ON DELETE CASCADE
				)`,
				`CREATE TABLE IF NOT EXISTS anomaly_flags (
					session_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					transaction_id TEXT NOT NULL,
					merchant TEXT NOT NULL,
					reason TEXT NOT NULL,
					amount REAL NOT NULL,
					z_score REAL NOT NULL,
					confidence REAL NOT NULL,
					PRIMARY KEY (session_id, position),
					FOREIGN KEY (session_id) REFERENCES runs(session_id) ON DELETE CASCADE
				)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Store merchant clusters",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`ALTER TABLE runs ADD COLUMN clusters TEXT`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Debug("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
