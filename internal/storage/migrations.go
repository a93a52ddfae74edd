package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Classifier samples",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS samples (
					key TEXT NOT NULL,
					temperature TEXT NOT NULL,
					model TEXT NOT NULL,
					category TEXT NOT NULL,
					score TEXT NOT NULL,
					explanation TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (key, temperature, model)
				)`,
				`CREATE INDEX idx_samples_model_temperature ON samples(model, temperature)`,
			}
			return execAll(tx, queries)
		},
	},
	{
		Version:     2,
		Description: "Consensus runs",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS consensus_runs (
					id TEXT PRIMARY KEY,
					created_at DATETIME NOT NULL,
					threshold REAL NOT NULL,
					total INTEGER NOT NULL,
					max_count INTEGER NOT NULL,
					avg_count INTEGER NOT NULL,
					both_count INTEGER NOT NULL,
					excluded INTEGER NOT NULL
				)`,
				`CREATE INDEX idx_consensus_runs_created ON consensus_runs(created_at)`,

				`CREATE TABLE IF NOT EXISTS consensus_results (
					run_id TEXT NOT NULL,
					key TEXT NOT NULL,
					winner TEXT NOT NULL,
					winner_group TEXT NOT NULL DEFAULT '',
					explanation TEXT NOT NULL DEFAULT '',
					max_score REAL NOT NULL,
					avg_score REAL NOT NULL,
					in_max INTEGER NOT NULL,
					in_avg INTEGER NOT NULL,
					PRIMARY KEY (run_id, key),
					FOREIGN KEY (run_id) REFERENCES consensus_runs(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_consensus_results_winner ON consensus_results(winner)`,
			}
			return execAll(tx, queries)
		},
	},
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
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

		slog.Info("Applied migration",
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
