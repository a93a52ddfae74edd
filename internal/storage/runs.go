package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/kvlabel/internal/common"
	"github.com/Veraticus/kvlabel/internal/consensus"
)

// Run is the stored summary of one consensus run.
type Run struct {
	CreatedAt time.Time
	ID        string
	Stats     consensus.Stats
	Threshold float64
}

// RunResult is one stored per-key decision.
type RunResult struct {
	Key         string
	Winner      string
	Group       string
	Explanation string
	MaxScore    float64
	AvgScore    float64
	InMax       bool
	InAvg       bool
}

// SaveRun records a consensus report and returns the new run.
func (s *SQLiteStorage) SaveRun(ctx context.Context, report *consensus.Report) (*Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("%w: report", ErrNilParameter)
	}

	run := &Run{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Threshold: report.Threshold,
		Stats:     report.Stats,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO consensus_runs (id, created_at, threshold, total, max_count, avg_count, both_count, excluded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.CreatedAt, run.Threshold,
		run.Stats.Total, run.Stats.MaxCount, run.Stats.AvgCount, run.Stats.BothCount, run.Stats.Excluded)
	if err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO consensus_results (run_id, key, winner, winner_group, explanation, max_score, avg_score, in_max, in_avg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range report.Results {
		_, inMax := report.MaxLabels[r.Key]
		_, inAvg := report.AvgLabels[r.Key]
		if _, err := stmt.ExecContext(ctx, run.ID, r.Key, r.WinnerLabel, r.WinnerGroup, r.WinnerExplanation,
			r.MaxScore, r.AvgScore, inMax, inAvg); err != nil {
			return nil, fmt.Errorf("failed to save result for %q: %w", r.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first, at most limit of them.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, threshold, total, max_count, avg_count, both_count, excluded
		FROM consensus_runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run by id.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, threshold, total, max_count, avg_count, both_count, excluded
		FROM consensus_runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, common.ErrNotFound)
	}
	return run, err
}

// GetRunResults returns the per-key decisions of a run, sorted by key.
func (s *SQLiteStorage) GetRunResults(ctx context.Context, id string) ([]RunResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, winner, winner_group, explanation, max_score, avg_score, in_max, in_avg
		FROM consensus_results
		WHERE run_id = ?
		ORDER BY key
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []RunResult
	for rows.Next() {
		var r RunResult
		if err := rows.Scan(&r.Key, &r.Winner, &r.Group, &r.Explanation,
			&r.MaxScore, &r.AvgScore, &r.InMax, &r.InAvg); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}
	return results, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.CreatedAt, &run.Threshold,
		&run.Stats.Total, &run.Stats.MaxCount, &run.Stats.AvgCount, &run.Stats.BothCount, &run.Stats.Excluded)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	if run.Stats.Total > 0 {
		run.Stats.MaxCoverage = float64(run.Stats.MaxCount) / float64(run.Stats.Total)
		run.Stats.AvgCoverage = float64(run.Stats.AvgCount) / float64(run.Stats.Total)
	}
	return &run, nil
}
