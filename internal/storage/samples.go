package storage

import (
	"context"
	"fmt"

	"github.com/Veraticus/kvlabel/internal/model"
)

// LoadSamples returns the stored labels for keys at temperature t from
// modelName. Keys with no stored label are absent from the result.
func (s *SQLiteStorage) LoadSamples(ctx context.Context, modelName string, t model.Temperature, keys []string) (model.LabelFile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(modelName, "modelName"); err != nil {
		return nil, err
	}
	if err := validateTemperature(t); err != nil {
		return nil, err
	}

	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}

	// The key list can exceed SQLite's bound parameter limit, so filter here.
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, category, score, explanation
		FROM samples
		WHERE model = ? AND temperature = ?
	`, modelName, t.Label())
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(model.LabelFile)
	for rows.Next() {
		var key string
		var l model.RawLabel
		if err := rows.Scan(&key, &l.Category, &l.Score, &l.Explanation); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		if _, ok := want[key]; ok {
			out[key] = l
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating samples: %w", err)
	}
	return out, nil
}

// SaveSamples stores labels for temperature t from modelName, replacing any
// earlier label for the same key.
func (s *SQLiteStorage) SaveSamples(ctx context.Context, modelName string, t model.Temperature, labels model.LabelFile) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(modelName, "modelName"); err != nil {
		return err
	}
	if err := validateTemperature(t); err != nil {
		return err
	}
	if err := validateLabels(labels); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (key, temperature, model, category, score, explanation)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key, temperature, model) DO UPDATE SET
			category = excluded.category,
			score = excluded.score,
			explanation = excluded.explanation,
			created_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for key, l := range labels {
		if _, err := stmt.ExecContext(ctx, key, t.Label(), modelName, l.Category, l.Score, l.Explanation); err != nil {
			return fmt.Errorf("failed to save sample for %q: %w", key, err)
		}
	}

	return tx.Commit()
}

// SampleCounts returns the number of stored labels per temperature for modelName.
func (s *SQLiteStorage) SampleCounts(ctx context.Context, modelName string) (map[model.Temperature]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT temperature, COUNT(*)
		FROM samples
		WHERE model = ?
		GROUP BY temperature
	`, modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to count samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[model.Temperature]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		t, err := model.ParseTemperature(label)
		if err != nil {
			return nil, fmt.Errorf("stored temperature %q: %w", label, err)
		}
		out[t] = n
	}
	return out, rows.Err()
}

// DeleteSamples removes every stored label for modelName and returns how
// many were removed.
func (s *SQLiteStorage) DeleteSamples(ctx context.Context, modelName string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(modelName, "modelName"); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM samples WHERE model = ?`, modelName)
	if err != nil {
		return 0, fmt.Errorf("failed to delete samples: %w", err)
	}
	return res.RowsAffected()
}
