package consensus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Diagnostic artifact name prefixes.
const (
	MissingKeysPrefix    = "missing_keys"
	UnresolvedPrefix     = "unresolved_categories"
	InvalidScoresPrefix  = "invalid_scores"
	diagnosticTimeLayout = "20060102-150405"
)

type artifact struct {
	body   any
	prefix string
}

// WriteDiagnostics writes one JSON artifact per halting condition found in
// err into dir and returns the written paths. Errors that are not consensus
// integrity failures produce no artifacts.
func WriteDiagnostics(dir string, err error, now time.Time) ([]string, error) {
	if err == nil {
		return nil, nil
	}

	var artifacts []artifact

	var cerr *CompletenessError
	if errors.As(err, &cerr) {
		artifacts = append(artifacts, artifact{prefix: MissingKeysPrefix, body: cerr})
	}
	var uerr *UnknownCategoryError
	if errors.As(err, &uerr) {
		artifacts = append(artifacts, artifact{prefix: UnresolvedPrefix, body: uerr})
	}
	var serr *InvalidScoreError
	if errors.As(err, &serr) {
		artifacts = append(artifacts, artifact{prefix: InvalidScoresPrefix, body: serr})
	}

	if len(artifacts) == 0 {
		return nil, nil
	}

	if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
		return nil, fmt.Errorf("failed to create diagnostics directory: %w", mkErr)
	}

	stamp := now.Format(diagnosticTimeLayout)
	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		data, mErr := json.MarshalIndent(a.body, "", "    ")
		if mErr != nil {
			return paths, fmt.Errorf("failed to encode %s: %w", a.prefix, mErr)
		}
		path := filepath.Join(dir, fmt.Sprintf("%s-%s.json", a.prefix, stamp))
		if wErr := os.WriteFile(path, data, 0o600); wErr != nil {
			return paths, fmt.Errorf("failed to write %s: %w", path, wErr)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
