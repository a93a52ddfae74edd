package consensus

import (
	"fmt"
	"strings"

	"github.com/Veraticus/kvlabel/internal/common"
)

// TemperatureDiff lists how one temperature's key set differs from the
// expected key set.
type TemperatureDiff struct {
	Temperature string   `json:"temperature"`
	Missing     []string `json:"missing,omitempty"`
	Extra       []string `json:"extra,omitempty"`
}

// CompletenessError reports every key-set mismatch across temperatures.
type CompletenessError struct {
	AbsentTemperatures []string          `json:"absent_temperatures,omitempty"`
	Temperatures       []TemperatureDiff `json:"temperatures,omitempty"`
	ExpectedKeys       int               `json:"expected_keys"`
}

func (e *CompletenessError) Error() string {
	var parts []string
	if len(e.AbsentTemperatures) > 0 {
		parts = append(parts, "no labels for "+strings.Join(e.AbsentTemperatures, ", "))
	}
	for _, d := range e.Temperatures {
		parts = append(parts, fmt.Sprintf("%s missing %d extra %d", d.Temperature, len(d.Missing), len(d.Extra)))
	}
	return fmt.Sprintf("%s: %s", common.ErrIncomplete, strings.Join(parts, "; "))
}

func (e *CompletenessError) Unwrap() error { return common.ErrIncomplete }

// UnresolvedLabel is one raw label that matched neither a category nor a synonym.
type UnresolvedLabel struct {
	Temperature string `json:"temperature"`
	Key         string `json:"key"`
	Label       string `json:"label"`
}

// UnknownCategoryError lists every unresolved label in the input.
type UnknownCategoryError struct {
	Labels []UnresolvedLabel `json:"unresolved"`
}

func (e *UnknownCategoryError) Error() string {
	distinct := make(map[string]struct{})
	for _, l := range e.Labels {
		distinct[CanonicalLabel(l.Label)] = struct{}{}
	}
	return fmt.Sprintf("%s: %d samples, %d distinct labels", common.ErrUnknownCategory, len(e.Labels), len(distinct))
}

func (e *UnknownCategoryError) Unwrap() error { return common.ErrUnknownCategory }

// BadScore is one score that is not a number in [0, 1].
type BadScore struct {
	Temperature string `json:"temperature"`
	Key         string `json:"key"`
	Score       string `json:"score"`
}

// InvalidScoreError lists every malformed confidence score in the input.
type InvalidScoreError struct {
	Scores []BadScore `json:"invalid_scores"`
}

func (e *InvalidScoreError) Error() string {
	return fmt.Sprintf("%s: %d samples", common.ErrInvalidScore, len(e.Scores))
}

func (e *InvalidScoreError) Unwrap() error { return common.ErrInvalidScore }
