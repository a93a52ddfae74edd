// Package consensus reconciles the five per-temperature judgments made for
// each key into one final label with max and mean confidence, and partitions
// keys by a confidence threshold.
//
// The engine never guesses: an incomplete key set, an unresolvable label, or
// a malformed score halts the run with an error that enumerates every problem.
package consensus

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/kvlabel/internal/common"
	"github.com/Veraticus/kvlabel/internal/model"
)

// DefaultThreshold is the minimum score for a key to enter a label map.
const DefaultThreshold = 0.8

// Stats summarizes a run.
type Stats struct {
	Total       int     `json:"total"`
	MaxCount    int     `json:"max_count"`
	AvgCount    int     `json:"avg_count"`
	BothCount   int     `json:"both_count"`
	Excluded    int     `json:"excluded"`
	MaxCoverage float64 `json:"max_coverage"`
	AvgCoverage float64 `json:"avg_coverage"`
}

// Report is the output of one consensus run.
type Report struct {
	MaxLabels map[string]string
	AvgLabels map[string]string
	// Results are sorted by key.
	Results   []model.ConsensusResult
	Stats     Stats
	Threshold float64
}

// PerKey returns the results keyed by UniqueKey, the layout of the rich
// per-key output file.
func (r *Report) PerKey() map[string]model.ConsensusResult {
	out := make(map[string]model.ConsensusResult, len(r.Results))
	for _, res := range r.Results {
		out[res.Key] = res
	}
	return out
}

// Engine runs consensus against a fixed vocabulary.
type Engine struct {
	vocab     *Vocabulary
	logger    *slog.Logger
	threshold float64
}

// NewEngine creates an Engine. A non-positive threshold selects DefaultThreshold.
func NewEngine(vocab *Vocabulary, logger *slog.Logger, threshold float64) (*Engine, error) {
	if vocab == nil {
		return nil, fmt.Errorf("%w: vocabulary is required", common.ErrMissingConfig)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %v exceeds 1", common.ErrInvalidConfig, threshold)
	}
	return &Engine{vocab: vocab, logger: logger, threshold: threshold}, nil
}

// Threshold returns the partition threshold in use.
func (e *Engine) Threshold() float64 { return e.threshold }

// Run checks completeness, normalizes labels, votes, scores and partitions.
// Results are recomputed from scratch on every call.
func (e *Engine) Run(in Input) (*Report, error) {
	if err := CheckCompleteness(in); err != nil {
		e.logger.Error("consensus halted: label sets incomplete", "error", err)
		return nil, err
	}

	samples, err := Normalize(in, e.vocab)
	if err != nil {
		e.logger.Error("consensus halted: labels need correction", "error", err)
		return nil, err
	}

	keys := in.keys()
	results := make([]model.ConsensusResult, 0, len(keys))
	for _, key := range keys {
		results = append(results, Decide(key, samples[key], e.vocab))
	}

	maxLabels, avgLabels := Partition(results, e.threshold)

	report := &Report{
		Results:   results,
		MaxLabels: maxLabels,
		AvgLabels: avgLabels,
		Threshold: e.threshold,
		Stats:     summarize(results, maxLabels, avgLabels),
	}

	e.logger.Info("consensus complete",
		"keys", report.Stats.Total,
		"max_count", report.Stats.MaxCount,
		"avg_count", report.Stats.AvgCount,
		"excluded", report.Stats.Excluded,
		"threshold", e.threshold)

	return report, nil
}

func summarize(results []model.ConsensusResult, maxLabels, avgLabels map[string]string) Stats {
	s := Stats{
		Total:    len(results),
		MaxCount: len(maxLabels),
		AvgCount: len(avgLabels),
	}
	for _, r := range results {
		_, inMax := maxLabels[r.Key]
		_, inAvg := avgLabels[r.Key]
		switch {
		case inMax && inAvg:
			s.BothCount++
		case !inMax && !inAvg:
			s.Excluded++
		}
	}
	if s.Total > 0 {
		s.MaxCoverage = float64(s.MaxCount) / float64(s.Total)
		s.AvgCoverage = float64(s.AvgCount) / float64(s.Total)
	}
	return s
}
