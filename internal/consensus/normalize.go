package consensus

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/Veraticus/kvlabel/internal/model"
)

// Samples holds the five normalized judgments of one key in temperature order.
type Samples [model.SampleCount]model.ClassificationSample

// Normalize resolves every raw label onto the vocabulary and parses every
// score. All problems are collected before returning: unresolved labels as
// *UnknownCategoryError, malformed scores as *InvalidScoreError, joined when
// both occur. The input must already have passed CheckCompleteness.
func Normalize(in Input, vocab *Vocabulary) (map[string]Samples, error) {
	keys := in.keys()
	out := make(map[string]Samples, len(keys))

	unknown := &UnknownCategoryError{}
	invalid := &InvalidScoreError{}

	for _, key := range keys {
		var samples Samples
		for i, t := range model.Temperatures {
			raw := in.Labels[t][key]

			cat, ok := vocab.Resolve(raw.Category)
			if !ok {
				unknown.Labels = append(unknown.Labels, UnresolvedLabel{
					Temperature: t.Label(),
					Key:         key,
					Label:       raw.Category,
				})
			}

			score, ok := ParseScore(raw.Score)
			if !ok {
				invalid.Scores = append(invalid.Scores, BadScore{
					Temperature: t.Label(),
					Key:         key,
					Score:       raw.Score,
				})
			}

			samples[i] = model.ClassificationSample{
				Key:         key,
				Temperature: t,
				Category:    cat.Name,
				Score:       score,
				Explanation: raw.Explanation,
			}
		}
		out[key] = samples
	}

	var errs []error
	if len(unknown.Labels) > 0 {
		errs = append(errs, unknown)
	}
	if len(invalid.Scores) > 0 {
		errs = append(errs, invalid)
	}
	switch len(errs) {
	case 0:
		return out, nil
	case 1:
		return nil, errs[0]
	default:
		return nil, errors.Join(errs...)
	}
}

// ParseScore parses a confidence score written as a numeric string. Scores
// must be finite and within [0, 1].
func ParseScore(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}
