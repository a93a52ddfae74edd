package consensus

import (
	"fmt"
	"sort"

	"github.com/Veraticus/kvlabel/internal/common"
	"github.com/Veraticus/kvlabel/internal/model"
)

// Input is one labeling cycle: a label file per temperature.
type Input struct {
	Labels map[model.Temperature]model.LabelFile
	// Expected is the key list sent for classification. When empty, the
	// union of all labeled keys is expected at every temperature.
	Expected []string
}

// CheckCompleteness verifies that every canonical temperature labeled exactly
// the expected key set. It returns a *CompletenessError describing every
// absent temperature and every missing or extra key.
func CheckCompleteness(in Input) error {
	expected := make(map[string]struct{})
	if len(in.Expected) > 0 {
		for _, k := range in.Expected {
			expected[k] = struct{}{}
		}
	} else {
		for _, file := range in.Labels {
			for k := range file {
				expected[k] = struct{}{}
			}
		}
	}
	if len(expected) == 0 {
		return fmt.Errorf("%w: no labeled keys in input", common.ErrNoKeys)
	}

	cerr := &CompletenessError{ExpectedKeys: len(expected)}

	for t := range in.Labels {
		if t.Index() < 0 {
			return fmt.Errorf("%w: temperature %s is not a canonical pass", common.ErrInvalidConfig, t)
		}
	}

	for _, t := range model.Temperatures {
		file, ok := in.Labels[t]
		if !ok {
			cerr.AbsentTemperatures = append(cerr.AbsentTemperatures, t.Label())
			continue
		}

		diff := TemperatureDiff{Temperature: t.Label()}
		for k := range expected {
			if _, ok := file[k]; !ok {
				diff.Missing = append(diff.Missing, k)
			}
		}
		for k := range file {
			if _, ok := expected[k]; !ok {
				diff.Extra = append(diff.Extra, k)
			}
		}
		if len(diff.Missing) == 0 && len(diff.Extra) == 0 {
			continue
		}
		sort.Strings(diff.Missing)
		sort.Strings(diff.Extra)
		cerr.Temperatures = append(cerr.Temperatures, diff)
	}

	if len(cerr.AbsentTemperatures) > 0 || len(cerr.Temperatures) > 0 {
		return cerr
	}
	return nil
}

// keys returns the labeled key set in sorted order. Only valid after
// CheckCompleteness succeeds.
func (in Input) keys() []string {
	file := in.Labels[model.Temperatures[0]]
	out := make([]string, 0, len(file))
	for k := range file {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
