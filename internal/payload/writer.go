package payload

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Veraticus/kvlabel/internal/consensus"
	"github.com/Veraticus/kvlabel/internal/keys"
	"github.com/Veraticus/kvlabel/internal/model"
)

// Artifact file names.
const (
	PerKeyPrefix   = "final_labels_per_key"
	MaxLabelPrefix = "labeled_keys_max_score"
	AvgLabelPrefix = "labeled_keys_avg_score"
	StampLayout    = "20060102-150405"
)

// WriteJSON writes v to path as indented JSON, creating parent directories.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadJSON decodes the JSON file at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// PairsFile maps payload ids to their extracted pairs.
type PairsFile map[string][]model.ExtractedPair

// WritePairs writes extracted pairs keyed by payload id.
func WritePairs(path string, batches []model.PayloadPairs) error {
	out := make(PairsFile, len(batches))
	for _, b := range batches {
		out[b.PayloadID] = append(out[b.PayloadID], b.Pairs...)
	}
	return WriteJSON(path, out)
}

// ReadPairs reads a pairs file written by WritePairs. Values are not
// decoded; the result carries paths, keys and sources, ordered by payload id.
func ReadPairs(path string) ([]model.PayloadPairs, error) {
	var raw map[string][]struct {
		Key    string       `json:"key"`
		Source model.Source `json:"source"`
		Path   model.Path   `json:"path"`
	}
	if err := ReadJSON(path, &raw); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]model.PayloadPairs, 0, len(ids))
	for _, id := range ids {
		pairs := make([]model.ExtractedPair, 0, len(raw[id]))
		for _, p := range raw[id] {
			pairs = append(pairs, model.ExtractedPair{Path: p.Path, Key: p.Key, Source: p.Source})
		}
		out = append(out, model.PayloadPairs{PayloadID: id, Pairs: pairs})
	}
	return out, nil
}

// KeysFile is the unique key list handed to classification.
type KeysFile struct {
	Keys []string `json:"keys"`
}

// WriteKeys writes the unique key list and, when perPayload is non-empty,
// the keys each payload contributed.
func WriteKeys(path string, set *keys.Set, perPayload []keys.PayloadKeys) error {
	if err := WriteJSON(path, KeysFile{Keys: set.Strings()}); err != nil {
		return err
	}
	if len(perPayload) == 0 {
		return nil
	}
	byPayload := make(map[string][]model.UniqueKey, len(perPayload))
	for _, pk := range perPayload {
		byPayload[pk.PayloadID] = pk.Keys
	}
	return WriteJSON(sibling(path, "per_payload"), byPayload)
}

// ReadKeys reads a key list written by WriteKeys.
func ReadKeys(path string) ([]string, error) {
	var f KeysFile
	if err := ReadJSON(path, &f); err != nil {
		return nil, err
	}
	return f.Keys, nil
}

// LabelFileName returns the per-temperature label file name, e.g. labels_temp025.json.
func LabelFileName(t model.Temperature) string {
	return "labels_" + t.Label() + ".json"
}

// WriteLabels writes one label file per temperature into dir.
func WriteLabels(dir string, labels map[model.Temperature]model.LabelFile) ([]string, error) {
	var paths []string
	for _, t := range model.Temperatures {
		l, ok := labels[t]
		if !ok {
			continue
		}
		path := filepath.Join(dir, LabelFileName(t))
		if err := WriteJSON(path, l); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ReadLabels reads the label files of every canonical temperature present
// in dir. A missing file leaves its temperature out of the result.
func ReadLabels(dir string) (map[model.Temperature]model.LabelFile, error) {
	out := make(map[model.Temperature]model.LabelFile, model.SampleCount)
	for _, t := range model.Temperatures {
		path := filepath.Join(dir, LabelFileName(t))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		var l model.LabelFile
		if err := ReadJSON(path, &l); err != nil {
			return nil, err
		}
		out[t] = l
	}
	return out, nil
}

// WriteReport writes the per-key results and the max and avg label maps into
// dir, stamped with now. It returns the written paths in that order.
func WriteReport(dir string, report *consensus.Report, now time.Time) ([]string, error) {
	stamp := now.Format(StampLayout)
	files := []struct {
		body   any
		prefix string
	}{
		{body: report.PerKey(), prefix: PerKeyPrefix},
		{body: report.MaxLabels, prefix: MaxLabelPrefix},
		{body: report.AvgLabels, prefix: AvgLabelPrefix},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, fmt.Sprintf("%s-%s.json", f.prefix, stamp))
		if err := WriteJSON(path, f.body); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func sibling(path, suffix string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)] + "_" + suffix + ext
}
