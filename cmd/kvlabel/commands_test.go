package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/kvlabel/internal/common"
	"github.com/Veraticus/kvlabel/internal/config"
	"github.com/Veraticus/kvlabel/internal/consensus"
	"github.com/Veraticus/kvlabel/internal/extract"
	"github.com/Veraticus/kvlabel/internal/model"
)

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	return &config.Settings{
		OutputDir: t.TempDir(),
		Threshold: consensus.DefaultThreshold,
	}
}

func uniformLabels(keyList []string, category, score string) map[model.Temperature]model.LabelFile {
	out := make(map[model.Temperature]model.LabelFile, model.SampleCount)
	for _, temp := range model.Temperatures {
		l := make(model.LabelFile, len(keyList))
		for _, k := range keyList {
			l[k] = model.RawLabel{Category: category, Score: score, Explanation: "e"}
		}
		out[temp] = l
	}
	return out
}

func TestParseTemperatures(t *testing.T) {
	all, err := parseTemperatures("")
	require.NoError(t, err)
	assert.Len(t, all, model.SampleCount)

	subset, err := parseTemperatures("0.5, temp0,0.5")
	require.NoError(t, err)
	assert.Equal(t, []model.Temperature{model.Temp05, model.Temp0}, subset)

	_, err = parseTemperatures("0.3")
	assert.Error(t, err)
}

func TestExtractSummaryRows(t *testing.T) {
	batches := []model.PayloadPairs{
		{PayloadID: "1", Pairs: extract.ExtractAll(`{"a": {"b": 1}}`)},
		{PayloadID: "2", Pairs: extract.ExtractAll("x=1&y=2")},
		{PayloadID: "3"},
	}
	rows := extractSummaryRows(batches, 4)

	assert.Equal(t, []string{"Payloads", "3"}, rows[0])
	assert.Equal(t, []string{"Payloads without pairs", "1"}, rows[1])
	assert.Equal(t, []string{"  from & assignments", "2"}, rows[4])
	assert.Equal(t, []string{"Unique keys", "4"}, rows[6])
}

func TestRunConsensusFiles(t *testing.T) {
	settings := testSettings(t)
	var out bytes.Buffer

	in := consensus.Input{Labels: uniformLabels([]string{"email", "uid"}, "Contact Information", "0.9")}
	report, err := runConsensusFiles(&out, settings, in, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Stats.MaxCount)
	assert.FileExists(t, filepath.Join(settings.OutputDir, "final_labels_per_key-20240102-030405.json"))
	assert.FileExists(t, filepath.Join(settings.OutputDir, "labeled_keys_max_score-20240102-030405.json"))
	assert.FileExists(t, filepath.Join(settings.OutputDir, "labeled_keys_avg_score-20240102-030405.json"))
	assert.Contains(t, out.String(), "Max-score labels")
}

func TestRunConsensusFiles_HaltsWithDiagnostics(t *testing.T) {
	settings := testSettings(t)
	var out bytes.Buffer

	labels := uniformLabels([]string{"email", "uid"}, "Contact Information", "0.9")
	delete(labels[model.Temp075], "uid")

	report, err := runConsensusFiles(&out, settings, consensus.Input{Labels: labels}, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, common.ErrIncomplete)

	var userErr *common.UserError
	assert.True(t, errors.As(err, &userErr))
	assert.FileExists(t, filepath.Join(settings.OutputDir, "missing_keys-20240102-030405.json"))

	entries, readErr := os.ReadDir(settings.OutputDir)
	require.NoError(t, readErr)
	assert.Len(t, entries, 1, "no result files on halt")
}

func TestFinishClassify(t *testing.T) {
	settings := testSettings(t)
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	keyList := []string{"email", "uid"}
	labels := uniformLabels(keyList, "Contact Information", "0.9")
	delete(labels, model.Temp1)
	delete(labels[model.Temp0], "uid")

	sampleErr := errors.Join(common.Permanent(errors.New("status 401")))
	err := finishClassify(cmd, settings, keyList, model.Temperatures[:], labels, sampleErr, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPermanentRemote)

	assert.FileExists(t, filepath.Join(settings.OutputDir, "labels_temp0.json"))
	assert.NoFileExists(t, filepath.Join(settings.OutputDir, "labels_temp1.json"))
	assert.FileExists(t, filepath.Join(settings.OutputDir, "missing_keys-20240102-030405.json"))
	assert.Contains(t, out.String(), "failed")
}

func TestFinishClassify_Complete(t *testing.T) {
	settings := testSettings(t)
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	keyList := []string{"email"}
	err := finishClassify(cmd, settings, keyList, model.Temperatures[:],
		uniformLabels(keyList, "Contact Information", "1"), nil, time.Now())
	require.NoError(t, err)

	entries, readErr := os.ReadDir(settings.OutputDir)
	require.NoError(t, readErr)
	assert.Len(t, entries, model.SampleCount, "label files only, no diagnostics")
}
