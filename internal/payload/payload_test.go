package payload

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/kvlabel/internal/common"
	"github.com/Veraticus/kvlabel/internal/consensus"
	"github.com/Veraticus/kvlabel/internal/extract"
	"github.com/Veraticus/kvlabel/internal/keys"
	"github.com/Veraticus/kvlabel/internal/model"
)

func TestReadJSONLines(t *testing.T) {
	input := `{"id": "p1", "payload": "a=1&b=2"}
{"payload": "{\"uid\": 5}"}

{"id": "p3", "payload": ""}
`
	got, err := ReadJSONLines(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []model.Payload{
		{ID: "p1", Text: "a=1&b=2"},
		{ID: "2", Text: `{"uid": 5}`},
		{ID: "p3", Text: ""},
	}, got)

	_, err = ReadJSONLines(strings.NewReader(`{"id": "p1", "payload": `))
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	input := "frame,pkt_id,http.file_data\n" +
		"1,10,\"{\"\"uid\"\": 5}\"\n" +
		"2,11,\n" +
		"3,,x=1;y=2\n"

	got, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []model.Payload{
		{ID: "10", Text: `{"uid": 5}`},
		{ID: "3", Text: "x=1;y=2"},
	}, got)

	_, err = ReadCSV(strings.NewReader("pkt_id,other\n1,2\n"))
	assert.ErrorIs(t, err, common.ErrUnsupportedFmt)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "payloads.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"payload": "a=1"}]`), 0600))
	got, err := ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, []model.Payload{{ID: "1", Text: "a=1"}}, got)

	emptyPath := filepath.Join(dir, "empty.jsonl")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0600))
	_, err = ReadFile(emptyPath)
	assert.ErrorIs(t, err, common.ErrNoPayloads)

	txtPath := filepath.Join(dir, "payloads.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("a=1"), 0600))
	_, err = ReadFile(txtPath)
	assert.ErrorIs(t, err, common.ErrUnsupportedFmt)
}

func TestPairsAndKeysRoundTrip(t *testing.T) {
	dir := t.TempDir()
	batches := []model.PayloadPairs{
		{PayloadID: "b", Pairs: extract.ExtractAll(`{"user_id": 1, "device": {"os": "ios"}}`)},
		{PayloadID: "a", Pairs: extract.ExtractAll("email=x@y.z&lat=1.5")},
	}

	pairsPath := filepath.Join(dir, "pairs.json")
	require.NoError(t, WritePairs(pairsPath, batches))

	read, err := ReadPairs(pairsPath)
	require.NoError(t, err)
	require.Len(t, read, 2)
	assert.Equal(t, "a", read[0].PayloadID)
	assert.Equal(t, model.Path{"email"}, read[0].Pairs[0].Path)

	set, per := keys.Collect(read)
	keysPath := filepath.Join(dir, "keys.json")
	require.NoError(t, WriteKeys(keysPath, set, per))

	got, err := ReadKeys(keysPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"device", "email", "lat", "os", "user id"}, got)
	assert.FileExists(t, filepath.Join(dir, "keys_per_payload.json"))
}

func TestLabelsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	labels := map[model.Temperature]model.LabelFile{
		model.Temp0:  {"uid": {Category: "Device Information", Score: "0.9", Explanation: "id"}},
		model.Temp05: {"uid": {Category: "Name", Score: "0.4", Explanation: "guess"}},
	}

	paths, err := WriteLabels(dir, labels)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "labels_temp0.json"),
		filepath.Join(dir, "labels_temp05.json"),
	}, paths)

	got, err := ReadLabels(dir)
	require.NoError(t, err)
	assert.Equal(t, labels, got)
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	report := &consensus.Report{
		Results: []model.ConsensusResult{
			{Key: "email", WinnerLabel: "Email Address", MaxScore: 1, AvgScore: 0.9},
		},
		MaxLabels: map[string]string{"email": "Email Address"},
		AvgLabels: map[string]string{"email": "Email Address"},
	}

	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	paths, err := WriteReport(dir, report, now)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(dir, "final_labels_per_key-20240501-093000.json"), paths[0])

	var maxLabels map[string]string
	require.NoError(t, ReadJSON(paths[1], &maxLabels))
	assert.Equal(t, report.MaxLabels, maxLabels)

	var perKey map[string]model.ConsensusResult
	require.NoError(t, ReadJSON(paths[0], &perKey))
	assert.Equal(t, "Email Address", perKey["email"].WinnerLabel)
}
