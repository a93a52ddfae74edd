// Package payload reads captured payloads and writes the pipeline's JSON artifacts.
package payload

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Veraticus/kvlabel/internal/common"
	"github.com/Veraticus/kvlabel/internal/model"
)

// Column names of the capture CSV layout.
const (
	CSVIDColumn      = "pkt_id"
	CSVPayloadColumn = "http.file_data"
)

// ReadFile reads payloads from path, choosing the format by extension:
// .jsonl and .ndjson are JSON Lines, .json is a JSON array, .csv is the
// capture CSV layout.
func ReadFile(path string) ([]model.Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open payload file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var payloads []model.Payload
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		payloads, err = ReadJSONLines(f)
	case ".json":
		payloads, err = ReadJSONArray(f)
	case ".csv":
		payloads, err = ReadCSV(f)
	default:
		return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedFmt, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(payloads) == 0 {
		return nil, fmt.Errorf("%s: %w", path, common.ErrNoPayloads)
	}
	return payloads, nil
}

// ReadJSONLines reads one {"id": ..., "payload": ...} object per line.
// A record without an id is numbered by its position.
func ReadJSONLines(r io.Reader) ([]model.Payload, error) {
	dec := json.NewDecoder(r)
	var out []model.Payload
	for n := 1; ; n++ {
		var p model.Payload
		err := dec.Decode(&p)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", n, err)
		}
		if p.ID == "" {
			p.ID = strconv.Itoa(n)
		}
		out = append(out, p)
	}
}

// ReadJSONArray reads a JSON array of {"id": ..., "payload": ...} objects.
func ReadJSONArray(r io.Reader) ([]model.Payload, error) {
	var out []model.Payload
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode payload array: %w", err)
	}
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = strconv.Itoa(i + 1)
		}
	}
	return out, nil
}

// ReadCSV reads rows of a capture CSV. Rows with an empty payload cell are skipped.
func ReadCSV(r io.Reader) ([]model.Payload, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	idCol, payloadCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case CSVIDColumn:
			idCol = i
		case CSVPayloadColumn:
			payloadCol = i
		}
	}
	if payloadCol < 0 {
		return nil, fmt.Errorf("%w: CSV has no %q column", common.ErrUnsupportedFmt, CSVPayloadColumn)
	}

	var out []model.Payload
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("CSV row %d: %w", row, err)
		}
		if payloadCol >= len(rec) || strings.TrimSpace(rec[payloadCol]) == "" {
			continue
		}

		id := strconv.Itoa(row - 1)
		if idCol >= 0 && idCol < len(rec) && rec[idCol] != "" {
			id = rec[idCol]
		}
		out = append(out, model.Payload{ID: id, Text: rec[payloadCol]})
	}
}
