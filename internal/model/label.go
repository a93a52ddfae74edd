package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Temperature is one of the fixed sampling passes run for every key.
type Temperature float64

// Canonical sampling temperatures.
const (
	Temp0   Temperature = 0
	Temp025 Temperature = 0.25
	Temp05  Temperature = 0.5
	Temp075 Temperature = 0.75
	Temp1   Temperature = 1.0
)

// Temperatures is the canonical pass order. Tie-breaks and explanation
// selection follow this order.
var Temperatures = [5]Temperature{Temp0, Temp025, Temp05, Temp075, Temp1}

// SampleCount is the number of judgments reconciled per key.
const SampleCount = len(Temperatures)

// Label returns the file-name form of t: temp0, temp025, temp05, temp075, temp1.
func (t Temperature) Label() string {
	s := strconv.FormatFloat(float64(t), 'f', -1, 64)
	s = strings.ReplaceAll(s, ".", "")
	return "temp" + s
}

func (t Temperature) String() string {
	return strconv.FormatFloat(float64(t), 'f', -1, 64)
}

// Index returns the position of t in the canonical order, or -1.
func (t Temperature) Index() int {
	for i, c := range Temperatures {
		if c == t {
			return i
		}
	}
	return -1
}

// ParseTemperature accepts either the numeric form ("0.25") or the label form ("temp025").
func ParseTemperature(s string) (Temperature, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for _, t := range Temperatures {
		if s == t.Label() || s == t.String() {
			return t, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err == nil && Temperature(f).Index() >= 0 {
		return Temperature(f), nil
	}
	return 0, fmt.Errorf("unknown temperature %q", s)
}

// RawLabel is one classifier judgment as written to a per-temperature label file.
type RawLabel struct {
	Category    string `json:"category"`
	Score       string `json:"score"`
	Explanation string `json:"explanation"`
}

// LabelFile maps UniqueKey strings to the judgment made at one temperature.
type LabelFile map[string]RawLabel

// ClassificationSample is one normalized judgment for one key at one temperature.
type ClassificationSample struct {
	Key         string
	Category    string
	Explanation string
	Temperature Temperature
	Score       float64
}

// ConsensusResult is the reconciled decision for one key.
type ConsensusResult struct {
	Key               string               `json:"-"`
	WinnerLabel       string               `json:"winner_label"`
	WinnerGroup       string               `json:"winner_group,omitempty"`
	WinnerExplanation string               `json:"winner_explanation"`
	AllLabels         [SampleCount]string  `json:"all_labels"`
	AllExplanations   [SampleCount]string  `json:"all_explanations"`
	AllScores         [SampleCount]float64 `json:"all_scores"`
	MaxScore          float64              `json:"max_score"`
	AvgScore          float64              `json:"avg_score"`
}
