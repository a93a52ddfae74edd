package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/kvlabel/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidTemperature = errors.New("invalid temperature")
	ErrInvalidLabel       = errors.New("invalid label")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateTemperature(t model.Temperature) error {
	if t.Index() < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTemperature, float64(t))
	}
	return nil
}

// validateLabels rejects empty keys and categories. Scores are stored as
// written and checked by consensus.
func validateLabels(labels model.LabelFile) error {
	if labels == nil {
		return fmt.Errorf("%w: labels", ErrNilParameter)
	}
	for key, l := range labels {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("%w: empty key", ErrInvalidLabel)
		}
		if strings.TrimSpace(l.Category) == "" {
			return fmt.Errorf("%w: key %q has no category", ErrInvalidLabel, key)
		}
	}
	return nil
}
