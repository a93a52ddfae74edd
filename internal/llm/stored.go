package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/kvlabel/internal/model"
)

// SampleStore persists labels so that repeated runs only classify new keys.
type SampleStore interface {
	LoadSamples(ctx context.Context, modelName string, t model.Temperature, keys []string) (model.LabelFile, error)
	SaveSamples(ctx context.Context, modelName string, t model.Temperature, labels model.LabelFile) error
}

// StoredSampler serves previously stored labels and sends only the
// remaining keys to the wrapped Sampler.
type StoredSampler struct {
	next      Sampler
	store     SampleStore
	logger    *slog.Logger
	modelName string
}

// NewStoredSampler wraps next with store. modelName scopes stored labels.
func NewStoredSampler(next Sampler, store SampleStore, modelName string, logger *slog.Logger) *StoredSampler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &StoredSampler{next: next, store: store, modelName: modelName, logger: logger}
}

// Classify implements Sampler.
func (s *StoredSampler) Classify(ctx context.Context, keys []string, t model.Temperature) (model.LabelFile, error) {
	have, err := s.store.LoadSamples(ctx, s.modelName, t, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored labels: %w", err)
	}

	todo := missingKeys(keys, have)
	s.logger.Info("stored labels reused",
		"temperature", t.Label(),
		"stored", len(have),
		"to_classify", len(todo))

	if len(todo) == 0 {
		return have, nil
	}

	fresh, err := s.next.Classify(ctx, todo, t)
	if err != nil {
		// Keep what was paid for so a re-run only sends the rest.
		if len(fresh) > 0 {
			if saveErr := s.store.SaveSamples(context.WithoutCancel(ctx), s.modelName, t, fresh); saveErr != nil {
				s.logger.Error("failed to save partial labels", "temperature", t.Label(), "error", saveErr)
			} else {
				s.logger.Info("partial labels stored", "temperature", t.Label(), "stored", len(fresh))
			}
		}
		return nil, err
	}
	if err := s.store.SaveSamples(ctx, s.modelName, t, fresh); err != nil {
		return nil, fmt.Errorf("failed to save labels: %w", err)
	}

	out := make(model.LabelFile, len(have)+len(fresh))
	for k, v := range have {
		out[k] = v
	}
	for k, v := range fresh {
		out[k] = v
	}
	return out, nil
}
