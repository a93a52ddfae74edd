package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/kvlabel/internal/common"
	"github.com/Veraticus/kvlabel/internal/model"
)

// DefaultBatchSize is the number of keys sent in one prompt.
const DefaultBatchSize = 110

// Config holds configuration for the LLM sampler.
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string
	Timeout   time.Duration
	CacheTTL  time.Duration
	RetryWait time.Duration
	// MaxRetries is the number of attempts per sublist request.
	MaxRetries int
	// RateLimit is in requests per minute.
	RateLimit int
	MaxTokens int
	BatchSize int
	// RepairPasses re-sends keys a response left out, up to this many times.
	RepairPasses int
}

// Sampler labels keys at one temperature.
type Sampler interface {
	Classify(ctx context.Context, keys []string, t model.Temperature) (model.LabelFile, error)
}

// LLMSampler implements Sampler against a remote model.
type LLMSampler struct {
	client       Client
	prompts      *PromptBuilder
	cache        *responseCache
	logger       *slog.Logger
	rateLimiter  *rateLimiter
	retryOpts    common.RetryOptions
	batchSize    int
	maxTokens    int
	repairPasses int
}

// NewSampler creates a sampler that sends prompts built by prompts to client.
func NewSampler(client Client, prompts *PromptBuilder, cfg Config, logger *slog.Logger) *LLMSampler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	retryOpts := common.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryWait,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	repair := cfg.RepairPasses
	if repair < 0 {
		repair = 0
	}

	return &LLMSampler{
		client:       client,
		prompts:      prompts,
		cache:        newResponseCache(cfg.CacheTTL),
		logger:       logger,
		rateLimiter:  newRateLimiter(cfg.RateLimit),
		retryOpts:    retryOpts,
		batchSize:    batchSize,
		maxTokens:    cfg.MaxTokens,
		repairPasses: repair,
	}
}

// Sublists splits keys into consecutive slices of at most size keys.
func Sublists(keys []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	out := make([][]string, 0, (len(keys)+size-1)/size)
	for start := 0; start < len(keys); start += size {
		end := min(start+size, len(keys))
		out = append(out, keys[start:end])
	}
	return out
}

// Classify labels keys at temperature t, one sublist per request. Cancelling
// ctx stops further sublists from being sent; a request already in flight
// runs to completion. A permanent remote error, or a transient one that
// outlasts the retry budget, fails the whole temperature. On either, the
// labels of the sublists that completed are returned with the error.
//
// Keys the model leaves out are re-sent up to RepairPasses times and are
// otherwise absent from the result.
func (s *LLMSampler) Classify(ctx context.Context, keys []string, t model.Temperature) (model.LabelFile, error) {
	if len(keys) == 0 {
		return nil, common.ErrNoKeys
	}

	labels := make(model.LabelFile, len(keys))
	pending := keys

	for pass := 0; pass <= s.repairPasses && len(pending) > 0; pass++ {
		if pass > 0 {
			s.logger.Info("re-sending keys missing from responses",
				"temperature", t.Label(),
				"pass", pass,
				"keys", len(pending))
		}

		batches := Sublists(pending, s.batchSize)
		for i, batch := range batches {
			if err := ctx.Err(); err != nil {
				return labels, fmt.Errorf("classification at %s stopped before sublist %d of %d: %w",
					t.Label(), i+1, len(batches), err)
			}

			got, err := s.classifySublist(ctx, batch, t)
			if err != nil {
				return labels, fmt.Errorf("classification at %s failed on sublist %d of %d: %w",
					t.Label(), i+1, len(batches), err)
			}
			for k, v := range got {
				labels[k] = v
			}
		}

		pending = missingKeys(keys, labels)
	}

	if len(pending) > 0 {
		s.logger.Warn("keys missing from classification",
			"temperature", t.Label(),
			"missing", len(pending),
			"keys", pending)
	}

	return labels, nil
}

func (s *LLMSampler) classifySublist(ctx context.Context, keys []string, t model.Temperature) (model.LabelFile, error) {
	prompt := s.prompts.Build(keys)
	key := cacheKey(s.client.Model(), t, prompt)

	if cached, ok := s.cache.get(key); ok {
		s.logger.Debug("cache hit for sublist", "temperature", t.Label(), "keys", len(keys))
		return cached, nil
	}

	var completion Completion
	err := common.WithRetry(ctx, func() error {
		if err := s.rateLimiter.wait(ctx); err != nil {
			return err
		}

		var err error
		completion, err = s.client.Complete(context.WithoutCancel(ctx), CompletionRequest{
			System:      s.prompts.System(),
			Prompt:      prompt,
			Temperature: float64(t),
			MaxTokens:   s.maxTokens,
		})
		return err
	}, s.retryOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrClassificationFailed, err)
	}

	parsed := ParseResponse(completion.Text)

	requested := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		requested[k] = struct{}{}
	}

	labels := make(model.LabelFile, len(keys))
	var unexpected []string
	for k, v := range parsed.Labels {
		if _, ok := requested[k]; !ok {
			unexpected = append(unexpected, k)
			continue
		}
		labels[k] = v
	}

	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		s.logger.Warn("response labeled keys that were not requested",
			"temperature", t.Label(),
			"keys", unexpected)
	}
	if len(parsed.Ignored) > 0 {
		s.logger.Debug("ignored non-result lines", "temperature", t.Label(), "lines", len(parsed.Ignored))
	}

	s.logger.Info("sublist classified",
		"temperature", t.Label(),
		"requested", len(keys),
		"labeled", len(labels),
		"prompt_tokens", completion.PromptTokens,
		"completion_tokens", completion.CompletionTokens)

	if len(labels) == len(keys) {
		s.cache.set(key, labels)
	}
	return labels, nil
}

func missingKeys(keys []string, labels model.LabelFile) []string {
	var out []string
	for _, k := range keys {
		if _, ok := labels[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// SampleAll runs sampler at each temperature, up to concurrency at once.
// Temperatures are independent: a failure at one does not stop the others.
// Results for the temperatures that succeeded are returned together with
// the joined errors of those that failed. Partial labels of a failed
// temperature are left out.
func SampleAll(ctx context.Context, sampler Sampler, keys []string, temps []model.Temperature, concurrency int) (map[model.Temperature]model.LabelFile, error) {
	if concurrency <= 0 {
		concurrency = len(temps)
	}

	labels := make([]model.LabelFile, len(temps))
	errs := make([]error, len(temps))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, t := range temps {
		i, t := i, t
		g.Go(func() error {
			l, err := sampler.Classify(ctx, keys, t)
			if err != nil {
				errs[i] = fmt.Errorf("temperature %s: %w", t.Label(), err)
				return nil
			}
			labels[i] = l
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[model.Temperature]model.LabelFile, len(temps))
	for i, t := range temps {
		if errs[i] == nil {
			out[t] = labels[i]
		}
	}
	return out, errors.Join(errs...)
}
