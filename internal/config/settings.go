package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/kvlabel/internal/common"
	"github.com/Veraticus/kvlabel/internal/consensus"
	"github.com/Veraticus/kvlabel/internal/extract"
	"github.com/Veraticus/kvlabel/internal/llm"
	"github.com/Veraticus/kvlabel/internal/model"
)

// Settings is the resolved configuration of one CLI invocation.
type Settings struct {
	VocabularyPath string
	DatabasePath   string
	OutputDir      string
	LLM            llm.Config
	Threshold      float64
	Concurrency    int
	Workers        int
	MaxDepth       int
	UseStore       bool
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("extract.max_depth", extract.DefaultMaxDepth)
	v.SetDefault("extract.workers", 0)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", time.Second)
	v.SetDefault("llm.cache_ttl", 24*time.Hour)
	v.SetDefault("llm.rate_limit", 60)
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("llm.batch_size", llm.DefaultBatchSize)
	v.SetDefault("llm.repair_passes", 1)
	v.SetDefault("llm.concurrency", model.SampleCount)

	v.SetDefault("consensus.threshold", consensus.DefaultThreshold)

	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.path", "~/.local/share/kvlabel/kvlabel.db")
	v.SetDefault("output.dir", ".")
}

// Load resolves Settings from v. API keys fall back to the provider's
// standard environment variable when not configured.
func Load(v *viper.Viper) (*Settings, error) {
	llmCfg, err := LoadLLMConfig(v)
	if err != nil {
		return nil, err
	}

	s := &Settings{
		LLM:            llmCfg,
		VocabularyPath: ExpandPath(v.GetString("consensus.vocabulary")),
		DatabasePath:   ExpandPath(v.GetString("storage.path")),
		OutputDir:      ExpandPath(v.GetString("output.dir")),
		Threshold:      v.GetFloat64("consensus.threshold"),
		Concurrency:    v.GetInt("llm.concurrency"),
		Workers:        v.GetInt("extract.workers"),
		MaxDepth:       v.GetInt("extract.max_depth"),
		UseStore:       v.GetBool("storage.enabled"),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadLLMConfig reads the llm section of v. A missing API key is not an
// error here; the client constructor reports it when a client is needed.
func LoadLLMConfig(v *viper.Viper) (llm.Config, error) {
	provider := strings.ToLower(v.GetString("llm.provider"))

	cfg := llm.Config{
		Provider:     provider,
		Model:        v.GetString("llm.model"),
		BaseURL:      v.GetString("llm.base_url"),
		MaxTokens:    v.GetInt("llm.max_tokens"),
		MaxRetries:   v.GetInt("llm.max_retries"),
		RetryWait:    v.GetDuration("llm.retry_delay"),
		CacheTTL:     v.GetDuration("llm.cache_ttl"),
		RateLimit:    v.GetInt("llm.rate_limit"),
		Timeout:      v.GetDuration("llm.timeout"),
		BatchSize:    v.GetInt("llm.batch_size"),
		RepairPasses: v.GetInt("llm.repair_passes"),
	}

	switch provider {
	case "openai", "":
		cfg.APIKey = firstNonEmpty(v.GetString("llm.openai_api_key"), os.Getenv("OPENAI_API_KEY"))
	case "anthropic":
		cfg.APIKey = firstNonEmpty(v.GetString("llm.anthropic_api_key"), os.Getenv("ANTHROPIC_API_KEY"))
	default:
		return llm.Config{}, fmt.Errorf("%w: unsupported LLM provider: %s", common.ErrInvalidConfig, provider)
	}

	return cfg, nil
}

// Validate checks ranges that would otherwise fail deep inside a run.
func (s *Settings) Validate() error {
	if s.Threshold < 0 || s.Threshold > 1 {
		return fmt.Errorf("%w: consensus.threshold must be within [0, 1], got %v", common.ErrInvalidConfig, s.Threshold)
	}
	if s.LLM.BatchSize < 0 {
		return fmt.Errorf("%w: llm.batch_size must not be negative", common.ErrInvalidConfig)
	}
	if s.MaxDepth < 0 {
		return fmt.Errorf("%w: extract.max_depth must not be negative", common.ErrInvalidConfig)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
