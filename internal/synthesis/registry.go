package synthesis

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// ErrInvalidConfig indicates an unusable generation configuration.
var ErrInvalidConfig = errors.New("invalid generation configuration")

// Generator names accepted by NewGenerator.
const (
	ProviderRules     = "rules"
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Default provider settings.
const (
	defaultOllamaModel    = "llama3.2"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-3-5-haiku-latest"
	defaultRateLimit      = 50.0 / 60.0
	defaultBurst          = 5
)

// Config selects and configures the generation capability.
type Config struct {
	// Provider is one of rules, ollama, openai or anthropic.
	// Default: rules
	Provider string
	Model    string
	// BaseURL overrides the endpoint; openai-compatible services such as
	// Together or Groq are configured as openai with a BaseURL.
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	// RateLimit is requests per second; Burst is the bucket size.
	RateLimit float64
	Burst     int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderRules
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.Burst == 0 {
		c.Burst = defaultBurst
	}
}

// NewGenerator creates the configured Generator.
func NewGenerator(cfg Config, logger *zap.Logger) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	var (
		model llms.Model
		err   error
	)
	switch strings.ToLower(cfg.Provider) {
	case ProviderRules:
		logger.Info("using rule-based generator")
		return NewRuleGenerator(), nil
	case ProviderOllama:
		if cfg.Model == "" {
			cfg.Model = defaultOllamaModel
		}
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		model, err = ollama.New(opts...)
	case ProviderOpenAI:
		if cfg.Model == "" {
			cfg.Model = defaultOpenAIModel
		}
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: openai requires an API key or a base URL", ErrInvalidConfig)
		}
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "placeholder"
		}
		opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithToken(apiKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
	case ProviderAnthropic:
		if cfg.Model == "" {
			cfg.Model = defaultAnthropicModel
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: anthropic requires an API key", ErrInvalidConfig)
		}
		model, err = anthropic.New(anthropic.WithModel(cfg.Model), anthropic.WithToken(cfg.APIKey))
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", cfg.Provider, err)
	}

	logger.Info("using language model generator",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Float64("rate_limit", cfg.RateLimit),
	)
	return newLLMGenerator(model, cfg), nil
}
