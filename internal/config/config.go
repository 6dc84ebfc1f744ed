// Package config loads triaged configuration from embedded defaults, an
// optional YAML file and TRIAGED_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/triaged/internal/chunker"
	"github.com/fyrsmithlabs/triaged/internal/consultlog"
	"github.com/fyrsmithlabs/triaged/internal/embeddings"
	"github.com/fyrsmithlabs/triaged/internal/knowledge"
	"github.com/fyrsmithlabs/triaged/internal/logging"
	"github.com/fyrsmithlabs/triaged/internal/scrub"
	"github.com/fyrsmithlabs/triaged/internal/synthesis"
	"github.com/fyrsmithlabs/triaged/internal/telemetry"
	"github.com/fyrsmithlabs/triaged/internal/vectorindex"
)

// Config holds the complete triaged configuration.
type Config struct {
	Knowledge  KnowledgeConfig  `koanf:"knowledge"`
	Chunker    ChunkerConfig    `koanf:"chunker"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Index      IndexConfig      `koanf:"index"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Generation GenerationConfig `koanf:"generation"`
	ConsultLog ConsultLogConfig `koanf:"consultlog"`
	Logging    logging.Config   `koanf:"logging"`
	Telemetry  telemetry.Config `koanf:"telemetry"`
	Server     ServerConfig     `koanf:"server"`
}

// ServerConfig controls the operational HTTP server run by "triaged serve".
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// WatchKnowledge reloads the collection when another process writes it.
	WatchKnowledge bool          `koanf:"watch_knowledge"`
	WatchDebounce  time.Duration `koanf:"watch_debounce"`
}

// KnowledgeConfig locates the document collection.
type KnowledgeConfig struct {
	Path      string `koanf:"path"`
	BackupDir string `koanf:"backup_dir"`
}

// ChunkerConfig sizes chunks in characters.
type ChunkerConfig struct {
	Size    int `koanf:"size"`
	Overlap int `koanf:"overlap"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	CacheDir string `koanf:"cache_dir"`
	APIKey   Secret `koanf:"api_key"`
}

// IndexConfig holds vector index persistence settings.
type IndexConfig struct {
	Path          string        `koanf:"path"`
	Collection    string        `koanf:"collection"`
	Compress      bool          `koanf:"compress"`
	QueryCacheTTL time.Duration `koanf:"query_cache_ttl"`
}

// RetrievalConfig shapes retrieved context.
type RetrievalConfig struct {
	TopK          int `koanf:"top_k"`
	PreviewLength int `koanf:"preview_length"`
}

// GenerationConfig selects the response generator.
type GenerationConfig struct {
	Provider    string        `koanf:"provider"`
	Model       string        `koanf:"model"`
	BaseURL     string        `koanf:"base_url"`
	APIKey      Secret        `koanf:"api_key"`
	Timeout     time.Duration `koanf:"timeout"`
	Temperature float64       `koanf:"temperature"`
	MaxTokens   int           `koanf:"max_tokens"`
	RateLimit   float64       `koanf:"rate_limit"`
	Burst       int           `koanf:"burst"`
}

// ConsultLogConfig controls the consultation log.
type ConsultLogConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
	// Scrub redacts personal data and credentials from logged queries.
	Scrub          bool     `koanf:"scrub"`
	ScrubAllowList []string `koanf:"scrub_allow_list"`
	// ScrubRulesFile is an optional TOML file of extra rules.
	ScrubRulesFile string `koanf:"scrub_rules_file"`
}

// Validate checks enums and ranges.
func (c *Config) Validate() error {
	var errs []error

	if c.Knowledge.Path == "" {
		errs = append(errs, errors.New("knowledge.path is required"))
	}

	if c.Chunker.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunker.size must be positive, got %d", c.Chunker.Size))
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		errs = append(errs, fmt.Errorf("chunker.overlap must be in [0, size), got %d", c.Chunker.Overlap))
	}

	switch c.Embeddings.Provider {
	case embeddings.ProviderNone, embeddings.ProviderFastEmbed, embeddings.ProviderOpenAI:
	case embeddings.ProviderTEI:
		if c.Embeddings.BaseURL == "" {
			errs = append(errs, errors.New("embeddings.base_url is required for tei"))
		}
	default:
		errs = append(errs, fmt.Errorf("embeddings.provider %q is not one of none, fastembed, tei, openai", c.Embeddings.Provider))
	}

	if c.Index.Path == "" {
		errs = append(errs, errors.New("index.path is required"))
	}
	if c.Index.Collection == "" {
		errs = append(errs, errors.New("index.collection is required"))
	}
	if c.Index.QueryCacheTTL < 0 {
		errs = append(errs, errors.New("index.query_cache_ttl cannot be negative"))
	}

	if c.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK))
	}
	if c.Retrieval.PreviewLength <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.preview_length must be positive, got %d", c.Retrieval.PreviewLength))
	}

	g := c.Generation
	switch g.Provider {
	case synthesis.ProviderRules, synthesis.ProviderOllama:
	case synthesis.ProviderOpenAI:
		if !g.APIKey.IsSet() && g.BaseURL == "" {
			errs = append(errs, errors.New("generation.api_key or generation.base_url is required for openai"))
		}
	case synthesis.ProviderAnthropic:
		if !g.APIKey.IsSet() {
			errs = append(errs, errors.New("generation.api_key is required for anthropic"))
		}
	default:
		errs = append(errs, fmt.Errorf("generation.provider %q is not one of rules, ollama, openai, anthropic", g.Provider))
	}
	if g.Timeout <= 0 {
		errs = append(errs, errors.New("generation.timeout must be positive"))
	}
	if g.Temperature < 0 || g.Temperature > 2 {
		errs = append(errs, fmt.Errorf("generation.temperature must be in [0, 2], got %g", g.Temperature))
	}
	if g.MaxTokens < 0 {
		errs = append(errs, errors.New("generation.max_tokens cannot be negative"))
	}
	if g.RateLimit <= 0 || g.Burst <= 0 {
		errs = append(errs, errors.New("generation.rate_limit and generation.burst must be positive"))
	}

	if c.ConsultLog.Enabled && c.ConsultLog.Path == "" {
		errs = append(errs, errors.New("consultlog.path is required when enabled"))
	}
	if c.ConsultLog.MaxSizeMB < 0 || c.ConsultLog.MaxBackups < 0 || c.ConsultLog.MaxAgeDays < 0 {
		errs = append(errs, errors.New("consultlog limits cannot be negative"))
	}
	if sc, err := c.QueryScrubber(); err != nil {
		errs = append(errs, fmt.Errorf("consultlog.scrub_rules_file: %w", err))
	} else if _, err := scrub.New(sc); err != nil {
		errs = append(errs, fmt.Errorf("consultlog.scrub_allow_list: %w", err))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

// KnowledgeStore returns the knowledge store configuration.
func (c *Config) KnowledgeStore() knowledge.Config {
	return knowledge.Config{Path: c.Knowledge.Path, BackupDir: c.Knowledge.BackupDir}
}

// Splitter returns the chunker configuration.
func (c *Config) Splitter() chunker.Config {
	return chunker.Config{MaxSize: c.Chunker.Size, Overlap: c.Chunker.Overlap}
}

// EmbeddingProvider returns the embedding provider configuration.
func (c *Config) EmbeddingProvider() embeddings.ProviderConfig {
	return embeddings.ProviderConfig{
		Provider: c.Embeddings.Provider,
		Model:    c.Embeddings.Model,
		BaseURL:  c.Embeddings.BaseURL,
		APIKey:   c.Embeddings.APIKey.Value(),
		CacheDir: c.Embeddings.CacheDir,
	}
}

// VectorIndex returns the vector index configuration.
func (c *Config) VectorIndex() vectorindex.Config {
	return vectorindex.Config{
		Path:          c.Index.Path,
		Collection:    c.Index.Collection,
		Compress:      c.Index.Compress,
		QueryCacheTTL: c.Index.QueryCacheTTL,
	}
}

// Generator returns the generation configuration.
func (c *Config) Generator() synthesis.Config {
	g := c.Generation
	return synthesis.Config{
		Provider:    g.Provider,
		Model:       g.Model,
		BaseURL:     g.BaseURL,
		APIKey:      g.APIKey.Value(),
		Timeout:     g.Timeout,
		Temperature: g.Temperature,
		MaxTokens:   g.MaxTokens,
		RateLimit:   g.RateLimit,
		Burst:       g.Burst,
	}
}

// ConsultationLog returns the consultation log configuration.
func (c *Config) ConsultationLog() consultlog.Config {
	l := c.ConsultLog
	return consultlog.Config{
		Enabled:    l.Enabled,
		Path:       l.Path,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}

// QueryScrubber returns the scrubber applied to logged queries, merging
// the default rules with any rules file.
func (c *Config) QueryScrubber() (*scrub.Config, error) {
	cfg := &scrub.Config{
		Enabled:   c.ConsultLog.Scrub,
		Rules:     scrub.DefaultRules(),
		Redaction: scrub.DefaultRedaction,
		AllowList: append([]string(nil), c.ConsultLog.ScrubAllowList...),
	}
	if !cfg.Enabled || c.ConsultLog.ScrubRulesFile == "" {
		return cfg, nil
	}
	rf, err := scrub.LoadRulesFile(c.ConsultLog.ScrubRulesFile)
	if err != nil {
		return nil, err
	}
	cfg.Rules = scrub.MergeRules(cfg.Rules, rf.Rules)
	cfg.AllowList = append(cfg.AllowList, rf.AllowList...)
	return cfg, nil
}
