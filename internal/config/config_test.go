package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/triaged/internal/embeddings"
	"github.com/fyrsmithlabs/triaged/internal/scrub"
	"github.com/fyrsmithlabs/triaged/internal/synthesis"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	t.Setenv(EnvConfigFile, "")
	cfg, err := Load("")
	require.NoError(t, err)
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty knowledge path", func(c *Config) { c.Knowledge.Path = "" }, "knowledge.path"},
		{"zero chunk size", func(c *Config) { c.Chunker.Size = 0 }, "chunker.size"},
		{"overlap equals size", func(c *Config) { c.Chunker.Overlap = c.Chunker.Size }, "chunker.overlap"},
		{"negative overlap", func(c *Config) { c.Chunker.Overlap = -1 }, "chunker.overlap"},
		{"unknown embeddings", func(c *Config) { c.Embeddings.Provider = "word2vec" }, "embeddings.provider"},
		{"tei without url", func(c *Config) { c.Embeddings.Provider = embeddings.ProviderTEI }, "embeddings.base_url"},
		{"tei with url", func(c *Config) {
			c.Embeddings.Provider = embeddings.ProviderTEI
			c.Embeddings.BaseURL = "http://localhost:8080"
		}, ""},
		{"empty collection", func(c *Config) { c.Index.Collection = "" }, "index.collection"},
		{"zero top k", func(c *Config) { c.Retrieval.TopK = 0 }, "retrieval.top_k"},
		{"zero preview", func(c *Config) { c.Retrieval.PreviewLength = 0 }, "retrieval.preview_length"},
		{"unknown generator", func(c *Config) { c.Generation.Provider = "gemini" }, "generation.provider"},
		{"openai without key or url", func(c *Config) { c.Generation.Provider = synthesis.ProviderOpenAI }, "generation.api_key or generation.base_url"},
		{"openai compatible url", func(c *Config) {
			c.Generation.Provider = synthesis.ProviderOpenAI
			c.Generation.BaseURL = "https://api.together.xyz/v1"
		}, ""},
		{"anthropic without key", func(c *Config) { c.Generation.Provider = synthesis.ProviderAnthropic }, "generation.api_key is required"},
		{"zero timeout", func(c *Config) { c.Generation.Timeout = 0 }, "generation.timeout"},
		{"hot temperature", func(c *Config) { c.Generation.Temperature = 3 }, "generation.temperature"},
		{"zero burst", func(c *Config) { c.Generation.Burst = 0 }, "generation.burst"},
		{"consultlog without path", func(c *Config) { c.ConsultLog.Path = "" }, "consultlog.path"},
		{"disabled consultlog without path", func(c *Config) {
			c.ConsultLog.Enabled = false
			c.ConsultLog.Path = ""
		}, ""},
		{"bad scrub allow list", func(c *Config) { c.ConsultLog.ScrubAllowList = []string{"("} }, "consultlog.scrub_allow_list"},
		{"missing scrub rules file", func(c *Config) { c.ConsultLog.ScrubRulesFile = "/nonexistent/scrub.toml" }, "consultlog.scrub_rules_file"},
		{"rules file ignored when scrub disabled", func(c *Config) {
			c.ConsultLog.Scrub = false
			c.ConsultLog.ScrubRulesFile = "/nonexistent/scrub.toml"
		}, ""},
		{"bad server port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"zero server shutdown", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "server.shutdown_timeout"},
		{"bad logging format", func(c *Config) { c.Logging.Format = "xml" }, "logging: format"},
		{"telemetry without endpoint", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Endpoint = ""
		}, "telemetry: endpoint is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateReportsEveryProblem(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Retrieval.TopK = 0
	cfg.Generation.Provider = "gemini"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieval.top_k")
	assert.Contains(t, err.Error(), "generation.provider")
}

func TestConfig_Conversions(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Embeddings.APIKey = "emb-key"
	cfg.Generation.APIKey = "gen-key"

	assert.Equal(t, "data/medical_knowledge.json", cfg.KnowledgeStore().Path)

	sp := cfg.Splitter()
	assert.Equal(t, 500, sp.MaxSize)
	assert.Equal(t, 50, sp.Overlap)

	ep := cfg.EmbeddingProvider()
	assert.Equal(t, embeddings.ProviderNone, ep.Provider)
	assert.Equal(t, "emb-key", ep.APIKey)

	vi := cfg.VectorIndex()
	assert.Equal(t, "medical_knowledge", vi.Collection)
	assert.Equal(t, 10*time.Minute, vi.QueryCacheTTL)

	g := cfg.Generator()
	assert.Equal(t, synthesis.ProviderRules, g.Provider)
	assert.Equal(t, "gen-key", g.APIKey)
	assert.Equal(t, 30*time.Second, g.Timeout)
	assert.Equal(t, 5, g.Burst)

	cl := cfg.ConsultationLog()
	assert.True(t, cl.Enabled)
	assert.Equal(t, 10, cl.MaxSizeMB)
	assert.True(t, cl.Compress)

	sc, err := cfg.QueryScrubber()
	require.NoError(t, err)
	assert.True(t, sc.Enabled)
	assert.Equal(t, scrub.DefaultRedaction, sc.Redaction)
	assert.NotEmpty(t, sc.Rules)
}
