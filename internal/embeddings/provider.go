// Package embeddings provides the embedding capability used by the vector
// index. Providers are selected by name; every construction failure is
// reported as ErrUnavailable so callers can fall back to keyword retrieval.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrUnavailable indicates the embedding capability cannot be used.
	// It is recoverable: retrieval degrades to keyword search.
	ErrUnavailable = errors.New("embedding capability unavailable")

	// ErrEmptyInput indicates empty or nil input texts
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Embedder turns text into fixed-length vectors.
type Embedder interface {
	// EmbedDocuments embeds passages for indexing.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Provider is an Embedder with a known dimension and releasable resources.
type Provider interface {
	Embedder
	// Dimension returns the embedding dimension, or 0 if unknown.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// Provider names accepted by NewProvider.
const (
	ProviderNone      = "none"
	ProviderFastEmbed = "fastembed"
	ProviderTEI       = "tei"
	ProviderOpenAI    = "openai"
)

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is one of none, fastembed, tei or openai.
	Provider string
	// Model is the embedding model name.
	Model string
	// BaseURL is the service URL for tei and openai.
	BaseURL string
	// APIKey is sent to openai-compatible endpoints.
	APIKey string
	// CacheDir is the model cache directory (fastembed only).
	CacheDir string
}

// NewProvider creates the configured provider wrapped with metrics.
// Disabled or unconstructible providers return an error wrapping
// ErrUnavailable; unknown names return ErrInvalidConfig.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		p   Provider
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderNone:
		return nil, fmt.Errorf("%w: embeddings disabled", ErrUnavailable)
	case ProviderFastEmbed:
		p, err = NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case ProviderTEI:
		var svc *Service
		svc, err = NewService(Config{BaseURL: cfg.BaseURL, Model: cfg.Model})
		if err == nil {
			p = &teiProvider{Service: svc, dimension: detectDimensionFromModel(cfg.Model)}
		}
	case ProviderOpenAI:
		p, err = NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, cfg.Provider, err)
	}

	logger.Info("embedding provider ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("dimension", p.Dimension()),
	)
	return Instrument(p, cfg.Model, NewMetrics(logger)), nil
}

// detectDimensionFromModel returns the embedding dimension for a model name.
// Falls back to 384 if model is unknown.
func detectDimensionFromModel(model string) int {
	if dim, ok := fastEmbedModelDimension(model); ok {
		return dim
	}
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "text-embedding-3-large"):
		return 3072
	case strings.Contains(lower, "text-embedding"):
		return 1536
	case strings.Contains(lower, "base"):
		return 768
	case strings.Contains(lower, "large"):
		return 1024
	default:
		return 384
	}
}

// knownDimensions covers the models the fastembed provider can load.
var knownDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"fast-bge-small-en-v1.5":                 384,
	"fast-bge-small-en":                      384,
	"fast-bge-base-en-v1.5":                  768,
	"fast-bge-base-en":                       768,
	"fast-bge-small-zh-v1.5":                 512,
	"fast-all-MiniLM-L6-v2":                  384,
}

func fastEmbedModelDimension(model string) (int, bool) {
	dim, ok := knownDimensions[model]
	return dim, ok
}

// teiProvider wraps Service to implement Provider interface.
type teiProvider struct {
	*Service
	dimension int
}

// Dimension returns the embedding dimension based on the configured model.
func (t *teiProvider) Dimension() int {
	return t.dimension
}

// Close is a no-op for TEI since it uses HTTP.
func (t *teiProvider) Close() error {
	return nil
}
