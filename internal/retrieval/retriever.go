// Package retrieval puts vector and keyword search behind one call. A
// Retriever never fails: vector errors are logged and answered by the
// keyword matcher over the same chunks.
package retrieval

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/triaged/internal/chunker"
	"github.com/fyrsmithlabs/triaged/internal/keyword"
	"github.com/fyrsmithlabs/triaged/internal/vectorindex"
)

const (
	// DefaultTopK is the number of results returned when k <= 0.
	DefaultTopK = 3

	// DefaultPreviewLength caps the content shown per reference.
	DefaultPreviewLength = 500
)

// Strategy names the search path that produced a result.
type Strategy string

const (
	StrategyVector  Strategy = "vector"
	StrategyKeyword Strategy = "keyword"
)

// Searcher is the vector search capability.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]vectorindex.Hit, error)
}

// Result is one ranked chunk.
type Result struct {
	Text       string   `json:"chunk_text"`
	Title      string   `json:"document_title"`
	Category   string   `json:"category"`
	DocumentID string   `json:"document_id"`
	Score      float64  `json:"relevance_score"`
	Rank       int      `json:"rank"`
	Strategy   Strategy `json:"strategy"`
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger used for degradation warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Retriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTopK sets the default result count.
func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithPreviewLength sets the per-reference content cap used by Context.
func WithPreviewLength(n int) Option {
	return func(r *Retriever) {
		if n > 0 {
			r.previewLength = n
		}
	}
}

// Retriever is an immutable view over one chunk set and its index.
type Retriever struct {
	chunks        []chunker.Chunk
	index         Searcher
	logger        *zap.Logger
	topK          int
	previewLength int
}

// New creates a Retriever over chunks. index may be nil, in which case
// every query is answered by keyword search.
func New(chunks []chunker.Chunk, index Searcher, opts ...Option) *Retriever {
	r := &Retriever{
		chunks:        chunks,
		index:         index,
		logger:        zap.NewNop(),
		topK:          DefaultTopK,
		previewLength: DefaultPreviewLength,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// VectorEnabled reports whether queries go to the vector index first.
func (r *Retriever) VectorEnabled() bool {
	return r.index != nil
}

// Chunks returns the chunk set the Retriever searches.
func (r *Retriever) Chunks() []chunker.Chunk {
	return r.chunks
}

// Retrieve returns up to k ranked results (the configured default when
// k <= 0). Ranks start at 1.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) []Result {
	start := time.Now()
	defer func() { Duration.Observe(time.Since(start).Seconds()) }()

	if k <= 0 {
		k = r.topK
	}

	if r.index != nil {
		hits, err := r.index.Search(ctx, query, k)
		if err == nil {
			RequestsTotal.WithLabelValues(string(StrategyVector)).Inc()
			return fromHits(hits)
		}
		DegradationsTotal.Inc()
		r.logger.Warn("vector search failed, using keyword search",
			zap.Int("query_length", len(query)),
			zap.Error(err),
		)
	}

	RequestsTotal.WithLabelValues(string(StrategyKeyword)).Inc()
	return fromMatches(keyword.Search(r.chunks, query, k))
}

// Context retrieves the default number of results and formats them.
func (r *Retriever) Context(ctx context.Context, query string) string {
	return FormatContext(r.Retrieve(ctx, query, 0), r.previewLength)
}

func fromHits(hits []vectorindex.Hit) []Result {
	out := make([]Result, len(hits))
	for n, h := range hits {
		out[n] = newResult(h.Chunk, h.Score, n+1, StrategyVector)
	}
	return out
}

func fromMatches(matches []keyword.Match) []Result {
	out := make([]Result, len(matches))
	for n, m := range matches {
		out[n] = newResult(m.Chunk, m.Score, n+1, StrategyKeyword)
	}
	return out
}

func newResult(c chunker.Chunk, score float64, rank int, s Strategy) Result {
	return Result{
		Text:       c.Text,
		Title:      c.Title,
		Category:   c.Category,
		DocumentID: c.DocumentID,
		Score:      score,
		Rank:       rank,
		Strategy:   s,
	}
}
