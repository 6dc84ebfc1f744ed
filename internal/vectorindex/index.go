// Package vectorindex holds chunk embeddings in an in-memory chromem-go
// collection and answers cosine-similarity queries against it. The whole
// collection is rebuilt whenever the knowledge store changes.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/triaged/internal/chunker"
	"github.com/fyrsmithlabs/triaged/internal/embeddings"
)

var tracer = otel.Tracer("triaged.vectorindex")

var (
	// ErrNotReady is returned by Search and Persist before a successful build
	// or after a failed rebuild.
	ErrNotReady = errors.New("vector index not ready")

	// ErrDimensionMismatch indicates vectors of an unexpected length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Metadata keys stored on every indexed chunk.
const (
	metaSeq      = "seq"
	metaDocument = "document_id"
	metaTitle    = "title"
	metaCategory = "category"
	metaPosition = "position"
)

// Config holds configuration for the vector index.
type Config struct {
	// Path is the gob export location.
	// Default: data/vector_index.gob
	Path string

	// Collection is the chromem collection name.
	// Default: medical_knowledge
	Collection string

	// Compress gzips the export.
	Compress bool

	// QueryCacheTTL bounds how long query embeddings are reused.
	// Default: 10m
	QueryCacheTTL time.Duration

	// Dimension is the expected embedding length; 0 accepts any.
	Dimension int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = filepath.Join("data", "vector_index.gob")
	}
	if c.Collection == "" {
		c.Collection = "medical_knowledge"
	}
	if c.QueryCacheTTL == 0 {
		c.QueryCacheTTL = 10 * time.Minute
	}
}

// Hit is a scored chunk returned by Search.
type Hit struct {
	Chunk chunker.Chunk
	Score float64
	seq   int
}

// Status describes the served index.
type Status struct {
	Ready      bool   `json:"ready"`
	Chunks     int    `json:"chunks"`
	Collection string `json:"collection"`
	Path       string `json:"path"`
	Compressed bool   `json:"compressed"`
}

type entry struct {
	chunk chunker.Chunk
	seq   int
}

// snapshot is one built collection; it is never mutated after install.
type snapshot struct {
	db      *chromem.DB
	coll    *chromem.Collection
	entries map[string]entry
}

// Index is a rebuild-on-write embedding index.
type Index struct {
	config   Config
	embedder embeddings.Embedder
	logger   *zap.Logger
	queries  *cache.Cache

	mu   sync.RWMutex
	snap *snapshot
}

// New creates an empty, not-ready Index. A nil embedder returns an error
// wrapping embeddings.ErrUnavailable.
func New(cfg Config, embedder embeddings.Embedder, logger *zap.Logger) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", embeddings.ErrUnavailable)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	return &Index{
		config:   cfg,
		embedder: embedder,
		logger:   logger,
		queries:  cache.New(cfg.QueryCacheTTL, 2*cfg.QueryCacheTTL),
	}, nil
}

// Config returns the effective configuration.
func (i *Index) Config() Config {
	return i.config
}

// Ready reports whether the index can serve queries.
func (i *Index) Ready() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.snap != nil
}

// Status reports the served index.
func (i *Index) Status() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()
	st := Status{
		Ready:      i.snap != nil,
		Collection: i.config.Collection,
		Path:       i.config.Path,
		Compressed: i.config.Compress,
	}
	if i.snap != nil {
		st.Chunks = len(i.snap.entries)
	}
	return st
}

// embedFunc lets chromem embed on its own if it ever needs to; all
// documents are added with precomputed vectors.
func (i *Index) embedFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return i.embedder.EmbedQuery(ctx, text)
	}
}

// Build embeds every chunk and swaps in a fresh collection. On failure the
// index becomes not-ready.
func (i *Index) Build(ctx context.Context, chunks []chunker.Chunk) error {
	ctx, span := tracer.Start(ctx, "Index.Build")
	defer span.End()
	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))

	snap, err := i.build(ctx, chunks)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build failed")
		RebuildsTotal.WithLabelValues("failure").Inc()
		i.install(nil)
		return err
	}

	RebuildsTotal.WithLabelValues("success").Inc()
	i.install(snap)
	i.logger.Info("vector index built", zap.Int("chunks", len(chunks)))
	return nil
}

func (i *Index) build(ctx context.Context, chunks []chunker.Chunk) (*snapshot, error) {
	db := chromem.NewDB()
	coll, err := db.CreateCollection(i.config.Collection, nil, i.embedFunc())
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}
	snap := &snapshot{db: db, coll: coll, entries: make(map[string]entry, len(chunks))}
	if len(chunks) == 0 {
		return snap, nil
	}

	texts := make([]string, len(chunks))
	for n, c := range chunks {
		texts[n] = c.Text
	}
	vectors, err := i.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding chunks: %v", embeddings.ErrUnavailable, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", embeddings.ErrUnavailable, len(vectors), len(chunks))
	}

	docs := make([]chromem.Document, len(chunks))
	for n, c := range chunks {
		if i.config.Dimension > 0 && len(vectors[n]) != i.config.Dimension {
			return nil, fmt.Errorf("%w: chunk %s has %d, want %d", ErrDimensionMismatch, c.ID(), len(vectors[n]), i.config.Dimension)
		}
		if zeroNorm(vectors[n]) {
			return nil, fmt.Errorf("%w: chunk %s has a zero-norm embedding", embeddings.ErrUnavailable, c.ID())
		}
		docs[n] = chromem.Document{
			ID: c.ID(),
			Metadata: map[string]string{
				metaSeq:      strconv.Itoa(n),
				metaDocument: c.DocumentID,
				metaTitle:    c.Title,
				metaCategory: c.Category,
				metaPosition: strconv.Itoa(c.Position),
			},
			Embedding: vectors[n],
			Content:   c.Text,
		}
		snap.entries[c.ID()] = entry{chunk: c, seq: n}
	}
	if err := coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("adding documents: %w", err)
	}
	return snap, nil
}

func (i *Index) install(snap *snapshot) {
	i.mu.Lock()
	i.snap = snap
	i.mu.Unlock()

	i.queries.Flush()
	if snap == nil {
		Chunks.Set(0)
		return
	}
	Chunks.Set(float64(len(snap.entries)))
}

func (i *Index) current() *snapshot {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.snap
}

// Search ranks every indexed chunk by cosine similarity to query and
// returns the top k (k <= 0 returns all). Equal scores keep chunk order.
func (i *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	ctx, span := tracer.Start(ctx, "Index.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k), attribute.Int("query_length", len(query)))

	snap := i.current()
	if snap == nil {
		return nil, ErrNotReady
	}
	total := snap.coll.Count()
	if total == 0 {
		return []Hit{}, nil
	}

	vector, err := i.queryVector(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query embedding failed")
		return nil, err
	}

	results, err := snap.coll.QueryEmbedding(ctx, vector, total, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		e, ok := snap.entries[r.ID]
		if !ok {
			continue
		}
		score := float64(r.Similarity)
		if math.IsNaN(score) {
			score = 0
		}
		hits = append(hits, Hit{Chunk: e.chunk, Score: score, seq: e.seq})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].seq < hits[b].seq
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	span.SetAttributes(attribute.Int("hit_count", len(hits)))
	return hits, nil
}

func (i *Index) queryVector(ctx context.Context, query string) ([]float32, error) {
	if v, ok := i.queries.Get(query); ok {
		QueryCacheTotal.WithLabelValues("hit").Inc()
		return v.([]float32), nil
	}
	QueryCacheTotal.WithLabelValues("miss").Inc()

	vector, err := i.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", embeddings.ErrUnavailable, err)
	}
	if i.config.Dimension > 0 && len(vector) != i.config.Dimension {
		return nil, fmt.Errorf("%w: query has %d, want %d", ErrDimensionMismatch, len(vector), i.config.Dimension)
	}
	if zeroNorm(vector) {
		return nil, fmt.Errorf("%w: query has a zero-norm embedding", embeddings.ErrUnavailable)
	}
	i.queries.SetDefault(query, vector)
	return vector, nil
}

// zeroNorm reports whether v has no direction, which makes cosine
// similarity undefined.
func zeroNorm(v []float32) bool {
	for _, x := range v {
		if x != 0 && !math.IsNaN(float64(x)) {
			return false
		}
	}
	return true
}

// Persist exports the served index to path (Config.Path when empty)
// through a temp file and rename.
func (i *Index) Persist(ctx context.Context, path string) error {
	_, span := tracer.Start(ctx, "Index.Persist")
	defer span.End()

	snap := i.current()
	if snap == nil {
		return ErrNotReady
	}
	if path == "" {
		path = i.config.Path
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		span.RecordError(err)
		return fmt.Errorf("creating index directory: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("creating index temp file: %w", err)
	}
	tmp := f.Name()
	_ = f.Close()
	if err := snap.db.ExportToFile(tmp, i.config.Compress, "", i.config.Collection); err != nil {
		_ = os.Remove(tmp)
		span.RecordError(err)
		return fmt.Errorf("exporting index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		span.RecordError(err)
		return fmt.Errorf("renaming index export: %w", err)
	}
	return nil
}

// Load imports the export at path (Config.Path when empty) if it matches
// chunks. Otherwise it rebuilds from chunks and persists the result; a
// persistence failure after a successful rebuild is only logged.
func (i *Index) Load(ctx context.Context, path string, chunks []chunker.Chunk) (rebuilt bool, err error) {
	ctx, span := tracer.Start(ctx, "Index.Load")
	defer span.End()

	if path == "" {
		path = i.config.Path
	}

	snap, reason := i.importSnapshot(ctx, path, chunks)
	if snap != nil {
		i.install(snap)
		i.logger.Info("vector index loaded", zap.String("path", path), zap.Int("chunks", len(chunks)))
		return false, nil
	}

	i.logger.Info("rebuilding vector index", zap.String("path", path), zap.String("reason", reason))
	span.SetAttributes(attribute.String("rebuild_reason", reason))
	if err := i.Build(ctx, chunks); err != nil {
		return true, err
	}
	if err := i.Persist(ctx, path); err != nil {
		i.logger.Warn("persisting vector index failed", zap.String("path", path), zap.Error(err))
	}
	return true, nil
}

// importSnapshot returns nil and a reason when the export is absent,
// unreadable or stale.
func (i *Index) importSnapshot(ctx context.Context, path string, chunks []chunker.Chunk) (*snapshot, string) {
	if _, err := os.Stat(path); err != nil {
		return nil, "index file absent"
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(path, ""); err != nil {
		i.logger.Warn("importing vector index failed", zap.String("path", path), zap.Error(err))
		return nil, "index file unreadable"
	}
	coll := db.GetCollection(i.config.Collection, i.embedFunc())
	if coll == nil {
		return nil, "collection missing"
	}
	if coll.Count() != len(chunks) {
		return nil, "chunk count changed"
	}

	snap := &snapshot{db: db, coll: coll, entries: make(map[string]entry, len(chunks))}
	for n, c := range chunks {
		doc, err := coll.GetByID(ctx, c.ID())
		if err != nil {
			return nil, "chunk ids changed"
		}
		if doc.Content != c.Text || doc.Metadata[metaSeq] != strconv.Itoa(n) {
			return nil, "chunk content changed"
		}
		if i.config.Dimension > 0 && len(doc.Embedding) != i.config.Dimension {
			return nil, "embedding dimension changed"
		}
		snap.entries[c.ID()] = entry{chunk: c, seq: n}
	}
	return snap, ""
}

// Invalidate marks the index not-ready.
func (i *Index) Invalidate() {
	i.install(nil)
}
