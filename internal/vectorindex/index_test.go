package vectorindex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/triaged/internal/chunker"
	"github.com/fyrsmithlabs/triaged/internal/embeddings"
)

var vocabulary = []string{"fever", "cough", "headache", "nausea", "aspirin", "rash", "pain"}

// wordEmbedder counts vocabulary words; the last component is a constant
// bias so no vector is zero.
type wordEmbedder struct {
	docCalls   atomic.Int32
	queryCalls atomic.Int32
	fail       bool
}

func embedWords(text string) []float32 {
	v := make([]float32, len(vocabulary)+1)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		for n, term := range vocabulary {
			if strings.Trim(w, ".,") == term {
				v[n]++
			}
		}
	}
	v[len(vocabulary)] = 0.1
	return v
}

func (e *wordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.docCalls.Add(1)
	if e.fail {
		return nil, errors.New("model offline")
	}
	out := make([][]float32, len(texts))
	for n, t := range texts {
		out[n] = embedWords(t)
	}
	return out, nil
}

func (e *wordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.queryCalls.Add(1)
	if e.fail {
		return nil, errors.New("model offline")
	}
	return embedWords(text), nil
}

func testChunks() []chunker.Chunk {
	return []chunker.Chunk{
		{DocumentID: "fever", Title: "Fever", Category: "symptoms", Text: "Fever with rash"},
		{DocumentID: "cough", Title: "Cough", Category: "respiratory", Text: "Dry cough and fever"},
		{DocumentID: "headache", Title: "Headache", Category: "neurological", Text: "Headache with nausea. Headache pain"},
		{DocumentID: "aspirin", Title: "Aspirin", Category: "medications", Text: "Aspirin for pain"},
	}
}

func newTestIndex(t *testing.T, e embeddings.Embedder, cfg Config) *Index {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "index.gob")
	}
	idx, err := New(cfg, e, zaptest.NewLogger(t))
	require.NoError(t, err)
	return idx
}

func hitIDs(hits []Hit) []string {
	ids := make([]string, len(hits))
	for n, h := range hits {
		ids[n] = h.Chunk.DocumentID
	}
	return ids
}

func TestNew_NilEmbedder(t *testing.T) {
	_, err := New(Config{}, nil, nil)
	assert.ErrorIs(t, err, embeddings.ErrUnavailable)
}

func TestIndex_SearchBeforeBuild(t *testing.T) {
	idx := newTestIndex(t, &wordEmbedder{}, Config{})
	assert.False(t, idx.Ready())

	_, err := idx.Search(context.Background(), "fever", 3)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, idx.Persist(context.Background(), ""), ErrNotReady)
}

func TestIndex_BuildAndSearch(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, &wordEmbedder{}, Config{})
	require.NoError(t, idx.Build(ctx, testChunks()))
	assert.True(t, idx.Ready())
	assert.Equal(t, 4, idx.Status().Chunks)

	hits, err := idx.Search(ctx, "headache and nausea", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "headache", hits[0].Chunk.DocumentID)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	hits, err = idx.Search(ctx, "aspirin", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 4)
	assert.Equal(t, "aspirin", hits[0].Chunk.DocumentID)
}

func TestIndex_EqualScoresKeepChunkOrder(t *testing.T) {
	ctx := context.Background()
	chunks := []chunker.Chunk{
		{DocumentID: "c", Text: "fever"},
		{DocumentID: "a", Text: "fever"},
		{DocumentID: "b", Text: "fever"},
	}
	idx := newTestIndex(t, &wordEmbedder{}, Config{})
	require.NoError(t, idx.Build(ctx, chunks))

	for n := 0; n < 5; n++ {
		hits, err := idx.Search(ctx, "fever", 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a", "b"}, hitIDs(hits))
	}
}

// zeroEmbedder returns an all-zero vector for the query, or for any chunk
// whose text equals zeroText.
type zeroEmbedder struct {
	wordEmbedder
	zeroQuery bool
	zeroText  string
}

func (e *zeroEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := e.wordEmbedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	for n, t := range texts {
		if t == e.zeroText {
			out[n] = make([]float32, len(vocabulary)+1)
		}
	}
	return out, nil
}

func (e *zeroEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.zeroQuery {
		return make([]float32, len(vocabulary)+1), nil
	}
	return e.wordEmbedder.EmbedQuery(ctx, text)
}

func TestIndex_ZeroNormVectorsAreUnavailable(t *testing.T) {
	ctx := context.Background()

	t.Run("query", func(t *testing.T) {
		e := &zeroEmbedder{zeroQuery: true}
		idx := newTestIndex(t, e, Config{})
		require.NoError(t, idx.Build(ctx, testChunks()))

		hits, err := idx.Search(ctx, "fever", 3)
		assert.ErrorIs(t, err, embeddings.ErrUnavailable)
		assert.Empty(t, hits)

		e.zeroQuery = false
		hits, err = idx.Search(ctx, "fever", 3)
		require.NoError(t, err, "a zero vector is not cached")
		assert.Equal(t, "fever", hits[0].Chunk.DocumentID)
	})

	t.Run("chunk", func(t *testing.T) {
		idx := newTestIndex(t, &zeroEmbedder{zeroText: "Aspirin for pain"}, Config{})
		err := idx.Build(ctx, testChunks())
		assert.ErrorIs(t, err, embeddings.ErrUnavailable)
		assert.False(t, idx.Ready())
	})
}

func TestIndex_BuildEmpty(t *testing.T) {
	idx := newTestIndex(t, &wordEmbedder{}, Config{})
	require.NoError(t, idx.Build(context.Background(), nil))
	assert.True(t, idx.Ready())

	hits, err := idx.Search(context.Background(), "fever", 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_BuildFailureMarksNotReady(t *testing.T) {
	ctx := context.Background()
	e := &wordEmbedder{}
	idx := newTestIndex(t, e, Config{})
	require.NoError(t, idx.Build(ctx, testChunks()))

	e.fail = true
	err := idx.Build(ctx, testChunks())
	assert.ErrorIs(t, err, embeddings.ErrUnavailable)
	assert.False(t, idx.Ready())

	_, err = idx.Search(ctx, "fever", 3)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestIndex_QueryFailureIsUnavailable(t *testing.T) {
	ctx := context.Background()
	e := &wordEmbedder{}
	idx := newTestIndex(t, e, Config{})
	require.NoError(t, idx.Build(ctx, testChunks()))

	e.fail = true
	_, err := idx.Search(ctx, "fever", 3)
	assert.ErrorIs(t, err, embeddings.ErrUnavailable)
}

func TestIndex_DimensionMismatch(t *testing.T) {
	idx := newTestIndex(t, &wordEmbedder{}, Config{Dimension: 384})
	err := idx.Build(context.Background(), testChunks())
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.False(t, idx.Ready())
}

func TestIndex_QueryEmbeddingsAreCached(t *testing.T) {
	ctx := context.Background()
	e := &wordEmbedder{}
	idx := newTestIndex(t, e, Config{})
	require.NoError(t, idx.Build(ctx, testChunks()))

	for n := 0; n < 3; n++ {
		_, err := idx.Search(ctx, "fever", 3)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), e.queryCalls.Load())

	require.NoError(t, idx.Build(ctx, testChunks()))
	_, err := idx.Search(ctx, "fever", 3)
	require.NoError(t, err)
	assert.Equal(t, int32(2), e.queryCalls.Load(), "rebuild flushes the query cache")
}

func TestIndex_PersistAndLoad(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "plain", true: "gzip"}[compress], func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "nested", "index.gob")

			first := newTestIndex(t, &wordEmbedder{}, Config{Path: path, Compress: compress})
			rebuilt, err := first.Load(ctx, "", testChunks())
			require.NoError(t, err)
			assert.True(t, rebuilt, "missing file forces a rebuild")
			require.FileExists(t, path)
			leftovers, err := filepath.Glob(path + ".*.tmp")
			require.NoError(t, err)
			assert.Empty(t, leftovers)

			want, err := first.Search(ctx, "cough", 0)
			require.NoError(t, err)

			e := &wordEmbedder{}
			second := newTestIndex(t, e, Config{Path: path, Compress: compress})
			rebuilt, err = second.Load(ctx, "", testChunks())
			require.NoError(t, err)
			assert.False(t, rebuilt)
			assert.Equal(t, int32(0), e.docCalls.Load())

			got, err := second.Search(ctx, "cough", 0)
			require.NoError(t, err)
			assert.Equal(t, hitIDs(want), hitIDs(got))
		})
	}
}

func TestIndex_ConcurrentPersistToSamePath(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.gob")

	writers := make([]*Index, 4)
	for n := range writers {
		writers[n] = newTestIndex(t, &wordEmbedder{}, Config{Path: path})
		require.NoError(t, writers[n].Build(ctx, testChunks()))
	}

	var wg sync.WaitGroup
	errs := make([]error, len(writers))
	for n, idx := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 5 {
				if err := idx.Persist(ctx, ""); err != nil {
					errs[n] = err
					return
				}
			}
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	leftovers, err := filepath.Glob(path + ".*.tmp")
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	e := &wordEmbedder{}
	reader := newTestIndex(t, e, Config{Path: path})
	rebuilt, err := reader.Load(ctx, "", testChunks())
	require.NoError(t, err)
	assert.False(t, rebuilt, "the surviving export is complete")
	assert.Equal(t, int32(0), e.docCalls.Load())
}

func TestIndex_LoadRebuildsStaleExport(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.gob")

	idx := newTestIndex(t, &wordEmbedder{}, Config{Path: path})
	_, err := idx.Load(ctx, "", testChunks())
	require.NoError(t, err)

	changed := testChunks()
	changed[3].Text = "Aspirin dosage guidance"
	added := append(testChunks(), chunker.Chunk{DocumentID: "rash", Text: "rash"})

	for name, chunks := range map[string][]chunker.Chunk{"content": changed, "count": added} {
		t.Run(name, func(t *testing.T) {
			e := &wordEmbedder{}
			fresh := newTestIndex(t, e, Config{Path: path})
			rebuilt, err := fresh.Load(ctx, "", chunks)
			require.NoError(t, err)
			assert.True(t, rebuilt)
			assert.Equal(t, int32(1), e.docCalls.Load())
		})
	}
}

func TestIndex_LoadCorruptExport(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.gob")
	require.NoError(t, os.WriteFile(path, []byte("not a gob stream"), 0o600))

	idx := newTestIndex(t, &wordEmbedder{}, Config{Path: path})
	rebuilt, err := idx.Load(ctx, "", testChunks())
	require.NoError(t, err)
	assert.True(t, rebuilt)
	assert.True(t, idx.Ready())
}

func TestIndex_LoadPersistFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	idx := newTestIndex(t, &wordEmbedder{}, Config{Path: filepath.Join(blocker, "index.gob")})
	rebuilt, err := idx.Load(ctx, "", testChunks())
	require.NoError(t, err)
	assert.True(t, rebuilt)
	assert.True(t, idx.Ready())
}

func TestIndex_Invalidate(t *testing.T) {
	idx := newTestIndex(t, &wordEmbedder{}, Config{})
	require.NoError(t, idx.Build(context.Background(), testChunks()))
	idx.Invalidate()
	assert.False(t, idx.Ready())
	assert.Equal(t, 0, idx.Status().Chunks)
}
