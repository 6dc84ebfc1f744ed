package retrieval

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/triaged/internal/chunker"
	"github.com/fyrsmithlabs/triaged/internal/embeddings"
	"github.com/fyrsmithlabs/triaged/internal/keyword"
	"github.com/fyrsmithlabs/triaged/internal/knowledge"
	"github.com/fyrsmithlabs/triaged/internal/vectorindex"
)

type stubSearcher struct {
	hits  []vectorindex.Hit
	err   error
	calls int
}

func (s *stubSearcher) Search(_ context.Context, _ string, k int) ([]vectorindex.Hit, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if k > 0 && len(s.hits) > k {
		return s.hits[:k], nil
	}
	return s.hits, nil
}

func seededChunks(t *testing.T) []chunker.Chunk {
	t.Helper()
	store, err := knowledge.Open(knowledge.Config{Path: filepath.Join(t.TempDir(), "kb.json")}, nil)
	require.NoError(t, err)
	splitter, err := chunker.New(chunker.Config{})
	require.NoError(t, err)
	return splitter.SplitAll(store.List())
}

func TestRetrieve_KeywordOnly(t *testing.T) {
	chunks := seededChunks(t)
	r := New(chunks, nil)
	assert.False(t, r.VectorEnabled())

	results := r.Retrieve(context.Background(), "severe headache with nausea", 0)
	require.Len(t, results, DefaultTopK)
	assert.Equal(t, "Headache Types and Causes", results[0].Title)
	assert.Equal(t, StrategyKeyword, results[0].Strategy)
	for n, res := range results {
		assert.Equal(t, n+1, res.Rank)
	}
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestRetrieve_UsesVectorIndex(t *testing.T) {
	c := chunker.Chunk{DocumentID: "fever", Title: "Fever", Category: "symptoms", Text: "fever text"}
	idx := &stubSearcher{hits: []vectorindex.Hit{{Chunk: c, Score: 0.9}}}
	r := New([]chunker.Chunk{c}, idx)

	before := testutil.ToFloat64(RequestsTotal.WithLabelValues(string(StrategyVector)))
	results := r.Retrieve(context.Background(), "anything", 3)
	require.Len(t, results, 1)
	assert.Equal(t, StrategyVector, results[0].Strategy)
	assert.InDelta(t, 0.9, results[0].Score, 1e-9)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 1.0, testutil.ToFloat64(RequestsTotal.WithLabelValues(string(StrategyVector)))-before)
}

func TestRetrieve_DegradesToKeywordResults(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	chunks := seededChunks(t)
	idx := &stubSearcher{err: embeddings.ErrUnavailable}
	r := New(chunks, idx, WithLogger(zap.New(core)))

	queries := []string{"severe headache with nausea", "fever in children", "cough and shortness of breath", "xyzzy"}
	before := testutil.ToFloat64(DegradationsTotal)
	for _, q := range queries {
		got := r.Retrieve(context.Background(), q, 3)
		want := keyword.Search(chunks, q, 3)
		require.Len(t, got, len(want), q)
		for n := range want {
			assert.Equal(t, want[n].Chunk.Text, got[n].Text, q)
			assert.InDelta(t, want[n].Score, got[n].Score, 1e-12)
		}
	}

	assert.Equal(t, float64(len(queries)), testutil.ToFloat64(DegradationsTotal)-before)
	assert.Equal(t, len(queries), idx.calls)

	entries := logs.FilterMessage("vector search failed, using keyword search").All()
	require.Len(t, entries, len(queries))
	for _, e := range entries {
		fields := e.ContextMap()
		assert.NotContains(t, fields, "query", "query text must not be logged")
		assert.Contains(t, fields, "query_length")
	}
}

func TestRetrieve_AddedDocumentIsFound(t *testing.T) {
	store, err := knowledge.Open(knowledge.Config{Path: filepath.Join(t.TempDir(), "kb.json")}, nil)
	require.NoError(t, err)
	_, err = store.Add(context.Background(), "Test Doc", "aspirin dosage guidance", "medications", knowledge.SourceManual)
	require.NoError(t, err)
	splitter, err := chunker.New(chunker.Config{})
	require.NoError(t, err)

	results := New(splitter.SplitAll(store.List()), nil).Retrieve(context.Background(), "aspirin dosage", 3)
	require.NotEmpty(t, results)
	assert.Equal(t, "Test Doc", results[0].Title)
}

func TestRetrieve_EmptyStore(t *testing.T) {
	r := New(nil, nil)
	results := r.Retrieve(context.Background(), "headache", 3)
	assert.Empty(t, results)
	assert.Equal(t, NoContext, r.Context(context.Background(), "headache"))
}

func TestContext_IncludesTitles(t *testing.T) {
	r := New(seededChunks(t), nil)
	ctx := r.Context(context.Background(), "severe headache with nausea")
	assert.True(t, HasContext(ctx))
	assert.True(t, strings.HasPrefix(ctx, "Medical Reference 1:\nTopic: Headache Types and Causes\n"))
}

func TestFormatContext(t *testing.T) {
	results := []Result{
		{Title: "Fever", Category: "symptoms", Text: "Rest and fluids."},
		{Title: "Cough", Category: "respiratory", Text: strings.Repeat("é", 12)},
	}

	got := FormatContext(results, 10)
	want := "Medical Reference 1:\nTopic: Fever\nCategory: symptoms\nContent: Rest and f...\n" +
		"\n" +
		"Medical Reference 2:\nTopic: Cough\nCategory: respiratory\nContent: " + strings.Repeat("é", 10) + "...\n"
	assert.Equal(t, want, got)

	assert.Equal(t, NoContext, FormatContext(nil, 0))
	assert.Contains(t, FormatContext(results[:1], 0), "Content: Rest and fluids.\n")
}

func TestHasContext(t *testing.T) {
	assert.False(t, HasContext(""))
	assert.False(t, HasContext("  \n"))
	assert.False(t, HasContext(NoContext))
	assert.True(t, HasContext("Medical Reference 1:\nTopic: Fever\n"))
}

func TestRetrieve_VectorErrorNeverEscapes(t *testing.T) {
	r := New(nil, &stubSearcher{err: errors.New("boom")})
	assert.NotPanics(t, func() {
		assert.Empty(t, r.Retrieve(context.Background(), "fever", 3))
	})
}
