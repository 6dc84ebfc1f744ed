package triage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/triaged/internal/config"
	"github.com/fyrsmithlabs/triaged/internal/consultlog"
	"github.com/fyrsmithlabs/triaged/internal/embeddings"
	"github.com/fyrsmithlabs/triaged/internal/knowledge"
	"github.com/fyrsmithlabs/triaged/internal/logging"
	"github.com/fyrsmithlabs/triaged/internal/retrieval"
	"github.com/fyrsmithlabs/triaged/internal/synthesis"
	"github.com/fyrsmithlabs/triaged/internal/telemetry"
)

var vocabulary = []string{"fever", "cough", "headache", "nausea", "aspirin", "dosage", "burn", "chest"}

// wordEmbedder counts vocabulary words plus a constant bias component.
type wordEmbedder struct {
	docCalls atomic.Int32
	fail     atomic.Bool
}

func embedWords(text string) []float32 {
	v := make([]float32, len(vocabulary)+1)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,:;()")
		for n, term := range vocabulary {
			if w == term {
				v[n]++
			}
		}
	}
	v[len(vocabulary)] = 0.1
	return v
}

func (e *wordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.docCalls.Add(1)
	if e.fail.Load() {
		return nil, errors.New("model offline")
	}
	out := make([][]float32, len(texts))
	for n, t := range texts {
		out[n] = embedWords(t)
	}
	return out, nil
}

func (e *wordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.fail.Load() {
		return nil, errors.New("model offline")
	}
	return embedWords(text), nil
}

type failingRecorder struct{ closed atomic.Bool }

func (r *failingRecorder) Record(context.Context, consultlog.Entry) (consultlog.Entry, error) {
	return consultlog.Entry{}, fmt.Errorf("%w: disk full", consultlog.ErrWrite)
}

func (r *failingRecorder) Close() error {
	r.closed.Store(true)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv(config.EnvConfigFile, "")
	cfg, err := config.Load("")
	require.NoError(t, err)

	dir := t.TempDir()
	cfg.Knowledge.Path = filepath.Join(dir, "kb", "medical_knowledge.json")
	cfg.Knowledge.BackupDir = filepath.Join(dir, "backups")
	cfg.Index.Path = filepath.Join(dir, "index", "vector_index.gob")
	cfg.ConsultLog.Path = filepath.Join(dir, "logs", "consultations.jsonl")
	return cfg
}

func newService(t *testing.T, cfg *config.Config, opts ...Option) *Service {
	t.Helper()
	svc, err := New(cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(context.Background()))
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc
}

func readConsultations(t *testing.T, path string) []consultlog.Entry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []consultlog.Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e consultlog.Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		out = append(out, e)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestService_NotInitialized(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, retrieval.NoContext, svc.Retrieve(ctx, "headache"))
	assert.True(t, svc.Synthesize(ctx, "headache", retrieval.NoContext).Degraded)

	_, err = svc.Chat(ctx, ChatRequest{Query: "headache"})
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = svc.Statistics()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = svc.AddDocument(ctx, "t", "c", "x")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.NoError(t, svc.Shutdown(ctx))

	_, err = New(nil)
	assert.Error(t, err)
}

func TestService_ChatScenario(t *testing.T) {
	cfg := testConfig(t)
	tl := logging.NewTestLogger()
	svc := newService(t, cfg, WithLogger(tl.Underlying()))

	before := testutil.ToFloat64(TurnsTotal.WithLabelValues("severe", "ok"))
	turn, err := svc.Chat(context.Background(), ChatRequest{Query: "severe headache with nausea", SessionID: "sess-1"})
	require.NoError(t, err)

	assert.NotEmpty(t, turn.ID)
	assert.Equal(t, "sess-1", turn.SessionID)
	assert.True(t, strings.HasPrefix(turn.Context, "Medical Reference 1:\nTopic: Headache Types and Causes\n"))

	resp := turn.Response
	assert.True(t, resp.RAGContextUsed)
	assert.False(t, resp.Degraded)
	assert.Equal(t, synthesis.SeveritySevere, resp.Severity)
	assert.Equal(t, synthesis.DefaultLogStatus, resp.LogStatus)
	assert.True(t, strings.HasSuffix(resp.ProbableCause, synthesis.CauseDisclosure))
	assert.True(t, strings.HasSuffix(resp.Advice, synthesis.AdviceDisclosure))
	assert.Equal(t, 1.0, testutil.ToFloat64(TurnsTotal.WithLabelValues("severe", "ok"))-before)

	entries := readConsultations(t, cfg.ConsultLog.Path)
	require.Len(t, entries, 1)
	assert.Equal(t, turn.ID, entries[0].ID)
	assert.Equal(t, "sess-1", entries[0].SessionID)
	assert.Equal(t, consultlog.SessionType, entries[0].SessionType)
	assert.Equal(t, "severe headache with nausea", entries[0].Query)
	assert.Equal(t, "severe", entries[0].Severity)
	assert.True(t, entries[0].RAGContextUsed)

	tl.AssertLogged(t, zapcore.InfoLevel, "consultation answered")
	tl.AssertField(t, "consultation answered", "session.id", "sess-1")
	tl.AssertField(t, "consultation answered", "request.id", turn.ID)
	tl.AssertNoField(t, "query")
}

func TestService_ChatSpans(t *testing.T) {
	tt := telemetry.GlobalTestTelemetry()
	svc := newService(t, testConfig(t))

	_, err := svc.Chat(context.Background(), ChatRequest{Query: "high fever", SessionID: "span-check"})
	require.NoError(t, err)

	tt.AssertSpanExists(t, "Service.Chat")
	tt.AssertSpanExists(t, "Synthesizer.Synthesize")
	tt.AssertSpanAttribute(t, "Service.Chat", "severity", "severe")
	tt.AssertSpanAttribute(t, "Service.Chat", "rag_context_used", true)
}

func TestService_ChatDefaultsSession(t *testing.T) {
	svc := newService(t, testConfig(t))

	turn, err := svc.Chat(context.Background(), ChatRequest{Query: "I have a mild fever"})
	require.NoError(t, err)
	assert.Equal(t, DefaultSessionID, turn.SessionID)
	assert.Equal(t, synthesis.SeverityModerate, turn.Response.Severity)
}

func TestService_ChatValidation(t *testing.T) {
	svc := newService(t, testConfig(t))
	ctx := context.Background()

	_, err := svc.Chat(ctx, ChatRequest{Query: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = svc.Chat(ctx, ChatRequest{Query: "cough", SessionID: "bad session"})
	assert.Error(t, err)
}

func TestService_ChatScrubsLoggedQuery(t *testing.T) {
	cfg := testConfig(t)
	tl := logging.NewTestLogger()
	svc := newService(t, cfg, WithLogger(tl.Underlying()))

	turn, err := svc.Chat(context.Background(), ChatRequest{Query: "fever since monday, email me at jane.doe@example.com", SessionID: "sess-7"})
	require.NoError(t, err)
	assert.True(t, turn.Response.RAGContextUsed)

	entries := readConsultations(t, cfg.ConsultLog.Path)
	require.Len(t, entries, 1)
	assert.Equal(t, "fever since monday, email me at [REDACTED]", entries[0].Query)
	assert.Equal(t, 1, entries[0].Redactions)

	tl.AssertLogged(t, zapcore.DebugLevel, "scrubbed logged query")
	tl.AssertField(t, "scrubbed logged query", "logged_query", "[REDACTED:42]")
	tl.AssertField(t, "scrubbed logged query", "session.id", "sess-7")
	tl.AssertField(t, "scrubbed logged query", "request.id", turn.ID)
	tl.AssertNoField(t, "query")
}

func TestService_ChatScrubDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.ConsultLog.Scrub = false
	svc := newService(t, cfg)

	_, err := svc.Chat(context.Background(), ChatRequest{Query: "cough, call 555-123-4567"})
	require.NoError(t, err)

	entries := readConsultations(t, cfg.ConsultLog.Path)
	require.Len(t, entries, 1)
	assert.Equal(t, "cough, call 555-123-4567", entries[0].Query)
	assert.Zero(t, entries[0].Redactions)
}

func TestService_ChatLogFailureKeepsAnswer(t *testing.T) {
	rec := &failingRecorder{}
	tl := logging.NewTestLogger()
	svc := newService(t, testConfig(t), WithRecorder(rec), WithLogger(tl.Underlying()))

	before := testutil.ToFloat64(ConsultLogFailuresTotal)
	turn, err := svc.Chat(context.Background(), ChatRequest{Query: "sore throat"})
	require.NoError(t, err)
	assert.Equal(t, synthesis.LogFailedStatus, turn.Response.LogStatus)
	assert.Equal(t, synthesis.SeverityMild, turn.Response.Severity)
	assert.Equal(t, 1.0, testutil.ToFloat64(ConsultLogFailuresTotal)-before)
	tl.AssertLogged(t, zapcore.WarnLevel, "recording consultation failed")
	tl.AssertField(t, "recording consultation failed", "request.id", turn.ID)

	require.NoError(t, svc.Shutdown(context.Background()))
	assert.True(t, rec.closed.Load())
}

func TestService_ChatGeneratorTimeoutDegrades(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generation.Timeout = 20 * time.Millisecond
	slow := synthesis.GeneratorFunc(func(ctx context.Context, _ synthesis.Prompt) (synthesis.Generation, error) {
		<-ctx.Done()
		return synthesis.Generation{}, ctx.Err()
	})
	svc := newService(t, cfg, WithGenerator(slow))

	turn, err := svc.Chat(context.Background(), ChatRequest{Query: "chest pain"})
	require.NoError(t, err)

	resp := turn.Response
	assert.True(t, resp.Degraded)
	assert.False(t, resp.RAGContextUsed)
	assert.Equal(t, synthesis.FallbackCause, resp.ProbableCause)
	assert.Equal(t, synthesis.FallbackAdvice, resp.Advice)
	assert.Equal(t, synthesis.SeverityModerate, resp.Severity)
	assert.Equal(t, synthesis.DefaultLogStatus, resp.LogStatus)

	entries := readConsultations(t, cfg.ConsultLog.Path)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Degraded)
}

func TestService_SynthesizeIsDeterministic(t *testing.T) {
	svc := newService(t, testConfig(t))
	ctx := context.Background()

	retrieved := svc.Retrieve(ctx, "fever")
	first := svc.Synthesize(ctx, "high fever", retrieved)
	second := svc.Synthesize(ctx, "high fever", retrieved)
	assert.Equal(t, first, second)
	assert.Equal(t, synthesis.SeveritySevere, first.Severity)
}

func TestService_AddDocumentIsRetrievable(t *testing.T) {
	svc := newService(t, testConfig(t))
	ctx := context.Background()

	doc, err := svc.AddDocument(ctx, "Test Doc", "aspirin dosage guidance", "medications")
	require.NoError(t, err)
	assert.Equal(t, "test-doc", doc.ID)
	assert.Equal(t, knowledge.SourceManual, doc.Source)

	results, err := svc.RetrieveResults(ctx, "aspirin dosage", 3)
	require.NoError(t, err)
	var titles []string
	for _, r := range results {
		titles = append(titles, r.Title)
	}
	assert.Contains(t, titles, "Test Doc")
	assert.Contains(t, svc.Retrieve(ctx, "aspirin dosage"), "Topic: Test Doc")

	st, err := svc.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 8, st.TotalDocuments)
	assert.Equal(t, 2, st.CategoryCounts["medications"])

	_, err = svc.AddDocument(ctx, "", "content", "x")
	assert.ErrorIs(t, err, knowledge.ErrInvalidDocument)
}

func TestService_ReloadPicksUpOtherWriters(t *testing.T) {
	cfg := testConfig(t)
	svc := newService(t, cfg)
	other := newService(t, cfg)
	ctx := context.Background()

	changed, err := svc.Reload(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = other.AddDocument(ctx, "Sprain Care", "rest, ice, compression and elevation for a sprain", "first_aid")
	require.NoError(t, err)
	assert.NotContains(t, svc.Retrieve(ctx, "sprain compression"), "Topic: Sprain Care")

	changed, err = svc.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, svc.Retrieve(ctx, "sprain compression"), "Topic: Sprain Care")
}

func TestService_UploadAndUpdateDocument(t *testing.T) {
	svc := newService(t, testConfig(t))
	ctx := context.Background()

	doc, err := svc.UploadDocument(ctx, "Uploaded: burns.txt", "cool the burn under running water", "")
	require.NoError(t, err)
	assert.Equal(t, knowledge.SourceUploaded, doc.Source)
	assert.Equal(t, knowledge.DefaultCategory, doc.Category)

	updated, err := svc.UpdateDocument(ctx, doc.ID, "cool the burn for twenty minutes", "first_aid")
	require.NoError(t, err)
	assert.Equal(t, "first_aid", updated.Category)
	assert.Contains(t, svc.Retrieve(ctx, "burn twenty minutes"), "twenty minutes")

	_, err = svc.UpdateDocument(ctx, "missing", "x", "")
	assert.ErrorIs(t, err, knowledge.ErrNotFound)
}

func TestService_BackupRestoreRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	svc := newService(t, cfg)
	ctx := context.Background()

	_, err := svc.AddDocument(ctx, "Test Doc", "aspirin dosage guidance", "medications")
	require.NoError(t, err)
	before, err := svc.Documents()
	require.NoError(t, err)

	path, err := svc.Backup(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, cfg.Knowledge.BackupDir, filepath.Dir(path))

	_, err = svc.AddDocument(ctx, "Later Doc", "added after the backup", "misc")
	require.NoError(t, err)

	require.NoError(t, svc.Restore(ctx, path))
	after, err := svc.Documents()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.NotContains(t, svc.Retrieve(ctx, "added after the backup"), "Later Doc")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"documents": []}`), 0o600))
	assert.ErrorIs(t, svc.Restore(ctx, bad), knowledge.ErrFormat)
	unchanged, err := svc.Documents()
	require.NoError(t, err)
	assert.Equal(t, before, unchanged)
}

func TestService_Search(t *testing.T) {
	svc := newService(t, testConfig(t))

	results, err := svc.Search("fever")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Fever Management and Causes", results[0].Document.Title)

	results, err = svc.Search("  ")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestService_KeywordOnlyStatistics(t *testing.T) {
	svc := newService(t, testConfig(t))

	st, err := svc.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 7, st.TotalDocuments)
	assert.Greater(t, st.TotalChunks, 7)
	assert.False(t, st.VectorStoreAvailable)
	assert.False(t, st.EmbeddingsAvailable)
	assert.Equal(t, []string{"first_aid", "medications", "prevention", "symptoms"}, st.Categories)
	assert.Equal(t, "rules", st.GenerationProvider)

	status, err := svc.IndexStatus()
	require.NoError(t, err)
	assert.False(t, status.Enabled)

	rebuilt, err := svc.RebuildIndex(context.Background())
	require.NoError(t, err)
	assert.False(t, rebuilt.Enabled)
}

func TestService_VectorSearchAndReload(t *testing.T) {
	cfg := testConfig(t)
	emb := &wordEmbedder{}
	svc := newService(t, cfg, WithEmbedder(emb))
	ctx := context.Background()

	st, err := svc.Statistics()
	require.NoError(t, err)
	assert.True(t, st.VectorStoreAvailable)
	assert.True(t, st.EmbeddingsAvailable)
	assert.Equal(t, int32(1), emb.docCalls.Load())

	status, err := svc.IndexStatus()
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.True(t, status.Ready)
	assert.Equal(t, st.TotalChunks, status.Chunks)
	_, err = os.Stat(cfg.Index.Path)
	require.NoError(t, err, "index should be persisted after the first build")

	results, err := svc.RetrieveResults(ctx, "headache and nausea", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, retrieval.StrategyVector, r.Strategy)
	}

	require.NoError(t, svc.Shutdown(ctx))

	second := &wordEmbedder{}
	reopened := newService(t, cfg, WithEmbedder(second))
	assert.Equal(t, int32(0), second.docCalls.Load(), "a current index file is loaded, not rebuilt")
	again, err := reopened.RetrieveResults(ctx, "headache and nausea", 3)
	require.NoError(t, err)
	require.NotEmpty(t, again)
	assert.Equal(t, results[0].DocumentID, again[0].DocumentID)
	assert.Equal(t, retrieval.StrategyVector, again[0].Strategy)

	_, err = reopened.AddDocument(ctx, "Aspirin Dosage", "aspirin dosage for adults", "medications")
	require.NoError(t, err)
	assert.Equal(t, int32(1), second.docCalls.Load(), "adding a document rebuilds the index")
	top, err := reopened.RetrieveResults(ctx, "aspirin dosage", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "Aspirin Dosage", top[0].Title)
}

func TestService_EmbeddingFailureFallsBackToKeyword(t *testing.T) {
	cfg := testConfig(t)
	emb := &wordEmbedder{}
	emb.fail.Store(true)
	svc := newService(t, cfg, WithEmbedder(emb))
	ctx := context.Background()

	st, err := svc.Statistics()
	require.NoError(t, err)
	assert.True(t, st.EmbeddingsAvailable)
	assert.False(t, st.VectorStoreAvailable)

	results, err := svc.RetrieveResults(ctx, "severe headache with nausea", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Headache Types and Causes", results[0].Title)
	assert.Equal(t, retrieval.StrategyKeyword, results[0].Strategy)

	_, err = svc.RebuildIndex(ctx)
	assert.ErrorIs(t, err, embeddings.ErrUnavailable)

	emb.fail.Store(false)
	status, err := svc.RebuildIndex(ctx)
	require.NoError(t, err)
	assert.True(t, status.Ready)
	results, err = svc.RetrieveResults(ctx, "severe headache with nausea", 3)
	require.NoError(t, err)
	assert.Equal(t, retrieval.StrategyVector, results[0].Strategy)
}

func TestService_ConcurrentTurnsAndWrites(t *testing.T) {
	cfg := testConfig(t)
	svc := newService(t, cfg, WithEmbedder(&wordEmbedder{}))
	ctx := context.Background()

	queries := []string{"severe headache", "high fever", "cough with blood", "stomach ache", "chest pain", "rash"}
	var wg sync.WaitGroup
	errs := make(chan error, 64)

	for n := 0; n < 12; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			turn, err := svc.Chat(ctx, ChatRequest{Query: queries[n%len(queries)], SessionID: fmt.Sprintf("sess-%d", n)})
			if err != nil {
				errs <- err
				return
			}
			if turn.Response.Severity == "" {
				errs <- fmt.Errorf("turn %d has empty severity", n)
			}
		}(n)
	}
	for n := 0; n < 3; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := svc.AddDocument(ctx, fmt.Sprintf("Note %d", n), "fever note for concurrent test", "notes"); err != nil {
				errs <- err
			}
		}(n)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	st, err := svc.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 10, st.TotalDocuments)
	assert.True(t, st.VectorStoreAvailable)
	assert.Len(t, readConsultations(t, cfg.ConsultLog.Path), 12)

	status, err := svc.IndexStatus()
	require.NoError(t, err)
	assert.Equal(t, st.TotalChunks, status.Chunks)
}

func TestService_InitializeErrors(t *testing.T) {
	t.Run("corrupt knowledge base", func(t *testing.T) {
		cfg := testConfig(t)
		require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Knowledge.Path), 0o755))
		require.NoError(t, os.WriteFile(cfg.Knowledge.Path, []byte("{nope"), 0o600))

		svc, err := New(cfg)
		require.NoError(t, err)
		assert.ErrorIs(t, svc.Initialize(context.Background()), knowledge.ErrFormat)
	})

	t.Run("unusable generator", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Generation.Provider = "gemini"

		svc, err := New(cfg)
		require.NoError(t, err)
		assert.ErrorIs(t, svc.Initialize(context.Background()), synthesis.ErrInvalidConfig)
	})

	t.Run("unreachable embeddings only disable vectors", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Embeddings.Provider = embeddings.ProviderTEI
		cfg.Embeddings.BaseURL = ""

		svc := newService(t, cfg)
		st, err := svc.Statistics()
		require.NoError(t, err)
		assert.False(t, st.EmbeddingsAvailable)
	})
}

func TestService_InitializeIsIdempotent(t *testing.T) {
	svc := newService(t, testConfig(t))
	require.NoError(t, svc.Initialize(context.Background()))

	require.NoError(t, svc.Shutdown(context.Background()))
	require.NoError(t, svc.Shutdown(context.Background()))
	_, err := svc.Chat(context.Background(), ChatRequest{Query: "fever"})
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, svc.Initialize(context.Background()))
	_, err = svc.Chat(context.Background(), ChatRequest{Query: "fever"})
	assert.NoError(t, err)
}
