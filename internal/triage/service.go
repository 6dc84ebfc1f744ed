// Package triage composes the knowledge store, retrieval and synthesis into
// the consultation service.
package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/triaged/internal/chunker"
	"github.com/fyrsmithlabs/triaged/internal/config"
	"github.com/fyrsmithlabs/triaged/internal/consultlog"
	"github.com/fyrsmithlabs/triaged/internal/embeddings"
	"github.com/fyrsmithlabs/triaged/internal/knowledge"
	"github.com/fyrsmithlabs/triaged/internal/logging"
	"github.com/fyrsmithlabs/triaged/internal/retrieval"
	"github.com/fyrsmithlabs/triaged/internal/scrub"
	"github.com/fyrsmithlabs/triaged/internal/synthesis"
	"github.com/fyrsmithlabs/triaged/internal/vectorindex"
)

var tracer = otel.Tracer("triaged.triage")

var (
	// ErrNotInitialized is returned before Initialize or after Shutdown.
	ErrNotInitialized = errors.New("triage service not initialized")

	// ErrEmptyQuery is returned by Chat for a blank query.
	ErrEmptyQuery = errors.New("query is empty")
)

// DefaultSessionID is used when a chat turn names no session.
const DefaultSessionID = "default"

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger shared with every component.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEmbedder injects the embedding capability instead of building one
// from configuration. The Service does not close an injected embedder.
func WithEmbedder(e embeddings.Embedder) Option {
	return func(s *Service) {
		s.embedder = e
	}
}

// WithGenerator injects the generation capability instead of building one
// from configuration.
func WithGenerator(g synthesis.Generator) Option {
	return func(s *Service) {
		s.generator = g
	}
}

// WithRecorder injects the consultation log.
func WithRecorder(r consultlog.Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithScrubber injects the scrubber applied to logged queries.
func WithScrubber(sc scrub.Scrubber) Option {
	return func(s *Service) {
		s.scrubber = sc
	}
}

// Service answers consultations over the knowledge store. It is safe for
// concurrent use; writes hold the lock through re-chunking and re-indexing
// so readers never see a retriever that disagrees with the store.
type Service struct {
	config *config.Config
	logger *zap.Logger

	embedder  embeddings.Embedder
	generator synthesis.Generator
	recorder  consultlog.Recorder
	scrubber  scrub.Scrubber
	// provider and ownRecorder mark capabilities the Service built and
	// releases on Shutdown.
	provider    embeddings.Provider
	ownRecorder bool

	mu          sync.RWMutex
	initialized bool
	store       *knowledge.Store
	splitter    *chunker.Splitter
	index       *vectorindex.Index
	retriever   *retrieval.Retriever
	synth       *synthesis.Synthesizer
	now         func() time.Time
}

// New creates a Service. No I/O happens until Initialize.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	s := &Service{
		config: cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Initialize opens the knowledge store, prepares the vector index and
// builds the retriever and synthesizer. Embedding problems only disable
// vector search; store and generator configuration errors are returned.
func (s *Service) Initialize(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Service.Initialize")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	store, err := knowledge.Open(s.config.KnowledgeStore(), s.logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "opening knowledge store")
		return fmt.Errorf("opening knowledge store: %w", err)
	}

	splitter, err := chunker.New(s.config.Splitter())
	if err != nil {
		return fmt.Errorf("creating chunker: %w", err)
	}

	if s.generator == nil {
		g, err := synthesis.NewGenerator(s.config.Generator(), s.logger)
		if err != nil {
			return fmt.Errorf("creating generator: %w", err)
		}
		s.generator = g
	}
	s.synth = synthesis.New(s.generator,
		synthesis.WithTimeout(s.config.Generation.Timeout),
		synthesis.WithLogger(s.logger),
	)

	if s.scrubber == nil {
		scfg, err := s.config.QueryScrubber()
		if err != nil {
			return fmt.Errorf("loading query scrubber rules: %w", err)
		}
		sc, err := scrub.New(scfg)
		if err != nil {
			return fmt.Errorf("creating query scrubber: %w", err)
		}
		s.scrubber = sc
	}

	if s.recorder == nil {
		s.recorder = consultlog.New(s.config.ConsultationLog())
		s.ownRecorder = true
	}

	s.store = store
	s.splitter = splitter
	s.index = s.openIndex()

	chunks := splitter.SplitAll(store.List())
	if s.index != nil {
		if _, err := s.index.Load(ctx, "", chunks); err != nil {
			s.logger.Warn("vector index unavailable, using keyword search", zap.Error(err))
		}
	}
	s.retriever = s.newRetriever(chunks)
	s.initialized = true

	span.SetAttributes(
		attribute.Int("documents", store.Len()),
		attribute.Int("chunks", len(chunks)),
		attribute.Bool("vector_search", s.retriever.VectorEnabled()),
	)
	s.logger.Info("triage service initialized",
		zap.Int("documents", store.Len()),
		zap.Int("chunks", len(chunks)),
		zap.Bool("vector_search", s.retriever.VectorEnabled()),
	)
	return nil
}

// openIndex returns nil when no embedding capability is available.
func (s *Service) openIndex() *vectorindex.Index {
	cfg := s.config.VectorIndex()

	if s.embedder == nil {
		p, err := embeddings.NewProvider(s.config.EmbeddingProvider(), s.logger)
		if err != nil {
			if errors.Is(err, embeddings.ErrUnavailable) && s.config.Embeddings.Provider == embeddings.ProviderNone {
				s.logger.Info("embeddings disabled, using keyword search")
			} else {
				s.logger.Warn("embeddings unavailable, using keyword search", zap.Error(err))
			}
			return nil
		}
		s.provider = p
		s.embedder = p
	}
	if p, ok := s.embedder.(embeddings.Provider); ok {
		cfg.Dimension = p.Dimension()
	}

	idx, err := vectorindex.New(cfg, s.embedder, s.logger)
	if err != nil {
		s.logger.Warn("creating vector index failed, using keyword search", zap.Error(err))
		return nil
	}
	return idx
}

// newRetriever must be called with the write lock held. A nil or not-ready
// index is passed as a nil Searcher so the retriever goes straight to
// keyword search.
func (s *Service) newRetriever(chunks []chunker.Chunk) *retrieval.Retriever {
	var searcher retrieval.Searcher
	if s.index != nil && s.index.Ready() {
		searcher = s.index
	}
	return retrieval.New(chunks, searcher,
		retrieval.WithLogger(s.logger),
		retrieval.WithTopK(s.config.Retrieval.TopK),
		retrieval.WithPreviewLength(s.config.Retrieval.PreviewLength),
	)
}

// Shutdown closes the consultation log and any embedder the Service built.
func (s *Service) Shutdown(ctx context.Context) error {
	_, span := tracer.Start(ctx, "Service.Shutdown")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil
	}
	s.initialized = false

	var errs []error
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing consultation log: %w", err))
		}
		if s.ownRecorder {
			s.recorder = nil
			s.ownRecorder = false
		}
	}
	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing embedding provider: %w", err))
		}
		s.provider = nil
		s.embedder = nil
	}
	return errors.Join(errs...)
}

// Retrieve returns formatted reference context for query. It never fails:
// before initialization it returns the no-context text.
func (s *Service) Retrieve(ctx context.Context, query string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return retrieval.NoContext
	}
	return s.retriever.Context(ctx, query)
}

// RetrieveResults returns up to k ranked results (the configured top_k when
// k <= 0).
func (s *Service) RetrieveResults(ctx context.Context, query string, k int) ([]retrieval.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return s.retriever.Retrieve(ctx, query, k), nil
}

// Synthesize answers query from retrieved context. It always returns a
// well-formed response.
func (s *Service) Synthesize(ctx context.Context, query, retrieved string) synthesis.Response {
	s.mu.RLock()
	synth := s.synth
	s.mu.RUnlock()

	if synth == nil {
		return synthesis.Fallback()
	}
	return synth.Synthesize(ctx, query, retrieved)
}

// ChatRequest is one consultation turn.
type ChatRequest struct {
	Query     string
	SessionID string
}

// Turn is the outcome of a consultation turn.
type Turn struct {
	ID        string             `json:"id"`
	SessionID string             `json:"session_id"`
	Timestamp time.Time          `json:"timestamp"`
	Context   string             `json:"context,omitempty"`
	Response  synthesis.Response `json:"response"`
}

// Chat retrieves context, synthesizes a response and records the turn in
// the consultation log. A logging failure is reported in
// Response.LogStatus and never fails the turn.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (Turn, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Turn{}, ErrEmptyQuery
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	if err := logging.ValidateID(sessionID, "session ID"); err != nil {
		return Turn{}, err
	}

	s.mu.RLock()
	ready := s.initialized
	recorder := s.recorder
	scrubber := s.scrubber
	s.mu.RUnlock()
	if !ready {
		return Turn{}, ErrNotInitialized
	}

	turnID := uuid.NewString()
	ctx = logging.WithRequestID(logging.WithSessionID(ctx, sessionID), turnID)
	ctx = logging.WithLogger(ctx, logging.Wrap(s.logger))
	ctx, span := tracer.Start(ctx, "Service.Chat")
	defer span.End()

	retrieved := s.Retrieve(ctx, query)
	resp := s.Synthesize(ctx, query, retrieved)

	turn := Turn{
		ID:        turnID,
		SessionID: sessionID,
		Timestamp: s.now().UTC(),
		Context:   retrieved,
	}

	resp.LogStatus = synthesis.DefaultLogStatus
	if err := s.recordTurn(ctx, recorder, scrubber, query, turn, resp); err != nil {
		resp.LogStatus = synthesis.LogFailedStatus
		ConsultLogFailuresTotal.Inc()
		span.RecordError(err)
	}
	turn.Response = resp

	TurnsTotal.WithLabelValues(string(resp.Severity), turnOutcome(resp)).Inc()
	span.SetAttributes(
		attribute.String("severity", string(resp.Severity)),
		attribute.Bool("rag_context_used", resp.RAGContextUsed),
		attribute.Bool("degraded", resp.Degraded),
	)
	logging.FromContext(ctx).Info(ctx, "consultation answered",
		zap.Int("query_length", len(query)),
		zap.String("severity", string(resp.Severity)),
		zap.Bool("rag_context_used", resp.RAGContextUsed),
		zap.Bool("degraded", resp.Degraded),
	)
	return turn, nil
}

// recordTurn appends the scrubbed turn to the consultation log using the
// turn logger carried by ctx.
func (s *Service) recordTurn(ctx context.Context, recorder consultlog.Recorder, scrubber scrub.Scrubber, query string, turn Turn, resp synthesis.Response) error {
	log := logging.FromContext(ctx)

	scrubbed := scrubber.Scrub(query)
	if scrubbed.HasFindings() {
		log.Debug(ctx, "scrubbed logged query",
			zap.Strings("rules", scrubbed.RuleIDs()),
			logging.RedactedString("logged_query", scrubbed.Scrubbed),
		)
	}

	_, err := recorder.Record(ctx, consultlog.Entry{
		ID:             turn.ID,
		Timestamp:      turn.Timestamp,
		SessionID:      turn.SessionID,
		Query:          scrubbed.Scrubbed,
		Severity:       string(resp.Severity),
		RAGContextUsed: resp.RAGContextUsed,
		Degraded:       resp.Degraded,
		Redactions:     len(scrubbed.Findings),
	})
	if err != nil {
		log.Warn(ctx, "recording consultation failed", zap.Error(err))
		return err
	}
	return nil
}

func turnOutcome(r synthesis.Response) string {
	if r.Degraded {
		return "degraded"
	}
	return "ok"
}
