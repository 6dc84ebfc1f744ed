// Package synthesis turns a query and its retrieved context into the fixed
// structured Response. Generation is pluggable; whatever the generator
// returns, or fails to return, Synthesize yields a well-formed Response.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/triaged/internal/retrieval"
)

var tracer = otel.Tracer("triaged.synthesis")

var (
	// ErrGenerationTimeout indicates the generator exceeded its deadline.
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrGenerationFailure indicates the generator errored or panicked.
	ErrGenerationFailure = errors.New("generation failed")
)

// DefaultTimeout bounds one generation call.
const DefaultTimeout = 30 * time.Second

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithTimeout sets the generation deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Synthesizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Synthesizer wraps a Generator with timeout, normalization and RAG
// disclosure.
type Synthesizer struct {
	generator Generator
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a Synthesizer. A nil generator uses the rule generator.
func New(generator Generator, opts ...Option) *Synthesizer {
	if generator == nil {
		generator = NewRuleGenerator()
	}
	s := &Synthesizer{
		generator: generator,
		timeout:   DefaultTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize answers query using retrieved, the formatted retrieval output.
func (s *Synthesizer) Synthesize(ctx context.Context, query, retrieved string) Response {
	ctx, span := tracer.Start(ctx, "Synthesizer.Synthesize")
	defer span.End()

	hasContext := retrieval.HasContext(retrieved)
	span.SetAttributes(
		attribute.Int("query_length", len(query)),
		attribute.Bool("rag_context", hasContext),
	)

	gen, err := s.generate(ctx, BuildPrompt(query, retrieved))
	if err != nil {
		outcome := "failure"
		if errors.Is(err, ErrGenerationTimeout) {
			outcome = "timeout"
		}
		GenerationsTotal.WithLabelValues(outcome).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		s.logger.Warn("generation failed, returning fallback response",
			zap.String("outcome", outcome),
			zap.Int("query_length", len(query)),
			zap.Error(err),
		)
		return Fallback()
	}
	GenerationsTotal.WithLabelValues("ok").Inc()

	resp := Normalize(gen)
	if hasContext {
		resp = WithDisclosure(resp)
	}
	return resp
}

type outcome struct {
	gen Generation
	err error
}

// generate runs the generator under the configured deadline. The goroutine
// is abandoned on timeout; its result channel is buffered so it can finish.
func (s *Synthesizer) generate(ctx context.Context, p Prompt) (Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: panic: %v", ErrGenerationFailure, r)}
			}
		}()
		gen, err := s.generator.Generate(ctx, p)
		done <- outcome{gen: gen, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return Generation{}, fmt.Errorf("%w: %v", ErrGenerationFailure, ctx.Err())
		}
		return Generation{}, fmt.Errorf("%w after %s", ErrGenerationTimeout, s.timeout)
	case out := <-done:
		switch {
		case out.err == nil:
			return out.gen, nil
		case errors.Is(out.err, ErrGenerationFailure):
			return Generation{}, out.err
		case errors.Is(out.err, context.DeadlineExceeded):
			return Generation{}, fmt.Errorf("%w: %v", ErrGenerationTimeout, out.err)
		default:
			return Generation{}, fmt.Errorf("%w: %v", ErrGenerationFailure, out.err)
		}
	}
}
