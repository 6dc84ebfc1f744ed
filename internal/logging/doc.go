// Package logging provides structured logging on top of Zap.
//
// The package adds:
//   - a Trace level (-2, below Debug)
//   - correlation fields taken from the context (trace_id, span_id,
//     session.id, request.id)
//   - encoder-level redaction of sensitive keys and value patterns
//   - sampling below error level; errors are never sampled
//
// Create a logger from config and hand the underlying *zap.Logger to
// components:
//
//	logger, err := logging.NewLogger(&cfg.Logging)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//	svc, err := triage.New(cfg, triage.WithLogger(logger.Underlying()))
//
// Query text never appears in log output. Components log its length, and
// the default redaction list also covers "query" and "content" keys.
//
// Tests use NewTestLogger and its Assert helpers.
package logging
