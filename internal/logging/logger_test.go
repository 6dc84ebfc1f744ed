package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newBufferLogger(t *testing.T, mutate func(*Config)) (*Logger, *bytes.Buffer) {
	t.Helper()
	cfg := NewDefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	var buf bytes.Buffer
	logger, err := newLogger(cfg, zapcore.AddSync(&buf))
	require.NoError(t, err)
	return logger, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestNewLogger_JSONShape(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)

	logger.Info(context.Background(), "index rebuilt", zap.Int("chunks", 12))
	logger.Debug(context.Background(), "filtered at info")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "index rebuilt", lines[0]["msg"])
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "triaged", lines[0]["service"])
	assert.EqualValues(t, 12, lines[0]["chunks"])
	assert.Contains(t, lines[0], "ts")
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := NewLogger(cfg)
	require.Error(t, err)
}

func TestNewLogger_TraceLevelName(t *testing.T) {
	logger, buf := newBufferLogger(t, func(c *Config) { c.Level = "trace" })

	logger.Trace(context.Background(), "hit scored")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "trace", lines[0]["level"])
	assert.True(t, logger.Enabled(TraceLevel))
}

func TestNewLogger_RedactsSensitiveFields(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)

	logger.With(zap.String("api_key", "sk-live-0123456789abcdefXYZ")).Info(context.Background(), "provider ready",
		zap.String("query", "crushing chest pain"),
		zap.String("note", "Bearer abc.def"),
		zap.Int("query_length", 19),
	)

	out := buf.String()
	assert.NotContains(t, out, "crushing chest pain")
	assert.NotContains(t, out, "abc.def")
	assert.NotContains(t, out, "sk-live")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "[REDACTED]", lines[0]["query"])
	assert.Equal(t, "[REDACTED]", lines[0]["api_key"])
	assert.Equal(t, "[REDACTED:pattern]", lines[0]["note"])
	assert.EqualValues(t, 19, lines[0]["query_length"])
}

func TestRedactedString(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)

	logger.Info(context.Background(), "query stored", RedactedString("logged_query", "rash on both arms"))

	assert.NotContains(t, buf.String(), "rash")
	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "[REDACTED:17]", lines[0]["logged_query"])
}

func TestNewLogger_RedactionDisabled(t *testing.T) {
	logger, buf := newBufferLogger(t, func(c *Config) { c.Redaction.Enabled = false })

	logger.Info(context.Background(), "debugging", zap.String("query", "rash"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "rash", lines[0]["query"])
}

func TestNewLogger_SamplingSparesErrors(t *testing.T) {
	logger, buf := newBufferLogger(t, func(c *Config) {
		c.Sampling.Initial = 2
		c.Sampling.Thereafter = 0
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		logger.Info(ctx, "vector search failed, using keyword search")
	}
	for i := 0; i < 5; i++ {
		logger.Error(ctx, "index persist failed")
	}

	var info, errs int
	for _, l := range decodeLines(t, buf) {
		switch l["level"] {
		case "info":
			info++
		case "error":
			errs++
		}
	}
	assert.Equal(t, 2, info)
	assert.Equal(t, 5, errs)
}

func TestNewLogger_ContextCorrelation(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)
	ctx := WithRequestID(WithSessionID(context.Background(), "sess-1"), "turn_42")

	logger.Named("triage").Info(ctx, "consultation answered")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "sess-1", lines[0]["session.id"])
	assert.Equal(t, "turn_42", lines[0]["request.id"])
	assert.Equal(t, "triage", lines[0]["logger"])
}

func TestWrap(t *testing.T) {
	assert.NotPanics(t, func() {
		Wrap(nil).Info(context.Background(), "dropped")
	})

	tl := NewTestLogger()
	Wrap(tl.Underlying()).Warn(context.Background(), "wrapped", zap.String("k", "v"))
	tl.AssertLogged(t, zapcore.WarnLevel, "wrapped")
	tl.AssertField(t, "wrapped", "k", "v")
}

func TestTestLogger(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Trace(ctx, "trace entry")
	tl.Info(ctx, "retrieval served", zap.Int("query_length", 5))

	tl.AssertLogged(t, TraceLevel, "trace entry")
	tl.AssertLogged(t, zapcore.InfoLevel, "retrieval")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "retrieval")
	tl.AssertField(t, "retrieval served", "query_length", int64(5))
	tl.AssertNoField(t, "query")
	assert.Equal(t, 1, tl.FilterMessage("served").Len())

	tl.Reset()
	assert.Empty(t, tl.All())
}
