package logging

import (
	"regexp"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// bridgeName is the instrumentation scope of bridged log records.
const bridgeName = "github.com/fyrsmithlabs/triaged"

// WithOTel returns a logger that also emits every entry through the
// OpenTelemetry logs bridge. The bridge sees the same level, sampling and
// field redaction as the local output. A nil provider returns l unchanged.
func (l *Logger) WithOTel(provider log.LoggerProvider) *Logger {
	if l == nil || provider == nil {
		return l
	}
	cfg := l.config
	if cfg == nil {
		cfg = NewDefaultConfig()
	}

	level, _ := cfg.ZapLevel()
	var bridge zapcore.Core = otelzap.NewCore(bridgeName, otelzap.WithLoggerProvider(provider))
	bridge = newRedactingCore(bridge, cfg.Redaction)
	bridge = &levelFilterCore{Core: bridge, minLevel: level, hasMin: true}
	bridge = newSampledCore(bridge, cfg.Sampling)

	if len(cfg.Fields) > 0 {
		fields := make([]zap.Field, 0, len(cfg.Fields))
		for k, v := range cfg.Fields {
			fields = append(fields, zap.String(k, v))
		}
		bridge = bridge.With(fields)
	}

	z := l.zap.WithOptions(zap.WrapCore(func(local zapcore.Core) zapcore.Core {
		return zapcore.NewTee(local, bridge)
	}))
	return &Logger{zap: z, config: cfg}
}

// redactingCore applies the redaction rules to fields before they reach a
// core that does not encode through RedactingEncoder.
type redactingCore struct {
	zapcore.Core
	fields   map[string]bool
	patterns []*regexp.Regexp
}

func newRedactingCore(core zapcore.Core, cfg RedactionConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	rc := &redactingCore{Core: core, fields: make(map[string]bool, len(cfg.Fields))}
	for _, f := range cfg.Fields {
		rc.fields[strings.ToLower(f)] = true
	}
	for _, p := range cfg.Patterns {
		// Invalid patterns are rejected earlier by NewRedactingEncoder.
		if re, err := regexp.Compile(p); err == nil {
			rc.patterns = append(rc.patterns, re)
		}
	}
	return rc
}

func (c *redactingCore) redact(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		out[i] = f
		if c.fields[strings.ToLower(f.Key)] {
			out[i] = zap.String(f.Key, "[REDACTED]")
			continue
		}
		if f.Type != zapcore.StringType {
			continue
		}
		for _, re := range c.patterns {
			if re.MatchString(f.String) {
				out[i] = zap.String(f.Key, "[REDACTED:pattern]")
				break
			}
		}
	}
	return out
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(c.redact(fields)), fields: c.fields, patterns: c.patterns}
}

func (c *redactingCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *redactingCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(e, c.redact(fields))
}
