package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zapcore"
)

func fieldMap(ctx context.Context) map[string]any {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range ContextFields(ctx) {
		f.AddTo(enc)
	}
	return enc.Fields
}

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestContextFields_Trace(t *testing.T) {
	provider := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	ctx, span := provider.Tracer("test").Start(context.Background(), "synthesize")
	defer span.End()

	fields := fieldMap(ctx)
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
	assert.Equal(t, true, fields["trace_sampled"])
}

func TestContextFields_SessionAndRequest(t *testing.T) {
	ctx := WithSessionID(context.Background(), "sess_abc")
	ctx = WithRequestID(ctx, "req-1")

	assert.Equal(t, "sess_abc", SessionIDFromContext(ctx))
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, map[string]any{"session.id": "sess_abc", "request.id": "req-1"}, fieldMap(ctx))
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"sess-1", false},
		{"A_b-9", false},
		{"", true},
		{"has space", true},
		{"semi;colon", true},
		{"\xff", true},
		{strings.Repeat("a", maxIDLen), false},
		{strings.Repeat("a", maxIDLen+1), true},
	}
	for _, tt := range tests {
		err := ValidateID(tt.id, "sessionID")
		if tt.wantErr {
			assert.Error(t, err, tt.id)
		} else {
			assert.NoError(t, err, tt.id)
		}
	}
}

func TestWithSessionID_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { WithSessionID(context.Background(), "bad id") })
	assert.Panics(t, func() { WithRequestID(context.Background(), "") })
}

func TestLoggerContextRoundTrip(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	got := FromContext(WithLogger(context.Background(), tl.Logger))
	require.Same(t, tl.Logger, got)
}
