package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextRoundTrip(t *testing.T) {
	log := zap.NewExample()
	ctx := WithContext(context.Background(), log)

	assert.Same(t, log, FromContext(ctx))
}

func TestFromContext_Empty(t *testing.T) {
	log := FromContext(context.Background())

	require.NotNil(t, log)
	// The fallback logger must be safe to use.
	log.Info("probe")
}

func TestWithRequestID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx, tagged := WithRequestID(context.Background(), zap.New(core), "req-123")

	assert.Equal(t, "req-123", GetRequestID(ctx))
	assert.Same(t, tagged, FromContext(ctx))

	tagged.Info("probe")
	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "req-123", logs[0].ContextMap()["request_id"])
}

func TestGetRequestID_Empty(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestWithTraceContext_NoSpan(t *testing.T) {
	log := zap.NewExample()

	assert.Same(t, log, WithTraceContext(context.Background(), log))
}

func TestWithTraceContext_ActiveSpan(t *testing.T) {
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		SpanID:  trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	core, recorded := observer.New(zapcore.InfoLevel)
	WithTraceContext(ctx, zap.New(core)).Info("probe")

	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, spanCtx.TraceID().String(), fields["trace_id"])
	assert.Equal(t, spanCtx.SpanID().String(), fields["span_id"])
}
