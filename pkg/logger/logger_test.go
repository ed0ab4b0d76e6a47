package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out), "log line: %s", buf.String())
	return out
}

func spanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestNewWithWriter_ServiceAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("productsearch", "warn", &buf)

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	out := decodeLine(t, &buf)
	assert.Equal(t, "productsearch", out["service"])
	assert.Equal(t, "kept", out["msg"])
	assert.Equal(t, "WARN", out["level"])
}

func TestContextHandler_AddsRequestIDs(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("productsearch", "info", &buf)

	ctx := WithClientID(WithCorrelationID(spanContext(t), "req-123"), "storefront-web")
	l.InfoContext(ctx, "search served", slog.Int("hits", 3))

	out := decodeLine(t, &buf)
	assert.Equal(t, "req-123", out["correlation_id"])
	assert.Equal(t, "storefront-web", out["client_id"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", out["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", out["span_id"])
	assert.EqualValues(t, 3, out["hits"])
}

func TestContextHandler_EmptyContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("productsearch", "info", &buf)

	l.InfoContext(context.Background(), "startup")

	out := decodeLine(t, &buf)
	for _, key := range []string{"correlation_id", "client_id", "trace_id", "span_id"} {
		assert.NotContains(t, out, key)
	}
}

func TestContextHandler_SurvivesWithAndGroup(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("productsearch", "info", &buf).
		With(slog.String("component", "consumer")).
		WithGroup("event")

	l.InfoContext(WithCorrelationID(context.Background(), "c-1"), "handled", slog.String("id", "evt-9"))

	out := decodeLine(t, &buf)
	assert.Equal(t, "consumer", out["component"])
	event, ok := out["event"].(map[string]any)
	require.True(t, ok, "event group missing: %v", out)
	assert.Equal(t, "evt-9", event["id"])
	assert.Equal(t, "c-1", event["correlation_id"])
}

func TestAttrs(t *testing.T) {
	assert.Empty(t, Attrs(context.Background()))
	assert.Len(t, Attrs(spanContext(t)), 2)
	assert.Len(t, Attrs(WithCorrelationID(context.Background(), "x")), 1)
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, CorrelationIDFromContext(ctx))
	assert.Empty(t, ClientIDFromContext(ctx))

	ctx = WithClientID(WithCorrelationID(ctx, "corr"), "client")
	assert.Equal(t, "corr", CorrelationIDFromContext(ctx))
	assert.Equal(t, "client", ClientIDFromContext(ctx))
}

func TestFromContext(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	l := NewWithWriter("productsearch", "info", &bytes.Buffer{})
	assert.Same(t, l, FromContext(NewContext(context.Background(), l)))
}
