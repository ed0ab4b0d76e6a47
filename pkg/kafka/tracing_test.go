package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestHeaderCarrier(t *testing.T) {
	headers := []kafka.Header{{Key: HeaderEventType, Value: []byte("ecommerce.product.created")}}
	c := NewHeaderCarrier(&headers)

	assert.Equal(t, "ecommerce.product.created", c.Get(HeaderEventType))
	assert.Empty(t, c.Get("missing"))

	c.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	c.Set(HeaderEventType, "ecommerce.product.deleted")

	require.Len(t, headers, 2)
	assert.Equal(t, "ecommerce.product.deleted", c.Get(HeaderEventType))
	assert.ElementsMatch(t, []string{HeaderEventType, "traceparent"}, c.Keys())
}

func TestTraceContext_InjectExtract(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	var headers []kafka.Header
	InjectTraceContext(ctx, &headers)
	require.NotEmpty(t, headers)

	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), headers))
	assert.Equal(t, traceID, got.TraceID())
	assert.Equal(t, spanID, got.SpanID())
	assert.True(t, got.IsRemote())
}

func TestExtractTraceContext_NoHeaders(t *testing.T) {
	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), nil))
	assert.False(t, got.IsValid())
}
