package tracing

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// restoreGlobals puts back the provider and propagator InitTracer replaces.
func restoreGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	prop := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("productsearch")

	assert.Equal(t, "productsearch", cfg.ServiceName)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.Equal(t, "localhost:4318", cfg.OTLPEndpoint)
}

func TestInitTracer_Disabled(t *testing.T) {
	restoreGlobals(t)
	before := otel.GetTracerProvider()

	shutdown, err := InitTracer(context.Background(), DefaultConfig("productsearch"))

	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
	assert.Same(t, before, otel.GetTracerProvider())
}

func TestInitTracer_ExportsSpans(t *testing.T) {
	restoreGlobals(t)
	exp := tracetest.NewInMemoryExporter()
	cfg := DefaultConfig("productsearch")
	cfg.Enabled = true

	shutdown, err := InitTracer(context.Background(), cfg, WithExporter(exp))
	require.NoError(t, err)

	tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, otel.GetTextMapPropagator().Fields())

	_, span := Tracer("productsearch/test").Start(context.Background(), "Search")
	span.End()
	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exp.GetSpans()
	require.NoError(t, shutdown(context.Background()))
	require.Len(t, spans, 1)
	assert.Equal(t, "Search", spans[0].Name)
	svc, ok := spans[0].Resource.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "productsearch", svc.AsString())
}

func TestInitTracer_DefaultExporter(t *testing.T) {
	restoreGlobals(t)
	cfg := DefaultConfig("productsearch")
	cfg.Enabled = true
	cfg.OTLPEndpoint = "127.0.0.1:0"

	shutdown, err := InitTracer(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func TestInitTracer_RejectsSampleRate(t *testing.T) {
	for _, rate := range []float64{-0.1, 1.5, math.NaN()} {
		cfg := DefaultConfig("productsearch")
		cfg.Enabled = true
		cfg.SampleRate = rate

		_, err := InitTracer(context.Background(), cfg, WithExporter(tracetest.NewInMemoryExporter()))
		assert.Error(t, err, "rate %v", rate)
	}
}

func TestNewSampler(t *testing.T) {
	root := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		SpanID:  trace.SpanID{1},
	})
	params := func(parent context.Context) sdktrace.SamplingParameters {
		return sdktrace.SamplingParameters{ParentContext: parent, TraceID: root.TraceID(), Name: "op"}
	}
	sampledParent := trace.ContextWithRemoteSpanContext(context.Background(),
		root.WithTraceFlags(trace.FlagsSampled).WithRemote(true))

	tests := []struct {
		name   string
		rate   float64
		parent context.Context
		want   sdktrace.SamplingDecision
	}{
		{"always", 1, context.Background(), sdktrace.RecordAndSample},
		{"never", 0, context.Background(), sdktrace.Drop},
		{"ratio drops high trace id", 0.5, context.Background(), sdktrace.Drop},
		{"sampled parent wins", 0, sampledParent, sdktrace.RecordAndSample},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := newSampler(tt.rate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.ShouldSample(params(tt.parent)).Decision)
		})
	}
}

func TestEnd(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	tracer := tp.Tracer("test")

	_, failed := tracer.Start(context.Background(), "Search")
	End(failed, errors.New("backend down"), attribute.String("strategy", "keyword"))
	_, ok := tracer.Start(context.Background(), "Count")
	End(ok, nil)

	spans := exp.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "backend down", spans[0].Status.Description)
	require.NotEmpty(t, spans[0].Events)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
	assert.Contains(t, spans[0].Attributes, attribute.String("strategy", "keyword"))

	assert.Equal(t, codes.Unset, spans[1].Status.Code)
	assert.Empty(t, spans[1].Attributes)
}
