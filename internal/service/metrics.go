package service

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/utafrali/productsearch/pkg/errors"
	"github.com/utafrali/productsearch/pkg/tracing"
)

var (
	// OperationsTotal counts facade operations by outcome code ("OK" on success).
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "productsearch_operations_total",
			Help: "Total number of product search facade operations",
		},
		[]string{"operation", "strategy", "outcome"},
	)

	// OperationDuration observes the latency of facade operations.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "productsearch_operation_duration_seconds",
			Help:    "Duration of product search facade operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "strategy"},
	)

	// AggregationTruncatedTotal counts aggregations that hit the bucket cap.
	AggregationTruncatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "productsearch_aggregation_truncated_total",
			Help: "Total number of category aggregations truncated by the bucket cap",
		},
	)
)

var tracer = tracing.Tracer("productsearch/service")

const outcomeOK = "OK"

// observe starts a span for op and returns the finish func that records the
// span status and the operation metrics.
func observe(ctx context.Context, op, strategy string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("operation", op)))

	return ctx, func(err error) {
		outcome := outcomeOK
		if err != nil {
			outcome = apperrors.Code(err)
		}
		OperationsTotal.WithLabelValues(op, strategy, outcome).Inc()
		OperationDuration.WithLabelValues(op, strategy).Observe(time.Since(start).Seconds())

		var attrs []attribute.KeyValue
		if strategy != "" {
			attrs = append(attrs, attribute.String("strategy", strategy))
		}
		tracing.End(span, err, attrs...)
	}
}
