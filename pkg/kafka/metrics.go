package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded on the consumer message counter.
const (
	OutcomeReceived     = "received"
	OutcomeProcessed    = "processed"
	OutcomeDuplicate    = "duplicate"
	OutcomeFailed       = "failed"
	OutcomeDeadLettered = "dead_lettered"
)

// Outcomes recorded on the producer message counter.
const (
	OutcomePublished = "published"
	OutcomeError     = "error"
)

const metricsNamespace = "productsearch"

var (
	// ConsumerMessages counts consumed messages by outcome. A fetched message
	// is counted as received, then as processed, failed or dead_lettered.
	// Events skipped by the idempotency guard also count as duplicate.
	ConsumerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "kafka_consumer",
			Name:      "messages_total",
			Help:      "Kafka messages seen by the product event consumer, by outcome",
		},
		[]string{"topic", "group", "outcome"},
	)

	// ConsumerHandleDuration observes handler time per message, retries
	// included.
	ConsumerHandleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "kafka_consumer",
			Name:      "handle_duration_seconds",
			Help:      "Time spent handling one Kafka message, retries included",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"topic", "group"},
	)

	// ProducerMessages counts published messages by outcome.
	ProducerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "kafka_producer",
			Name:      "messages_total",
			Help:      "Kafka messages written by the product event producer, by outcome",
		},
		[]string{"topic", "outcome"},
	)

	// ProducerWriteDuration observes the duration of one batched write.
	ProducerWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "kafka_producer",
			Name:      "write_duration_seconds",
			Help:      "Duration of Kafka batch writes in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)

func observeConsumed(topic, group, outcome string) {
	ConsumerMessages.WithLabelValues(topic, group, outcome).Inc()
}
