package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	h, ok := o.(prometheus.Histogram)
	require.True(t, ok)
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestMetrics_RegisteredUnderNamespace(t *testing.T) {
	ConsumerMessages.WithLabelValues("names-topic", "names-group", OutcomeReceived)
	ConsumerHandleDuration.WithLabelValues("names-topic", "names-group")
	ProducerMessages.WithLabelValues("names-topic", OutcomePublished)
	ProducerWriteDuration.WithLabelValues("names-topic")

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}

	for _, name := range []string{
		"productsearch_kafka_consumer_messages_total",
		"productsearch_kafka_consumer_handle_duration_seconds",
		"productsearch_kafka_producer_messages_total",
		"productsearch_kafka_producer_write_duration_seconds",
	} {
		assert.True(t, names[name], name)
	}
}

func TestConsumer_RecordsOutcomes(t *testing.T) {
	group := "outcomes-group"
	topic := "outcomes-topic"
	received := ConsumerMessages.WithLabelValues(topic, group, OutcomeReceived)
	processed := ConsumerMessages.WithLabelValues(topic, group, OutcomeProcessed)
	dead := ConsumerMessages.WithLabelValues(topic, group, OutcomeDeadLettered)
	beforeReceived := counterValue(t, received)
	beforeProcessed := counterValue(t, processed)
	beforeDead := counterValue(t, dead)
	beforeObserved := histogramCount(t, ConsumerHandleDuration.WithLabelValues(topic, group))

	ok := eventMessage(t, 0, "ecommerce.product.created")
	ok.Topic = topic
	bad := eventMessage(t, 1, "ecommerce.product.created")
	bad.Topic = topic
	bad.Value = []byte("not json")

	reader := &fakeReader{msgs: []kafka.Message{ok, bad}}
	c := NewConsumer(ConsumerConfig{GroupID: group, Topics: []string{topic}, MaxRetries: 1},
		func(context.Context, *Event) error { return nil }, testLogger(),
		WithReader(reader), WithDeadLetter(&fakeDLQ{}))

	runConsumer(t, c, reader, 2)

	assert.Equal(t, beforeReceived+2, counterValue(t, received))
	assert.Equal(t, beforeProcessed+1, counterValue(t, processed))
	assert.Equal(t, beforeDead+1, counterValue(t, dead))
	assert.Equal(t, beforeObserved+1, histogramCount(t, ConsumerHandleDuration.WithLabelValues(topic, group)))
}

func TestIdempotentHandler_RecordsDuplicate(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	handler := IdempotentHandler(store, func(context.Context, *Event) error { return nil }, testLogger())
	dup := ConsumerMessages.WithLabelValues("dup-topic", "dup-group", OutcomeDuplicate)
	before := counterValue(t, dup)

	ctx := withMessageInfo(context.Background(), "dup-topic", "dup-group")
	ev := testEvent("evt-dup")
	require.NoError(t, handler(ctx, ev))
	require.NoError(t, handler(ctx, ev))

	assert.Equal(t, before+1, counterValue(t, dup))
}
