package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"kafka-1:9092", "kafka-2:9092"})

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)
	assert.False(t, cfg.Async)
}

func TestProducer_PublishKeysByAggregate(t *testing.T) {
	w := &recordingWriter{}
	p := NewProducer(DefaultProducerConfig(nil), nil, WithMessageWriter(w))

	first, err := NewEvent(TopicPrefix+".product.created", "prod-1", "product", "seed", productPayload{ID: "prod-1"})
	require.NoError(t, err)
	second, err := NewEvent(TopicPrefix+".product.created", "prod-2", "product", "seed", productPayload{ID: "prod-2"})
	require.NoError(t, err)
	second.WithCorrelationID("req-1")

	require.NoError(t, p.Publish(context.Background(), "ecommerce.product.created", first, second))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "ecommerce.product.created", w.msgs[0].Topic)
	assert.Equal(t, []byte("prod-1"), w.msgs[0].Key)
	assert.Equal(t, []byte("prod-2"), w.msgs[1].Key)

	h := headerMap(w.msgs[0].Headers)
	assert.Equal(t, first.EventID, h[HeaderEventID])
	assert.Equal(t, "ecommerce.product.created", h[HeaderEventType])
	assert.Equal(t, "seed", h[HeaderSource])
	_, ok := h[HeaderCorrelationID]
	assert.False(t, ok)
	assert.Equal(t, "req-1", headerMap(w.msgs[1].Headers)[HeaderCorrelationID])

	got, err := UnmarshalEvent(w.msgs[1].Value)
	require.NoError(t, err)
	assert.Equal(t, second.EventID, got.EventID)
}

func TestProducer_PublishNothing(t *testing.T) {
	w := &recordingWriter{err: errors.New("must not be called")}
	p := NewProducer(DefaultProducerConfig(nil), nil, WithMessageWriter(w))

	assert.NoError(t, p.Publish(context.Background(), "t"))
}

func TestProducer_PublishWriteError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := NewProducer(DefaultProducerConfig(nil), testLogger(), WithMessageWriter(w))
	errors0 := counterValue(t, ProducerMessages.WithLabelValues("write-error-topic", OutcomeError))

	ev, err := NewEvent("e", "a", "product", "s", productPayload{})
	require.NoError(t, err)
	err = p.Publish(context.Background(), "write-error-topic", ev)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "write-error-topic")
	assert.Equal(t, errors0+1, counterValue(t, ProducerMessages.WithLabelValues("write-error-topic", OutcomeError)))
}

func TestNewProducer_DefaultWriter(t *testing.T) {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)

	assert.Equal(t, []string{"localhost:19092"}, p.brokers)
	assert.NoError(t, p.Close())
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	for _, brokers := range [][]string{nil, {}} {
		err := PingBrokers(context.Background(), brokers)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no brokers configured")
	}
}

func TestPingBrokers_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := PingBrokers(ctx, []string{"127.0.0.1:1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "all brokers unreachable")
}
