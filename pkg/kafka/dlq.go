package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// DLQSuffix is appended to a source topic to name its dead-letter topic.
const DLQSuffix = ".dlq"

// Headers added to dead-lettered messages.
const (
	HeaderDLQTopic     = "dlq.original_topic"
	HeaderDLQPartition = "dlq.original_partition"
	HeaderDLQOffset    = "dlq.original_offset"
	HeaderDLQGroup     = "dlq.consumer_group"
	HeaderDLQFailedAt  = "dlq.failed_at"
	HeaderDLQError     = "dlq.error"
)

// DLQTopic returns the dead-letter topic of topic.
func DLQTopic(topic string) string {
	return topic + DLQSuffix
}

// DLQProducer copies messages the consumer gave up on to their dead-letter
// topic, unchanged apart from extra headers.
type DLQProducer struct {
	writer MessageWriter
	now    func() time.Time
	logger *slog.Logger
}

// NewDLQProducer creates a synchronous single-message writer that creates
// dead-letter topics on first use.
func NewDLQProducer(brokers []string, logger *slog.Logger, opts ...ProducerOption) *DLQProducer {
	o := applyProducerOptions(opts)
	if o.writer == nil {
		o.writer = &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.LeastBytes{},
			BatchSize:              1,
			BatchTimeout:           100 * time.Millisecond,
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		}
	}
	return &DLQProducer{writer: o.writer, now: o.now, logger: logger}
}

// Publish writes msg to its dead-letter topic.
func (d *DLQProducer) Publish(ctx context.Context, msg kafka.Message, cause error, group string) error {
	dead := deadLetter(msg, cause, group, d.now())

	if err := d.writer.WriteMessages(ctx, dead); err != nil {
		d.logger.ErrorContext(ctx, "failed to dead-letter message",
			slog.String("dlq_topic", dead.Topic),
			slog.String("topic", msg.Topic),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publish to %s: %w", dead.Topic, err)
	}

	attrs := []any{
		slog.String("dlq_topic", dead.Topic),
		slog.String("topic", msg.Topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
		slog.String("consumer_group", group),
	}
	if cause != nil {
		attrs = append(attrs, slog.String("reason", cause.Error()))
	}
	d.logger.WarnContext(ctx, "message dead-lettered", attrs...)
	return nil
}

// Close closes the writer.
func (d *DLQProducer) Close() error {
	return d.writer.Close()
}

func deadLetter(msg kafka.Message, cause error, group string, failedAt time.Time) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers)+6)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderDLQTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderDLQPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderDLQOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: HeaderDLQGroup, Value: []byte(group)},
		kafka.Header{Key: HeaderDLQFailedAt, Value: []byte(failedAt.UTC().Format(time.RFC3339))},
	)
	if cause != nil {
		headers = append(headers, kafka.Header{Key: HeaderDLQError, Value: []byte(cause.Error())})
	}
	return kafka.Message{
		Topic:   DLQTopic(msg.Topic),
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}
