package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/utafrali/productsearch/internal/domain"
	apperrors "github.com/utafrali/productsearch/pkg/errors"
	pkgkafka "github.com/utafrali/productsearch/pkg/kafka"
)

// Kafka topic constants for product domain events. The event type of each
// event equals its topic name.
const (
	TopicProductCreated = pkgkafka.TopicPrefix + ".product.created"
	TopicProductUpdated = pkgkafka.TopicPrefix + ".product.updated"
	TopicProductDeleted = pkgkafka.TopicPrefix + ".product.deleted"
)

// Topics lists every topic the consumer subscribes to.
func Topics() []string {
	return []string{TopicProductCreated, TopicProductUpdated, TopicProductDeleted}
}

// AggregateType is the aggregate type carried by product events.
const AggregateType = "product"

// ProductWriter is the part of the product service the consumer needs.
type ProductWriter interface {
	Save(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteByID(ctx context.Context, id string) error
}

// ProductDeletedData represents the payload from a product.deleted event.
type ProductDeletedData struct {
	ID string `json:"id"`
}

// Consumer applies product events to the search index.
type Consumer struct {
	products ProductWriter
	logger   *slog.Logger
}

// NewConsumer creates a new product event consumer.
func NewConsumer(products ProductWriter, logger *slog.Logger) *Consumer {
	return &Consumer{
		products: products,
		logger:   logger,
	}
}

// Handle processes a Kafka event based on its type. Payloads that can never
// be applied are marked permanent so they go straight to the dead letter
// topic.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicProductCreated, TopicProductUpdated:
		return c.handleProductUpserted(ctx, event)
	case TopicProductDeleted:
		return c.handleProductDeleted(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

// handleProductUpserted saves the product carried by a created or updated
// event. The aggregate id is used when the payload has no id.
func (c *Consumer) handleProductUpserted(ctx context.Context, event *pkgkafka.Event) error {
	var data domain.Product
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return pkgkafka.Permanent(fmt.Errorf("unmarshal %s data: %w", event.EventType, err))
	}
	if data.ID == "" {
		data.ID = event.AggregateID
	}

	saved, err := c.products.Save(ctx, data)
	if err != nil {
		if isPermanent(err) {
			return pkgkafka.Permanent(fmt.Errorf("save product from %s event: %w", event.EventType, err))
		}
		return fmt.Errorf("save product from %s event: %w", event.EventType, err)
	}

	c.logger.InfoContext(ctx, "indexed product from event",
		slog.String("event_type", event.EventType),
		slog.String("event_id", event.EventID),
		slog.String("product_id", saved.ID),
	)
	return nil
}

// handleProductDeleted removes a deleted product from the index.
func (c *Consumer) handleProductDeleted(ctx context.Context, event *pkgkafka.Event) error {
	var data ProductDeletedData
	if len(event.Data) > 0 && string(event.Data) != "null" {
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return pkgkafka.Permanent(fmt.Errorf("unmarshal %s data: %w", event.EventType, err))
		}
	}
	if data.ID == "" {
		data.ID = event.AggregateID
	}
	if strings.TrimSpace(data.ID) == "" {
		return pkgkafka.Permanent(apperrors.InvalidArgument("product.deleted event %s carries no id", event.EventID))
	}

	if err := c.products.DeleteByID(ctx, data.ID); err != nil {
		return fmt.Errorf("delete product from deleted event: %w", err)
	}

	c.logger.InfoContext(ctx, "deleted product from event",
		slog.String("event_id", event.EventID),
		slog.String("product_id", data.ID),
	)
	return nil
}

// isPermanent reports whether retrying err cannot succeed.
func isPermanent(err error) bool {
	return errors.Is(err, apperrors.ErrValidation) || errors.Is(err, apperrors.ErrInvalidArgument)
}

// NewProductEvent builds the event announcing that product was created or
// updated.
func NewProductEvent(eventType, source string, product domain.Product) (*pkgkafka.Event, error) {
	return pkgkafka.NewEvent(eventType, product.ID, AggregateType, source, product)
}
