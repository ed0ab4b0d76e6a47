package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "github.com/utafrali/productsearch/pkg/errors"
)

const (
	// MaxBatchSize caps the number of products accepted by one bulk save.
	MaxBatchSize = 500
	// MaxNameLength is the longest name, in characters, the API accepts.
	MaxNameLength = 512
)

// Product is the searchable document. ID is empty until the first save and
// never changes afterwards.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	Brand       string    `json:"brand,omitempty"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewProduct builds an unsaved product with no tags and validates it.
func NewProduct(name, description, category string, price float64, stock int) (Product, error) {
	p := Product{
		Name:        name,
		Description: description,
		Category:    category,
		Price:       price,
		Stock:       stock,
		Tags:        []string{},
	}
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	return p, nil
}

// Validate checks the document invariants and reports every offending field.
func (p *Product) Validate() error {
	fields := p.fieldErrors("")
	if len(fields) > 0 {
		return apperrors.Validation("product validation failed", fields)
	}
	return nil
}

func (p *Product) fieldErrors(prefix string) map[string]string {
	fields := make(map[string]string)
	if strings.TrimSpace(p.Name) == "" {
		fields[prefix+"name"] = "is required"
	}
	if strings.TrimSpace(p.Description) == "" {
		fields[prefix+"description"] = "is required"
	}
	if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
		fields[prefix+"price"] = "must be a finite number"
	} else if p.Price < 0 {
		fields[prefix+"price"] = "must not be negative"
	}
	if p.Stock < 0 {
		fields[prefix+"stock"] = "must not be negative"
	}
	return fields
}

// ValidateBatch validates every product of a bulk save. Field keys carry the
// item index, e.g. "items[3].price".
func ValidateBatch(products []Product) error {
	if len(products) == 0 {
		return apperrors.InvalidArgument("at least one product is required")
	}
	if len(products) > MaxBatchSize {
		return apperrors.InvalidArgument("a batch holds at most %d products, got %d", MaxBatchSize, len(products))
	}

	fields := make(map[string]string)
	for i := range products {
		for k, v := range products[i].fieldErrors(fmt.Sprintf("items[%d].", i)) {
			fields[k] = v
		}
	}
	if len(fields) > 0 {
		return apperrors.Validation("product batch validation failed", fields)
	}
	return nil
}

// Touch stamps CreatedAt on first save and refreshes UpdatedAt on every save.
// Tags are normalized to an empty list so the wire format never carries null.
func (p *Product) Touch(now time.Time) {
	now = now.UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Tags == nil {
		p.Tags = []string{}
	}
}
