package elasticsearch

import (
	"fmt"

	"github.com/utafrali/productsearch/internal/domain"
)

// DefaultIndexName is the default Elasticsearch index used for product documents.
const DefaultIndexName = "products"

// buildIndexMapping returns the full JSON mapping for the products index,
// including the nori analyzers for Korean text and an edge n-gram analyzer
// for prefix matching. The analysis-nori plugin must be installed.
// name.keyword keeps every name the API accepts.
func buildIndexMapping() string {
	return fmt.Sprintf(`{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "tokenizer": {
        "nori_mixed_tokenizer": {
          "type": "nori_tokenizer",
          "decompound_mode": "mixed"
        },
        "edge_ngram_tokenizer": {
          "type": "edge_ngram",
          "min_gram": 1,
          "max_gram": 20,
          "token_chars": ["letter", "digit"]
        }
      },
      "filter": {
        "nori_pos_filter": {
          "type": "nori_part_of_speech",
          "stoptags": ["E", "IC", "J", "MAG", "MM", "SP", "SSC", "SSO", "SC", "SE", "XPN", "XSA", "XSN", "XSV", "UNA", "NA", "VSV"]
        }
      },
      "analyzer": {
        "nori_standard": {
          "type": "custom",
          "tokenizer": "nori_mixed_tokenizer",
          "filter": ["lowercase", "nori_readingform", "nori_pos_filter"]
        },
        "nori_search": {
          "type": "custom",
          "tokenizer": "nori_mixed_tokenizer",
          "filter": ["lowercase", "nori_readingform"]
        },
        "edge_ngram": {
          "type": "custom",
          "tokenizer": "edge_ngram_tokenizer",
          "filter": ["lowercase"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "id":          { "type": "keyword" },
      "name":        { "type": "text", "analyzer": "nori_standard", "search_analyzer": "nori_search", "fields": { "standard": { "type": "text", "analyzer": "standard" }, "keyword": { "type": "keyword", "ignore_above": %d }, "ngram": { "type": "text", "analyzer": "edge_ngram", "search_analyzer": "standard" } } },
      "description": { "type": "text", "analyzer": "nori_standard", "search_analyzer": "nori_search", "fields": { "standard": { "type": "text", "analyzer": "standard" } } },
      "category":    { "type": "keyword" },
      "brand":       { "type": "keyword" },
      "tags":        { "type": "keyword" },
      "price":       { "type": "double" },
      "stock":       { "type": "integer" },
      "created_at":  { "type": "date" },
      "updated_at":  { "type": "date" }
    }
  }
}`, domain.MaxNameLength)
}

// sortField maps a document field to the field Elasticsearch can sort on.
func sortField(field string) string {
	if field == "name" {
		return "name.keyword"
	}
	return field
}
