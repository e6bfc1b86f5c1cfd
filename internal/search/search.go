// internal/search/search.go
package search

import (
	"context"

	"github.com/javajoker/offer-enricher/internal/models"
)

// Searchable text fields, also used as the similarity basis.
var SimilarityFields = []string{"title", "description"}

// Index stores offer text and answers "more like this" queries keyed by uuid.
type Index interface {
	// EnsureIndex creates the index when missing; it is a no-op otherwise.
	EnsureIndex(ctx context.Context) error
	// Refresh makes everything upserted so far visible to FindSimilar.
	Refresh(ctx context.Context) error
	BulkUpsert(ctx context.Context, docs []models.SearchDocument) (BulkResult, error)
	// FindSimilar returns up to limit ids most similar to seed, never seed
	// itself. An unknown seed yields an empty list, not an error.
	FindSimilar(ctx context.Context, seed string, limit int) ([]string, error)
}

// BulkResult reports a bulk upsert that reached the engine. Documents the
// engine rejected individually are listed in Failed.
type BulkResult struct {
	Indexed int
	Failed  []DocumentFailure
}

type DocumentFailure struct {
	ID     string
	Reason string
}
