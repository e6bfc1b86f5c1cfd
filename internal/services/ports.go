// internal/services/ports.go
package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/javajoker/offer-enricher/internal/feed"
	"github.com/javajoker/offer-enricher/internal/models"
	"github.com/javajoker/offer-enricher/internal/search"
)

// OfferStore is the relational side of the pipeline.
type OfferStore interface {
	UpsertBatch(ctx context.Context, offers []models.Offer) error
	// ListUUIDs returns up to limit ids greater than after, ascending.
	ListUUIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
	UpdateSimilarSKU(ctx context.Context, id uuid.UUID, similar []string) error
	Count(ctx context.Context) (int64, error)
}

// SearchIndex is the text side of the pipeline.
type SearchIndex interface {
	EnsureIndex(ctx context.Context) error
	Refresh(ctx context.Context) error
	BulkUpsert(ctx context.Context, docs []models.SearchDocument) (search.BulkResult, error)
	FindSimilar(ctx context.Context, seed string, limit int) ([]string, error)
}

// OfferSource yields raw offers until io.EOF.
type OfferSource interface {
	Next() (*feed.RawOffer, error)
}
