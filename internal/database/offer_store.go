// internal/database/offer_store.go
package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/javajoker/offer-enricher/internal/models"
	"github.com/javajoker/offer-enricher/internal/utils"
)

// maxBindParams is the Postgres wire protocol limit on parameters per statement.
const maxBindParams = 65535

// insertBatchSize is how many offers fit in one INSERT without crossing
// maxBindParams.
func insertBatchSize() int {
	s, err := schema.Parse(&models.Offer{}, &sync.Map{}, schema.NamingStrategy{})
	if err != nil || len(s.DBNames) == 0 {
		return 1000
	}
	return maxBindParams / len(s.DBNames)
}

// OfferStore persists offers into one schema-qualified table. It holds no
// mutable state and is safe for concurrent use.
type OfferStore struct {
	db        *gorm.DB
	table     string
	chunkSize int
}

func NewOfferStore(db *gorm.DB, schema, table string) (*OfferStore, error) {
	if !utils.IsSQLIdentifier(schema) || !utils.IsSQLIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q.%q", schema, table)
	}
	return &OfferStore{db: db, table: schema + "." + table, chunkSize: insertBatchSize()}, nil
}

func (s *OfferStore) Table() string { return s.table }

// UpsertBatch writes the batch in one transaction, keeping the slice order.
// Rows whose uuid already exists are overwritten, which makes re-runs safe.
// Large batches are split into several INSERTs inside that transaction.
func (s *OfferStore) UpsertBatch(ctx context.Context, offers []models.Offer) error {
	if len(offers) == 0 {
		return nil
	}

	err := WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return upsertOffers(tx, s.table, offers, s.chunkSize)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d offers into %s: %w", len(offers), s.table, err)
	}
	return nil
}

func upsertOffers(tx *gorm.DB, table string, offers []models.Offer, chunkSize int) error {
	return tx.Table(table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uuid"}},
			UpdateAll: true,
		}).
		CreateInBatches(&offers, chunkSize).Error
}

// ListUUIDs is a keyset page: ids strictly after `after`, ascending.
func (s *OfferStore) ListUUIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Table(s.table).
		Where("uuid > ?", after).
		Order("uuid").
		Limit(limit).
		Pluck("uuid", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list offers from %s: %w", s.table, err)
	}
	return ids, nil
}

func (s *OfferStore) UpdateSimilarSKU(ctx context.Context, id uuid.UUID, similar []string) error {
	result := s.db.WithContext(ctx).
		Table(s.table).
		Where("uuid = ?", id).
		Update("similar_sku", pq.StringArray(similar))
	if result.Error != nil {
		return fmt.Errorf("failed to update similar_sku for %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("offer %s not found in %s", id, s.table)
	}
	return nil
}

func (s *OfferStore) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Table(s.table).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count offers in %s: %w", s.table, err)
	}
	return total, nil
}
