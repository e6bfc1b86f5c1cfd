// internal/models/offer.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Offer is the canonical record for one feed offer. UUID is the join key
// between the relational table and the search index.
type Offer struct {
	UUID                 uuid.UUID      `json:"uuid" gorm:"column:uuid;type:uuid;primaryKey"`
	MarketplaceID        int64          `json:"marketplace_id" gorm:"column:marketplace_id"`
	ProductID            Identifier     `json:"product_id" gorm:"column:product_id;type:bigint"`
	Title                *string        `json:"title" gorm:"column:title;type:text"`
	Description          *string        `json:"description" gorm:"column:description;type:text"`
	Brand                *string        `json:"brand" gorm:"column:brand;type:text"`
	SellerID             int64          `json:"seller_id" gorm:"column:seller_id"`
	SellerName           *string        `json:"seller_name" gorm:"column:seller_name;type:text"`
	FirstImageURL        *string        `json:"first_image_url" gorm:"column:first_image_url;type:text"`
	CategoryID           int64          `json:"category_id" gorm:"column:category_id"`
	Features             Features       `json:"features" gorm:"column:features;type:jsonb"`
	RatingCount          int64          `json:"rating_count" gorm:"column:rating_count"`
	RatingValue          float64        `json:"rating_value" gorm:"column:rating_value"`
	PriceBeforeDiscounts float64        `json:"price_before_discounts" gorm:"column:price_before_discounts"`
	Discount             float64        `json:"discount" gorm:"column:discount"`
	PriceAfterDiscounts  float64        `json:"price_after_discounts" gorm:"column:price_after_discounts"`
	Bonuses              int64          `json:"bonuses" gorm:"column:bonuses"`
	Sales                int64          `json:"sales" gorm:"column:sales"`
	Currency             *string        `json:"currency" gorm:"column:currency;type:text"`
	Barcode              Identifier     `json:"barcode" gorm:"column:barcode;type:bigint"`
	SimilarSKU           pq.StringArray `json:"similar_sku" gorm:"column:similar_sku;type:text[]"`

	CategoryLevels `gorm:"embedded"`
}

// CategoryLevels is the flattened ancestry of an offer's category. Level 1 is
// the offer's own category, each following level one step closer to the root.
type CategoryLevels struct {
	Lvl1      *string `json:"category_lvl_1" gorm:"column:category_lvl_1;type:text"`
	Lvl2      *string `json:"category_lvl_2" gorm:"column:category_lvl_2;type:text"`
	Lvl3      *string `json:"category_lvl_3" gorm:"column:category_lvl_3;type:text"`
	Remaining *string `json:"category_remaining" gorm:"column:category_remaining;type:text"`
}

// SearchDocument is the text subset of an offer that goes to the search index.
type SearchDocument struct {
	UUID        string `json:"uuid"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (o *Offer) SearchDocument() SearchDocument {
	doc := SearchDocument{UUID: o.UUID.String()}
	if o.Title != nil {
		doc.Title = *o.Title
	}
	if o.Description != nil {
		doc.Description = *o.Description
	}
	return doc
}
