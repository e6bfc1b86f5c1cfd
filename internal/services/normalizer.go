// internal/services/normalizer.go
package services

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/javajoker/offer-enricher/internal/feed"
	"github.com/javajoker/offer-enricher/internal/models"
)

type Normalizer struct {
	tree  *CategoryTree
	newID func() uuid.UUID
}

func NewNormalizer(tree *CategoryTree) *Normalizer {
	return &Normalizer{tree: tree, newID: uuid.New}
}

// NormalizeOffer converts one raw offer using a fresh random uuid.
func NormalizeOffer(raw *feed.RawOffer, tree *CategoryTree) models.Offer {
	return NewNormalizer(tree).Normalize(raw)
}

// Normalize never fails: missing or unparsable numbers become zero.
func (n *Normalizer) Normalize(raw *feed.RawOffer) models.Offer {
	oldPrice := parseFloat(raw.OldPrice)
	newPrice := parseFloat(raw.Price)

	categoryKey := "0"
	if raw.CategoryID != nil {
		categoryKey = strings.TrimSpace(*raw.CategoryID)
	}

	offer := models.Offer{
		UUID:                 n.newID(),
		MarketplaceID:        parseInt(raw.GroupID),
		ProductID:            parseIdentifier(&raw.ID),
		Title:                raw.Name,
		Description:          raw.Description,
		Brand:                raw.Vendor,
		SellerID:             parseInt(raw.SellerID),
		SellerName:           raw.SellerName,
		FirstImageURL:        firstPicture(raw.Pictures),
		CategoryID:           parseInt(raw.CategoryID),
		Features:             paramsToFeatures(raw.Params),
		RatingCount:          parseInt(raw.RatingCount),
		RatingValue:          parseFloat(raw.RatingValue),
		PriceBeforeDiscounts: oldPrice,
		Discount:             Discount(oldPrice, newPrice),
		PriceAfterDiscounts:  newPrice,
		Bonuses:              parseInt(raw.Bonuses),
		Sales:                parseInt(raw.Sales),
		Currency:             raw.CurrencyID,
		Barcode:              parseIdentifier(raw.Barcode),
		SimilarSKU:           pq.StringArray{},
	}
	if n.tree != nil {
		offer.CategoryLevels = n.tree.ResolveLevels(categoryKey)
	}
	return offer
}

// Discount is the percentage saved, rounded to two places. Zero when there is
// no old price. Negative when the price went up.
func Discount(oldPrice, newPrice float64) float64 {
	if oldPrice == 0 {
		return 0
	}
	return roundTo(((oldPrice-newPrice)/oldPrice)*100, 2)
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func firstPicture(pictures []string) *string {
	if len(pictures) == 0 {
		return nil
	}
	first := pictures[0]
	return &first
}

func paramsToFeatures(params []feed.RawParam) models.Features {
	features := make(models.Features, len(params))
	for _, p := range params {
		features[p.Name] = p.Value
	}
	return features
}

func parseInt(s *string) int64 {
	if s == nil {
		return 0
	}
	v, err := strconv.ParseInt(strings.TrimSpace(*s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseFloat(s *string) float64 {
	if s == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// parseIdentifier keeps the full width of the literal so the sanitizer can
// tell an overflowing id from a zero one.
func parseIdentifier(s *string) models.Identifier {
	if s == nil {
		return models.Identifier{}
	}
	id, ok := models.ParseIdentifier(strings.TrimSpace(*s))
	if !ok {
		return models.Identifier{}
	}
	return id
}
