// internal/services/sanitizer.go
package services

import "github.com/javajoker/offer-enricher/internal/models"

// FilterInBounds returns the offers whose product_id and barcode both fit a
// signed 64-bit column, in their original order, plus how many were dropped.
// Kept offers are not modified.
func FilterInBounds(batch []models.Offer) ([]models.Offer, int) {
	kept := make([]models.Offer, 0, len(batch))
	for _, offer := range batch {
		if offer.ProductID.InInt64Range() && offer.Barcode.InInt64Range() {
			kept = append(kept, offer)
		}
	}
	return kept, len(batch) - len(kept)
}
