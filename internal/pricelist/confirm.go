package pricelist

import (
	"context"
	"fmt"

	"github.com/artiss27/pricelist-sync/internal/db"
)

// UpdateMatch upserts a single product → supplier-code pair into the
// template's durable mapping. Last write wins per product id.
func (s *Service) UpdateMatch(ctx context.Context, tpl *db.PriceTemplate, productID int64, supplierCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := tpl.MatchedProductsMap()
	m[productID] = supplierCode
	return s.saveMatchedProducts(ctx, tpl, m)
}

// ConfirmAllMatches folds every candidate carrying both a product id and
// a supplier code into the durable mapping. Returns how many were
// confirmed by this call and the mapping size afterwards.
func (s *Service) ConfirmAllMatches(ctx context.Context, tpl *db.PriceTemplate, candidates []MatchResult) (confirmed, total int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := tpl.MatchedProductsMap()
	for _, c := range candidates {
		if c.ProductID == 0 || c.SupplierCode == "" {
			continue
		}
		m[c.ProductID] = c.SupplierCode
		confirmed++
	}
	if confirmed > 0 {
		if err := s.saveMatchedProducts(ctx, tpl, m); err != nil {
			return 0, 0, err
		}
	}

	s.log.Info().
		Uint("template_id", tpl.ID).
		Int("confirmed", confirmed).
		Int("mapping_size", len(m)).
		Msg("matches confirmed")
	return confirmed, len(m), nil
}

func (s *Service) saveMatchedProducts(ctx context.Context, tpl *db.PriceTemplate, m map[int64]string) error {
	encoded := db.EncodeMatchedProducts(m)
	err := s.db.WithContext(ctx).Model(&db.PriceTemplate{}).
		Where("id = ?", tpl.ID).
		Update("matched_products", encoded).Error
	if err != nil {
		return fmt.Errorf("persist matched products: %w", err)
	}
	tpl.MatchedProducts = encoded
	return nil
}
