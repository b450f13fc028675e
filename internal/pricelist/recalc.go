package pricelist

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/artiss27/pricelist-sync/internal/catalog"
)

// Recalculate recomputes base-currency prices from the stored
// multi-currency values: base = value / factor, rounded to 2 decimals.
// priceType is purchase, retail or all; limit > 0 bounds the product
// scan. Writes are flushed in sub-batches; a failing sub-batch moves its
// updated tally into errors and the sweep continues.
func (s *Service) Recalculate(ctx context.Context, priceType string, limit int) (*RecalcStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recalcLocked(ctx, priceType, limit)
}

func (s *Service) recalcLocked(ctx context.Context, priceType string, limit int) (*RecalcStats, error) {
	types, err := recalcTypes(priceType)
	if err != nil {
		return nil, err
	}

	factors, err := s.store.LoadCurrencyFactors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load currency factors: %w", err)
	}

	products, err := s.store.FindProducts(ctx, catalog.Filter{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}

	stats := &RecalcStats{}
	batch := make([]catalog.ProductPatch, 0, s.batch)
	staged := 0
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.store.UpdateProducts(ctx, batch); err != nil {
			// back the batch's tally out of updated, keep sweeping
			stats.Updated -= len(batch)
			stats.Errors += len(batch)
			s.log.Warn().Err(err).Int("n", len(batch)).Msg("recalc sub-batch failed")
		}
		batch = batch[:0]
	}

	for _, p := range products {
		if !hasAnyPrice(&p.Prices) {
			continue
		}
		stats.Processed++

		newPrices := p.Prices
		changed := false
		for _, t := range types {
			pv := newPrices.ByType(t)
			if pv.Value == nil || pv.Currency == "" {
				continue
			}

			var base decimal.Decimal
			if pv.Currency == s.base {
				base = *pv.Value
			} else {
				factor, ok := factors[pv.Currency]
				if !ok || factor == 0 {
					s.log.Warn().
						Int64("product_id", p.ID).
						Str("currency", pv.Currency).
						Msg("no usable factor for currency")
					stats.Errors++
					continue
				}
				base = pv.Value.Div(decimal.NewFromFloat(factor)).Round(2)
			}

			if pv.BaseValue == nil || !pv.BaseValue.Equal(base) {
				v := base
				pv.BaseValue = &v
				changed = true
			}
		}

		if !changed {
			stats.Skipped++
			continue
		}
		prices := newPrices
		batch = append(batch, catalog.ProductPatch{ProductID: p.ID, Prices: &prices})
		stats.Updated++
		staged++
		if len(batch) >= s.batch {
			flush()
		}
	}
	flush()

	s.log.Info().
		Str("price_type", priceType).
		Int("processed", stats.Processed).
		Int("updated", stats.Updated).
		Int("skipped", stats.Skipped).
		Int("errors", stats.Errors).
		Int("staged", staged).
		Msg("currency recalculation done")
	return stats, nil
}

func recalcTypes(priceType string) ([]string, error) {
	switch priceType {
	case catalog.PriceTypePurchase:
		return []string{catalog.PriceTypePurchase}, nil
	case catalog.PriceTypeRetail:
		return []string{catalog.PriceTypeRetail}, nil
	case "all", "":
		return []string{catalog.PriceTypePurchase, catalog.PriceTypeRetail, catalog.PriceTypeList}, nil
	default:
		return nil, fmt.Errorf("unknown price type %q", priceType)
	}
}

func hasAnyPrice(p *catalog.PriceAttributes) bool {
	for _, t := range []string{catalog.PriceTypePurchase, catalog.PriceTypeRetail, catalog.PriceTypeList} {
		if pv := p.ByType(t); pv.Value != nil && pv.Currency != "" {
			return true
		}
	}
	return false
}
