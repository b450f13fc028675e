package pricelist

import (
	"context"
	"fmt"

	"github.com/artiss27/pricelist-sync/internal/catalog"
	"github.com/artiss27/pricelist-sync/internal/db"
)

// Apply re-runs resolve → match → calculate for the template and commits
// the confirmed subset: prices and the supplier code go into the flat
// custom-attribute namespace, stock follows the configured availability
// action. Matched-but-unconfirmed rows count as skipped and never reach
// the catalog writer.
func (s *Service) Apply(ctx context.Context, templateID uint, mediaID string, forceRefresh bool, actor string) (*ApplyStats, error) {
	tpl, err := s.Template(ctx, templateID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.matchTemplate(ctx, tpl, mediaID, forceRefresh)
	if err != nil {
		return nil, err
	}

	mods, err := templateModifiers(tpl)
	if err != nil {
		return nil, err
	}

	decisions := make([]MatchDecision, 0, len(outcome.Matched))
	for _, res := range outcome.Matched {
		d := MatchDecision{
			ProductID:    res.ProductID,
			SupplierCode: res.SupplierCode,
			IsConfirmed:  res.IsConfirmed,
		}
		if res.Line != nil {
			d.Prices = CalculatePrices(*res.Line, mods)
			d.Availability = res.Line.Availability
		}
		decisions = append(decisions, d)
	}

	s.log.Info().
		Uint("template_id", tpl.ID).
		Str("actor", actor).
		Int("decisions", len(decisions)).
		Msg("apply started")
	return s.ApplyDecisions(ctx, tpl, decisions)
}

// ApplyDecisions commits a reviewed decision set. The confirmed rows are
// written as ONE catalog batch: a batch failure reassigns the whole
// updated tally to failed and propagates after the stats are final.
func (s *Service) ApplyDecisions(ctx context.Context, tpl *db.PriceTemplate, decisions []MatchDecision) (*ApplyStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(ctx, tpl, decisions)
}

func (s *Service) applyLocked(ctx context.Context, tpl *db.PriceTemplate, decisions []MatchDecision) (*ApplyStats, error) {
	stats := &ApplyStats{}
	currencies := tpl.PriceCurrenciesMap()

	confirmedIDs := make(map[int64]bool, len(decisions))
	patches := make([]catalog.ProductPatch, 0, len(decisions))
	for _, d := range decisions {
		if !d.IsConfirmed {
			stats.Skipped++
			continue
		}
		confirmedIDs[d.ProductID] = true
		patches = append(patches, s.decisionPatch(tpl, d, currencies))
	}

	if len(patches) > 0 {
		if err := s.store.UpdateProducts(ctx, patches); err != nil {
			// all-or-nothing at the catalog layer: the whole batch failed
			stats.Failed = len(patches)
			stats.Updated = 0
			s.log.Error().Err(err).
				Uint("template_id", tpl.ID).
				Int("failed", stats.Failed).
				Msg("catalog batch write failed")
			return stats, fmt.Errorf("catalog write: %w", err)
		}
		stats.Updated = len(patches)
	}

	if tpl.ZeroMissingStock && stats.Updated > 0 {
		stats.ZeroStockSet = s.zeroMissingStock(ctx, tpl, confirmedIDs)
	}

	// recalculation failures downgrade to a warning, never fail the apply
	if recalc, err := s.recalcLocked(ctx, "all", 0); err != nil {
		stats.Warning = fmt.Sprintf("currency recalculation failed: %v", err)
		s.log.Warn().Err(err).Uint("template_id", tpl.ID).Msg("post-apply recalculation failed")
	} else {
		stats.Recalculated = recalc.Updated
	}

	s.log.Info().
		Uint("template_id", tpl.ID).
		Int("updated", stats.Updated).
		Int("failed", stats.Failed).
		Int("skipped", stats.Skipped).
		Int("zero_stock_set", stats.ZeroStockSet).
		Int("recalculated", stats.Recalculated).
		Msg("apply finished")
	return stats, nil
}

// decisionPatch turns one confirmed decision into a flat catalog patch.
func (s *Service) decisionPatch(tpl *db.PriceTemplate, d MatchDecision, currencies map[string]string) catalog.ProductPatch {
	patch := catalog.ProductPatch{
		ProductID:  d.ProductID,
		Attributes: map[string]string{catalog.AttrSupplierCode: d.SupplierCode},
	}

	prices := catalog.PriceAttributes{}
	hasPrice := false
	for _, pt := range []string{catalog.PriceTypePurchase, catalog.PriceTypeRetail, catalog.PriceTypeList} {
		v := d.Prices.ByType(pt)
		if v == nil {
			continue
		}
		cur := currencies[pt]
		if cur == "" {
			cur = s.base
		}
		pv := prices.ByType(pt)
		pv.Value = v
		pv.Currency = cur
		if cur == s.base {
			pv.BaseValue = v
		}
		hasPrice = true
	}
	if hasPrice {
		patch.Prices = &prices
	}

	if stock := stockDirective(tpl.AvailabilityAction, d.Availability); stock != nil {
		patch.Stock = stock
	}
	return patch
}

// stockDirective implements the availability policy. set_from_price with
// a missing value forces 0: absent from the supplier's numbers means not
// purchasable, not unknown.
func stockDirective(action string, availability *int) *int {
	switch action {
	case AvailabilitySetFromPrice:
		v := 0
		if availability != nil && *availability > 0 {
			v = *availability
		}
		return &v
	case AvailabilitySet1000:
		v := restockValue
		return &v
	default: // AvailabilityDontChange or unset
		return nil
	}
}

// zeroMissingStock forces stock 0 on catalog products matching the
// template filter but absent from the confirmed set. Best effort in
// sub-batches: a failing sub-batch is logged and skipped, the sweep
// keeps going.
func (s *Service) zeroMissingStock(ctx context.Context, tpl *db.PriceTemplate, confirmed map[int64]bool) int {
	filter, err := templateFilter(tpl)
	if err != nil {
		s.log.Warn().Err(err).Uint("template_id", tpl.ID).Msg("stock sweep skipped: bad filter")
		return 0
	}
	products, err := s.store.FindProducts(ctx, filter)
	if err != nil {
		s.log.Warn().Err(err).Uint("template_id", tpl.ID).Msg("stock sweep skipped: find failed")
		return 0
	}

	zero := 0
	set := 0
	batch := make([]catalog.ProductPatch, 0, s.batch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.store.UpdateProducts(ctx, batch); err != nil {
			s.log.Warn().Err(err).Int("n", len(batch)).Msg("stock sweep sub-batch failed")
		} else {
			set += len(batch)
		}
		batch = batch[:0]
	}

	for _, p := range products {
		if confirmed[p.ID] || p.Stock == 0 {
			continue
		}
		batch = append(batch, catalog.ProductPatch{ProductID: p.ID, Stock: &zero})
		if len(batch) >= s.batch {
			flush()
		}
	}
	flush()

	s.log.Info().
		Uint("template_id", tpl.ID).
		Int("zero_stock_set", set).
		Msg("missing-from-list stock sweep done")
	return set
}
