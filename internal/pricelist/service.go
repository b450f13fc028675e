// Package pricelist implements the price-list reconciliation pipeline:
// normalization caching, the matcher chain, the modifier calculator, the
// fuzzy auto-matcher and the apply/commit engine.
package pricelist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/artiss27/pricelist-sync/internal/catalog"
	"github.com/artiss27/pricelist-sync/internal/db"
	"github.com/artiss27/pricelist-sync/internal/media"
	"github.com/artiss27/pricelist-sync/internal/parser"
)

// Options carry the process-wide knobs; per-template behaviour lives on
// the template row.
type Options struct {
	BaseCurrency string
	BatchSize    int
}

// Service orchestrates the pipeline stages. Mutating operations (cache
// write, confirmation, apply, recalculation) are serialized behind mu;
// matching and calculation are pure and need no locking.
type Service struct {
	log     zerolog.Logger
	db      *gorm.DB
	store   catalog.Store
	parsers *parser.Registry
	media   *media.Registry

	base  string
	batch int

	mu sync.Mutex
}

func NewService(log zerolog.Logger, gdb *gorm.DB, store catalog.Store, parsers *parser.Registry, mediaReg *media.Registry, opts Options) *Service {
	if opts.BaseCurrency == "" {
		opts.BaseCurrency = "EUR"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &Service{
		log:     log.With().Str("component", "pricelist").Logger(),
		db:      gdb,
		store:   store,
		parsers: parsers,
		media:   mediaReg,
		base:    opts.BaseCurrency,
		batch:   opts.BatchSize,
	}
}

// Template loads one template row.
func (s *Service) Template(ctx context.Context, id uint) (*db.PriceTemplate, error) {
	var tpl db.PriceTemplate
	if err := s.db.WithContext(ctx).Take(&tpl, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: template %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &tpl, nil
}

// Preview runs resolve → match → calculate without touching the catalog
// and returns the payload a human reviews before confirming anything.
type Preview struct {
	Matched           []PreviewItem    `json:"matched"`
	UnmatchedProducts []PreviewProduct `json:"unmatched_products"`
	UnmatchedLines    []LineRecord     `json:"unmatched_lines"`
	Stats             MatchStats       `json:"stats"`
}

type PreviewItem struct {
	MatchResult
	Prices CalculatedPrices `json:"prices"`
}

type PreviewProduct struct {
	ProductID    int64  `json:"product_id"`
	Name         string `json:"name"`
	SupplierCode string `json:"supplier_code,omitempty"`
}

func (s *Service) Preview(ctx context.Context, templateID uint, mediaID string, forceRefresh bool) (*Preview, error) {
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

	out := &Preview{Stats: outcome.Stats}
	for _, res := range outcome.Matched {
		item := PreviewItem{MatchResult: res}
		if res.Line != nil {
			item.Prices = CalculatePrices(*res.Line, mods)
		}
		out.Matched = append(out.Matched, item)
	}
	for _, p := range outcome.UnmatchedProducts {
		out.UnmatchedProducts = append(out.UnmatchedProducts, PreviewProduct{
			ProductID:    p.ID,
			Name:         p.Name,
			SupplierCode: p.SupplierCode(),
		})
	}
	out.UnmatchedLines = outcome.UnmatchedLines

	s.log.Info().
		Uint("template_id", tpl.ID).
		Int("matched", len(out.Matched)).
		Int("unmatched_products", len(out.UnmatchedProducts)).
		Int("unmatched_lines", len(out.UnmatchedLines)).
		Msg("preview built")
	return out, nil
}

// AutoMatch runs the fuzzy side-path over the unmatched residue of a
// normal match run. Candidates come back unconfirmed.
func (s *Service) AutoMatch(ctx context.Context, templateID uint, mediaID string, forceRefresh bool) ([]MatchResult, []LineRecord, error) {
	tpl, err := s.Template(ctx, templateID)
	if err != nil {
		return nil, nil, err
	}

	outcome, err := s.matchTemplate(ctx, tpl, mediaID, forceRefresh)
	if err != nil {
		return nil, nil, err
	}

	matches, still := AutoMatch(outcome.UnmatchedLines, outcome.UnmatchedProducts)
	s.log.Info().
		Uint("template_id", tpl.ID).
		Int("candidates", len(matches)).
		Int("still_unmatched", len(still)).
		Msg("auto-match finished")
	return matches, still, nil
}

// matchTemplate is the shared resolve-then-match step.
func (s *Service) matchTemplate(ctx context.Context, tpl *db.PriceTemplate, mediaID string, forceRefresh bool) (*MatchOutcome, error) {
	lines, err := s.ResolveNormalized(ctx, tpl, mediaID, forceRefresh)
	if err != nil {
		return nil, err
	}

	filter, err := templateFilter(tpl)
	if err != nil {
		return nil, err
	}
	products, err := s.store.FindProducts(ctx, filter)
	if err != nil {
		return nil, err
	}

	policy := tpl.DuplicateCodePolicy
	if policy == "" {
		policy = DuplicateFirstWins
	}
	outcome, err := MatchLines(lines, products, tpl.MatchedProductsMap(), policy)
	if err != nil {
		return nil, err
	}

	for _, code := range outcome.Duplicates {
		s.recordIssue(tpl.ID, 0, code, "duplicate_code_in_file",
			fmt.Sprintf("supplier code %s appears more than once, first occurrence used", code))
	}

	s.log.Debug().
		Uint("template_id", tpl.ID).
		Int("lines", outcome.Stats.TotalLines).
		Int("products", outcome.Stats.TotalProducts).
		Int("by_confirmed_map", outcome.Stats.ByConfirmedMap).
		Int("by_supplier_code", outcome.Stats.BySupplierCode).
		Int("by_name", outcome.Stats.ByNameSimilarity).
		Int("duplicates", outcome.Stats.DuplicateCodes).
		Msg("match run")
	return outcome, nil
}

// recordIssue upserts one data-quality finding; reruns refresh the
// existing row instead of stacking duplicates.
func (s *Service) recordIssue(templateID uint, productID int64, code, reason, details string) {
	issue := db.MatchIssue{
		TemplateID: templateID,
		ProductID:  productID,
		Code:       code,
		Reason:     reason,
		Details:    details,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "template_id"},
			{Name: "product_id"},
			{Name: "reason"},
			{Name: "code"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"details":    details,
			"updated_at": time.Now(),
		}),
	}).Create(&issue).Error
	if err != nil {
		s.log.Warn().Err(err).Str("reason", reason).Str("code", code).Msg("issue upsert failed")
	}
}

func templateFilter(tpl *db.PriceTemplate) (catalog.Filter, error) {
	var f catalog.Filter
	if tpl.Filters == "" {
		return f, nil
	}
	if err := json.Unmarshal([]byte(tpl.Filters), &f); err != nil {
		return f, fmt.Errorf("template %d filters: %w", tpl.ID, err)
	}
	return f, nil
}

func templateModifiers(tpl *db.PriceTemplate) ([]Modifier, error) {
	if tpl.Modifiers == "" {
		return nil, nil
	}
	var mods []Modifier
	if err := json.Unmarshal([]byte(tpl.Modifiers), &mods); err != nil {
		return nil, fmt.Errorf("template %d modifiers: %w", tpl.ID, err)
	}
	return mods, nil
}
