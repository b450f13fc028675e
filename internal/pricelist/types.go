package pricelist

import (
	"github.com/shopspring/decimal"

	"github.com/artiss27/pricelist-sync/internal/parser"
)

// LineRecord is one normalized supplier row; the parser package owns the
// shape, the pipeline treats it as immutable.
type LineRecord = parser.Record

// Confidence ranks trust in a match and drives whether a human has to
// confirm it before apply.
type Confidence string

const (
	ConfidenceExact  Confidence = "exact"
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceNone   Confidence = "none"
)

// Match methods, reported per result and tallied in stats.
const (
	MethodMatchedProducts = "matched_products"
	MethodSupplierCode    = "supplier_code"
	MethodNameSimilarity  = "name_similarity"
)

// Availability actions applied by the commit engine.
const (
	AvailabilityDontChange   = "dont_change"
	AvailabilitySetFromPrice = "set_from_price"
	AvailabilitySet1000      = "set_1000"
)

const restockValue = 1000

// Duplicate-code policies for codes repeated inside one file.
const (
	DuplicateFirstWins = "first_wins"
	DuplicateReject    = "reject"
)

// MatchResult links one catalog product to one supplier line. Only the
// confirmed-mapping strategy sets IsConfirmed; every other match waits
// for a human.
type MatchResult struct {
	ProductID    int64      `json:"product_id"`
	ProductName  string     `json:"product_name,omitempty"`
	SupplierCode string     `json:"supplier_code"`
	Confidence   Confidence `json:"confidence"`
	Method       string     `json:"method"`
	IsConfirmed  bool       `json:"is_confirmed"`
	Score        float64    `json:"score,omitempty"`

	Line *LineRecord `json:"line,omitempty"`
}

// Modifier is one step of the price pipeline, applied to a single price
// type. Type percentage: price *= 1 + value/100. Type fixed:
// price += value. Type none: no-op.
type Modifier struct {
	PriceType string          `json:"price_type"`
	Type      string          `json:"modifier_type"`
	Value     decimal.Decimal `json:"value"`
}

const (
	ModifierPercentage = "percentage"
	ModifierFixed      = "fixed"
	ModifierNone       = "none"
)

// CalculatedPrices is the modifier-pipeline output. Nil in, nil out: a
// price type the supplier did not quote stays nil all the way through.
type CalculatedPrices struct {
	Purchase *decimal.Decimal `json:"purchase,omitempty"`
	Retail   *decimal.Decimal `json:"retail,omitempty"`
	List     *decimal.Decimal `json:"list,omitempty"`
}

// MatchDecision is one human-reviewed row handed to Apply.
type MatchDecision struct {
	ProductID    int64            `json:"product_id"`
	SupplierCode string           `json:"supplier_code"`
	IsConfirmed  bool             `json:"is_confirmed"`
	Prices       CalculatedPrices `json:"prices"`
	Availability *int             `json:"availability,omitempty"`
}

// MatchStats tallies one matcher run.
type MatchStats struct {
	TotalLines        int `json:"total_lines"`
	TotalProducts     int `json:"total_products"`
	ByConfirmedMap    int `json:"by_confirmed_map"`
	BySupplierCode    int `json:"by_supplier_code"`
	ByNameSimilarity  int `json:"by_name_similarity"`
	UnmatchedProducts int `json:"unmatched_products"`
	UnmatchedLines    int `json:"unmatched_lines"`
	DuplicateCodes    int `json:"duplicate_codes"`
}

// ApplyStats accounts for every decision the commit engine considered:
// updated + failed + skipped always equals the input size. The sweep and
// recalculation counters are independent side effects.
type ApplyStats struct {
	Updated      int    `json:"updated"`
	Failed       int    `json:"failed"`
	Skipped      int    `json:"skipped"`
	ZeroStockSet int    `json:"zero_stock_set,omitempty"`
	Recalculated int    `json:"recalculated,omitempty"`
	Warning      string `json:"warning,omitempty"`
}

// RecalcStats accounts for one currency-recalculation sweep.
type RecalcStats struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}
