package db

import (
	"encoding/json"
	"strconv"
	"time"
)

// price_templates — long-lived import configuration plus the cached
// normalization result for the last parsed supplier file.
type PriceTemplate struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"uniqueIndex"`
	StartRow int
	Charset  string // source file encoding label, empty = UTF-8

	// JSON columns. Mapping/filters/modifiers are authored by an
	// administrator; matched_products grows with every confirmation.
	ColumnMapping   string `gorm:"type:text"`
	Filters         string `gorm:"type:text"`
	Modifiers       string `gorm:"type:text"`
	PriceCurrencies string `gorm:"type:text"`
	MatchedProducts string `gorm:"type:text"`

	// Normalization cache: blob plus the media fingerprint it was
	// parsed from. Always written together in one UPDATE.
	NormalizedData           string `gorm:"type:text"`
	LastImportMediaID        string `gorm:"index"`
	LastImportMediaUpdatedAt *time.Time

	DefaultMediaID string

	// Apply behaviour.
	AvailabilityAction  string // dont_change | set_from_price | set_1000
	ZeroMissingStock    bool
	DuplicateCodePolicy string // first_wins | reject

	CreatedAt time.Time
	UpdatedAt time.Time
}

// catalog_products — the reference catalog store backing table. The core
// only sees these through the catalog.Store interface.
type CatalogProduct struct {
	ID           int64  `gorm:"primaryKey"`
	Name         string `gorm:"index"`
	Stock        int
	Category     string `gorm:"index"`
	Manufacturer string `gorm:"index"`
	Attributes   string `gorm:"type:text"` // flat custom-attribute map, JSON
	Prices       string `gorm:"type:text"` // multi-currency snapshot, JSON
	UpdatedAt    time.Time
}

// currency_rates — factor expresses units of this currency per one unit
// of base currency; base prices are value/factor.
type CurrencyRate struct {
	Code      string `gorm:"primaryKey"`
	Factor    float64
	UpdatedAt time.Time
}

// media_files — registered supplier files. SHA + size + source mtime are
// the identity used for cache validity. SourceModifiedAt is set from the
// file, never auto-touched, so an unchanged file keeps its fingerprint.
type MediaFile struct {
	ID               string `gorm:"primaryKey"`
	Filename         string `gorm:"uniqueIndex"`
	Path             string
	SHA256           string `gorm:"index"`
	SizeBytes        int64
	SourceModifiedAt time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// match_issues — data-quality findings from matching and apply runs
// (duplicate supplier codes, conflicting mappings). Upserted per
// (template, product, reason, code) so reruns refresh instead of piling up.
type MatchIssue struct {
	ID         uint   `gorm:"primaryKey"`
	TemplateID uint   `gorm:"index"`
	ProductID  int64  `gorm:"index"`
	Code       string `gorm:"index"`
	Reason     string `gorm:"index"`
	Details    string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ColumnMappingMap decodes the column_mapping JSON column. A missing or
// empty column is returned as an empty map, never an error.
func (t *PriceTemplate) ColumnMappingMap() map[string]int {
	out := map[string]int{}
	if t.ColumnMapping == "" {
		return out
	}
	_ = json.Unmarshal([]byte(t.ColumnMapping), &out)
	return out
}

// MatchedProductsMap decodes matched_products into product id → supplier
// code. JSON object keys are strings, so ids round-trip through strconv.
func (t *PriceTemplate) MatchedProductsMap() map[int64]string {
	raw := map[string]string{}
	if t.MatchedProducts != "" {
		_ = json.Unmarshal([]byte(t.MatchedProducts), &raw)
	}
	out := make(map[int64]string, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		out[id] = v
	}
	return out
}

// EncodeMatchedProducts is the inverse of MatchedProductsMap.
func EncodeMatchedProducts(m map[int64]string) string {
	raw := make(map[string]string, len(m))
	for id, code := range m {
		raw[strconv.FormatInt(id, 10)] = code
	}
	b, _ := json.Marshal(raw)
	return string(b)
}

// PriceCurrenciesMap decodes price_currencies: price type → currency code.
func (t *PriceTemplate) PriceCurrenciesMap() map[string]string {
	out := map[string]string{}
	if t.PriceCurrencies == "" {
		return out
	}
	_ = json.Unmarshal([]byte(t.PriceCurrencies), &out)
	return out
}
