package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

// Price type names used across templates, modifiers and patches.
const (
	PriceTypePurchase = "purchase"
	PriceTypeRetail   = "retail"
	PriceTypeList     = "list"
)

// AttrSupplierCode is the flat custom-attribute key holding the supplier
// code confirmed for a product.
const AttrSupplierCode = "supplier_code"

// PriceValue is one stored price: the supplier-quoted value with its
// currency, plus the derived base-currency value filled in by the
// recalculation sweep.
type PriceValue struct {
	Value     *decimal.Decimal `json:"value,omitempty"`
	Currency  string           `json:"currency,omitempty"`
	BaseValue *decimal.Decimal `json:"base_value,omitempty"`
}

// PriceAttributes is the canonical flat price record at the core
// boundary. Whatever physical shape a store keeps, its adapter converts
// to and from this.
type PriceAttributes struct {
	Purchase PriceValue `json:"purchase,omitempty"`
	Retail   PriceValue `json:"retail,omitempty"`
	List     PriceValue `json:"list,omitempty"`
}

// ByType returns a pointer into the record for the named price type,
// or nil for an unknown type.
func (p *PriceAttributes) ByType(priceType string) *PriceValue {
	switch priceType {
	case PriceTypePurchase:
		return &p.Purchase
	case PriceTypeRetail:
		return &p.Retail
	case PriceTypeList:
		return &p.List
	}
	return nil
}

// Product is the catalog-side view the reconciliation core works with.
type Product struct {
	ID         int64
	Name       string
	Stock      int
	Attributes map[string]string
	Prices     PriceAttributes
}

// SupplierCode returns the product's stored supplier-code attribute.
func (p *Product) SupplierCode() string {
	if p.Attributes == nil {
		return ""
	}
	return p.Attributes[AttrSupplierCode]
}

// Filter restricts the candidate set handed to the matcher.
type Filter struct {
	Categories      []string          `json:"categories,omitempty"`
	Manufacturers   []string          `json:"manufacturers,omitempty"`
	AttributeEquals map[string]string `json:"attribute_equals,omitempty"`
	Limit           int               `json:"-"`
}

// ProductPatch is one staged catalog update. Nil fields are left
// untouched; Attributes are merged into the existing flat map.
type ProductPatch struct {
	ProductID  int64
	Attributes map[string]string
	Prices     *PriceAttributes
	Stock      *int
}

// Store is the catalog the pipeline reads candidates from and writes
// price/stock updates into. UpdateProducts is all-or-nothing per call.
type Store interface {
	FindProducts(ctx context.Context, f Filter) ([]Product, error)
	UpdateProducts(ctx context.Context, batch []ProductPatch) error
	LoadCurrencyFactors(ctx context.Context) (map[string]float64, error)
}
