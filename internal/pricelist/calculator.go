package pricelist

import (
	"github.com/shopspring/decimal"

	"github.com/artiss27/pricelist-sync/internal/catalog"
)

var oneHundred = decimal.NewFromInt(100)

// CalculatePrices seeds the three price types from the line and runs the
// modifiers in list order. The running value is rounded to 2 decimals
// after every single modifier, so later modifiers compound on the rounded
// intermediate — two +10% steps on 100.00 go 110.00 → 121.00, not
// 100 * 1.21 in one go. Nil prices are skipped by every modifier and come
// out as nil.
func CalculatePrices(line LineRecord, modifiers []Modifier) CalculatedPrices {
	out := CalculatedPrices{
		Purchase: copyDec(line.PurchasePrice),
		Retail:   copyDec(line.RetailPrice),
		List:     copyDec(line.ListPrice),
	}

	for _, m := range modifiers {
		target := out.byType(m.PriceType)
		if target == nil || *target == nil {
			continue
		}
		switch m.Type {
		case ModifierPercentage:
			factor := decimal.NewFromInt(1).Add(m.Value.Div(oneHundred))
			v := (*target).Mul(factor).Round(2)
			*target = &v
		case ModifierFixed:
			v := (*target).Add(m.Value).Round(2)
			*target = &v
		default:
			// ModifierNone and anything unknown: no-op
		}
	}
	return out
}

func (p *CalculatedPrices) byType(priceType string) **decimal.Decimal {
	switch priceType {
	case catalog.PriceTypePurchase:
		return &p.Purchase
	case catalog.PriceTypeRetail:
		return &p.Retail
	case catalog.PriceTypeList:
		return &p.List
	}
	return nil
}

// ByType returns the calculated value for a price type, nil when absent.
func (p *CalculatedPrices) ByType(priceType string) *decimal.Decimal {
	t := p.byType(priceType)
	if t == nil {
		return nil
	}
	return *t
}

func copyDec(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
