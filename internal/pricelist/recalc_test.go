package pricelist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artiss27/pricelist-sync/internal/catalog"
)

func productWithPrice(id int64, priceType, value, currency string) catalog.Product {
	p := product(id, "P", nil)
	pv := p.Prices.ByType(priceType)
	pv.Value = dec(value)
	pv.Currency = currency
	return p
}

func TestRecalculateConvertsToBase(t *testing.T) {
	st := &fakeStore{
		factors:  map[string]float64{"GBP": 2.0},
		products: []catalog.Product{productWithPrice(1, catalog.PriceTypePurchase, "100", "GBP")},
	}
	svc, _, _, _ := newTestService(t, st)

	stats, err := svc.Recalculate(context.Background(), "purchase", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 0, stats.Errors)

	got := st.products[0].Prices.Purchase
	require.NotNil(t, got.BaseValue)
	assert.Equal(t, "50.00", got.BaseValue.StringFixed(2))
	// the original currency value is untouched
	assert.Equal(t, "100", got.Value.String())
	assert.Equal(t, "GBP", got.Currency)
}

func TestRecalculateIdempotent(t *testing.T) {
	st := &fakeStore{
		factors:  map[string]float64{"GBP": 2.0},
		products: []catalog.Product{productWithPrice(1, catalog.PriceTypePurchase, "100", "GBP")},
	}
	svc, _, _, _ := newTestService(t, st)
	ctx := context.Background()

	_, err := svc.Recalculate(ctx, "purchase", 0)
	require.NoError(t, err)
	before := st.products[0].Prices

	stats, err := svc.Recalculate(ctx, "purchase", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Updated)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, before, st.products[0].Prices)
}

func TestRecalculateMissingFactorCounted(t *testing.T) {
	st := &fakeStore{
		factors: map[string]float64{},
		products: []catalog.Product{
			productWithPrice(1, catalog.PriceTypeRetail, "10", "XXX"),
		},
	}
	svc, _, _, _ := newTestService(t, st)

	stats, err := svc.Recalculate(context.Background(), "retail", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 0, stats.Updated)
	assert.Equal(t, 1, stats.Errors)
	assert.Nil(t, st.products[0].Prices.Retail.BaseValue)
}

func TestRecalculateBatchFailurePreservesProgress(t *testing.T) {
	st := &fakeStore{
		factors: map[string]float64{"GBP": 2.0},
		products: []catalog.Product{
			productWithPrice(1, catalog.PriceTypePurchase, "10", "GBP"),
			productWithPrice(2, catalog.PriceTypePurchase, "20", "GBP"),
			productWithPrice(3, catalog.PriceTypePurchase, "30", "GBP"),
		},
	}
	svc, _, _, _ := newTestService(t, st) // batch size 2
	st.failAtCall = 1                     // first sub-batch of 2 fails

	stats, err := svc.Recalculate(context.Background(), "purchase", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 1, stats.Updated) // batch of 2 backed out
	assert.Equal(t, 2, stats.Errors)
	// third product still landed
	require.NotNil(t, st.products[2].Prices.Purchase.BaseValue)
	assert.Equal(t, "15.00", st.products[2].Prices.Purchase.BaseValue.StringFixed(2))
}

func TestRecalculateScopedToPriceType(t *testing.T) {
	p := productWithPrice(1, catalog.PriceTypePurchase, "100", "GBP")
	rv := p.Prices.ByType(catalog.PriceTypeRetail)
	rv.Value = dec("40")
	rv.Currency = "GBP"

	st := &fakeStore{factors: map[string]float64{"GBP": 2.0}, products: []catalog.Product{p}}
	svc, _, _, _ := newTestService(t, st)

	_, err := svc.Recalculate(context.Background(), "purchase", 0)
	require.NoError(t, err)
	require.NotNil(t, st.products[0].Prices.Purchase.BaseValue)
	assert.Nil(t, st.products[0].Prices.Retail.BaseValue)
}

func TestRecalculateAllAndLimit(t *testing.T) {
	st := &fakeStore{
		factors: map[string]float64{"GBP": 2.0},
		products: []catalog.Product{
			productWithPrice(1, catalog.PriceTypeList, "8", "GBP"),
			productWithPrice(2, catalog.PriceTypeList, "8", "GBP"),
		},
	}
	svc, _, _, _ := newTestService(t, st)

	stats, err := svc.Recalculate(context.Background(), "all", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Updated)
}

func TestRecalculateUnknownTypeRejected(t *testing.T) {
	svc, _, _, _ := newTestService(t, &fakeStore{})
	_, err := svc.Recalculate(context.Background(), "wholesale", 0)
	require.Error(t, err)
}
