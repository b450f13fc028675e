package pricelist

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/artiss27/pricelist-sync/internal/catalog"
	"github.com/artiss27/pricelist-sync/internal/db"
	"github.com/artiss27/pricelist-sync/internal/media"
	"github.com/artiss27/pricelist-sync/internal/parser"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	h := &db.Handle{DB: gdb}
	require.NoError(t, h.Migrate())
	return gdb
}

func newTestService(t *testing.T, store catalog.Store) (*Service, *gorm.DB, *media.Registry, *parser.Registry) {
	t.Helper()
	gdb := newTestDB(t)
	parsers := parser.NewRegistry()
	mediaReg := media.NewRegistry(zerolog.Nop(), gdb)
	svc := NewService(zerolog.Nop(), gdb, store, parsers, mediaReg, Options{
		BaseCurrency: "EUR",
		BatchSize:    2, // small sub-batches so tests cross batch borders
	})
	return svc, gdb, mediaReg, parsers
}

// fakeStore is an in-memory catalog.Store with failure injection. Batches
// apply atomically: a failing call changes nothing.
type fakeStore struct {
	products []catalog.Product
	factors  map[string]float64

	batches    [][]catalog.ProductPatch
	calls      int
	failNext   int  // fail this many upcoming batches
	failAtCall int  // fail the n-th UpdateProducts call (1-based)
	failAll    bool // fail every batch
	failRates  bool // fail LoadCurrencyFactors
	findCalled int
}

func (f *fakeStore) FindProducts(_ context.Context, flt catalog.Filter) ([]catalog.Product, error) {
	f.findCalled++
	out := make([]catalog.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
		if flt.Limit > 0 && len(out) >= flt.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateProducts(_ context.Context, batch []catalog.ProductPatch) error {
	f.calls++
	if f.failAll || f.failNext > 0 || f.calls == f.failAtCall {
		if f.failNext > 0 {
			f.failNext--
		}
		return fmt.Errorf("injected write failure")
	}
	f.batches = append(f.batches, batch)
	for _, patch := range batch {
		for i := range f.products {
			if f.products[i].ID != patch.ProductID {
				continue
			}
			if patch.Attributes != nil {
				if f.products[i].Attributes == nil {
					f.products[i].Attributes = map[string]string{}
				}
				for k, v := range patch.Attributes {
					f.products[i].Attributes[k] = v
				}
			}
			if patch.Prices != nil {
				f.products[i].Prices = *patch.Prices
			}
			if patch.Stock != nil {
				f.products[i].Stock = *patch.Stock
			}
		}
	}
	return nil
}

func (f *fakeStore) LoadCurrencyFactors(_ context.Context) (map[string]float64, error) {
	if f.failRates {
		return nil, fmt.Errorf("injected rates failure")
	}
	if f.factors == nil {
		return map[string]float64{}, nil
	}
	return f.factors, nil
}

func (f *fakeStore) patchCount() int {
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func intp(v int) *int { return &v }

func line(code, name string, purchase string) LineRecord {
	l := LineRecord{Code: code, Name: name}
	if purchase != "" {
		l.PurchasePrice = dec(purchase)
	}
	return l
}

func product(id int64, name string, attrs map[string]string) catalog.Product {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return catalog.Product{ID: id, Name: name, Attributes: attrs}
}
