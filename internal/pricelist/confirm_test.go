package pricelist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artiss27/pricelist-sync/internal/db"
)

func newStoredTemplate(t *testing.T, svc *Service, tpl *db.PriceTemplate) *db.PriceTemplate {
	t.Helper()
	if tpl.Name == "" {
		tpl.Name = "supplier"
	}
	require.NoError(t, svc.db.Create(tpl).Error)
	return tpl
}

func TestUpdateMatchUpserts(t *testing.T) {
	svc, gdb, _, _ := newTestService(t, &fakeStore{})
	ctx := context.Background()
	tpl := newStoredTemplate(t, svc, &db.PriceTemplate{})

	require.NoError(t, svc.UpdateMatch(ctx, tpl, 7, "SUP-7"))
	require.NoError(t, svc.UpdateMatch(ctx, tpl, 9, "SUP-9"))
	// last write wins per product
	require.NoError(t, svc.UpdateMatch(ctx, tpl, 7, "SUP-7B"))

	assert.Equal(t, map[int64]string{7: "SUP-7B", 9: "SUP-9"}, tpl.MatchedProductsMap())

	// the mapping survived the round-trip to the database
	var stored db.PriceTemplate
	require.NoError(t, gdb.Take(&stored, "id = ?", tpl.ID).Error)
	assert.Equal(t, map[int64]string{7: "SUP-7B", 9: "SUP-9"}, stored.MatchedProductsMap())
}

func TestConfirmAllMatchesSkipsIncomplete(t *testing.T) {
	svc, gdb, _, _ := newTestService(t, &fakeStore{})
	tpl := newStoredTemplate(t, svc, &db.PriceTemplate{
		MatchedProducts: db.EncodeMatchedProducts(map[int64]string{1: "OLD"}),
	})

	candidates := []MatchResult{
		{ProductID: 2, SupplierCode: "B"},
		{ProductID: 0, SupplierCode: "ORPHAN"}, // no product
		{ProductID: 3, SupplierCode: ""},       // no code
		{ProductID: 4, SupplierCode: "D"},
	}
	confirmed, total, err := svc.ConfirmAllMatches(context.Background(), tpl, candidates)
	require.NoError(t, err)
	assert.Equal(t, 2, confirmed)
	assert.Equal(t, 3, total) // pre-existing mapping entry kept

	var stored db.PriceTemplate
	require.NoError(t, gdb.Take(&stored, "id = ?", tpl.ID).Error)
	assert.Equal(t, map[int64]string{1: "OLD", 2: "B", 4: "D"}, stored.MatchedProductsMap())
}

func TestConfirmAllMatchesNothingToDo(t *testing.T) {
	svc, gdb, _, _ := newTestService(t, &fakeStore{})
	tpl := newStoredTemplate(t, svc, &db.PriceTemplate{})

	confirmed, total, err := svc.ConfirmAllMatches(context.Background(), tpl, []MatchResult{
		{ProductID: 0, SupplierCode: ""},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, confirmed)
	assert.Equal(t, 0, total)

	var stored db.PriceTemplate
	require.NoError(t, gdb.Take(&stored, "id = ?", tpl.ID).Error)
	assert.Empty(t, stored.MatchedProducts)
}
