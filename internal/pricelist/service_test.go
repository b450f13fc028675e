package pricelist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artiss27/pricelist-sync/internal/catalog"
	"github.com/artiss27/pricelist-sync/internal/db"
	"github.com/artiss27/pricelist-sync/internal/parser"
)

func TestTemplateNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t, &fakeStore{})
	_, err := svc.Template(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

// setupPreviewTest wires a real template, media file and CSV against an
// in-memory catalog of three products.
func setupPreviewTest(t *testing.T) (*Service, *fakeStore, *db.PriceTemplate) {
	t.Helper()
	store := &fakeStore{
		products: []catalog.Product{
			product(1, "Widget", nil),
			product(2, "Gadget", map[string]string{catalog.AttrSupplierCode: "SUP-2"}),
			product(3, "Orphan Thing", nil),
		},
	}
	svc, gdb, mediaReg, parsers := newTestService(t, store)
	parsers.Register(".csv", &parser.CSVParser{})

	// SUP-1 appears twice: the second occurrence is a duplicate
	path := writeTestCSV(t, t.TempDir(), "supplier.csv",
		"SUP-1;Widget;10,00;5\nSUP-1;Widget again;11,00;2\nSUP-2;Gadget;20,00;0\nSUP-9;Something Else;5,00;1\n")
	med, err := mediaReg.Register(path)
	require.NoError(t, err)

	tpl := &db.PriceTemplate{
		Name:            "supplier",
		StartRow:        1,
		ColumnMapping:   testMapping,
		DefaultMediaID:  med.ID,
		Modifiers:       `[{"price_type":"purchase","modifier_type":"percentage","value":"10"}]`,
		MatchedProducts: db.EncodeMatchedProducts(map[int64]string{1: "SUP-1"}),
	}
	require.NoError(t, gdb.Create(tpl).Error)
	return svc, store, tpl
}

func TestPreviewEndToEnd(t *testing.T) {
	svc, _, tpl := setupPreviewTest(t)

	pv, err := svc.Preview(context.Background(), tpl.ID, "", false)
	require.NoError(t, err)

	byProduct := map[int64]PreviewItem{}
	for _, item := range pv.Matched {
		byProduct[item.ProductID] = item
	}
	require.Len(t, byProduct, 2)

	widget := byProduct[1]
	assert.Equal(t, ConfidenceExact, widget.Confidence)
	assert.Equal(t, MethodMatchedProducts, widget.Method)
	assert.True(t, widget.IsConfirmed)
	require.NotNil(t, widget.Prices.Purchase)
	assert.Equal(t, "11.00", widget.Prices.Purchase.StringFixed(2)) // 10.00 +10%

	gadget := byProduct[2]
	assert.Equal(t, ConfidenceHigh, gadget.Confidence)
	assert.Equal(t, MethodSupplierCode, gadget.Method)
	assert.False(t, gadget.IsConfirmed)

	require.Len(t, pv.UnmatchedProducts, 1)
	assert.Equal(t, int64(3), pv.UnmatchedProducts[0].ProductID)
	// the duplicate occurrence was not matched, so it joins the residue
	require.Len(t, pv.UnmatchedLines, 2)
	assert.Equal(t, "Widget again", pv.UnmatchedLines[0].Name)
	assert.Equal(t, "SUP-9", pv.UnmatchedLines[1].Code)

	assert.Equal(t, 1, pv.Stats.DuplicateCodes)
}

func TestPreviewRecordsDuplicateIssueOnce(t *testing.T) {
	svc, _, tpl := setupPreviewTest(t)
	ctx := context.Background()

	_, err := svc.Preview(ctx, tpl.ID, "", false)
	require.NoError(t, err)
	// rerun refreshes the existing issue row instead of stacking a copy
	_, err = svc.Preview(ctx, tpl.ID, "", false)
	require.NoError(t, err)

	var issues []db.MatchIssue
	require.NoError(t, svc.db.Find(&issues, "template_id = ?", tpl.ID).Error)
	require.Len(t, issues, 1)
	assert.Equal(t, "SUP-1", issues[0].Code)
	assert.Equal(t, "duplicate_code_in_file", issues[0].Reason)
}

func TestAutoMatchServiceRunsOnResidue(t *testing.T) {
	svc, _, tpl := setupPreviewTest(t)

	matches, still, err := svc.AutoMatch(context.Background(), tpl.ID, "", false)
	require.NoError(t, err)
	// neither residue line resembles "Orphan Thing": no containment and
	// the edit distance is too large, so everything stays unmatched
	assert.Empty(t, matches)
	require.Len(t, still, 2)
	assert.Equal(t, "SUP-9", still[1].Code)
}

func TestAutoMatchServiceFindsContainment(t *testing.T) {
	store := &fakeStore{products: []catalog.Product{product(5, "Bolt", nil)}}
	svc, gdb, mediaReg, parsers := newTestService(t, store)
	parsers.Register(".csv", &parser.CSVParser{})

	path := writeTestCSV(t, t.TempDir(), "bolts.csv", "B-1;Steel Bolt M8;2,50;10\n")
	med, err := mediaReg.Register(path)
	require.NoError(t, err)

	tpl := &db.PriceTemplate{Name: "bolts", StartRow: 1, ColumnMapping: testMapping, DefaultMediaID: med.ID}
	require.NoError(t, gdb.Create(tpl).Error)

	matches, still, err := svc.AutoMatch(context.Background(), tpl.ID, "", false)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Empty(t, still)
	assert.Equal(t, int64(5), matches[0].ProductID)
	assert.Equal(t, "B-1", matches[0].SupplierCode)
	assert.Equal(t, ConfidenceMedium, matches[0].Confidence)
	assert.False(t, matches[0].IsConfirmed)
}
