// Package parser turns supplier files (CSV, XLSX) plus a column-mapping
// configuration into normalized line records.
package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// ParseError wraps a structural failure in the source file.
type ParseError struct {
	Row int
	Err error
}

func (e *ParseError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("parse error at row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Column-mapping keys understood by every adapter.
const (
	ColCode          = "code"
	ColName          = "name"
	ColPurchasePrice = "purchase_price"
	ColRetailPrice   = "retail_price"
	ColListPrice     = "list_price"
	ColAvailability  = "availability"
)

// Record is one normalized supplier line. Nil prices mean the column was
// empty or unparseable; they stay nil through the whole pipeline.
type Record struct {
	Code          string           `json:"code"`
	Name          string           `json:"name"`
	PurchasePrice *decimal.Decimal `json:"purchase_price,omitempty"`
	RetailPrice   *decimal.Decimal `json:"retail_price,omitempty"`
	ListPrice     *decimal.Decimal `json:"list_price,omitempty"`
	Availability  *int             `json:"availability,omitempty"`
}

// Config is what a template contributes to a parse run. StartRow is
// 1-based; rows before it are skipped. ColumnMapping maps the keys above
// to 0-based column indexes. Charset is a label like "windows-1250";
// empty means the file is already UTF-8.
type Config struct {
	StartRow      int
	ColumnMapping map[string]int
	Charset       string
	Delimiter     rune // CSV only; 0 = autodetect
}

type Parser interface {
	Parse(r io.Reader, cfg Config) ([]Record, error)
}

// Registry picks an adapter by file extension.
type Registry struct {
	byExt map[string]Parser
}

func NewRegistry() *Registry {
	return &Registry{byExt: map[string]Parser{
		".csv":  &CSVParser{},
		".txt":  &CSVParser{},
		".xlsx": &XLSXParser{},
	}}
}

// Register adds or replaces the adapter for an extension (".csv").
func (r *Registry) Register(ext string, p Parser) {
	r.byExt[strings.ToLower(ext)] = p
}

func (r *Registry) ForFile(name string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(name))
	p, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return p, nil
}

// mapRow converts one raw row into a Record using the column mapping.
// Rows where both code and name come out empty are dropped.
func mapRow(cells []string, mapping map[string]int) (Record, bool) {
	cell := func(key string) string {
		idx, ok := mapping[key]
		if !ok || idx < 0 || idx >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[idx])
	}

	rec := Record{
		Code: cell(ColCode),
		Name: cell(ColName),
	}
	if rec.Code == "" && rec.Name == "" {
		return rec, false
	}

	rec.PurchasePrice = parseDecimal(cell(ColPurchasePrice))
	rec.RetailPrice = parseDecimal(cell(ColRetailPrice))
	rec.ListPrice = parseDecimal(cell(ColListPrice))
	rec.Availability = parseInt(cell(ColAvailability))
	return rec, true
}

// parseDecimal tolerates the formats suppliers actually send: thousands
// separated by spaces, comma decimal marks, currency leftovers trimmed
// by the mapping. Unparseable input becomes nil, not an error.
func parseDecimal(s string) *decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	// "1.234,56" → "1234,56"; lone dots stay decimal points
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func parseInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	// availability columns often carry decimals ("5,00")
	if d := parseDecimal(s); d != nil {
		v := int(d.IntPart())
		return &v
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}
