package parser

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXParser reads the first sheet of an Excel workbook using the same
// column-mapping contract as the CSV adapter.
type XLSXParser struct{}

func (p *XLSXParser) Parse(r io.Reader, cfg Config) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("open workbook: %w", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Err: fmt.Errorf("workbook has no sheets")}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("read sheet %q: %w", sheets[0], err)}
	}

	var out []Record
	for i, cells := range rows {
		rowNum := i + 1
		if cfg.StartRow > 0 && rowNum < cfg.StartRow {
			continue
		}
		if rec, ok := mapRow(cells, cfg.ColumnMapping); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}
