package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// CSVParser reads delimiter-separated supplier files. Suppliers rarely
// agree on delimiter or encoding, so both are negotiable per template.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, cfg Config) ([]Record, error) {
	if cfg.Charset != "" {
		cr, err := charset.NewReaderLabel(normalizeCharset(cfg.Charset), r)
		if err != nil {
			return nil, &ParseError{Err: fmt.Errorf("charset %q: %w", cfg.Charset, err)}
		}
		r = cr
	}

	br := bufio.NewReader(r)

	delim := cfg.Delimiter
	if delim == 0 {
		peeked, _ := br.Peek(4096)
		delim = detectDelimiter(peeked)
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var out []Record
	row := 0
	for {
		cells, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Row: row + 1, Err: err}
		}
		row++
		if cfg.StartRow > 0 && row < cfg.StartRow {
			continue
		}
		if rec, ok := mapRow(cells, cfg.ColumnMapping); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// detectDelimiter picks the separator with the most hits on the first
// line; semicolon wins ties because comma doubles as a decimal mark in
// most of the files we see.
func detectDelimiter(sample []byte) rune {
	line := sample
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		line = sample[:i]
	}
	counts := map[rune]int{}
	for _, d := range []rune{';', '\t', ','} {
		counts[d] = bytes.Count(line, []byte(string(d)))
	}
	best := ';'
	for _, d := range []rune{';', '\t', ','} {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}

// normalizeCharset maps the odd labels supplier exports carry onto names
// charset.NewReaderLabel recognizes.
func normalizeCharset(cs string) string {
	c := strings.TrimSpace(strings.ToLower(cs))
	switch c {
	case "latin ii", "latin-2", "latin2", "iso8859-2", "iso_8859-2":
		return "iso-8859-2"
	case "cp1250", "windows1250", "win-1250":
		return "windows-1250"
	case "cp1251", "windows1251", "win-1251":
		return "windows-1251"
	default:
		return c
	}
}
