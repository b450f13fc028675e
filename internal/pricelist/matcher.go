package pricelist

import (
	"fmt"
	"strings"

	"github.com/artiss27/pricelist-sync/internal/catalog"
)

// MatchOutcome partitions one matcher run. Every input line ends up
// either claimed by exactly one matched product or in UnmatchedLines;
// every candidate product is either in Matched or UnmatchedProducts.
type MatchOutcome struct {
	Matched           []MatchResult     `json:"matched"`
	UnmatchedProducts []catalog.Product `json:"unmatched_products"`
	UnmatchedLines    []LineRecord      `json:"unmatched_lines"`
	Stats             MatchStats        `json:"stats"`

	// Duplicates lists the supplier codes repeated in the file, in input
	// order, for issue reporting. Not part of the preview payload.
	Duplicates []string `json:"-"`
}

// matchState is the shared lookup state the strategies consume; whoever
// claims a line marks it so no later product can take it again.
type matchState struct {
	lines   []LineRecord
	claimed []bool

	// first occurrence wins on duplicate codes; duplicates are counted
	// and, under the reject policy, fail the run before matching starts.
	byExactCode map[string]int
	byNormCode  map[string]int
	duplicates  []string
}

// tryMatch is the single contract every strategy implements: inspect one
// product against the remaining lines, return a result or nil.
type strategy struct {
	method string
	fn     func(p catalog.Product, st *matchState) *MatchResult
}

// MatchLines runs the strategy chain over every candidate product in
// input order. Deterministic by construction: lookup maps are built once,
// line claims are first-match-wins in line order, and no strategy
// consults anything but its inputs.
func MatchLines(lines []LineRecord, products []catalog.Product, confirmed map[int64]string, duplicatePolicy string) (*MatchOutcome, error) {
	st := newMatchState(lines)

	if duplicatePolicy == DuplicateReject && len(st.duplicates) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateCode, st.duplicates[0])
	}

	chain := []strategy{
		{MethodMatchedProducts, confirmedMappingStrategy(confirmed)},
		{MethodSupplierCode, supplierCodeStrategy},
		{MethodNameSimilarity, nameContainmentStrategy},
	}

	out := &MatchOutcome{
		Stats: MatchStats{
			TotalLines:     len(lines),
			TotalProducts:  len(products),
			DuplicateCodes: len(st.duplicates),
		},
		Duplicates: st.duplicates,
	}

	for _, p := range products {
		var res *MatchResult
		for _, s := range chain {
			if res = s.fn(p, st); res != nil {
				res.Method = s.method
				break
			}
		}
		if res == nil {
			out.UnmatchedProducts = append(out.UnmatchedProducts, p)
			continue
		}
		res.ProductID = p.ID
		res.ProductName = p.Name
		out.Matched = append(out.Matched, *res)
		switch res.Method {
		case MethodMatchedProducts:
			out.Stats.ByConfirmedMap++
		case MethodSupplierCode:
			out.Stats.BySupplierCode++
		case MethodNameSimilarity:
			out.Stats.ByNameSimilarity++
		}
	}

	for i, l := range lines {
		if !st.claimed[i] {
			out.UnmatchedLines = append(out.UnmatchedLines, l)
		}
	}
	out.Stats.UnmatchedProducts = len(out.UnmatchedProducts)
	out.Stats.UnmatchedLines = len(out.UnmatchedLines)

	return out, nil
}

func newMatchState(lines []LineRecord) *matchState {
	st := &matchState{
		lines:       lines,
		claimed:     make([]bool, len(lines)),
		byExactCode: make(map[string]int, len(lines)),
		byNormCode:  make(map[string]int, len(lines)),
	}
	for i, l := range lines {
		if l.Code == "" {
			continue
		}
		if _, seen := st.byExactCode[l.Code]; !seen {
			st.byExactCode[l.Code] = i
		}
		norm := normalizeCode(l.Code)
		if _, seen := st.byNormCode[norm]; seen {
			st.duplicates = append(st.duplicates, l.Code)
		} else {
			st.byNormCode[norm] = i
		}
	}
	return st
}

// claim hands out a line at most once.
func (st *matchState) claim(idx int) *LineRecord {
	if idx < 0 || idx >= len(st.lines) || st.claimed[idx] {
		return nil
	}
	st.claimed[idx] = true
	return &st.lines[idx]
}

// confirmedMappingStrategy replays prior human decisions: a product with
// a persisted supplier code matches the line carrying that exact code.
// This is the only strategy allowed to set IsConfirmed itself.
func confirmedMappingStrategy(confirmed map[int64]string) func(catalog.Product, *matchState) *MatchResult {
	return func(p catalog.Product, st *matchState) *MatchResult {
		code, ok := confirmed[p.ID]
		if !ok || code == "" {
			return nil
		}
		idx, ok := st.byExactCode[code]
		if !ok {
			return nil
		}
		line := st.claim(idx)
		if line == nil {
			return nil
		}
		return &MatchResult{
			SupplierCode: code,
			Confidence:   ConfidenceExact,
			IsConfirmed:  true,
			Line:         line,
		}
	}
}

// supplierCodeStrategy compares the product's stored supplier-code
// attribute against line codes, both case-normalized.
func supplierCodeStrategy(p catalog.Product, st *matchState) *MatchResult {
	code := normalizeCode(p.SupplierCode())
	if code == "" {
		return nil
	}
	idx, ok := st.byNormCode[code]
	if !ok {
		return nil
	}
	line := st.claim(idx)
	if line == nil {
		return nil
	}
	return &MatchResult{
		SupplierCode: line.Code,
		Confidence:   ConfidenceHigh,
		Line:         line,
	}
}

// nameContainmentStrategy takes the first unclaimed line whose normalized
// name contains the product name or vice versa.
func nameContainmentStrategy(p catalog.Product, st *matchState) *MatchResult {
	pname := normalizeName(p.Name)
	if pname == "" {
		return nil
	}
	for i := range st.lines {
		if st.claimed[i] {
			continue
		}
		lname := normalizeName(st.lines[i].Name)
		if lname == "" {
			continue
		}
		if strings.Contains(lname, pname) || strings.Contains(pname, lname) {
			line := st.claim(i)
			return &MatchResult{
				SupplierCode: line.Code,
				Confidence:   ConfidenceMedium,
				Line:         line,
			}
		}
	}
	return nil
}

func normalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
