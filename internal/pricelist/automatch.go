package pricelist

import (
	"strings"

	"github.com/artiss27/pricelist-sync/internal/catalog"
)

const (
	// autoMatchThreshold is strict: a score of exactly 0.6 is rejected.
	autoMatchThreshold = 0.6
	// autoMatchHighScore promotes a candidate to high confidence.
	autoMatchHighScore = 0.8
	// containmentScore is the floor for one name containing the other.
	containmentScore = 0.8
	// maxNameLength bounds the edit-distance input.
	maxNameLength = 255
)

// AutoMatch scores every unmatched line against every candidate product
// by name similarity and keeps the best product per line when it clears
// the threshold. Results are candidates only — IsConfirmed is always
// false here, a human promotes them via ConfirmAllMatches. Catalog state
// is never touched.
func AutoMatch(unmatchedLines []LineRecord, candidates []catalog.Product) (matches []MatchResult, stillUnmatched []LineRecord) {
	taken := make(map[int64]bool, len(candidates))

	for i := range unmatchedLines {
		line := &unmatchedLines[i]
		lname := normalizeName(line.Name)
		if lname == "" {
			stillUnmatched = append(stillUnmatched, *line)
			continue
		}

		var (
			best      *catalog.Product
			bestScore float64
		)
		for j := range candidates {
			p := &candidates[j]
			if taken[p.ID] {
				continue
			}
			score := nameSimilarity(lname, normalizeName(p.Name))
			if score > bestScore {
				bestScore = score
				best = p
			}
		}

		if best == nil || bestScore <= autoMatchThreshold {
			stillUnmatched = append(stillUnmatched, *line)
			continue
		}

		confidence := ConfidenceMedium
		if bestScore > autoMatchHighScore {
			confidence = ConfidenceHigh
		}
		taken[best.ID] = true
		matches = append(matches, MatchResult{
			ProductID:    best.ID,
			ProductName:  best.Name,
			SupplierCode: line.Code,
			Confidence:   confidence,
			Method:       MethodNameSimilarity,
			IsConfirmed:  false,
			Score:        bestScore,
			Line:         line,
		})
	}
	return matches, stillUnmatched
}

// nameSimilarity combines containment with normalized Levenshtein
// similarity and returns the larger of the two. Inputs are already
// normalized (lowercased, trimmed).
func nameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	score := 0.0
	if containsEither(a, b) {
		score = containmentScore
	}

	ra := truncateRunes(a, maxNameLength)
	rb := truncateRunes(b, maxNameLength)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return score
	}
	lev := 1 - float64(levenshteinDistance(ra, rb))/float64(maxLen)
	if lev > score {
		score = lev
	}
	return score
}

func containsEither(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func truncateRunes(s string, n int) []rune {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return r
}

// levenshteinDistance is the usual two-row dynamic program over runes.
func levenshteinDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
