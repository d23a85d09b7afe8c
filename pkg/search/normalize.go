package search

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// List markers and section numbers that OCR text rarely preserves verbatim;
// stripping them from the query improves matching ability.
var prefixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d+\.\s+`),
	regexp.MustCompile(`^\d+\.\d+\s+`),
	regexp.MustCompile(`^\*+\s+`),
	regexp.MustCompile(`^-+\s+`),
}

// normalizeQuery prepares a query for matching: strips list prefixes and
// quotes, trims, and collapses whitespace runs to single spaces so the query
// aligns with the corpus buffer's single-space join.
func normalizeQuery(text string) string {
	for _, pattern := range prefixPatterns {
		text = pattern.ReplaceAllString(text, "")
	}
	text = strings.ReplaceAll(text, `"`, "")
	return strings.Join(strings.Fields(text), " ")
}

// fold lowercases ASCII letters only. Byte offsets into the folded string
// are identical to offsets into the original, which keeps match spans valid;
// non-ASCII text simply matches case-sensitively.
func fold(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			if b == nil {
				b = []byte(s)
			}
			b[i] = c + ('a' - 'A')
		}
	}
	if b == nil {
		return s
	}
	return string(b)
}

// Similarity is a fuzzy match scorer returning a value in [0, 1].
// Inputs arrive normalized and case-folded.
type Similarity func(query, candidate string) float64

// EditDistanceSimilarity scores by normalized Levenshtein distance:
// 1 - distance/max(len). Identical strings score 1, disjoint strings
// approach 0.
func EditDistanceSimilarity(query, candidate string) float64 {
	if query == candidate {
		return 1
	}
	longest := utf8.RuneCountInString(query)
	if n := utf8.RuneCountInString(candidate); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(query, candidate)
	score := 1 - float64(dist)/float64(longest)
	if score < 0 {
		return 0
	}
	return score
}
