package layout

// Granularity identifies the hierarchy level of a text block
type Granularity string

// The three granularity levels of recognized text, from finest to coarsest.
// Line spans are the union of their word spans, block spans the union of
// their line spans.
const (
	GranularityWord  Granularity = "word"
	GranularityLine  Granularity = "line"
	GranularityBlock Granularity = "block"
)

// Valid reports whether g is one of the defined granularity levels
func (g Granularity) Valid() bool {
	switch g {
	case GranularityWord, GranularityLine, GranularityBlock:
		return true
	}
	return false
}

// Span is a half-open character offset range [Start, End) into a page's
// text buffer
type Span struct {
	Start int // First byte offset, inclusive
	End   int // Last byte offset, exclusive
}

// Len returns the number of bytes covered by the span
func (s Span) Len() int { return s.End - s.Start }

// Contains reports whether other lies entirely within s
func (s Span) Contains(other Span) bool {
	return other.Start >= s.Start && other.End <= s.End
}

// Overlaps reports whether the two spans share at least one offset
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// TextBlock represents a single piece of recognized text with its bounding
// box, produced once from OCR results and immutable thereafter
type TextBlock struct {
	Text        string      // The actual text content
	Granularity Granularity // Hierarchy level of this block
	BBox        NormBBox    // Position on the page, normalized
	PageNumber  int         // Page number (1-based)
	Span        Span        // Character range in the page text buffer
}
