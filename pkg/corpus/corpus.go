// Package corpus builds addressable text buffers from OCR pages and resolves
// character offset ranges back to text blocks.
//
// Each page's buffer is formed by joining its word texts with single spaces
// in reading order; word spans fall directly out of the join, line spans are
// the union of their word spans, and block spans the union of their line
// spans. Spans at a given granularity are non-overlapping and sorted, so an
// arbitrary offset range resolves to the minimal covering block sequence
// with two binary searches.
package corpus

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/docprov/docprov/pkg/layout"
)

// ErrConstruction indicates malformed OCR input discovered while building
// the corpus: invalid geometry, overlapping or unsorted groupings, or a
// hierarchy referencing words that do not exist.
var ErrConstruction = errors.New("corpus construction failed")

// ErrLookup indicates an offset range or page number outside valid bounds
// during resolution.
var ErrLookup = errors.New("corpus lookup failed")

// Page holds the text buffer and the three granularity span arrays for a
// single page. All slices are sorted by span start and immutable after Build.
type Page struct {
	Number int    // Page number (1-based)
	Buffer string // Word texts joined with single spaces, in reading order

	Words  []layout.TextBlock // Word-level blocks, spans non-overlapping
	Lines  []layout.TextBlock // Line-level blocks, each the union of its words
	Blocks []layout.TextBlock // Block-level blocks, each the union of its lines
}

// BlocksAt returns the span array for the requested granularity
func (p *Page) BlocksAt(granularity layout.Granularity) []layout.TextBlock {
	switch granularity {
	case layout.GranularityWord:
		return p.Words
	case layout.GranularityLine:
		return p.Lines
	default:
		return p.Blocks
	}
}

// Resolve returns the minimal ordered sequence of blocks at the requested
// granularity whose spans cover the given offset range. A zero-length or
// out-of-range span fails with ErrLookup.
func (p *Page) Resolve(span layout.Span, granularity layout.Granularity) ([]layout.TextBlock, error) {
	if span.Len() <= 0 {
		return nil, fmt.Errorf("%w: zero-length span [%d,%d)", ErrLookup, span.Start, span.End)
	}
	if span.Start < 0 || span.End > len(p.Buffer) {
		return nil, fmt.Errorf("%w: span [%d,%d) outside page %d buffer of %d bytes",
			ErrLookup, span.Start, span.End, p.Number, len(p.Buffer))
	}

	blocks := p.BlocksAt(granularity)

	// First block whose span ends after the range starts; spans are sorted
	// and non-overlapping, so everything before it is irrelevant.
	lo := sort.Search(len(blocks), func(i int) bool {
		return blocks[i].Span.End > span.Start
	})
	hi := lo
	for hi < len(blocks) && blocks[hi].Span.Start < span.End {
		hi++
	}
	if lo == hi {
		return nil, fmt.Errorf("%w: span [%d,%d) covers no %s blocks on page %d",
			ErrLookup, span.Start, span.End, granularity, p.Number)
	}
	return blocks[lo:hi], nil
}

// Document is the corpus for a whole document: one buffer per page plus a
// boundary table locating each page within the document-wide text.
type Document struct {
	pages    []*Page
	byNumber map[int]*Page

	fullText string
	bounds   map[int]layout.Span
}

// Pages returns the pages in ascending page-number order
func (d *Document) Pages() []*Page { return d.pages }

// Page returns the corpus page for a page number
func (d *Document) Page(number int) (*Page, bool) {
	p, ok := d.byNumber[number]
	return p, ok
}

// FullText returns the document-wide text, pages joined by blank lines
func (d *Document) FullText() string { return d.fullText }

// PageBounds returns the offset range of a page's buffer within FullText
func (d *Document) PageBounds(number int) (layout.Span, bool) {
	s, ok := d.bounds[number]
	return s, ok
}

// pageSeparator joins page buffers in the document-wide text
const pageSeparator = "\n\n"

func buildFullText(pages []*Page) (string, map[int]layout.Span) {
	var builder strings.Builder
	bounds := make(map[int]layout.Span, len(pages))

	for i, page := range pages {
		if i > 0 {
			builder.WriteString(pageSeparator)
		}
		start := builder.Len()
		builder.WriteString(page.Buffer)
		bounds[page.Number] = layout.Span{Start: start, End: builder.Len()}
	}
	return builder.String(), bounds
}
