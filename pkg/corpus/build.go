package corpus

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docprov/docprov/pkg/layout"
	"github.com/docprov/docprov/pkg/ocr"
)

// Build constructs the corpus for a document from its OCR pages.
// Pages may arrive in any order; they are sorted by page number. Build
// validates geometry and hierarchy and fails with ErrConstruction on the
// first inconsistency, leaving no partial state behind.
func Build(pages []ocr.Page) (*Document, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: document has no OCR pages", ErrConstruction)
	}

	doc := &Document{
		pages:    make([]*Page, 0, len(pages)),
		byNumber: make(map[int]*Page, len(pages)),
	}

	for _, src := range pages {
		page, err := BuildPage(src)
		if err != nil {
			return nil, err
		}
		if _, exists := doc.byNumber[page.Number]; exists {
			return nil, fmt.Errorf("%w: duplicate page number %d", ErrConstruction, page.Number)
		}
		doc.pages = append(doc.pages, page)
		doc.byNumber[page.Number] = page
	}

	sort.Slice(doc.pages, func(i, j int) bool {
		return doc.pages[i].Number < doc.pages[j].Number
	})

	doc.fullText, doc.bounds = buildFullText(doc.pages)

	return doc, nil
}

// BuildPage constructs the buffer and span arrays for a single OCR page
func BuildPage(src ocr.Page) (*Page, error) {
	if src.Number < 1 {
		return nil, fmt.Errorf("%w: page number %d is not positive", ErrConstruction, src.Number)
	}
	if len(src.Words) == 0 && (len(src.Lines) > 0 || len(src.Blocks) > 0) {
		return nil, fmt.Errorf("%w: page %d has line/block groupings but no words",
			ErrConstruction, src.Number)
	}

	page := &Page{Number: src.Number}

	// Word spans fall out of the single-space join
	var builder strings.Builder
	page.Words = make([]layout.TextBlock, 0, len(src.Words))
	for i, word := range src.Words {
		if err := word.BBox.Validate(); err != nil {
			return nil, fmt.Errorf("%w: page %d word %d: %v", ErrConstruction, src.Number, i, err)
		}
		if i > 0 {
			builder.WriteByte(' ')
		}
		start := builder.Len()
		builder.WriteString(word.Text)
		page.Words = append(page.Words, layout.TextBlock{
			Text:        word.Text,
			Granularity: layout.GranularityWord,
			BBox:        word.BBox,
			PageNumber:  src.Number,
			Span:        layout.Span{Start: start, End: builder.Len()},
		})
	}
	page.Buffer = builder.String()

	lines := src.Lines
	if len(lines) == 0 && len(src.Words) > 0 {
		// Sparse hierarchy: treat the whole page as one line
		lines = []ocr.Line{{BBox: unionOfBoxes(page.Words), WordStart: 0, WordEnd: len(page.Words)}}
	}

	var err error
	page.Lines, err = buildGroups(page, layout.GranularityLine, page.Words, lineRanges(lines), lineBoxes(lines))
	if err != nil {
		return nil, err
	}

	blocks := src.Blocks
	if len(blocks) == 0 && len(lines) > 0 {
		blocks = []ocr.Block{{BBox: unionOfBoxes(page.Lines), LineStart: 0, LineEnd: len(lines)}}
	}

	page.Blocks, err = buildGroups(page, layout.GranularityBlock, page.Lines, blockRanges(blocks), blockBoxes(blocks))
	if err != nil {
		return nil, err
	}

	return page, nil
}

// buildGroups derives the span array for a grouping level from its children.
// Ranges index into children and must be sorted, non-overlapping, and in
// bounds; each resulting span is the union of its child spans, which keeps
// the containment invariant by construction.
func buildGroups(page *Page, granularity layout.Granularity, children []layout.TextBlock, ranges [][2]int, boxes []layout.NormBBox) ([]layout.TextBlock, error) {
	groups := make([]layout.TextBlock, 0, len(ranges))
	prevEnd := 0

	for i, r := range ranges {
		start, end := r[0], r[1]
		if start < 0 || end > len(children) || start >= end {
			return nil, fmt.Errorf("%w: page %d %s %d has child range [%d,%d) over %d children",
				ErrConstruction, page.Number, granularity, i, start, end, len(children))
		}
		if start < prevEnd {
			return nil, fmt.Errorf("%w: page %d %s %d overlaps its predecessor",
				ErrConstruction, page.Number, granularity, i)
		}
		prevEnd = end

		if err := boxes[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: page %d %s %d: %v", ErrConstruction, page.Number, granularity, i, err)
		}

		span := layout.Span{
			Start: children[start].Span.Start,
			End:   children[end-1].Span.End,
		}
		groups = append(groups, layout.TextBlock{
			Text:        page.Buffer[span.Start:span.End],
			Granularity: granularity,
			BBox:        boxes[i],
			PageNumber:  page.Number,
			Span:        span,
		})
	}
	return groups, nil
}

func lineRanges(lines []ocr.Line) [][2]int {
	out := make([][2]int, len(lines))
	for i, l := range lines {
		out[i] = [2]int{l.WordStart, l.WordEnd}
	}
	return out
}

func lineBoxes(lines []ocr.Line) []layout.NormBBox {
	out := make([]layout.NormBBox, len(lines))
	for i, l := range lines {
		out[i] = l.BBox
	}
	return out
}

func blockRanges(blocks []ocr.Block) [][2]int {
	out := make([][2]int, len(blocks))
	for i, b := range blocks {
		out[i] = [2]int{b.LineStart, b.LineEnd}
	}
	return out
}

func blockBoxes(blocks []ocr.Block) []layout.NormBBox {
	out := make([]layout.NormBBox, len(blocks))
	for i, b := range blocks {
		out[i] = b.BBox
	}
	return out
}

func unionOfBoxes(blocks []layout.TextBlock) layout.NormBBox {
	if len(blocks) == 0 {
		return layout.NormBBox{}
	}
	working := blocks[0].BBox
	for _, b := range blocks[1:] {
		working = working.Union(b.BBox)
	}
	return working
}
