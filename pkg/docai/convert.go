package docai

import (
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/docprov/docprov/pkg/layout"
	"github.com/docprov/docprov/pkg/ocr"
)

// Pages converts a Document AI response into OCR pages ready for indexing
func Pages(doc *documentaipb.Document) ([]ocr.Page, error) {
	if doc == nil || len(doc.Pages) == 0 {
		return nil, fmt.Errorf("document has no pages")
	}

	pages := make([]ocr.Page, 0, len(doc.Pages))
	for i, page := range doc.Pages {
		number := int(page.PageNumber)
		if number < 1 {
			number = i + 1
		}
		pages = append(pages, convertPage(page, number, doc.Text))
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}

// anchored pairs an element's text anchor start with its position among the
// kept elements, for mapping parent anchors to child index ranges
type anchored struct {
	start int64
}

func convertPage(page *documentaipb.Document_Page, number int, fullText string) ocr.Page {
	out := ocr.Page{Number: number}

	// Tokens become words; their anchors drive the hierarchy below
	var wordStarts []anchored
	for _, token := range page.Tokens {
		start, end, ok := anchorSpan(token.Layout)
		if !ok {
			continue
		}
		text := strings.TrimSpace(sliceText(fullText, start, end))
		if text == "" {
			continue
		}
		out.Words = append(out.Words, ocr.Word{
			Text: text,
			BBox: boxFromLayout(token.Layout, page),
		})
		wordStarts = append(wordStarts, anchored{start: start})
	}

	var lineStarts []anchored
	for _, line := range page.Lines {
		start, end, ok := anchorSpan(line.Layout)
		if !ok {
			continue
		}
		ws, we := childRange(wordStarts, start, end, lastEnd(out.Lines))
		if ws >= we {
			continue
		}
		out.Lines = append(out.Lines, ocr.Line{
			BBox:      boxFromLayout(line.Layout, page),
			WordStart: ws,
			WordEnd:   we,
		})
		lineStarts = append(lineStarts, anchored{start: start})
	}
	if len(out.Lines) == 0 && len(out.Words) > 0 {
		out.Lines = append(out.Lines, ocr.Line{
			BBox:      boxFromLayout(page.Layout, page),
			WordStart: 0,
			WordEnd:   len(out.Words),
		})
		lineStarts = append(lineStarts, anchored{})
	}

	// Blocks preferred; some processors only emit paragraphs
	groups := blockLayouts(page)
	for _, group := range groups {
		start, end, ok := anchorSpan(group)
		if !ok {
			continue
		}
		ls, le := childRange(lineStarts, start, end, lastLineEnd(out.Blocks))
		if ls >= le {
			continue
		}
		out.Blocks = append(out.Blocks, ocr.Block{
			BBox:      boxFromLayout(group, page),
			LineStart: ls,
			LineEnd:   le,
		})
	}

	return out
}

func blockLayouts(page *documentaipb.Document_Page) []*documentaipb.Document_Page_Layout {
	if len(page.Blocks) > 0 {
		layouts := make([]*documentaipb.Document_Page_Layout, len(page.Blocks))
		for i, b := range page.Blocks {
			layouts[i] = b.Layout
		}
		return layouts
	}
	layouts := make([]*documentaipb.Document_Page_Layout, len(page.Paragraphs))
	for i, p := range page.Paragraphs {
		layouts[i] = p.Layout
	}
	return layouts
}

// childRange maps a parent anchor [start, end) to the index range of kept
// children whose anchors begin inside it. The floor argument keeps ranges
// monotonic when anchors arrive slightly out of order.
func childRange(children []anchored, start, end int64, floor int) (int, int) {
	lo := sort.Search(len(children), func(i int) bool { return children[i].start >= start })
	hi := sort.Search(len(children), func(i int) bool { return children[i].start >= end })
	if lo < floor {
		lo = floor
	}
	return lo, hi
}

func lastEnd(lines []ocr.Line) int {
	if len(lines) == 0 {
		return 0
	}
	return lines[len(lines)-1].WordEnd
}

func lastLineEnd(blocks []ocr.Block) int {
	if len(blocks) == 0 {
		return 0
	}
	return blocks[len(blocks)-1].LineEnd
}

// anchorSpan returns the overall text range of a layout's anchor segments
func anchorSpan(l *documentaipb.Document_Page_Layout) (start, end int64, ok bool) {
	if l == nil || l.TextAnchor == nil || len(l.TextAnchor.TextSegments) == 0 {
		return 0, 0, false
	}
	segments := l.TextAnchor.TextSegments
	start, end = int64(segments[0].StartIndex), int64(segments[0].EndIndex)
	for _, seg := range segments[1:] {
		if int64(seg.StartIndex) < start {
			start = int64(seg.StartIndex)
		}
		if int64(seg.EndIndex) > end {
			end = int64(seg.EndIndex)
		}
	}
	return start, end, start < end
}

// sliceText extracts a text anchor range from the document text.
// Document AI anchors index runes, not bytes.
func sliceText(fullText string, start, end int64) string {
	runes := []rune(fullText)
	if start < 0 {
		start = 0
	}
	if end > int64(len(runes)) {
		end = int64(len(runes))
	}
	if start >= end {
		return ""
	}
	return string(runes[start:end])
}

// boxFromLayout derives a normalized bounding box from a layout's bounding
// poly, preferring normalized vertices and falling back to pixel vertices
// scaled by the page dimension
func boxFromLayout(l *documentaipb.Document_Page_Layout, page *documentaipb.Document_Page) layout.NormBBox {
	if l == nil || l.BoundingPoly == nil {
		return layout.NormBBox{}
	}
	poly := l.BoundingPoly

	if len(poly.NormalizedVertices) > 0 {
		x0, top, x1, bottom := float64(poly.NormalizedVertices[0].X), float64(poly.NormalizedVertices[0].Y),
			float64(poly.NormalizedVertices[0].X), float64(poly.NormalizedVertices[0].Y)
		for _, v := range poly.NormalizedVertices[1:] {
			x0 = min(x0, float64(v.X))
			top = min(top, float64(v.Y))
			x1 = max(x1, float64(v.X))
			bottom = max(bottom, float64(v.Y))
		}
		return clampBox(x0, top, x1, bottom)
	}

	if len(poly.Vertices) > 0 && page.Dimension != nil &&
		page.Dimension.Width > 0 && page.Dimension.Height > 0 {
		w, h := float64(page.Dimension.Width), float64(page.Dimension.Height)
		x0, top := float64(poly.Vertices[0].X)/w, float64(poly.Vertices[0].Y)/h
		x1, bottom := x0, top
		for _, v := range poly.Vertices[1:] {
			x0 = min(x0, float64(v.X)/w)
			top = min(top, float64(v.Y)/h)
			x1 = max(x1, float64(v.X)/w)
			bottom = max(bottom, float64(v.Y)/h)
		}
		return clampBox(x0, top, x1, bottom)
	}

	return layout.NormBBox{}
}

func clampBox(x0, top, x1, bottom float64) layout.NormBBox {
	return layout.NormBBox{
		X0:     clamp01(x0),
		Top:    clamp01(top),
		X1:     clamp01(x1),
		Bottom: clamp01(bottom),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
