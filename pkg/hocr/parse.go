package hocr

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"

	"github.com/docprov/docprov/pkg/layout"
	"github.com/docprov/docprov/pkg/ocr"
)

// Parse converts raw hOCR data into OCR pages ready for indexing
func Parse(data []byte) ([]ocr.Page, error) {
	decoded, err := decodeCharset(data)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(string(decoded)))
	if err != nil {
		return nil, err
	}

	var pages []ocr.Page
	var findPages func(*html.Node)
	findPages = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "ocr_page") {
			pages = append(pages, processPage(n, len(pages)+1))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findPages(c)
		}
	}
	findPages(doc)

	if len(pages) == 0 {
		return nil, fmt.Errorf("no ocr_page elements found in hOCR data")
	}
	return pages, nil
}

// decodeCharset converts the data to UTF-8 if the document declares a
// non-UTF-8 charset in its meta tags
func decodeCharset(data []byte) ([]byte, error) {
	content := string(data)
	idx := strings.Index(content, "charset=")
	if idx < 0 {
		return data, nil
	}
	snippet := content[idx+len("charset="):]
	fields := strings.FieldsFunc(snippet, func(r rune) bool {
		return r == '"' || r == ';' || r == '\'' || r == '>'
	})
	if len(fields) == 0 || strings.EqualFold(fields[0], "utf-8") {
		return data, nil
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", fields[0], err)
	}
	return decoded, nil
}

// processPage flattens one ocr_page element into the word/line/block shape.
// Paragraphs become blocks; a line outside any paragraph becomes a
// single-line block.
func processPage(n *html.Node, number int) ocr.Page {
	pageBox := boxFromTitle(getAttr(n, "title"))
	width, height := pageBox.X2, pageBox.Y2
	if width <= 0 || height <= 0 {
		width, height = 1, 1
	}

	page := ocr.Page{Number: number}

	appendWords := func(wordNodes []*html.Node) int {
		count := 0
		for _, wordNode := range wordNodes {
			text := textContent(wordNode)
			if text == "" {
				continue
			}
			page.Words = append(page.Words, ocr.Word{
				Text: text,
				BBox: normalizeBox(boxFromTitle(getAttr(wordNode, "title")), width, height),
			})
			count++
		}
		return count
	}

	appendLine := func(lineNode *html.Node) {
		wordStart := len(page.Words)
		if appendWords(collectWords(lineNode)) == 0 {
			return
		}
		page.Lines = append(page.Lines, ocr.Line{
			BBox:      normalizeBox(boxFromTitle(getAttr(lineNode, "title")), width, height),
			WordStart: wordStart,
			WordEnd:   len(page.Words),
		})
	}

	// appendBlock walks a paragraph (or standalone line) in document order.
	// Words that sit outside any ocr_line are gathered into synthesized lines
	// carrying the block's box, so they still index at every granularity.
	appendBlock := func(blockNode *html.Node) {
		lineStart := len(page.Lines)

		var orphans []*html.Node
		flush := func() {
			if len(orphans) == 0 {
				return
			}
			wordStart := len(page.Words)
			if appendWords(orphans) > 0 {
				page.Lines = append(page.Lines, ocr.Line{
					BBox:      normalizeBox(boxFromTitle(getAttr(blockNode, "title")), width, height),
					WordStart: wordStart,
					WordEnd:   len(page.Words),
				})
			}
			orphans = orphans[:0]
		}

		var walk func(*html.Node)
		walk = func(node *html.Node) {
			if node.Type == html.ElementNode {
				switch {
				case hasClass(node, "ocr_line"):
					flush()
					appendLine(node)
					return
				case hasClass(node, "ocrx_word"):
					orphans = append(orphans, node)
					return
				}
			}
			for c := node.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		for c := blockNode.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		flush()

		if len(page.Lines) == lineStart {
			return
		}
		page.Blocks = append(page.Blocks, ocr.Block{
			BBox:      normalizeBox(boxFromTitle(getAttr(blockNode, "title")), width, height),
			LineStart: lineStart,
			LineEnd:   len(page.Lines),
		})
	}

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode {
			switch {
			case hasClass(node, "ocr_par"):
				appendBlock(node)
				return
			case hasClass(node, "ocr_line"):
				// Standalone line with no paragraph parent
				appendBlock(node)
				return
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}

	return page
}

// collectWords gathers the ocrx_word descendants of a node in document order
func collectWords(n *html.Node) []*html.Node {
	var words []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && hasClass(node, "ocrx_word") {
			words = append(words, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return words
}

// pixelBox is a bounding box in page pixel coordinates as found in hOCR
// title attributes
type pixelBox struct {
	X1, Y1, X2, Y2 float64
}

// boxFromTitle extracts the bbox property from an hOCR title attribute
// Example input: "bbox 100 200 300 400; x_wconf 95"
func boxFromTitle(title string) pixelBox {
	for _, part := range strings.Split(title, ";") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) >= 5 && fields[0] == "bbox" {
			x1, _ := strconv.ParseFloat(fields[1], 64)
			y1, _ := strconv.ParseFloat(fields[2], 64)
			x2, _ := strconv.ParseFloat(fields[3], 64)
			y2, _ := strconv.ParseFloat(fields[4], 64)
			return pixelBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
		}
	}
	return pixelBox{}
}

// normalizeBox maps pixel coordinates to [0, 1] page-relative coordinates.
// Inverted boxes are reordered and out-of-page coordinates clamped, since
// OCR engines occasionally emit both.
func normalizeBox(b pixelBox, width, height float64) layout.NormBBox {
	x0, x1 := b.X1/width, b.X2/width
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	top, bottom := b.Y1/height, b.Y2/height
	if bottom < top {
		top, bottom = bottom, top
	}
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

// textContent gets all text from a node and its children
func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	var text string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		text += textContent(c)
	}
	return strings.TrimSpace(text)
}

func hasClass(n *html.Node, class string) bool {
	return strings.Contains(getAttr(n, "class"), class)
}

func getAttr(n *html.Node, name string) string {
	for _, attr := range n.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}
