// Package ocr defines the input contract between OCR provider adapters and
// the provenance locator.
//
// Adapters (hOCR, Google Document AI, ...) normalize their provider-specific
// output into a flat per-page shape: words in reading order, with lines and
// blocks expressed as index ranges over their children. The locator derives
// character spans and every index structure from this shape; it never reads
// provider data directly.
package ocr

import "github.com/docprov/docprov/pkg/layout"

// Word is a single recognized word with its normalized bounding box
type Word struct {
	Text string          // The word text, without surrounding whitespace
	BBox layout.NormBBox // Position on the page
}

// Line groups a contiguous run of words in reading order.
// The range [WordStart, WordEnd) indexes into the page's Words slice.
type Line struct {
	BBox      layout.NormBBox // Position on the page
	WordStart int             // Index of the first word in the line
	WordEnd   int             // Index one past the last word in the line
}

// Block groups a contiguous run of lines, typically a paragraph or layout
// block. The range [LineStart, LineEnd) indexes into the page's Lines slice.
type Block struct {
	BBox      layout.NormBBox // Position on the page
	LineStart int             // Index of the first line in the block
	LineEnd   int             // Index one past the last line in the block
}

// Page is the complete OCR result for a single page
type Page struct {
	Number int     // Page number (1-based)
	Words  []Word  // Words in reading order
	Lines  []Line  // Line groupings over Words, in reading order
	Blocks []Block // Block groupings over Lines, in reading order
}
