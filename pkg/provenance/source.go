package provenance

import (
	"strings"

	"github.com/docprov/docprov/pkg/layout"
)

// TextLocation specifies the location of a piece of text in a page
type TextLocation struct {
	SourceBlocks []layout.TextBlock // The blocks the match spans, in reading order
	Text         string             // The literal matched substring
	Score        float64            // Engine score for the match
	Granularity  layout.Granularity // Granularity the match resolved at

	// MergedSourceBlock is synthesized when a match spans multiple blocks:
	// its bounding box is the union of all contributing boxes and its text
	// is the matched substring.
	MergedSourceBlock layout.TextBlock
}

// Source specifies exactly where a piece of verbatim text came from in a
// document
type Source struct {
	DocumentName string       // Identifier of the document searched
	PageNumber   int          // Page the match occurs on (1-based)
	Location     TextLocation // Block-level location detail
}

// SourceBlock returns the single block best representing the match
func (s Source) SourceBlock() layout.TextBlock {
	return s.Location.MergedSourceBlock
}

// Text returns the text of all source blocks, one per line
func (s Source) Text() string {
	parts := make([]string, len(s.Location.SourceBlocks))
	for i, block := range s.Location.SourceBlocks {
		parts[i] = block.Text
	}
	return strings.Join(parts, "\n")
}

// BestMode selects how SearchNBest ranks results
type BestMode string

// The supported n-best selection modes. Shortest and longest compare
// matched-text length, highest compares the engine score; ties preserve the
// original search order.
const (
	BestShortestText BestMode = "shortest_text"
	BestLongestText  BestMode = "longest_text"
	BestHighestScore BestMode = "highest_score"
)
