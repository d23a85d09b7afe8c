// Package search implements the full-text engine over a document corpus.
//
// A bleve in-memory index over per-page documents prunes the document to
// candidate pages; exact occurrences are then enumerated on those pages by
// scanning a case-folded copy of each page buffer, and fuzzy matches are
// scored over sliding word-span windows with a normalized edit-distance
// similarity. The index is built once at construction; queries are read-only
// and safe for concurrent use.
package search

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/docprov/docprov/pkg/corpus"
	"github.com/docprov/docprov/pkg/layout"
)

// Options configures the engine
type Options struct {
	MinScore          float64    // Minimum fuzzy score to keep a match
	Fuzziness         int        // Per-term edit distance for candidate retrieval
	MaxCandidatePages int        // Cap on bleve page hits per query
	Scorer            Similarity // Fuzzy scorer (nil = EditDistanceSimilarity)
}

// DefaultOptions returns the engine defaults
func DefaultOptions() Options {
	return Options{
		MinScore:          0.8,
		Fuzziness:         1,
		MaxCandidatePages: 100,
		Scorer:            EditDistanceSimilarity,
	}
}

// Match is one search hit: an offset range into a page buffer with its score
type Match struct {
	PageNumber int         // Page the match occurs on
	Span       layout.Span // Offset range in that page's buffer
	Score      float64     // 1.0 for exact matches, [MinScore, 1] for fuzzy
}

type enginePage struct {
	page   *corpus.Page
	folded string
}

// Engine answers exact and fuzzy text queries against one document
type Engine struct {
	opts  Options
	index bleve.Index
	pages map[int]*enginePage
	order []int // page numbers, ascending
}

// NewEngine indexes the corpus and returns a ready engine
func NewEngine(doc *corpus.Document, opts Options) (*Engine, error) {
	if opts.Scorer == nil {
		opts.Scorer = EditDistanceSimilarity
	}
	if opts.MaxCandidatePages <= 0 {
		opts.MaxCandidatePages = DefaultOptions().MaxCandidatePages
	}

	indexMapping, err := buildIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to build index mapping: %w", err)
	}
	index, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}

	e := &Engine{
		opts:  opts,
		index: index,
		pages: make(map[int]*enginePage, len(doc.Pages())),
	}

	batch := index.NewBatch()
	for _, page := range doc.Pages() {
		e.pages[page.Number] = &enginePage{page: page, folded: fold(page.Buffer)}
		e.order = append(e.order, page.Number)

		err := batch.Index(strconv.Itoa(page.Number), map[string]interface{}{
			"page":    page.Number,
			"content": page.Buffer,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to index page %d: %w", page.Number, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("failed to commit search index: %w", err)
	}

	return e, nil
}

// buildIndexMapping maps page documents with a tokenize-and-lowercase
// analyzer. The default standard analyzer drops English stopwords, which
// would make phrase pruning miss pages whose query terms are all stopwords.
func buildIndexMapping() (mapping.IndexMapping, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer("page_content", map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}

	content := bleve.NewTextFieldMapping()
	content.Store = false
	content.IncludeTermVectors = true
	content.Analyzer = "page_content"

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("content", content)
	docMapping.AddFieldMappingsAt("page", bleve.NewNumericFieldMapping())

	m.DefaultMapping = docMapping
	return m, nil
}

// Close releases the underlying index
func (e *Engine) Close() error { return e.index.Close() }

// Search finds occurrences of query. With exact=true every case-insensitive,
// whitespace-normalized occurrence is returned with score 1.0; otherwise
// word windows are scored fuzzily and filtered by MinScore. A positive
// pageNumber restricts the search to that page. Results are stable-sorted by
// descending score, then page, then ascending offset. An empty query returns
// no matches.
func (e *Engine) Search(queryText string, pageNumber int, exact bool) ([]Match, error) {
	normalized := normalizeQuery(queryText)
	if normalized == "" {
		return nil, nil
	}
	folded := fold(normalized)

	candidates, err := e.candidatePages(normalized, pageNumber, exact)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, number := range candidates {
		ep := e.pages[number]
		if exact {
			matches = append(matches, exactMatches(ep, folded)...)
		} else {
			matches = append(matches, e.fuzzyMatches(ep, folded)...)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].PageNumber != matches[j].PageNumber {
			return matches[i].PageNumber < matches[j].PageNumber
		}
		return matches[i].Span.Start < matches[j].Span.Start
	})
	return matches, nil
}

// candidatePages narrows the document to pages worth scanning. A page filter
// skips the index entirely; otherwise a bleve query prunes to pages that
// contain the query terms. For exact search only the interior query tokens
// join the conjunction: the first and last tokens of a substring occurrence
// may be partial words, which a term match can never find. A query with no
// interior tokens scans every page.
func (e *Engine) candidatePages(normalized string, pageNumber int, exact bool) ([]int, error) {
	if pageNumber > 0 {
		if _, ok := e.pages[pageNumber]; !ok {
			return nil, nil
		}
		return []int{pageNumber}, nil
	}

	var match *query.MatchQuery
	if exact {
		tokens := strings.Fields(normalized)
		if len(tokens) < 3 {
			return append([]int(nil), e.order...), nil
		}
		match = bleve.NewMatchQuery(strings.Join(tokens[1:len(tokens)-1], " "))
		match.SetOperator(query.MatchQueryOperatorAnd)
	} else {
		match = bleve.NewMatchQuery(normalized)
		match.SetFuzziness(e.opts.Fuzziness)
	}
	match.SetField("content")

	req := bleve.NewSearchRequestOptions(match, e.opts.MaxCandidatePages, 0, false)
	res, err := e.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search index query failed: %w", err)
	}

	numbers := make([]int, 0, len(res.Hits))
	for _, hit := range res.Hits {
		number, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		numbers = append(numbers, number)
	}
	sort.Ints(numbers)
	return numbers, nil
}

// exactMatches enumerates every occurrence of the folded query in the page's
// folded buffer. Folding preserves byte offsets, so spans index the original
// buffer directly.
func exactMatches(ep *enginePage, foldedQuery string) []Match {
	var matches []Match
	for from := 0; ; {
		i := strings.Index(ep.folded[from:], foldedQuery)
		if i < 0 {
			break
		}
		start := from + i
		matches = append(matches, Match{
			PageNumber: ep.page.Number,
			Span:       layout.Span{Start: start, End: start + len(foldedQuery)},
			Score:      1.0,
		})
		from = start + 1
	}
	return matches
}

// fuzzyMatches slides a window of as many word spans as the query has tokens
// across the page and scores each window's text against the query. Windows
// below MinScore are discarded; of overlapping survivors only the best is
// kept.
func (e *Engine) fuzzyMatches(ep *enginePage, foldedQuery string) []Match {
	tokens := strings.Fields(foldedQuery)
	words := ep.page.Words
	if len(tokens) == 0 || len(words) < len(tokens) {
		return nil
	}

	var windows []Match
	for i := 0; i+len(tokens) <= len(words); i++ {
		span := layout.Span{
			Start: words[i].Span.Start,
			End:   words[i+len(tokens)-1].Span.End,
		}
		score := e.opts.Scorer(foldedQuery, ep.folded[span.Start:span.End])
		if score >= e.opts.MinScore {
			windows = append(windows, Match{PageNumber: ep.page.Number, Span: span, Score: score})
		}
	}

	// Best-first overlap suppression so one occurrence yields one match
	sort.SliceStable(windows, func(i, j int) bool {
		if windows[i].Score != windows[j].Score {
			return windows[i].Score > windows[j].Score
		}
		return windows[i].Span.Start < windows[j].Span.Start
	})
	var kept []Match
	for _, w := range windows {
		overlaps := false
		for _, k := range kept {
			if w.Span.Overlaps(k.Span) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, w)
		}
	}
	return kept
}
