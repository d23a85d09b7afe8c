package provenance

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/docprov/docprov/pkg/corpus"
	"github.com/docprov/docprov/pkg/layout"
	"github.com/docprov/docprov/pkg/ocr"
	"github.com/docprov/docprov/pkg/search"
	"github.com/docprov/docprov/pkg/spatial"
)

// ErrNotBuilt indicates a query issued before Build has ever succeeded for
// the document.
var ErrNotBuilt = errors.New("locator not built: no OCR results have been indexed")

// Config holds construction options for a Locator
type Config struct {
	Search       search.Options // Full-text engine options
	BuildWorkers int            // Concurrent per-page index builders (0 = GOMAXPROCS)
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Search:       search.DefaultOptions(),
		BuildWorkers: 0,
	}
}

// SearchOptions controls a single Search call
type SearchOptions struct {
	PageNumber        int  // Restrict the search to this page (0 = whole document)
	RefineToWord      bool // Resolve matches to word-level blocks
	RequireExactMatch bool // Exact occurrences only; false enables fuzzy matching
}

// DefaultSearchOptions returns the search defaults: document-wide, refined
// to word level, exact matches only
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		PageNumber:        0,
		RefineToWord:      true,
		RequireExactMatch: true,
	}
}

// snapshot is one fully-built, immutable index set. Queries operate on a
// single snapshot for their whole duration.
type snapshot struct {
	doc    *corpus.Document
	engine *search.Engine
	geo    map[int]*spatial.Index
}

// Locator owns the indexes for one document and answers provenance queries.
// Multiple Locators for different documents are independent.
type Locator struct {
	documentName string
	config       Config

	snap    atomic.Pointer[snapshot]
	dropped atomic.Uint64
}

// NewLocator creates an unbuilt locator for a document. Queries fail with
// ErrNotBuilt until Build succeeds.
func NewLocator(documentName string, config Config) *Locator {
	return &Locator{documentName: documentName, config: config}
}

// NewFromPages creates a locator and builds it from the given OCR pages
func NewFromPages(documentName string, pages []ocr.Page, config Config) (*Locator, error) {
	l := NewLocator(documentName, config)
	if err := l.Build(pages); err != nil {
		return nil, err
	}
	return l, nil
}

// DocumentName returns the identifier the locator was created with
func (l *Locator) DocumentName() string { return l.documentName }

// Built reports whether a snapshot is active
func (l *Locator) Built() bool { return l.snap.Load() != nil }

// DroppedHits returns how many search hits have been dropped because their
// offsets could not be resolved to blocks. A nonzero value indicates a
// defect in the index, not caller error.
func (l *Locator) DroppedHits() uint64 { return l.dropped.Load() }

// Build constructs the corpus, search index, and spatial indexes from the
// OCR pages and activates them as the current snapshot. On error the
// previous snapshot, if any, remains active.
func (l *Locator) Build(pages []ocr.Page) error {
	doc, err := corpus.Build(pages)
	if err != nil {
		return err
	}

	// Spatial construction is independent per page
	geo := make(map[int]*spatial.Index, len(doc.Pages()))
	workers := l.config.BuildWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, workers)
	)
	for _, page := range doc.Pages() {
		wg.Add(1)
		go func(p *corpus.Page) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			index := spatial.NewIndex(p.Words, p.Lines, p.Blocks)
			mu.Lock()
			geo[p.Number] = index
			mu.Unlock()
		}(page)
	}
	wg.Wait()

	engine, err := search.NewEngine(doc, l.config.Search)
	if err != nil {
		return err
	}

	// Atomic swap: concurrent readers keep using the old snapshot until
	// their query completes, so the old engine is left for the GC rather
	// than closed here.
	l.snap.Store(&snapshot{doc: doc, engine: engine, geo: geo})
	return nil
}

// Refresh rebuilds every index from the current OCR results and atomically
// replaces the active snapshot
func (l *Locator) Refresh(pages []ocr.Page) error {
	return l.Build(pages)
}

// Search finds a piece of text in the document and returns where it came
// from, ordered by the engine's ranking. An empty query or a query with no
// occurrences returns an empty result, not an error. A hit whose offsets
// cannot be resolved is dropped and counted, never fatal to the query.
func (l *Locator) Search(query string, opts SearchOptions) ([]Source, error) {
	snap := l.snap.Load()
	if snap == nil {
		return nil, ErrNotBuilt
	}

	matches, err := snap.engine.Search(query, opts.PageNumber, opts.RequireExactMatch)
	if err != nil {
		return nil, err
	}

	results := make([]Source, 0, len(matches))
	for _, match := range matches {
		source, err := l.resolveMatch(snap, match, opts.RefineToWord)
		if err != nil {
			l.dropped.Add(1)
			continue
		}
		results = append(results, source)
	}
	return results, nil
}

// resolveMatch maps a match's offset range to blocks and synthesizes the
// merged source block
func (l *Locator) resolveMatch(snap *snapshot, match search.Match, refineToWord bool) (Source, error) {
	page, ok := snap.doc.Page(match.PageNumber)
	if !ok {
		return Source{}, fmt.Errorf("%w: page %d not in corpus", corpus.ErrLookup, match.PageNumber)
	}

	granularity := layout.GranularityBlock
	if refineToWord {
		granularity = layout.GranularityWord
	}
	blocks, err := page.Resolve(match.Span, granularity)
	if err != nil {
		return Source{}, err
	}

	union := blocks[0].BBox
	for _, block := range blocks[1:] {
		union = union.Union(block.BBox)
	}

	matched := page.Buffer[match.Span.Start:match.Span.End]
	merged := layout.TextBlock{
		Text:        matched,
		Granularity: granularity,
		BBox:        union,
		PageNumber:  match.PageNumber,
		Span:        match.Span,
	}

	return Source{
		DocumentName: l.documentName,
		PageNumber:   match.PageNumber,
		Location: TextLocation{
			SourceBlocks:      blocks,
			Text:              matched,
			Score:             match.Score,
			Granularity:       granularity,
			MergedSourceBlock: merged,
		},
	}, nil
}

// SearchNBest runs Search with default options and selects the top n
// results by the given mode. Ties preserve the original search order.
func (l *Locator) SearchNBest(query string, n int, mode BestMode) ([]Source, error) {
	results, err := l.Search(query, DefaultSearchOptions())
	if err != nil {
		return nil, err
	}
	if n <= 0 || len(results) == 0 {
		return nil, nil
	}

	var less func(i, j int) bool
	switch mode {
	case BestShortestText:
		less = func(i, j int) bool { return len(results[i].Location.Text) < len(results[j].Location.Text) }
	case BestLongestText:
		less = func(i, j int) bool { return len(results[i].Location.Text) > len(results[j].Location.Text) }
	case BestHighestScore:
		less = func(i, j int) bool { return results[i].Location.Score > results[j].Location.Score }
	default:
		return nil, fmt.Errorf("unknown n-best mode %q", mode)
	}
	sort.SliceStable(results, less)

	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// KNearestBlocks returns the k blocks nearest to the given bounding box on
// a page, sorted by non-decreasing distance
func (l *Locator) KNearestBlocks(bbox layout.NormBBox, pageNumber, k int, granularity layout.Granularity) ([]layout.TextBlock, error) {
	index, err := l.pageIndex(pageNumber, &granularity)
	if err != nil {
		return nil, err
	}
	return index.KNearest(bbox, k, granularity)
}

// OverlappingBlocks returns every block on a page whose bounding box has
// nonzero intersection with the given box, in reading order
func (l *Locator) OverlappingBlocks(bbox layout.NormBBox, pageNumber int, granularity layout.Granularity) ([]layout.TextBlock, error) {
	index, err := l.pageIndex(pageNumber, &granularity)
	if err != nil {
		return nil, err
	}
	return index.Overlapping(bbox, granularity)
}

// pageIndex fetches the spatial index for a page and defaults/validates the
// granularity
func (l *Locator) pageIndex(pageNumber int, granularity *layout.Granularity) (*spatial.Index, error) {
	snap := l.snap.Load()
	if snap == nil {
		return nil, ErrNotBuilt
	}
	if *granularity == "" {
		*granularity = layout.GranularityBlock
	}
	if !granularity.Valid() {
		return nil, fmt.Errorf("%w: unknown granularity %q", corpus.ErrLookup, *granularity)
	}
	index, ok := snap.geo[pageNumber]
	if !ok {
		return nil, fmt.Errorf("%w: page %d not in document", corpus.ErrLookup, pageNumber)
	}
	return index, nil
}
