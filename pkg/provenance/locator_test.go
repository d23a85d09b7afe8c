package provenance

import (
	"errors"
	"sync"
	"testing"

	"github.com/docprov/docprov/pkg/corpus"
	"github.com/docprov/docprov/pkg/layout"
	"github.com/docprov/docprov/pkg/ocr"
)

func box(x0, top, x1, bottom float64) layout.NormBBox {
	return layout.NormBBox{X0: x0, Top: top, X1: x1, Bottom: bottom}
}

// namePage is a single-line page "John Doe lives here"
func namePage(number int) ocr.Page {
	return ocr.Page{
		Number: number,
		Words: []ocr.Word{
			{Text: "John", BBox: box(0.1, 0.1, 0.2, 0.15)},
			{Text: "Doe", BBox: box(0.25, 0.1, 0.32, 0.15)},
			{Text: "lives", BBox: box(0.36, 0.1, 0.45, 0.15)},
			{Text: "here", BBox: box(0.5, 0.1, 0.58, 0.15)},
		},
		Lines: []ocr.Line{
			{BBox: box(0.1, 0.1, 0.58, 0.15), WordStart: 0, WordEnd: 4},
		},
		Blocks: []ocr.Block{
			{BBox: box(0.1, 0.1, 0.58, 0.15), LineStart: 0, LineEnd: 1},
		},
	}
}

func newTestLocator(t *testing.T, pages ...ocr.Page) *Locator {
	t.Helper()
	locator, err := NewFromPages("test-doc", pages, DefaultConfig())
	if err != nil {
		t.Fatalf("failed to build locator: %v", err)
	}
	return locator
}

func TestQueriesBeforeBuild(t *testing.T) {
	locator := NewLocator("empty", DefaultConfig())
	if locator.Built() {
		t.Error("expected unbuilt locator")
	}

	if _, err := locator.Search("anything", DefaultSearchOptions()); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("Search: expected ErrNotBuilt, got %v", err)
	}
	if _, err := locator.SearchNBest("anything", 1, BestHighestScore); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("SearchNBest: expected ErrNotBuilt, got %v", err)
	}
	bbox := box(0.1, 0.1, 0.2, 0.2)
	if _, err := locator.KNearestBlocks(bbox, 1, 1, layout.GranularityBlock); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("KNearestBlocks: expected ErrNotBuilt, got %v", err)
	}
	if _, err := locator.OverlappingBlocks(bbox, 1, layout.GranularityBlock); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("OverlappingBlocks: expected ErrNotBuilt, got %v", err)
	}
}

func TestSearchWordRefined(t *testing.T) {
	locator := newTestLocator(t, namePage(1))

	results, err := locator.Search("John Doe", DefaultSearchOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	source := results[0]
	if source.DocumentName != "test-doc" || source.PageNumber != 1 {
		t.Errorf("unexpected source identity %q page %d", source.DocumentName, source.PageNumber)
	}
	if source.Location.Score != 1.0 {
		t.Errorf("expected score 1.0, got %v", source.Location.Score)
	}
	if source.Location.Text != "John Doe" {
		t.Errorf("unexpected matched text %q", source.Location.Text)
	}
	if len(source.Location.SourceBlocks) != 2 {
		t.Fatalf("expected 2 word blocks, got %d", len(source.Location.SourceBlocks))
	}

	// Merged box is the union of the two word boxes
	want := box(0.1, 0.1, 0.32, 0.15)
	if source.SourceBlock().BBox != want {
		t.Errorf("expected merged bbox %+v, got %+v", want, source.SourceBlock().BBox)
	}
	if source.SourceBlock().Text != "John Doe" {
		t.Errorf("unexpected merged text %q", source.SourceBlock().Text)
	}
	if source.Text() != "John\nDoe" {
		t.Errorf("unexpected block text listing %q", source.Text())
	}
}

func TestSearchBlockLevel(t *testing.T) {
	locator := newTestLocator(t, namePage(1))

	opts := DefaultSearchOptions()
	opts.RefineToWord = false
	results, err := locator.Search("John Doe", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	loc := results[0].Location
	if loc.Granularity != layout.GranularityBlock {
		t.Errorf("expected block granularity, got %q", loc.Granularity)
	}
	if len(loc.SourceBlocks) != 1 {
		t.Fatalf("expected single covering block, got %d", len(loc.SourceBlocks))
	}
	// The covering block spans the whole line even though the match is narrower
	if loc.SourceBlocks[0].Text != "John Doe lives here" {
		t.Errorf("unexpected block text %q", loc.SourceBlocks[0].Text)
	}
	if loc.Text != "John Doe" {
		t.Errorf("merged text must stay the matched substring, got %q", loc.Text)
	}
}

func TestSearchIsRepeatable(t *testing.T) {
	locator := newTestLocator(t, namePage(1), namePage(2))

	first, err := locator.Search("lives here", DefaultSearchOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := locator.Search("lives here", DefaultSearchOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 results per call, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].PageNumber != second[i].PageNumber || first[i].Location.Text != second[i].Location.Text {
			t.Errorf("result %d differs between identical queries", i)
		}
	}
}

func TestSearchPageRestriction(t *testing.T) {
	locator := newTestLocator(t, namePage(1), namePage(2))

	opts := DefaultSearchOptions()
	opts.PageNumber = 2
	results, err := locator.Search("John", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].PageNumber != 2 {
		t.Fatalf("expected single result on page 2, got %+v", results)
	}
}

func TestSearchNoMatchAndEmptyQuery(t *testing.T) {
	locator := newTestLocator(t, namePage(1))

	results, err := locator.Search("completely absent phrase", DefaultSearchOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result for absent text, got %d", len(results))
	}

	results, err = locator.Search("   ", DefaultSearchOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result for empty query, got %d", len(results))
	}

	if locator.DroppedHits() != 0 {
		t.Errorf("expected no dropped hits, got %d", locator.DroppedHits())
	}
}

func TestSearchNBest(t *testing.T) {
	locator := newTestLocator(t, namePage(1), namePage(2), namePage(3))

	results, err := locator.SearchNBest("Doe", 2, BestHighestScore)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	// All scores tie at 1.0; the underlying page order must be preserved
	if results[0].PageNumber != 1 || results[1].PageNumber != 2 {
		t.Errorf("expected tie to preserve page order, got pages %d, %d",
			results[0].PageNumber, results[1].PageNumber)
	}

	if _, err := locator.SearchNBest("Doe", 2, BestMode("best_vibes")); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestKNearestBlocks(t *testing.T) {
	locator := newTestLocator(t, namePage(1), namePage(2))

	// Query box sits over "John"; the nearest words follow reading order
	blocks, err := locator.KNearestBlocks(box(0.09, 0.09, 0.21, 0.16), 1, 2, layout.GranularityWord)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].Text != "John" || blocks[1].Text != "Doe" {
		t.Errorf("unexpected nearest words %q, %q", blocks[0].Text, blocks[1].Text)
	}
	for _, block := range blocks {
		if block.PageNumber != 1 {
			t.Errorf("expected page 1 blocks only, got page %d", block.PageNumber)
		}
	}
}

func TestKNearestBlocksValidation(t *testing.T) {
	locator := newTestLocator(t, namePage(1))

	if _, err := locator.KNearestBlocks(box(0.1, 0.1, 0.2, 0.15), 99, 1, layout.GranularityWord); !errors.Is(err, corpus.ErrLookup) {
		t.Errorf("expected ErrLookup for unknown page, got %v", err)
	}
	if _, err := locator.KNearestBlocks(box(0.1, 0.1, 0.2, 0.15), 1, 1, layout.Granularity("paragraph")); !errors.Is(err, corpus.ErrLookup) {
		t.Errorf("expected ErrLookup for unknown granularity, got %v", err)
	}
	invalid := layout.NormBBox{X0: 0.5, Top: 0.1, X1: 0.2, Bottom: 0.2}
	if _, err := locator.KNearestBlocks(invalid, 1, 1, layout.GranularityWord); !errors.Is(err, layout.ErrInvalidGeometry) {
		t.Errorf("expected ErrInvalidGeometry, got %v", err)
	}
}

func TestOverlappingBlocks(t *testing.T) {
	locator := newTestLocator(t, namePage(1), namePage(2))

	// Overlaps "John" and "Doe", misses the rest of the line
	blocks, err := locator.OverlappingBlocks(box(0.15, 0.1, 0.3, 0.15), 1, layout.GranularityWord)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 overlapping words, got %d", len(blocks))
	}
	if blocks[0].Text != "John" || blocks[1].Text != "Doe" {
		t.Errorf("unexpected words %q, %q", blocks[0].Text, blocks[1].Text)
	}

	// Empty granularity defaults to block
	blocks, err = locator.OverlappingBlocks(box(0.15, 0.1, 0.3, 0.15), 1, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Granularity != layout.GranularityBlock {
		t.Fatalf("expected single block-granularity result, got %+v", blocks)
	}
}

func TestRefreshSwapsSnapshot(t *testing.T) {
	locator := newTestLocator(t, namePage(1))

	// Readers hammer the locator while it rebuilds underneath them
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, err := locator.Search("John", DefaultSearchOptions()); err != nil {
					t.Errorf("concurrent search failed: %v", err)
					return
				}
			}
		}()
	}

	for i := 0; i < 5; i++ {
		if err := locator.Refresh([]ocr.Page{namePage(1), namePage(2)}); err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
	}
	close(stop)
	wg.Wait()

	results, err := locator.Search("John", DefaultSearchOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected refreshed index with 2 pages, got %d results", len(results))
	}
}

func TestBuildFailureKeepsSnapshot(t *testing.T) {
	locator := newTestLocator(t, namePage(1))

	if err := locator.Build(nil); !errors.Is(err, corpus.ErrConstruction) {
		t.Fatalf("expected ErrConstruction, got %v", err)
	}
	if !locator.Built() {
		t.Fatal("failed build must not clear the active snapshot")
	}
	results, err := locator.Search("John", DefaultSearchOptions())
	if err != nil || len(results) != 1 {
		t.Errorf("expected previous snapshot to keep serving, got %d results, err %v", len(results), err)
	}
}
