// docprov is a command-line tool for locating text within OCR'd documents.
//
// It builds a provenance locator from OCR results (hOCR or Google Document
// AI JSON), searches it for a text fragment, and reports the page, bounding
// box, and score of every match. It can also run geometry-only queries and
// write a PDF with the matches drawn at their page positions.
//
// Usage:
//
//	docprov -hocr document.hocr -query "John Doe" [options]
//
// Input options (one required):
//
//	-hocr string      Path to an hOCR file
//	-docai string     Path to a Document AI JSON response
//
// Search options:
//
//	-query string     Text fragment to locate
//	-page int         Restrict the search to this page (0 = whole document)
//	-fuzzy            Allow approximate matches
//	-min-score float  Minimum fuzzy match score (default 0.8)
//	-block-level      Resolve matches to block level instead of word level
//	-n int            Return only the n best results
//	-mode string      N-best mode: shortest_text, longest_text, highest_score
//
// Geometry options:
//
//	-near string      Bounding box "x0,top,x1,bottom" for a k-nearest query
//	-overlap string   Bounding box "x0,top,x1,bottom" for an overlap query
//	-k int            Number of blocks for -near (default 3)
//	-granularity string  Block granularity for geometry queries (default block)
//
// Output options:
//
//	-annotate string  Write a PDF with the matches highlighted
//	-config string    Path to a YAML config file with defaults
//
// Examples:
//
// Find a phrase and write a highlight PDF:
//
//	docprov -hocr scan.hocr -query "Total amount due" -annotate hits.pdf
//
// Fuzzy search restricted to page 3:
//
//	docprov -docai response.json -query "invoce number" -fuzzy -page 3
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/docprov/docprov/pkg/docai"
	"github.com/docprov/docprov/pkg/highlight"
	"github.com/docprov/docprov/pkg/hocr"
	"github.com/docprov/docprov/pkg/layout"
	"github.com/docprov/docprov/pkg/ocr"
	"github.com/docprov/docprov/pkg/provenance"
)

type yamlConfig struct {
	DocumentName string  `yaml:"document_name"`
	MinScore     float64 `yaml:"min_score"`
	Fuzziness    int     `yaml:"fuzziness"`
	PageWidth    float64 `yaml:"page_width"`
	PageHeight   float64 `yaml:"page_height"`
}

func loadYAMLConfig(path string) (yamlConfig, error) {
	var yc yamlConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return yc, err
	}
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return yc, fmt.Errorf("failed to parse config: %w", err)
	}
	return yc, nil
}

func main() {
	hocrPath := flag.String("hocr", "", "Path to an hOCR file")
	docaiPath := flag.String("docai", "", "Path to a Document AI JSON response")
	queryText := flag.String("query", "", "Text fragment to locate")
	page := flag.Int("page", 0, "Restrict the search to this page (0 = whole document)")
	fuzzy := flag.Bool("fuzzy", false, "Allow approximate matches")
	minScore := flag.Float64("min-score", 0.8, "Minimum fuzzy match score")
	blockLevel := flag.Bool("block-level", false, "Resolve matches to block level instead of word level")
	nBest := flag.Int("n", 0, "Return only the n best results (0 = all)")
	mode := flag.String("mode", "highest_score", "N-best mode: shortest_text, longest_text, highest_score")
	near := flag.String("near", "", "Bounding box \"x0,top,x1,bottom\" for a k-nearest query")
	overlap := flag.String("overlap", "", "Bounding box \"x0,top,x1,bottom\" for an overlap query")
	k := flag.Int("k", 3, "Number of blocks for -near")
	granularity := flag.String("granularity", "block", "Granularity for geometry queries")
	annotatePath := flag.String("annotate", "", "Write a PDF with the matches highlighted")
	configPath := flag.String("config", "", "Path to a YAML config file")
	flag.Parse()

	if *hocrPath == "" && *docaiPath == "" {
		fmt.Println("Error: Must provide either -hocr or -docai")
		os.Exit(1)
	}
	if *queryText == "" && *near == "" && *overlap == "" {
		fmt.Println("Error: Must provide -query, -near, or -overlap")
		os.Exit(1)
	}

	config := provenance.DefaultConfig()
	highlightConfig := highlight.DefaultConfig()
	documentName := ""

	if *configPath != "" {
		yc, err := loadYAMLConfig(*configPath)
		if err != nil {
			fmt.Printf("Failed to load config: %v\n", err)
			os.Exit(1)
		}
		documentName = yc.DocumentName
		if yc.MinScore > 0 {
			config.Search.MinScore = yc.MinScore
		}
		if yc.Fuzziness > 0 {
			config.Search.Fuzziness = yc.Fuzziness
		}
		if yc.PageWidth > 0 {
			highlightConfig.PageWidth = yc.PageWidth
		}
		if yc.PageHeight > 0 {
			highlightConfig.PageHeight = yc.PageHeight
		}
	}
	if flagPassed(flag.CommandLine, "min-score") {
		config.Search.MinScore = *minScore
	}

	pages, name := loadPages(*hocrPath, *docaiPath)
	if documentName == "" {
		documentName = name
	}

	locator, err := provenance.NewFromPages(documentName, pages, config)
	if err != nil {
		fmt.Printf("Failed to build locator: %v\n", err)
		os.Exit(1)
	}

	if *near != "" || *overlap != "" {
		runGeometryQuery(locator, *near, *overlap, *page, *k, layout.Granularity(*granularity))
		return
	}

	var results []provenance.Source
	if *nBest > 0 {
		results, err = locator.SearchNBest(*queryText, *nBest, provenance.BestMode(*mode))
	} else {
		results, err = locator.Search(*queryText, provenance.SearchOptions{
			PageNumber:        *page,
			RefineToWord:      !*blockLevel,
			RequireExactMatch: !*fuzzy,
		})
	}
	if err != nil {
		fmt.Printf("Search failed: %v\n", err)
		os.Exit(1)
	}

	if len(results) == 0 {
		fmt.Println("No matches found")
		return
	}
	for i, source := range results {
		block := source.SourceBlock()
		fmt.Printf("%d. page %d  score %.3f  bbox (%.3f, %.3f, %.3f, %.3f)\n   %s\n",
			i+1, source.PageNumber, source.Location.Score,
			block.BBox.X0, block.BBox.Top, block.BBox.X1, block.BBox.Bottom,
			source.Location.Text)
	}

	if *annotatePath != "" {
		pdfBytes, err := highlight.Render(results, highlightConfig)
		if err != nil {
			fmt.Printf("Failed to render highlights: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*annotatePath, pdfBytes, 0o644); err != nil {
			fmt.Printf("Failed to write %s: %v\n", *annotatePath, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote highlight PDF to %s\n", *annotatePath)
	}
}

// loadPages reads OCR pages from whichever input was provided and returns
// them with a document name derived from the file name
func loadPages(hocrPath, docaiPath string) ([]ocr.Page, string) {
	if hocrPath != "" {
		data, err := os.ReadFile(hocrPath)
		if err != nil {
			fmt.Printf("Failed to read hOCR file: %v\n", err)
			os.Exit(1)
		}
		pages, err := hocr.Parse(data)
		if err != nil {
			fmt.Printf("Failed to parse hOCR: %v\n", err)
			os.Exit(1)
		}
		return pages, baseName(hocrPath)
	}

	data, err := os.ReadFile(docaiPath)
	if err != nil {
		fmt.Printf("Failed to read Document AI file: %v\n", err)
		os.Exit(1)
	}
	doc, err := docai.LoadDocumentJSON(data)
	if err != nil {
		fmt.Printf("Failed to load Document AI response: %v\n", err)
		os.Exit(1)
	}
	pages, err := docai.Pages(doc)
	if err != nil {
		fmt.Printf("Failed to convert Document AI response: %v\n", err)
		os.Exit(1)
	}
	return pages, baseName(docaiPath)
}

// flagPassed reports whether the named flag was given on the command line,
// so a flag left at its default does not override config file values
func flagPassed(fs *flag.FlagSet, name string) bool {
	passed := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// runGeometryQuery executes a k-nearest or overlap query and prints the
// resulting blocks
func runGeometryQuery(locator *provenance.Locator, near, overlap string, page, k int, granularity layout.Granularity) {
	if page < 1 {
		fmt.Println("Error: geometry queries require -page")
		os.Exit(1)
	}

	spec := near
	if spec == "" {
		spec = overlap
	}
	bbox, err := parseBBox(spec)
	if err != nil {
		fmt.Printf("Invalid bounding box: %v\n", err)
		os.Exit(1)
	}

	var blocks []layout.TextBlock
	if near != "" {
		blocks, err = locator.KNearestBlocks(bbox, page, k, granularity)
	} else {
		blocks, err = locator.OverlappingBlocks(bbox, page, granularity)
	}
	if err != nil {
		fmt.Printf("Query failed: %v\n", err)
		os.Exit(1)
	}

	if len(blocks) == 0 {
		fmt.Println("No blocks found")
		return
	}
	for i, block := range blocks {
		fmt.Printf("%d. bbox (%.3f, %.3f, %.3f, %.3f)\n   %s\n",
			i+1, block.BBox.X0, block.BBox.Top, block.BBox.X1, block.BBox.Bottom, block.Text)
	}
}

// parseBBox parses "x0,top,x1,bottom" into a normalized bounding box
func parseBBox(spec string) (layout.NormBBox, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 4 {
		return layout.NormBBox{}, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}
	values := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return layout.NormBBox{}, err
		}
		values[i] = v
	}
	return layout.NewNormBBox(values[0], values[1], values[2], values[3])
}
