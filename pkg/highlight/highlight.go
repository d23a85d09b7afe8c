// Package highlight renders provenance search results as marked-up PDF
// pages, drawing each match's bounding box at its page position.
//
// One PDF page is emitted per document page that has matches, with the
// boxes drawn on a dedicated layer so viewers can toggle them. Intended for
// reviewing where in a document search hits landed.
package highlight

import (
	"bytes"
	"fmt"
	"sort"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/docprov/docprov/pkg/provenance"
)

// Config holds rendering options
type Config struct {
	PageWidth  float64 // Page width in points
	PageHeight float64 // Page height in points
	LayerName  string  // Base name of the annotation layer
	DrawLabels bool    // Render the matched text above each box
	Font       FontConfig
}

// FontConfig contains font settings for match labels
type FontConfig struct {
	Name  string  // Font name (e.g., "Helvetica")
	Style string  // Font style ("", "B", "I", "BI")
	Size  float64 // Label font size
}

// DefaultConfig returns a config with sensible defaults: A4 pages with
// labeled boxes
func DefaultConfig() Config {
	return Config{
		PageWidth:  595.28,
		PageHeight: 841.89,
		LayerName:  "Matches",
		DrawLabels: true,
		Font: FontConfig{
			Name:  "Helvetica",
			Style: "",
			Size:  8,
		},
	}
}

// Render produces a PDF with one page per document page that has matches,
// drawing each match's merged bounding box
func Render(sources []provenance.Source, config Config) ([]byte, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources to render")
	}

	byPage := make(map[int][]provenance.Source)
	for _, source := range sources {
		byPage[source.PageNumber] = append(byPage[source.PageNumber], source)
	}
	pageNumbers := make([]int, 0, len(byPage))
	for number := range byPage {
		pageNumbers = append(pageNumbers, number)
	}
	sort.Ints(pageNumbers)

	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: config.PageWidth, Ht: config.PageHeight},
	})
	pdf.SetFont(config.Font.Name, config.Font.Style, config.Font.Size)

	for _, number := range pageNumbers {
		pdf.AddPage()
		drawPage(pdf, number, byPage[number], config)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate highlight PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// drawPage draws all matches for one document page onto its own layer
func drawPage(pdf *fpdf.Fpdf, pageNumber int, sources []provenance.Source, config Config) {
	layer := pdf.AddLayer(fmt.Sprintf("%s (Page %d)", config.LayerName, pageNumber), true)
	pdf.BeginLayer(layer)

	pdf.SetDrawColor(204, 0, 0)
	pdf.SetFillColor(255, 235, 59)
	pdf.SetTextColor(204, 0, 0)

	for _, source := range sources {
		box := source.SourceBlock().BBox
		x := box.X0 * config.PageWidth
		y := box.Top * config.PageHeight
		w := box.Width() * config.PageWidth
		h := box.Height() * config.PageHeight

		pdf.SetAlpha(0.35, "Normal")
		pdf.Rect(x, y, w, h, "F")
		pdf.SetAlpha(1.0, "Normal")
		pdf.Rect(x, y, w, h, "D")

		if config.DrawLabels {
			drawLabel(pdf, source, x, y, config)
		}
	}

	pdf.EndLayer()
}

// drawLabel renders the matched text just above the box
func drawLabel(pdf *fpdf.Fpdf, source provenance.Source, x, y float64, config Config) {
	label := fmt.Sprintf("%s (%.2f)", source.Location.Text, source.Location.Score)

	// Convert text to ISO-8859-1 to avoid PDF encoding issues
	latin1, err := charmap.ISO8859_1.NewEncoder().String(label)
	if err != nil {
		latin1 = label // fallback to raw text
	}

	baseline := y - 2
	if baseline < config.Font.Size {
		baseline = y + config.Font.Size
	}
	pdf.Text(x, baseline, latin1)
}
