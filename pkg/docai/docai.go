// Package docai ingests Google Document AI OCR output and normalizes it
// into the per-page word, line, and block shape the provenance locator
// consumes.
//
// Documents can come from a live ProcessDocument call or from a previously
// saved JSON-encoded Document proto. Token, line, and block hierarchy is
// reconstructed from text anchors; geometry comes from the normalized
// bounding polys.
package docai

import (
	"context"
	"fmt"
	"os"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/encoding/protojson"
)

// Config identifies the Document AI processor to call
type Config struct {
	ProjectID   string // Google Cloud project
	Location    string // Processor location, e.g. "us" or "eu"
	ProcessorID string // Document AI processor ID
}

// ProcessDocument sends PDF bytes to Google Document AI for processing
// and returns the raw Document proto response
func ProcessDocument(ctx context.Context, pdfBytes []byte, cfg Config) (*documentaipb.Document, error) {
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)

	client, err := documentai.NewDocumentProcessorClient(
		ctx,
		option.WithEndpoint(endpoint),
		option.WithCredentialsFile(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}
	defer client.Close()

	name := fmt.Sprintf(
		"projects/%s/locations/%s/processors/%s",
		cfg.ProjectID, cfg.Location, cfg.ProcessorID,
	)

	req := &documentaipb.ProcessRequest{
		Name: name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  pdfBytes,
				MimeType: "application/pdf",
			},
		},
		SkipHumanReview: true,
	}

	resp, err := client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to process document: %w", err)
	}

	return resp.Document, nil
}

// LoadDocumentJSON decodes a JSON-encoded Document proto, as saved from a
// prior Document AI run
func LoadDocumentJSON(data []byte) (*documentaipb.Document, error) {
	var doc documentaipb.Document
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode Document AI JSON: %w", err)
	}
	return &doc, nil
}
