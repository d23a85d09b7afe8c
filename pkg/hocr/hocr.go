// Package hocr ingests hOCR data, the HTML-based standard format for
// representing OCR results, and normalizes it into the per-page word, line,
// and block shape the provenance locator consumes.
//
// The hOCR hierarchy (page → area → paragraph → line → word) is flattened:
// paragraphs become blocks, lines that sit outside any paragraph become
// single-line blocks, and pixel bounding boxes are normalized against the
// page box. Page numbers are assigned by document order, 1-based.
package hocr
