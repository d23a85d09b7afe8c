// Package provenance locates text fragments within a scanned document,
// mapping them back to their exact page, bounding box, and source blocks.
//
// This package provides:
//
// - A Locator built from per-page OCR results that answers text and
//   geometry queries against an immutable index snapshot
// - Exact and fuzzy full-text search returning scored Sources with
//   merged bounding boxes, optionally refined to word level
// - N-best selection over search results by text length or score
// - Per-page spatial queries: k-nearest and overlapping blocks
//
// Key Types:
//
// - Locator: owns the search, span, and spatial indexes for one document
// - Source: one search hit with its page, score, and source blocks
// - TextLocation: the block-level location detail inside a Source
//
// Lifecycle:
//
// A Locator starts unbuilt; queries fail with ErrNotBuilt until Build
// succeeds. Build and Refresh construct a complete new snapshot off to the
// side and atomically swap it in, so concurrent readers always observe
// either the fully-old or fully-new index, never a mix. All query methods
// are safe for concurrent use.
package provenance
