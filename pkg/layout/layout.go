// Package layout defines the geometric and textual primitives shared by the
// document provenance system.
//
// The package provides:
//
// - NormBBox: a bounding box normalized to page dimensions, with each
//   coordinate in the range [0, 1]
// - Span: a half-open character offset range into a page text buffer
// - TextBlock: a piece of recognized text at word, line, or block
//   granularity, carrying its bounding box and character span
// - Granularity: the hierarchy level of a TextBlock
//
// All types in this package are immutable value types. A NormBBox is only
// considered valid when x0 <= x1 and top <= bottom; construction through
// NewNormBBox enforces this, and query entry points validate caller-supplied
// boxes with Validate.
package layout
