package layout

import (
	"errors"
	"fmt"
)

// ErrInvalidGeometry indicates a bounding box whose coordinates are out of
// range or inverted (x1 < x0 or bottom < top).
var ErrInvalidGeometry = errors.New("invalid geometry")

// NormBBox represents a bounding box normalized to the page size,
// with each value in the range [0, 1]
type NormBBox struct {
	X0     float64 // Left coordinate
	Top    float64 // Top coordinate
	X1     float64 // Right coordinate
	Bottom float64 // Bottom coordinate
}

// NewNormBBox creates a normalized bounding box and validates it.
// The coordinates follow reading conventions: (X0, Top) is the top-left
// corner and (X1, Bottom) is the bottom-right corner.
func NewNormBBox(x0, top, x1, bottom float64) (NormBBox, error) {
	b := NormBBox{X0: x0, Top: top, X1: x1, Bottom: bottom}
	if err := b.Validate(); err != nil {
		return NormBBox{}, err
	}
	return b, nil
}

// Validate checks the bounding box invariants: x0 <= x1, top <= bottom,
// and every coordinate within [0, 1].
func (b NormBBox) Validate() error {
	if b.X1 < b.X0 {
		return fmt.Errorf("%w: x1 (%v) < x0 (%v)", ErrInvalidGeometry, b.X1, b.X0)
	}
	if b.Bottom < b.Top {
		return fmt.Errorf("%w: bottom (%v) < top (%v)", ErrInvalidGeometry, b.Bottom, b.Top)
	}
	for _, v := range [4]float64{b.X0, b.Top, b.X1, b.Bottom} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: coordinate %v outside [0, 1]", ErrInvalidGeometry, v)
		}
	}
	return nil
}

// Width returns the horizontal extent of the box
func (b NormBBox) Width() float64 { return b.X1 - b.X0 }

// Height returns the vertical extent of the box
func (b NormBBox) Height() float64 { return b.Bottom - b.Top }

// Area returns the area of the box
func (b NormBBox) Area() float64 { return b.Width() * b.Height() }

// Centroid returns the center point of the box
func (b NormBBox) Centroid() (x, y float64) {
	return (b.X0 + b.X1) / 2, (b.Top + b.Bottom) / 2
}

// IntersectionArea computes the area of overlap between two bounding boxes.
// Boxes that only touch at an edge or corner have zero intersection.
func (b NormBBox) IntersectionArea(other NormBBox) float64 {
	x0 := max(b.X0, other.X0)
	x1 := min(b.X1, other.X1)
	if x0 >= x1 {
		return 0
	}
	top := max(b.Top, other.Top)
	bottom := min(b.Bottom, other.Bottom)
	if top >= bottom {
		return 0
	}
	return (x1 - x0) * (bottom - top)
}

// Union returns the smallest bounding box containing both boxes
func (b NormBBox) Union(other NormBBox) NormBBox {
	return NormBBox{
		X0:     min(b.X0, other.X0),
		Top:    min(b.Top, other.Top),
		X1:     max(b.X1, other.X1),
		Bottom: max(b.Bottom, other.Bottom),
	}
}

// IoU computes the intersection-over-union of two bounding boxes,
// a measure of overlap in [0, 1].
func (b NormBBox) IoU(other NormBBox) float64 {
	inter := b.IntersectionArea(other)
	if inter == 0 {
		return 0
	}
	union := b.Area() + other.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Combine merges multiple bounding boxes into a single enclosing box
func Combine(boxes ...NormBBox) (NormBBox, error) {
	if len(boxes) == 0 {
		return NormBBox{}, fmt.Errorf("%w: no bounding boxes to combine", ErrInvalidGeometry)
	}
	working := boxes[0]
	for _, b := range boxes[1:] {
		working = working.Union(b)
	}
	return working, nil
}
