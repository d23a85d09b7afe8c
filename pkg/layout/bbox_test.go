package layout

import (
	"errors"
	"math"
	"testing"
)

func TestNewNormBBoxValid(t *testing.T) {
	b, err := NewNormBBox(0.1, 0.2, 0.5, 0.6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(b.Width()-0.4) > 1e-12 {
		t.Errorf("expected width 0.4, got %v", b.Width())
	}
	if math.Abs(b.Height()-0.4) > 1e-12 {
		t.Errorf("expected height 0.4, got %v", b.Height())
	}
}

func TestNewNormBBoxInverted(t *testing.T) {
	_, err := NewNormBBox(0.1, 0.1, 0.05, 0.2)
	if err == nil {
		t.Fatal("expected error for x1 < x0")
	}
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("expected ErrInvalidGeometry, got %v", err)
	}

	_, err = NewNormBBox(0.1, 0.5, 0.2, 0.3)
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("expected ErrInvalidGeometry for bottom < top, got %v", err)
	}
}

func TestNewNormBBoxOutOfRange(t *testing.T) {
	_, err := NewNormBBox(-0.1, 0.0, 0.5, 0.5)
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("expected ErrInvalidGeometry for negative coordinate, got %v", err)
	}
	_, err = NewNormBBox(0.0, 0.0, 1.5, 0.5)
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("expected ErrInvalidGeometry for coordinate > 1, got %v", err)
	}
}

func TestIntersectionArea(t *testing.T) {
	a := NormBBox{X0: 0.0, Top: 0.0, X1: 0.5, Bottom: 0.5}
	b := NormBBox{X0: 0.25, Top: 0.25, X1: 0.75, Bottom: 0.75}

	got := a.IntersectionArea(b)
	if math.Abs(got-0.0625) > 1e-12 {
		t.Errorf("expected intersection 0.0625, got %v", got)
	}

	// Edge-touching boxes do not intersect
	c := NormBBox{X0: 0.5, Top: 0.0, X1: 1.0, Bottom: 0.5}
	if a.IntersectionArea(c) != 0 {
		t.Errorf("expected zero intersection for edge-touching boxes")
	}

	// Disjoint boxes
	d := NormBBox{X0: 0.8, Top: 0.8, X1: 0.9, Bottom: 0.9}
	if a.IntersectionArea(d) != 0 {
		t.Errorf("expected zero intersection for disjoint boxes")
	}
}

func TestIoU(t *testing.T) {
	a := NormBBox{X0: 0.0, Top: 0.0, X1: 0.5, Bottom: 0.5}
	if got := a.IoU(a); math.Abs(got-1.0) > 1e-12 {
		t.Errorf("expected IoU 1.0 for identical boxes, got %v", got)
	}

	b := NormBBox{X0: 0.6, Top: 0.6, X1: 0.8, Bottom: 0.8}
	if got := a.IoU(b); got != 0 {
		t.Errorf("expected IoU 0 for disjoint boxes, got %v", got)
	}
}

func TestUnionAndCombine(t *testing.T) {
	a := NormBBox{X0: 0.1, Top: 0.1, X1: 0.3, Bottom: 0.2}
	b := NormBBox{X0: 0.4, Top: 0.05, X1: 0.6, Bottom: 0.25}

	union := a.Union(b)
	want := NormBBox{X0: 0.1, Top: 0.05, X1: 0.6, Bottom: 0.25}
	if union != want {
		t.Errorf("expected union %+v, got %+v", want, union)
	}

	combined, err := Combine(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if combined != want {
		t.Errorf("expected combine %+v, got %+v", want, combined)
	}

	if _, err := Combine(); err == nil {
		t.Error("expected error combining zero boxes")
	}
}

func TestCentroid(t *testing.T) {
	b := NormBBox{X0: 0.2, Top: 0.4, X1: 0.4, Bottom: 0.8}
	x, y := b.Centroid()
	if math.Abs(x-0.3) > 1e-12 || math.Abs(y-0.6) > 1e-12 {
		t.Errorf("expected centroid (0.3, 0.6), got (%v, %v)", x, y)
	}
}

func TestSpan(t *testing.T) {
	s := Span{Start: 5, End: 10}
	if s.Len() != 5 {
		t.Errorf("expected length 5, got %d", s.Len())
	}
	if !s.Contains(Span{Start: 6, End: 9}) {
		t.Error("expected containment")
	}
	if s.Contains(Span{Start: 4, End: 9}) {
		t.Error("unexpected containment")
	}
	if !s.Overlaps(Span{Start: 9, End: 12}) {
		t.Error("expected overlap")
	}
	if s.Overlaps(Span{Start: 10, End: 12}) {
		t.Error("adjacent spans must not overlap")
	}
}

func TestGranularityValid(t *testing.T) {
	for _, g := range []Granularity{GranularityWord, GranularityLine, GranularityBlock} {
		if !g.Valid() {
			t.Errorf("expected %q to be valid", g)
		}
	}
	if Granularity("paragraph").Valid() {
		t.Error("expected unknown granularity to be invalid")
	}
}
