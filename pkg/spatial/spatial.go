// Package spatial indexes text block bounding boxes for per-page geometric
// queries: k-nearest blocks and overlapping blocks.
//
// One Index covers a single page and holds an R-tree per granularity,
// bulk-loaded at construction. Distance between boxes is the Euclidean
// distance between their centroids, or 0 when the boxes overlap. Queries are
// read-only and safe for concurrent use.
package spatial

import (
	"math"
	"sort"

	"github.com/tidwall/rtree"

	"github.com/docprov/docprov/pkg/layout"
)

// Index holds the spatial indexes for one page, one tree per granularity
type Index struct {
	trees map[layout.Granularity]*granularityIndex
}

type granularityIndex struct {
	tree   rtree.RTreeG[int]
	blocks []layout.TextBlock
}

// NewIndex builds the spatial indexes for a page from its three granularity
// block arrays. The slices are referenced, not copied; they must not be
// mutated afterwards.
func NewIndex(words, lines, blocks []layout.TextBlock) *Index {
	idx := &Index{trees: make(map[layout.Granularity]*granularityIndex, 3)}
	idx.trees[layout.GranularityWord] = newGranularityIndex(words)
	idx.trees[layout.GranularityLine] = newGranularityIndex(lines)
	idx.trees[layout.GranularityBlock] = newGranularityIndex(blocks)
	return idx
}

func newGranularityIndex(blocks []layout.TextBlock) *granularityIndex {
	gi := &granularityIndex{blocks: blocks}
	for i, b := range blocks {
		gi.tree.Insert(boxMin(b.BBox), boxMax(b.BBox), i)
	}
	return gi
}

// KNearest returns the k blocks at the given granularity closest to the
// query box, sorted by non-decreasing distance with ties broken by reading
// order. Fewer than k blocks on the page yields all of them.
func (x *Index) KNearest(bbox layout.NormBBox, k int, granularity layout.Granularity) ([]layout.TextBlock, error) {
	if err := bbox.Validate(); err != nil {
		return nil, err
	}
	gi := x.at(granularity)
	if k <= 0 || len(gi.blocks) == 0 {
		return nil, nil
	}

	type candidate struct {
		idx  int
		dist float64
	}
	var candidates []candidate
	ranked := make([]float64, 0, k) // k smallest centroid distances so far, sorted

	algo := rtree.BoxDist[float64, int](boxMin(bbox), boxMax(bbox), nil)
	gi.tree.Nearby(algo, func(min, max [2]float64, data int, boxDist float64) bool {
		// Items arrive in ascending box distance, which lower-bounds the
		// centroid distance; once k candidates sit at or below the current
		// box distance, nothing later can displace them.
		if len(ranked) == k && boxDist > ranked[k-1] {
			return false
		}
		d := centroidDistance(bbox, gi.blocks[data].BBox)
		pos := sort.SearchFloat64s(ranked, d)
		if pos < k {
			ranked = append(ranked, 0)
			copy(ranked[pos+1:], ranked[pos:])
			ranked[pos] = d
			if len(ranked) > k {
				ranked = ranked[:k]
			}
		}
		candidates = append(candidates, candidate{idx: data, dist: d})
		return true
	})

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return gi.blocks[candidates[i].idx].Span.Start < gi.blocks[candidates[j].idx].Span.Start
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	result := make([]layout.TextBlock, len(candidates))
	for i, c := range candidates {
		result[i] = gi.blocks[c.idx]
	}
	return result, nil
}

// Overlapping returns every block at the given granularity whose bounding
// box has nonzero intersection with the query box, in reading order.
func (x *Index) Overlapping(bbox layout.NormBBox, granularity layout.Granularity) ([]layout.TextBlock, error) {
	if err := bbox.Validate(); err != nil {
		return nil, err
	}
	gi := x.at(granularity)

	var indices []int
	gi.tree.Search(boxMin(bbox), boxMax(bbox), func(min, max [2]float64, data int) bool {
		// The tree reports edge-touching boxes too; keep strict overlap only
		if bbox.IntersectionArea(gi.blocks[data].BBox) > 0 {
			indices = append(indices, data)
		}
		return true
	})

	sort.Slice(indices, func(i, j int) bool {
		return gi.blocks[indices[i]].Span.Start < gi.blocks[indices[j]].Span.Start
	})

	result := make([]layout.TextBlock, len(indices))
	for i, idx := range indices {
		result[i] = gi.blocks[idx]
	}
	return result, nil
}

func (x *Index) at(granularity layout.Granularity) *granularityIndex {
	if gi, ok := x.trees[granularity]; ok {
		return gi
	}
	return x.trees[layout.GranularityBlock]
}

// centroidDistance is the distance measure for nearest queries: zero when
// the boxes overlap, Euclidean distance between centroids otherwise
func centroidDistance(a, b layout.NormBBox) float64 {
	if a.IntersectionArea(b) > 0 {
		return 0
	}
	ax, ay := a.Centroid()
	bx, by := b.Centroid()
	return math.Hypot(ax-bx, ay-by)
}

func boxMin(b layout.NormBBox) [2]float64 { return [2]float64{b.X0, b.Top} }
func boxMax(b layout.NormBBox) [2]float64 { return [2]float64{b.X1, b.Bottom} }
