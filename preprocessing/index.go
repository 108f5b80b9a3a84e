package preprocessing

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

type indexEntry struct {
	id   int
	rect rtreego.Rect
}

func (e *indexEntry) Bounds() rtreego.Rect {
	return e.rect
}

// layerIndex is a read-only R-tree over the projected bounds of one layer.
// Each feature computation queries its own indexes, so columns can be scored
// concurrently without sharing mutable state.
type layerIndex struct {
	tree *rtreego.Rtree
}

func newLayerIndex(bounds []orb.Bound) *layerIndex {
	objs := make([]rtreego.Spatial, 0, len(bounds))
	for i, b := range bounds {
		objs = append(objs, &indexEntry{id: i, rect: boundRect(b)})
	}
	return &layerIndex{tree: rtreego.NewTree(2, 25, 50, objs...)}
}

// search returns the ids whose bounds intersect b, in ascending order.
func (x *layerIndex) search(b orb.Bound) []int {
	if x.tree.Size() == 0 {
		return nil
	}
	hits := x.tree.SearchIntersect(boundRect(b))
	ids := make([]int, len(hits))
	for i, h := range hits {
		ids[i] = h.(*indexEntry).id
	}
	sort.Ints(ids)
	return ids
}

func boundRect(b orb.Bound) rtreego.Rect {
	const pad = 1e-6
	w := math.Max(b.Max[0]-b.Min[0], pad)
	h := math.Max(b.Max[1]-b.Min[1], pad)
	rect, err := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{w, h})
	if err != nil {
		panic(err)
	}
	return rect
}

func pointBound(p orb.Point) orb.Bound {
	return orb.Bound{Min: p, Max: p}
}
