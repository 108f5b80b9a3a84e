package routing

import (
	"math"

	"github.com/dhconnelly/rtreego"
)

const (
	rtreeMinChildren = 25
	rtreeMaxChildren = 50

	// starting search half-width in degrees, roughly 50 m at mid latitudes
	initialSearchDeg = 0.0005
	maxSearchDeg     = 2.0

	metersPerDegLat = math.Pi * earthRadiusM / 180
)

// edgeEntry is an edge bounding box stored in the R-tree.
type edgeEntry struct {
	index int
	rect  rtreego.Rect
}

func (e *edgeEntry) Bounds() rtreego.Rect {
	return e.rect
}

// EdgeIndex answers nearest-edge queries over a graph's edge geometries.
type EdgeIndex struct {
	tree  *rtreego.Rtree
	edges []*Edge
}

func NewEdgeIndex(g *Graph) *EdgeIndex {
	objs := make([]rtreego.Spatial, 0, len(g.Edges))
	for i, e := range g.Edges {
		objs = append(objs, &edgeEntry{index: i, rect: boundsOf(e.Geometry)})
	}
	return &EdgeIndex{
		tree:  rtreego.NewTree(2, rtreeMinChildren, rtreeMaxChildren, objs...),
		edges: g.Edges,
	}
}

func (x *EdgeIndex) Len() int {
	if x == nil || x.tree == nil {
		return 0
	}
	return x.tree.Size()
}

// Nearest returns the edge closest to p by exact point-to-polyline distance.
// Candidates come from a box search that doubles until the best hit is
// guaranteed to lie inside the searched box. Ties go to the lower edge index.
func (x *EdgeIndex) Nearest(p Coordinate) (int, Projection, bool) {
	if x.Len() == 0 {
		return -1, Projection{}, false
	}

	lonScale := metersPerDegLat * math.Cos(toRadians(p.Lat))
	if lonScale < 1 {
		lonScale = 1
	}

	for r := initialSearchDeg; ; r *= 2 {
		box := searchRect(p, r)
		best := -1
		var bestProj Projection
		for _, hit := range x.tree.SearchIntersect(box) {
			entry := hit.(*edgeEntry)
			proj := ProjectOntoLine(p, x.edges[entry.index].Geometry)
			if best < 0 || proj.Distance < bestProj.Distance ||
				(proj.Distance == bestProj.Distance && entry.index < best) {
				best = entry.index
				bestProj = proj
			}
		}

		// anything outside the box is at least r degrees away on one axis
		radius := r * math.Min(metersPerDegLat, lonScale)
		if best >= 0 && bestProj.Distance <= radius {
			return best, bestProj, true
		}
		if r >= maxSearchDeg {
			if best >= 0 {
				return best, bestProj, true
			}
			return x.scan(p)
		}
	}
}

// scan is the fallback for points far outside the network.
func (x *EdgeIndex) scan(p Coordinate) (int, Projection, bool) {
	best := -1
	var bestProj Projection
	for i, e := range x.edges {
		proj := ProjectOntoLine(p, e.Geometry)
		if best < 0 || proj.Distance < bestProj.Distance {
			best = i
			bestProj = proj
		}
	}
	return best, bestProj, best >= 0
}

func boundsOf(line []Coordinate) rtreego.Rect {
	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)
	for _, c := range line {
		minLon = math.Min(minLon, c.Lon)
		maxLon = math.Max(maxLon, c.Lon)
		minLat = math.Min(minLat, c.Lat)
		maxLat = math.Max(maxLat, c.Lat)
	}
	return mustRect(minLon, minLat, maxLon-minLon, maxLat-minLat)
}

func searchRect(p Coordinate, r float64) rtreego.Rect {
	return mustRect(p.Lon-r, p.Lat-r, 2*r, 2*r)
}

// rtreego rejects zero-length sides, so degenerate boxes get a tiny pad.
func mustRect(x, y, w, h float64) rtreego.Rect {
	const pad = 1e-9
	rect, err := rtreego.NewRect(rtreego.Point{x, y}, []float64{math.Max(w, pad), math.Max(h, pad)})
	if err != nil {
		panic(err)
	}
	return rect
}
