package preprocessing

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const earthRadiusM = 6371000.0

// Projector maps lon/lat onto a local equirectangular plane in meters,
// centred on the network bounding box. Distortion stays well under a percent
// across a city.
type Projector struct {
	originLon float64
	originLat float64
	cosLat    float64
}

func NewProjector(bound orb.Bound) Projector {
	c := bound.Center()
	return Projector{
		originLon: c.Lon(),
		originLat: c.Lat(),
		cosLat:    math.Cos(c.Lat() * math.Pi / 180),
	}
}

func (p Projector) Point(pt orb.Point) orb.Point {
	x := (pt.Lon() - p.originLon) * math.Pi / 180 * p.cosLat * earthRadiusM
	y := (pt.Lat() - p.originLat) * math.Pi / 180 * earthRadiusM
	return orb.Point{x, y}
}

func (p Projector) LineString(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, pt := range ls {
		out[i] = p.Point(pt)
	}
	return out
}

func (p Projector) Ring(r orb.Ring) orb.Ring {
	out := make(orb.Ring, len(r))
	for i, pt := range r {
		out[i] = p.Point(pt)
	}
	return out
}

func (p Projector) Polygon(poly orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, len(poly))
	for i, r := range poly {
		out[i] = p.Ring(r)
	}
	return out
}

// distanceToLine is the planar distance from pt to the nearest segment of ls.
func distanceToLine(ls orb.LineString, pt orb.Point) float64 {
	if len(ls) == 1 {
		return planar.Distance(ls[0], pt)
	}
	best := math.Inf(1)
	for i := 0; i < len(ls)-1; i++ {
		if d := planar.DistanceFromSegment(ls[i], ls[i+1], pt); d < best {
			best = d
		}
	}
	return best
}

// lineDistance is the minimum planar distance between two polylines.
func lineDistance(a, b orb.LineString) float64 {
	best := math.Inf(1)
	for i := 0; i < len(a)-1; i++ {
		for j := 0; j < len(b)-1; j++ {
			if d := segmentDistance(a[i], a[i+1], b[j], b[j+1]); d < best {
				best = d
			}
		}
	}
	if len(a) == 1 || len(b) == 1 {
		for _, p := range a {
			best = math.Min(best, distanceToLine(b, p))
		}
		for _, p := range b {
			best = math.Min(best, distanceToLine(a, p))
		}
	}
	return best
}

func segmentDistance(a1, a2, b1, b2 orb.Point) float64 {
	if _, ok := segmentIntersection(a1, a2, b1, b2); ok {
		return 0
	}
	return math.Min(
		math.Min(planar.DistanceFromSegment(b1, b2, a1), planar.DistanceFromSegment(b1, b2, a2)),
		math.Min(planar.DistanceFromSegment(a1, a2, b1), planar.DistanceFromSegment(a1, a2, b2)),
	)
}

// segmentIntersection returns the parameter t along a1->a2 where it crosses
// b1->b2. Collinear overlaps report no crossing.
func segmentIntersection(a1, a2, b1, b2 orb.Point) (float64, bool) {
	rx, ry := a2[0]-a1[0], a2[1]-a1[1]
	sx, sy := b2[0]-b1[0], b2[1]-b1[1]
	denom := rx*sy - ry*sx
	if denom == 0 {
		return 0, false
	}
	qx, qy := b1[0]-a1[0], b1[1]-a1[1]
	t := (qx*sy - qy*sx) / denom
	u := (qx*ry - qy*rx) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}
