package routing

import "math"

const (
	EARTH_RADIUS_KM = 6371.0
	earthRadiusM    = EARTH_RADIUS_KM * 1000
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether c is a finite WGS84 coordinate.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// HaversineDistance returns the great-circle distance between two coordinates in meters.
func HaversineDistance(coord1, coord2 Coordinate) float64 {
	phi1 := toRadians(coord1.Lat)
	phi2 := toRadians(coord2.Lat)
	deltaPhi := toRadians(coord2.Lat - coord1.Lat)
	deltaLambda := toRadians(coord2.Lon - coord1.Lon)

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// planarOffset returns the equirectangular offset of c from origin in meters.
// Accurate enough at street scale, which is all the projection code needs.
func planarOffset(origin, c Coordinate) (x, y float64) {
	x = toRadians(c.Lon-origin.Lon) * math.Cos(toRadians(origin.Lat)) * earthRadiusM
	y = toRadians(c.Lat-origin.Lat) * earthRadiusM
	return x, y
}

// Projection is the closest point on a polyline to some query point.
type Projection struct {
	Point    Coordinate
	Fraction float64 // 0 at the first vertex, 1 at the last
	Distance float64 // meters between the query point and Point
}

// ProjectOntoLine orthogonally projects p onto the polyline and returns the
// closest point together with its normalized position along the line.
func ProjectOntoLine(p Coordinate, line []Coordinate) Projection {
	switch len(line) {
	case 0:
		return Projection{Point: p, Fraction: 0, Distance: 0}
	case 1:
		return Projection{Point: line[0], Fraction: 0, Distance: HaversineDistance(p, line[0])}
	}

	total := 0.0
	bestAlong := 0.0
	bestSq := math.Inf(1)
	best := line[0]

	for i := 0; i < len(line)-1; i++ {
		a, b := line[i], line[i+1]
		ax, ay := planarOffset(p, a)
		bx, by := planarOffset(p, b)
		dx, dy := bx-ax, by-ay
		segLen := math.Hypot(dx, dy)

		t := 0.0
		if segLen > 0 {
			// query point is the origin of the local frame
			t = -(ax*dx + ay*dy) / (segLen * segLen)
			t = math.Max(0, math.Min(1, t))
		}
		px, py := ax+t*dx, ay+t*dy
		if d := px*px + py*py; d < bestSq {
			bestSq = d
			bestAlong = total + t*segLen
			best = Coordinate{
				Lat: a.Lat + t*(b.Lat-a.Lat),
				Lon: a.Lon + t*(b.Lon-a.Lon),
			}
		}
		total += segLen
	}

	fraction := 0.0
	if total > 0 {
		fraction = bestAlong / total
	}
	return Projection{Point: best, Fraction: fraction, Distance: HaversineDistance(p, best)}
}

// interpolateLine returns the point at the given normalized position along the polyline.
func interpolateLine(line []Coordinate, fraction float64) Coordinate {
	if len(line) == 0 {
		return Coordinate{}
	}
	if len(line) == 1 || fraction <= 0 {
		return line[0]
	}
	if fraction >= 1 {
		return line[len(line)-1]
	}

	origin := line[0]
	lengths := make([]float64, len(line)-1)
	total := 0.0
	for i := 0; i < len(line)-1; i++ {
		ax, ay := planarOffset(origin, line[i])
		bx, by := planarOffset(origin, line[i+1])
		lengths[i] = math.Hypot(bx-ax, by-ay)
		total += lengths[i]
	}
	if total == 0 {
		return line[0]
	}

	target := fraction * total
	for i, segLen := range lengths {
		if target <= segLen && segLen > 0 {
			t := target / segLen
			a, b := line[i], line[i+1]
			return Coordinate{Lat: a.Lat + t*(b.Lat-a.Lat), Lon: a.Lon + t*(b.Lon-a.Lon)}
		}
		target -= segLen
	}
	return line[len(line)-1]
}

// LineLength sums the haversine lengths of consecutive vertices.
func LineLength(line []Coordinate) float64 {
	total := 0.0
	for i := 0; i < len(line)-1; i++ {
		total += HaversineDistance(line[i], line[i+1])
	}
	return total
}
