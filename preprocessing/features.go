package preprocessing

import (
	"context"
	"math"
	"runtime"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"golang.org/x/sync/errgroup"
)

const (
	bufferRadiusM  = 50.0
	trafficRadiusM = 5.0
	aqiRadiusM     = 500.0

	waterNearM = 25.0
	waterMidM  = 150.0
	waterFarM  = 300.0

	waterNearPoints = 5
	waterMidPoints  = 3
	waterFarPoints  = 1

	defaultGridCellM = 5.0
)

// polygonLayer holds projected polygons and their R-tree.
type polygonLayer struct {
	polys []orb.Polygon
	index *layerIndex
}

func (s *Scorer) newPolygonLayer(polys []orb.Polygon) *polygonLayer {
	projected := make([]orb.Polygon, len(polys))
	bounds := make([]orb.Bound, len(polys))
	for i, p := range polys {
		projected[i] = s.proj.Polygon(p)
		bounds[i] = projected[i].Bound()
	}
	return &polygonLayer{polys: projected, index: newLayerIndex(bounds)}
}

func (l *polygonLayer) contains(pt orb.Point, candidates []int) bool {
	for _, id := range candidates {
		if l.polys[id].Bound().Contains(pt) && planar.PolygonContains(l.polys[id], pt) {
			return true
		}
	}
	return false
}

type pointLayer struct {
	points []orb.Point
	values []float64
	index  *layerIndex
}

func (s *Scorer) newPointLayer(points []orb.Point, values []float64) *pointLayer {
	projected := make([]orb.Point, len(points))
	bounds := make([]orb.Bound, len(points))
	for i, p := range points {
		projected[i] = s.proj.Point(p)
		bounds[i] = pointBound(projected[i])
	}
	return &pointLayer{points: projected, values: values, index: newLayerIndex(bounds)}
}

type lineLayer struct {
	lines  []orb.LineString
	values []float64
	index  *layerIndex
}

func (s *Scorer) newLineLayer(jams []JamSegment) *lineLayer {
	l := &lineLayer{
		lines:  make([]orb.LineString, len(jams)),
		values: make([]float64, len(jams)),
	}
	bounds := make([]orb.Bound, len(jams))
	for i, j := range jams {
		l.lines[i] = s.proj.LineString(j.Line)
		l.values[i] = j.Level
		bounds[i] = l.lines[i].Bound()
	}
	l.index = newLayerIndex(bounds)
	return l
}

// forEachEdge runs fn for every edge index across GOMAXPROCS workers.
func (s *Scorer) forEachEdge(ctx context.Context, fn func(i int)) error {
	n := len(s.lines)
	workers := runtime.GOMAXPROCS(0)
	chunk := (n + workers - 1) / workers
	if chunk == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < n; start += chunk {
		start, end := start, min(start+chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%256 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				fn(i)
			}
			return nil
		})
	}
	return g.Wait()
}

// treeVsUrban is green minus urban coverage of the 50 m edge buffer, in
// percent of buffer area. Areas come from grid sampling: a cell counts once
// per layer no matter how many polygons overlap it.
func (s *Scorer) treeVsUrban(ctx context.Context, green, urban *polygonLayer) ([]float64, error) {
	out := make([]float64, len(s.lines))
	cell := s.settings.GridCellM
	if cell <= 0 {
		cell = defaultGridCellM
	}

	err := s.forEachEdge(ctx, func(i int) {
		line := s.lines[i]
		bound := line.Bound().Pad(bufferRadiusM)
		greenCands := green.index.search(bound)
		urbanCands := urban.index.search(bound)

		var total, inGreen, inUrban int
		for x := math.Floor(bound.Min[0]/cell)*cell + cell/2; x <= bound.Max[0]; x += cell {
			for y := math.Floor(bound.Min[1]/cell)*cell + cell/2; y <= bound.Max[1]; y += cell {
				pt := orb.Point{x, y}
				if distanceToLine(line, pt) > bufferRadiusM {
					continue
				}
				total++
				if len(greenCands) > 0 && green.contains(pt, greenCands) {
					inGreen++
				}
				if len(urbanCands) > 0 && urban.contains(pt, urbanCands) {
					inUrban++
				}
			}
		}
		if total > 0 {
			out[i] = float64(inGreen-inUrban) / float64(total) * 100
		}
	})
	return out, err
}

// treeCover is the percentage of edge length inside green polygons. Each
// segment is split at every polygon boundary crossing and the pieces are
// classified by their midpoints.
func (s *Scorer) treeCover(ctx context.Context, green *polygonLayer) ([]float64, error) {
	out := make([]float64, len(s.lines))

	err := s.forEachEdge(ctx, func(i int) {
		line := s.lines[i]
		cands := green.index.search(line.Bound())
		if len(cands) == 0 {
			return
		}

		var total, inside float64
		for k := 0; k < len(line)-1; k++ {
			a, b := line[k], line[k+1]
			segLen := planar.Distance(a, b)
			if segLen == 0 {
				continue
			}
			total += segLen

			cuts := []float64{0, 1}
			for _, id := range cands {
				for _, ring := range green.polys[id] {
					cuts = appendRingCrossings(cuts, a, b, ring)
				}
			}
			sort.Float64s(cuts)

			for c := 0; c < len(cuts)-1; c++ {
				t0, t1 := cuts[c], cuts[c+1]
				if t1 <= t0 {
					continue
				}
				tm := (t0 + t1) / 2
				mid := orb.Point{a[0] + tm*(b[0]-a[0]), a[1] + tm*(b[1]-a[1])}
				if green.contains(mid, cands) {
					inside += (t1 - t0) * segLen
				}
			}
		}
		if total > 0 {
			out[i] = inside / total * 100
		}
	})
	return out, err
}

func appendRingCrossings(cuts []float64, a, b orb.Point, ring orb.Ring) []float64 {
	n := len(ring)
	if n < 2 {
		return cuts
	}
	for k := 0; k < n; k++ {
		p, q := ring[k], ring[(k+1)%n]
		if p == q {
			continue
		}
		if t, ok := segmentIntersection(a, b, p, q); ok {
			cuts = append(cuts, t)
		}
	}
	return cuts
}

// waterProximity scores nearby water points: 5 within 25 m, 3 within 150 m,
// 1 within 300 m. A point only counts at its closest tier.
func (s *Scorer) waterProximity(ctx context.Context, water *pointLayer) ([]float64, error) {
	out := make([]float64, len(s.lines))

	err := s.forEachEdge(ctx, func(i int) {
		line := s.lines[i]
		score := 0
		for _, id := range water.index.search(line.Bound().Pad(waterFarM)) {
			switch d := distanceToLine(line, water.points[id]); {
			case d <= waterNearM:
				score += waterNearPoints
			case d <= waterMidM:
				score += waterMidPoints
			case d <= waterFarM:
				score += waterFarPoints
			}
		}
		out[i] = float64(score)
	})
	return out, err
}

// trafficLevel is the mean jam level of jam lines within 5 m of the edge.
func (s *Scorer) trafficLevel(ctx context.Context, jams *lineLayer) ([]float64, error) {
	out := make([]float64, len(s.lines))

	err := s.forEachEdge(ctx, func(i int) {
		line := s.lines[i]
		var sum float64
		var n int
		for _, id := range jams.index.search(line.Bound().Pad(trafficRadiusM)) {
			if lineDistance(line, jams.lines[id]) <= trafficRadiusM {
				sum += jams.values[id]
				n++
			}
		}
		if n > 0 {
			out[i] = sum / float64(n)
		}
	})
	return out, err
}

// airQuality is the mean AQI of samples within 500 m of the edge.
func (s *Scorer) airQuality(ctx context.Context, samples *pointLayer) ([]float64, error) {
	out := make([]float64, len(s.lines))

	err := s.forEachEdge(ctx, func(i int) {
		line := s.lines[i]
		var sum float64
		var n int
		for _, id := range samples.index.search(line.Bound().Pad(aqiRadiusM)) {
			if distanceToLine(line, samples.points[id]) <= aqiRadiusM {
				sum += samples.values[id]
				n++
			}
		}
		if n > 0 {
			out[i] = sum / float64(n)
		}
	})
	return out, err
}
