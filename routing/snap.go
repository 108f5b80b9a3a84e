package routing

import "fmt"

// SnapResult is a query point pinned onto its nearest edge.
type SnapResult struct {
	Query     Coordinate
	Edge      *Edge
	EdgeIndex int
	Projected Coordinate
	Fraction  float64 // 0 at Edge.FromID, 1 at Edge.ToID
	Distance  float64 // meters from Query to Projected
}

// Snap finds the nearest edge to p and projects p onto it.
func (s *Snapshot) Snap(p Coordinate) (SnapResult, error) {
	if s == nil || s.Edges.Len() == 0 {
		return SnapResult{}, fmt.Errorf("snap %.6f,%.6f: spatial index is empty: %w", p.Lat, p.Lon, ErrNotFound)
	}
	idx, proj, ok := s.Edges.Nearest(p)
	if !ok {
		return SnapResult{}, fmt.Errorf("snap %.6f,%.6f: no edge found: %w", p.Lat, p.Lon, ErrNotFound)
	}
	return SnapResult{
		Query:     p,
		Edge:      s.Graph.Edges[idx],
		EdgeIndex: idx,
		Projected: proj.Point,
		Fraction:  proj.Fraction,
		Distance:  proj.Distance,
	}, nil
}

// SelectEndpoints picks the search start and goal nodes among the endpoints of
// the two snapped edges, minimizing the straight-line distance between them.
// Ties keep the first pair in (sU,dU), (sU,dV), (sV,dU), (sV,dV) order.
func (s *Snapshot) SelectEndpoints(start, dest SnapResult) (int64, int64, error) {
	starts := [2]int64{start.Edge.FromID, start.Edge.ToID}
	dests := [2]int64{dest.Edge.FromID, dest.Edge.ToID}

	var bestStart, bestGoal int64
	best := -1.0
	for _, su := range starts {
		sc, ok := s.Coords.CoordinateOf(su)
		if !ok {
			return 0, 0, fmt.Errorf("node %d missing from coordinate index: %w", su, ErrInternal)
		}
		for _, du := range dests {
			dc, ok := s.Coords.CoordinateOf(du)
			if !ok {
				return 0, 0, fmt.Errorf("node %d missing from coordinate index: %w", du, ErrInternal)
			}
			if d := HaversineDistance(sc, dc); best < 0 || d < best {
				best = d
				bestStart, bestGoal = su, du
			}
		}
	}
	return bestStart, bestGoal, nil
}
