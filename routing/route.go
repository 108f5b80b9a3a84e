package routing

import "fmt"

// Route is a walk from a raw start point to a raw destination point.
type Route struct {
	Points []Coordinate // raw start, start projection, node chain, destination projection, raw destination
	Nodes  []int64
	Length float64 // meters
}

// FindRoute snaps both query points onto the network and searches between the
// closest pair of edge endpoints under the weights implied by tags.
//
// Length counts the two query-to-projection legs plus the graph hops; the
// projection-to-node stretches are drawn in Points but not counted.
func (s *Snapshot) FindRoute(start, finish Coordinate, tags []Tag) (*Route, error) {
	if !start.Valid() {
		return nil, fmt.Errorf("start %v: %w", start, ErrInput)
	}
	if !finish.Valid() {
		return nil, fmt.Errorf("finish %v: %w", finish, ErrInput)
	}

	startSnap, err := s.Snap(start)
	if err != nil {
		return nil, err
	}
	destSnap, err := s.Snap(finish)
	if err != nil {
		return nil, err
	}

	from, to, err := s.SelectEndpoints(startSnap, destSnap)
	if err != nil {
		return nil, err
	}

	nodes, err := s.AStar(from, to, NewWeightVector(tags))
	if err != nil {
		return nil, err
	}

	length := HaversineDistance(finish, destSnap.Projected)
	for i := 0; i < len(nodes)-1; i++ {
		hop, err := s.Weights.EdgeCost(nodes[i], nodes[i+1], LengthOnly)
		if err != nil {
			return nil, err
		}
		length += hop
	}
	length += HaversineDistance(startSnap.Projected, start)

	points := make([]Coordinate, 0, len(nodes)+4)
	points = append(points, start, startSnap.Projected)
	for _, id := range nodes {
		c, ok := s.Coords.CoordinateOf(id)
		if !ok {
			return nil, fmt.Errorf("path node %d has no coordinate: %w", id, ErrInternal)
		}
		points = append(points, c)
	}
	points = append(points, destSnap.Projected, finish)

	return &Route{Points: points, Nodes: nodes, Length: length}, nil
}
