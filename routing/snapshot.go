package routing

import "time"

// Snapshot is an immutable routing state. Searches keep the pointer they
// started with; a refresh publishes a new Snapshot instead of mutating this one.
type Snapshot struct {
	Version int64
	BuiltAt time.Time

	Graph   *Graph
	Weights *WeightTable
	Coords  *CoordinateIndex
	Edges   *EdgeIndex
}

// NewSnapshot assembles a Snapshot from already built parts.
func NewSnapshot(version int64, g *Graph, weights *WeightTable, coords *CoordinateIndex, edges *EdgeIndex) *Snapshot {
	return &Snapshot{
		Version: version,
		BuiltAt: time.Now().UTC(),
		Graph:   g,
		Weights: weights,
		Coords:  coords,
		Edges:   edges,
	}
}

// NodeCount and EdgeCount are nil-safe for status reporting.
func (s *Snapshot) NodeCount() int {
	if s == nil || s.Graph == nil {
		return 0
	}
	return len(s.Graph.Nodes)
}

func (s *Snapshot) EdgeCount() int {
	if s == nil || s.Graph == nil {
		return 0
	}
	return len(s.Graph.Edges)
}

// Assemble builds the derived indexes for g and wraps everything in a Snapshot.
func Assemble(version int64, g *Graph, weights *WeightTable) *Snapshot {
	return NewSnapshot(version, g, weights, NewCoordinateIndex(g), NewEdgeIndex(g))
}
