package routing

import "fmt"

// Node represents a vertex in the street network
type Node struct {
	ID        int64   // Unique identifier for the node
	Latitude  float64 // Geographic latitude in degrees
	Longitude float64 // Geographic longitude in degrees
}

func (n *Node) Coordinate() Coordinate {
	return Coordinate{Lat: n.Latitude, Lon: n.Longitude}
}

// EdgeKey identifies an edge by its stored orientation.
type EdgeKey struct {
	U int64
	V int64
}

func (k EdgeKey) Reverse() EdgeKey {
	return EdgeKey{U: k.V, V: k.U}
}

// unordered returns the key with the smaller id first.
func (k EdgeKey) unordered() EdgeKey {
	if k.U > k.V {
		return k.Reverse()
	}
	return k
}

// Edge is a walkable street segment. The network is undirected, FromID/ToID
// only record the orientation the geometry is stored in.
type Edge struct {
	FromID      int64        // ID of the starting node
	ToID        int64        // ID of the ending node
	ParallelKey int          // multigraph key from the source network
	Length      float64      // Distance in meters
	Geometry    []Coordinate // From -> To, at least two points
}

func (e *Edge) Key() EdgeKey {
	return EdgeKey{U: e.FromID, V: e.ToID}
}

// Graph is an undirected street network with at most one edge per node pair.
type Graph struct {
	Nodes     map[int64]*Node   // Map of node IDs to node objects
	Edges     []*Edge           // Surviving edges in file order
	Adjacency map[int64][]int64 // Map of node IDs to neighbor IDs, edge order

	byPair map[EdgeKey]int
}

func NewGraph() *Graph {
	return &Graph{
		Nodes:     make(map[int64]*Node),
		Adjacency: make(map[int64][]int64),
		byPair:    make(map[EdgeKey]int),
	}
}

func (g *Graph) AddNode(n *Node) {
	g.Nodes[n.ID] = n
}

// AddEdge inserts e, collapsing parallel edges between the same unordered
// node pair to the longest one. On equal lengths the edge seen first stays.
// Self-loops are dropped since they never shorten a walk.
func (g *Graph) AddEdge(e *Edge) error {
	from, ok := g.Nodes[e.FromID]
	if !ok {
		return fmt.Errorf("edge %d->%d references unknown node %d: %w", e.FromID, e.ToID, e.FromID, ErrConfiguration)
	}
	to, ok := g.Nodes[e.ToID]
	if !ok {
		return fmt.Errorf("edge %d->%d references unknown node %d: %w", e.FromID, e.ToID, e.ToID, ErrConfiguration)
	}
	if e.FromID == e.ToID {
		return nil
	}
	if len(e.Geometry) < 2 {
		e.Geometry = []Coordinate{from.Coordinate(), to.Coordinate()}
	}
	if e.Length <= 0 {
		e.Length = LineLength(e.Geometry)
	}

	pair := e.Key().unordered()
	if idx, exists := g.byPair[pair]; exists {
		if e.Length > g.Edges[idx].Length {
			g.Edges[idx] = e
		}
		return nil
	}
	g.byPair[pair] = len(g.Edges)
	g.Edges = append(g.Edges, e)
	return nil
}

// Finalize rebuilds the symmetric adjacency from the surviving edges.
func (g *Graph) Finalize() {
	g.Adjacency = make(map[int64][]int64, len(g.Nodes))
	for _, e := range g.Edges {
		g.Adjacency[e.FromID] = append(g.Adjacency[e.FromID], e.ToID)
		g.Adjacency[e.ToID] = append(g.Adjacency[e.ToID], e.FromID)
	}
}

// Edge returns the edge joining u and v in either orientation.
func (g *Graph) Edge(u, v int64) (*Edge, bool) {
	idx, ok := g.byPair[EdgeKey{U: u, V: v}.unordered()]
	if !ok {
		return nil, false
	}
	return g.Edges[idx], true
}

func (g *Graph) Neighbors(id int64) []int64 {
	return g.Adjacency[id]
}

// CoordinateIndex maps coordinates to node ids and back.
type CoordinateIndex struct {
	byCoord   map[Coordinate]int64
	byNode    map[int64]Coordinate
	adjacency map[int64][]int64
}

func NewCoordinateIndex(g *Graph) *CoordinateIndex {
	idx := &CoordinateIndex{
		byCoord:   make(map[Coordinate]int64, len(g.Nodes)),
		byNode:    make(map[int64]Coordinate, len(g.Nodes)),
		adjacency: g.Adjacency,
	}
	for id, n := range g.Nodes {
		c := n.Coordinate()
		idx.byNode[id] = c
		if prev, dup := idx.byCoord[c]; !dup || id < prev {
			idx.byCoord[c] = id
		}
	}
	return idx
}

func (c *CoordinateIndex) NodeAt(coord Coordinate) (int64, bool) {
	id, ok := c.byCoord[coord]
	return id, ok
}

func (c *CoordinateIndex) CoordinateOf(id int64) (Coordinate, bool) {
	coord, ok := c.byNode[id]
	return coord, ok
}

func (c *CoordinateIndex) Neighbors(id int64) []int64 {
	return c.adjacency[id]
}

func (c *CoordinateIndex) Len() int {
	return len(c.byNode)
}
