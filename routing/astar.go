package routing

import (
	"container/heap"
	"fmt"
)

type PriorityQueueItem struct {
	NodeID   int64
	Priority float64 // f = g + h
	GScore   float64
	Seq      uint64 // insertion order, breaks f ties FIFO
	Index    int
}

type PriorityQueue []*PriorityQueueItem

func (pq PriorityQueue) Len() int { return len(pq) }

func (pq PriorityQueue) Less(i, j int) bool {
	if pq[i].Priority != pq[j].Priority {
		return pq[i].Priority < pq[j].Priority
	}
	return pq[i].Seq < pq[j].Seq
}

func (pq PriorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].Index = i
	pq[j].Index = j
}

func (pq *PriorityQueue) Push(x interface{}) {
	n := len(*pq)
	item := x.(*PriorityQueueItem)
	item.Index = n
	*pq = append(*pq, item)
}

func (pq *PriorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.Index = -1
	*pq = old[0 : n-1]
	return item
}

// astarHeuristic is the straight-line distance to the goal in meters. It
// only underestimates the true cost for LengthOnly-like vectors; with
// feature weights the search may return a slightly suboptimal path.
func astarHeuristic(coords *CoordinateIndex, nodeID int64, goal Coordinate) float64 {
	c, ok := coords.CoordinateOf(nodeID)
	if !ok {
		return 0.0
	}
	return HaversineDistance(c, goal)
}

// AStar returns the node chain from start to goal minimizing EdgeCost under w.
func (s *Snapshot) AStar(start, goal int64, w WeightVector) ([]int64, error) {
	if _, ok := s.Coords.CoordinateOf(start); !ok {
		return nil, fmt.Errorf("start node %d not in graph: %w", start, ErrNotFound)
	}
	goalCoord, ok := s.Coords.CoordinateOf(goal)
	if !ok {
		return nil, fmt.Errorf("goal node %d not in graph: %w", goal, ErrNotFound)
	}
	if start == goal {
		return []int64{start}, nil
	}

	openSet := &PriorityQueue{}
	heap.Init(openSet)
	var seq uint64

	cameFrom := make(map[int64]int64)
	gScore := map[int64]float64{start: 0}

	heap.Push(openSet, &PriorityQueueItem{
		NodeID:   start,
		Priority: astarHeuristic(s.Coords, start, goalCoord),
		GScore:   0,
		Seq:      seq,
	})

	for openSet.Len() > 0 {
		current := heap.Pop(openSet).(*PriorityQueueItem)

		if current.GScore > gScore[current.NodeID] {
			continue
		}
		if current.NodeID == goal {
			return reconstructPath(cameFrom, start, goal), nil
		}

		for _, neighbor := range s.Coords.Neighbors(current.NodeID) {
			cost, err := s.Weights.EdgeCost(current.NodeID, neighbor, w)
			if err != nil {
				return nil, err
			}
			tentative := current.GScore + cost
			if best, seen := gScore[neighbor]; seen && tentative >= best {
				continue
			}
			cameFrom[neighbor] = current.NodeID
			gScore[neighbor] = tentative
			seq++
			heap.Push(openSet, &PriorityQueueItem{
				NodeID:   neighbor,
				Priority: tentative + astarHeuristic(s.Coords, neighbor, goalCoord),
				GScore:   tentative,
				Seq:      seq,
			})
		}
	}

	return nil, fmt.Errorf("no path between %d and %d: %w", start, goal, ErrNotFound)
}

func reconstructPath(cameFrom map[int64]int64, start, goal int64) []int64 {
	path := []int64{goal}
	for current := goal; current != start; {
		current = cameFrom[current]
		path = append(path, current)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
