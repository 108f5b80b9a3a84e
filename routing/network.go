package routing

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// NetworkNode and NetworkEdge are the stored GOB format produced by the
// json_to_gob converter.
type NetworkNode struct {
	ID        int64   `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type NetworkEdge struct {
	FromID   int64        `json:"from_id"`
	ToID     int64        `json:"to_id"`
	Key      int          `json:"key"`
	Length   float64      `json:"length"`
	Geometry [][2]float64 `json:"geometry,omitempty"` // [lon, lat] pairs
}

type NetworkFile struct {
	Nodes []NetworkNode `json:"nodes"`
	Edges []NetworkEdge `json:"edges"`
}

// LoadNetwork decodes a network file. Any failure is a configuration error.
func LoadNetwork(path string) (*NetworkFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open network %s: %v: %w", path, err, ErrConfiguration)
	}
	defer f.Close()

	var nf NetworkFile
	if err := gob.NewDecoder(f).Decode(&nf); err != nil {
		return nil, fmt.Errorf("decode network %s: %v: %w", path, err, ErrConfiguration)
	}
	if len(nf.Nodes) == 0 {
		return nil, fmt.Errorf("network %s has no nodes: %w", path, ErrConfiguration)
	}
	return &nf, nil
}

// WriteNetwork gob-encodes nf to path, creating parent directories.
func WriteNetwork(path string, nf *NetworkFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create GOB file %s: %w", path, err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(nf); err != nil {
		return fmt.Errorf("failed to encode GOB to %s: %w", path, err)
	}
	return nil
}

// BuildGraph converts the stored format into a collapsed, finalized Graph.
func BuildGraph(nf *NetworkFile) (*Graph, error) {
	g := NewGraph()
	for _, n := range nf.Nodes {
		g.AddNode(&Node{ID: n.ID, Latitude: n.Latitude, Longitude: n.Longitude})
	}

	for _, ne := range nf.Edges {
		e := &Edge{
			FromID:      ne.FromID,
			ToID:        ne.ToID,
			ParallelKey: ne.Key,
			Length:      ne.Length,
		}
		if len(ne.Geometry) >= 2 {
			e.Geometry = make([]Coordinate, len(ne.Geometry))
			for i, p := range ne.Geometry {
				e.Geometry[i] = Coordinate{Lat: p[1], Lon: p[0]}
			}
		}
		if err := g.AddEdge(e); err != nil {
			return nil, err
		}
	}

	g.Finalize()
	return g, nil
}
